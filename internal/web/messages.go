package web

// messages.go maps technical errors to user-facing messages with codes for
// support reference.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Invalid CSV: File could not be parsed or has no header row
//	          Patterns: "parse csv", "csv has no header row"
//
//	FILE002 - No file: No file was attached under the "file" field
//	          Patterns: "no file provided"
//
//	FILE003 - File too large: File exceeds the configured size limit
//	          Patterns: "file too large", "csv exceeds size limit"
//
// # Pipeline Errors (PIPE001-PIPE099)
//
//	PIPE001 - Missing column: The identifier column is absent from the header
//	          Patterns: "column not found"
//
//	PIPE002 - Missing table: No record table was produced from the upload
//	          Patterns: "record table is missing"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run not found: Unknown or expired run id
//	         Patterns: "run not found"
//
//	RUN002 - System busy: Too many runs in progress
//	         Patterns: "too many concurrent runs"
//
//	RUN003 - Run timeout: The run did not finish in time
//	         Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error,
// correlated by request_id and run_id.

import (
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively with strings.Contains.
// The first matching pattern wins.
var errorPatterns = []errorPattern{
	{
		pattern: "parse csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE001",
		},
	},
	{
		pattern: "csv has no header row",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Attach a CSV file in the \"file\" field",
			Code:    "FILE002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE003",
		},
	},
	{
		pattern: "csv exceeds size limit",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE003",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "Required column is missing from CSV",
			Action:  "Check that the transaction identifier column is present",
			Code:    "PIPE001",
		},
	},
	{
		pattern: "record table is missing",
		msg: UserMessage{
			Message: "No records were read from the file",
			Action:  "Upload a CSV file with a header row",
			Code:    "PIPE002",
		},
	},
	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "Cleaning run not found",
			Action:  "The run may have expired. Please upload the file again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "too many concurrent runs",
		msg: UserMessage{
			Message: "System is busy processing other runs",
			Action:  "Please wait a moment and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The cleaning run timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "RUN003",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If no
// pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}
