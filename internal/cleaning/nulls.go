package cleaning

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/fuelclean/internal/table"
)

var (
	// ErrMissingTable is returned when a stage is handed no table at all.
	ErrMissingTable = errors.New("record table is missing")

	// ErrMissingColumn is returned when a stage's column is not in the table.
	ErrMissingColumn = errors.New("column not found")
)

// numericRegex matches integers, decimals, scientific notation and infinity.
var numericRegex = regexp.MustCompile(`^[+-]?((\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?|(?i:inf|infinity))$`)

// invalidIDs are compared against the trimmed, lowercased identifier.
var invalidIDs = map[string]bool{
	"":     true,
	"null": true,
	"nan":  true,
}

// NullDetector splits rows on the validity of an identifier column.
type NullDetector struct {
	Column string
}

// IsInvalidID reports whether c is absent or a sentinel placeholder.
func IsInvalidID(c table.Cell) bool {
	if c.Null {
		return true
	}
	return invalidIDs[strings.ToLower(strings.TrimSpace(c.Value))]
}

// IsNegativeID reports whether c parses as a number below zero. Values that do
// not parse are not negative.
func IsNegativeID(c table.Cell) bool {
	if c.Null {
		return false
	}
	s := strings.TrimSpace(c.Value)
	if !numericRegex.MatchString(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return f < 0
}

// DetectNulls returns the rows with a usable identifier and, separately, the
// rows whose identifier is absent or a sentinel.
func (d NullDetector) DetectNulls(t *table.Table) (cleaned, invalid *table.Table, err error) {
	j, err := d.column(t)
	if err != nil {
		return nil, nil, err
	}
	cleaned, invalid = t.Partition(func(r table.Row) bool {
		return !IsInvalidID(r.Cells[j])
	})
	return cleaned, invalid, nil
}

// DetectNegatives returns the rows whose identifier is not a negative number
// and, separately, those that are. Run it over the output of DetectNulls so
// the two anomaly sets stay disjoint.
func (d NullDetector) DetectNegatives(t *table.Table) (cleaned, negative *table.Table, err error) {
	j, err := d.column(t)
	if err != nil {
		return nil, nil, err
	}
	cleaned, negative = t.Partition(func(r table.Row) bool {
		return !IsNegativeID(r.Cells[j])
	})
	return cleaned, negative, nil
}

func (d NullDetector) column(t *table.Table) (int, error) {
	if t == nil {
		return 0, ErrMissingTable
	}
	j, ok := t.ColumnIndex(d.Column)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingColumn, d.Column)
	}
	return j, nil
}
