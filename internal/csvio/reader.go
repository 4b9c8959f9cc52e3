// Package csvio reads record tables from delimited files and writes cleaned
// and anomaly tables back out as CSV and as an Excel workbook.
package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/fuelclean/internal/table"
)

// ErrNoHeader is returned when the input has no non-blank row to use as a header.
var ErrNoHeader = errors.New("csv has no header row")

// ErrTooLarge is returned when the input exceeds ReadOptions.MaxBytes.
var ErrTooLarge = errors.New("csv exceeds size limit")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadOptions controls parsing.
type ReadOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// MaxBytes bounds how much is read. Zero means no limit.
	MaxBytes int64
}

// ReadTable parses a CSV stream into a table. The first non-blank row is the
// header. Every field is kept as text, so an empty field stays an empty
// string; only fields missing from a short row become absent cells. Empty
// lines are skipped, but a data row of blank fields such as ",,," is kept.
func ReadTable(r io.Reader, opts ReadOptions) (*table.Table, error) {
	if opts.MaxBytes > 0 {
		r = io.LimitReader(r, opts.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, ErrTooLarge
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	records, err := parseCSV(sanitizeUTF8(data), opts.Comma)
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	start := 0
	for start < len(records) && isEmptyRow(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, ErrNoHeader
	}

	header := make([]string, len(records[start]))
	for i, h := range records[start] {
		header[i] = cleanHeader(h)
	}

	rows := make([][]table.Cell, 0, len(records)-start-1)
	for _, rec := range records[start+1:] {
		cells := make([]table.Cell, len(rec))
		for i, v := range rec {
			cells[i] = table.Text(v)
		}
		rows = append(rows, cells)
	}

	return table.New(header, rows), nil
}

// ReadFile opens path and reads it with ReadTable.
func ReadFile(path string, opts ReadOptions) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTable(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func parseCSV(data []byte, comma rune) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	if comma != 0 {
		r.Comma = comma
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// cleanHeader trims whitespace and stray quotes from a header name.
func cleanHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
