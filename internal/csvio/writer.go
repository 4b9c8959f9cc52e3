package csvio

import (
	"bufio"
	"io"
	"strings"

	"github.com/JonMunkholm/fuelclean/internal/table"
)

// WriteTable writes t as CSV with a header row. Fields in the quoted columns
// are always wrapped in double quotes; other fields are quoted only when they
// need it. Absent cells are written as empty fields.
func WriteTable(w io.Writer, t *table.Table, quoted ...string) error {
	bw := bufio.NewWriter(w)

	cols := t.Columns()
	force := make([]bool, len(cols))
	for _, q := range quoted {
		if j, ok := t.ColumnIndex(q); ok {
			force[j] = true
		}
	}

	if err := writeRecord(bw, cols, nil); err != nil {
		return err
	}

	fields := make([]string, len(cols))
	for _, r := range t.Rows() {
		for j, c := range r.Cells {
			fields[j] = c.String()
		}
		if err := writeRecord(bw, fields, force); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string, force []bool) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		q := needsQuotes(f) || (force != nil && force[i])
		if !q {
			if _, err := w.WriteString(f); err != nil {
				return err
			}
			continue
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
		if _, err := w.WriteString(strings.ReplaceAll(f, `"`, `""`)); err != nil {
			return err
		}
		if err := w.WriteByte('"'); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// needsQuotes mirrors the rules of encoding/csv.Writer.
func needsQuotes(f string) bool {
	if f == "" {
		return false
	}
	if f == `\.` {
		return true
	}
	if strings.ContainsAny(f, "\",\r\n") {
		return true
	}
	return f[0] == ' ' || f[0] == '\t'
}
