// Package table provides the in-memory record table threaded through the
// cleaning pipeline.
//
// A Table is treated as an immutable value. Every operation that changes the
// row set or a cell returns a new Table that shares untouched rows with its
// parent; rows that change get a fresh cell slice (copy-on-write). Each row
// carries the index it had in the original input so that partitions taken by
// different stages can be reconciled without ambiguity.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownColumn is returned when an operation names a column the table
// does not have.
var ErrUnknownColumn = errors.New("unknown column")

// ErrSchemaMismatch is returned when two tables with different columns are combined.
var ErrSchemaMismatch = errors.New("column sets differ")

// Cell is a single typed value. A Null cell is a true absence (the input had
// no value at all), which is distinct from an empty string.
type Cell struct {
	Value string
	Null  bool
}

// Text returns a present cell holding s.
func Text(s string) Cell {
	return Cell{Value: s}
}

// Missing returns an absent cell.
func Missing() Cell {
	return Cell{Null: true}
}

// String returns the cell value, or "" for an absent cell.
func (c Cell) String() string {
	if c.Null {
		return ""
	}
	return c.Value
}

// Row is one record. Index is the row's position in the original input and
// never changes while the row is retained.
type Row struct {
	Index int
	Cells []Cell
}

// Key returns a string that is equal for two rows exactly when every cell is
// equal, including the absent/empty distinction.
func (r Row) Key() string {
	var b strings.Builder
	for _, c := range r.Cells {
		if c.Null {
			b.WriteString("N;")
			continue
		}
		b.WriteString(strconv.Itoa(len(c.Value)))
		b.WriteByte(':')
		b.WriteString(c.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// Table is an ordered set of rows over a fixed column set.
type Table struct {
	columns    []string
	index      map[string]int
	rows       []Row
	generation int
}

// New builds a table from raw cell rows. Rows shorter than the column set are
// padded with Missing cells; extra cells are dropped. Row indexes are
// assigned in input order starting at zero.
func New(columns []string, rows [][]Cell) *Table {
	cols := append([]string(nil), columns...)
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := idx[c]; !dup {
			idx[c] = i
		}
	}

	out := make([]Row, len(rows))
	for i, raw := range rows {
		cells := make([]Cell, len(cols))
		for j := range cells {
			if j < len(raw) {
				cells[j] = raw[j]
			} else {
				cells[j] = Missing()
			}
		}
		out[i] = Row{Index: i, Cells: cells}
	}

	return &Table{columns: cols, index: idx, rows: out}
}

// derive returns a child table over the same columns holding rows.
func (t *Table) derive(rows []Row) *Table {
	return &Table{
		columns:    t.columns,
		index:      t.index,
		rows:       rows,
		generation: t.generation + 1,
	}
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Generation counts how many derivations separate this table from the one
// built by New.
func (t *Table) Generation() int {
	return t.generation
}

// Has reports whether the table has the named column.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// ColumnIndex returns the position of col.
func (t *Table) ColumnIndex(col string) (int, bool) {
	i, ok := t.index[col]
	return i, ok
}

// Row returns the i-th row. The returned cells must not be modified.
func (t *Table) Row(i int) Row {
	return t.rows[i]
}

// Rows returns the rows in order. The slice is a copy; the cells are shared
// and must not be modified.
func (t *Table) Rows() []Row {
	return append([]Row(nil), t.rows...)
}

// Value returns the cell at row i in column col.
func (t *Table) Value(i int, col string) (Cell, bool) {
	j, ok := t.index[col]
	if !ok {
		return Cell{}, false
	}
	return t.rows[i].Cells[j], true
}

// Indices returns the original indexes of the rows in order.
func (t *Table) Indices() []int {
	out := make([]int, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Index
	}
	return out
}

// Partition splits the table into rows for which keep returns true and the
// rest. Relative order is preserved in both halves.
func (t *Table) Partition(keep func(Row) bool) (kept, dropped *Table) {
	var k, d []Row
	for _, r := range t.rows {
		if keep(r) {
			k = append(k, r)
		} else {
			d = append(d, r)
		}
	}
	return t.derive(k), t.derive(d)
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	kept, _ := t.Partition(keep)
	return kept
}

// MapColumn returns a table in which every cell of col has been replaced by
// fn(row, cell). Rows whose cell is unchanged are shared with the receiver.
func (t *Table) MapColumn(col string, fn func(Row, Cell) Cell) (*Table, error) {
	j, ok := t.index[col]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}

	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		next := fn(r, r.Cells[j])
		if next == r.Cells[j] {
			rows[i] = r
			continue
		}
		cells := append([]Cell(nil), r.Cells...)
		cells[j] = next
		rows[i] = Row{Index: r.Index, Cells: cells}
	}
	return t.derive(rows), nil
}

// Concat appends other's rows after t's. Both tables must have the same columns.
func (t *Table) Concat(other *Table) (*Table, error) {
	if !sameColumns(t.columns, other.columns) {
		return nil, ErrSchemaMismatch
	}
	rows := make([]Row, 0, len(t.rows)+len(other.rows))
	rows = append(rows, t.rows...)
	rows = append(rows, other.rows...)
	return t.derive(rows), nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
