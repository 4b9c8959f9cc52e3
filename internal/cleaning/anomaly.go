package cleaning

import (
	"github.com/JonMunkholm/fuelclean/internal/table"
)

// ReasonColumn is the leading column added by AnomalyTable.Table.
const ReasonColumn = "Anomaly Reason"

// Reason identifies which validity stage quarantined a row.
type Reason int

const (
	ReasonNullOrInvalidID Reason = iota + 1
	ReasonNegativeID
	ReasonNonFuelCategory
)

// Reasons lists every reason in report order.
var Reasons = []Reason{ReasonNullOrInvalidID, ReasonNegativeID, ReasonNonFuelCategory}

func (r Reason) String() string {
	switch r {
	case ReasonNullOrInvalidID:
		return "NullOrInvalidId"
	case ReasonNegativeID:
		return "NegativeId"
	case ReasonNonFuelCategory:
		return "NonFuelCategory"
	default:
		return "Unknown"
	}
}

// Anomaly is one quarantined row with the reason it was removed.
type Anomaly struct {
	Reason Reason
	Row    table.Row
}

// AnomalyTable accumulates rows removed by validity stages. Records are only
// ever appended; a row is expected to be offered once, since stages only see
// rows that earlier stages kept.
type AnomalyTable struct {
	columns []string
	records []Anomaly
}

// NewAnomalyTable returns an empty anomaly table over the given columns.
func NewAnomalyTable(columns []string) *AnomalyTable {
	return &AnomalyTable{columns: append([]string(nil), columns...)}
}

// Append records every row of t under reason. A nil or empty table is a no-op.
func (a *AnomalyTable) Append(reason Reason, t *table.Table) {
	if t == nil {
		return
	}
	for _, r := range t.Rows() {
		a.records = append(a.records, Anomaly{Reason: reason, Row: r})
	}
}

// Len returns the number of quarantined rows.
func (a *AnomalyTable) Len() int {
	return len(a.records)
}

// Count returns the number of rows quarantined for reason.
func (a *AnomalyTable) Count(reason Reason) int {
	n := 0
	for _, rec := range a.records {
		if rec.Reason == reason {
			n++
		}
	}
	return n
}

// Records returns the anomalies in arrival order.
func (a *AnomalyTable) Records() []Anomaly {
	return append([]Anomaly(nil), a.records...)
}

// Columns returns the data columns, without the reason column.
func (a *AnomalyTable) Columns() []string {
	return append([]string(nil), a.columns...)
}

// Table flattens the anomalies into a plain table with a leading reason column.
func (a *AnomalyTable) Table() *table.Table {
	return a.table(func(Reason) bool { return true })
}

// TableFor is Table restricted to one reason.
func (a *AnomalyTable) TableFor(reason Reason) *table.Table {
	return a.table(func(r Reason) bool { return r == reason })
}

func (a *AnomalyTable) table(match func(Reason) bool) *table.Table {
	cols := append([]string{ReasonColumn}, a.columns...)
	var rows [][]table.Cell
	for _, rec := range a.records {
		if !match(rec.Reason) {
			continue
		}
		cells := make([]table.Cell, 0, len(cols))
		cells = append(cells, table.Text(rec.Reason.String()))
		cells = append(cells, rec.Row.Cells...)
		rows = append(rows, cells)
	}
	return table.New(cols, rows)
}
