package cleaning

import (
	"fmt"

	"github.com/JonMunkholm/fuelclean/internal/table"
)

// DefaultFuelTypes is the recognized fuel vocabulary. Matching is literal, so
// the mixed casing here is significant.
var DefaultFuelTypes = []string{
	"lng",
	"gas",
	"methanol",
	"diesel",
	"LNG",
	"biodiesel",
	"ethanol",
	"kerosene",
	"liquefied natural gas",
	"liquid natural gas",
	"propane",
}

// CategoryFilter keeps rows whose category is in an allow-list. Rejected rows
// accumulate across calls.
type CategoryFilter struct {
	Column string

	allowed   map[string]bool
	anomalies *table.Table
}

// NewCategoryFilter returns a filter over col accepting exactly the given values.
func NewCategoryFilter(col string, allowed []string) *CategoryFilter {
	set := make(map[string]bool, len(allowed))
	for _, v := range allowed {
		set[v] = true
	}
	return &CategoryFilter{Column: col, allowed: set}
}

// Allowed reports whether v is in the allow-list. The comparison is exact.
func (f *CategoryFilter) Allowed(v string) bool {
	return f.allowed[v]
}

// Filter splits t into rows with a recognized category and the rows rejected
// so far, including rejections from earlier calls. Absent categories are
// rejected.
func (f *CategoryFilter) Filter(t *table.Table) (kept, anomalies *table.Table, err error) {
	if t == nil {
		return nil, nil, ErrMissingTable
	}
	j, ok := t.ColumnIndex(f.Column)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingColumn, f.Column)
	}

	kept, rejected := t.Partition(func(r table.Row) bool {
		c := r.Cells[j]
		return !c.Null && f.allowed[c.Value]
	})

	if f.anomalies == nil {
		f.anomalies = rejected
	} else if f.anomalies, err = f.anomalies.Concat(rejected); err != nil {
		return nil, nil, err
	}
	return kept, f.anomalies, nil
}

// Anomalies returns every row rejected so far, or nil before the first call.
func (f *CategoryFilter) Anomalies() *table.Table {
	return f.anomalies
}
