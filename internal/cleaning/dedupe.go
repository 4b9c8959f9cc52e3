package cleaning

import "github.com/JonMunkholm/fuelclean/internal/table"

// RemoveDuplicates drops every row that is identical, across all columns, to
// an earlier row. Survivors keep their relative order. The second return value
// is the number of rows dropped. Duplicates are not quarantined.
func RemoveDuplicates(t *table.Table) (*table.Table, int) {
	seen := make(map[string]struct{}, t.Len())
	out := t.Filter(func(r table.Row) bool {
		k := r.Key()
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
	return out, t.Len() - out.Len()
}
