package cleaning

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/fuelclean/internal/table"
)

// ZeroPrice is substituted for any price that does not parse.
const ZeroPrice = "0.00"

// PriceNormalizer rewrites a price column to two-decimal fixed point.
type PriceNormalizer struct {
	Column string
}

// FormatPrice formats s with exactly two fractional digits, rounding the
// float64 value. Anything that is not a number becomes ZeroPrice.
func FormatPrice(s string) string {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return ZeroPrice
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ZeroPrice
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// Normalize returns a copy of t with every price formatted. No rows are removed.
func (p PriceNormalizer) Normalize(t *table.Table) (*table.Table, error) {
	if t == nil {
		return nil, ErrMissingTable
	}
	if !t.Has(p.Column) {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, p.Column)
	}
	return t.MapColumn(p.Column, func(_ table.Row, c table.Cell) table.Cell {
		return table.Text(FormatPrice(c.String()))
	})
}
