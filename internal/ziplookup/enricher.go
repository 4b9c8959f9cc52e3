package ziplookup

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/logging"
	"github.com/JonMunkholm/fuelclean/internal/table"
)

var zipAnywhere = regexp.MustCompile(`\b\d{5}\b`)

// HasZip reports whether addr already contains a 5-digit code.
func HasZip(addr string) bool {
	return zipAnywhere.MatchString(addr)
}

// ExtractCityState takes the city from the second-to-last comma segment and
// the state abbreviation from the first word of the last segment. The
// abbreviation is returned as written; StateTable.Expand resolves it.
func ExtractCityState(addr string) (CityState, bool) {
	parts := strings.Split(addr, ",")
	if len(parts) < 2 {
		return CityState{}, false
	}

	city := strings.TrimSpace(parts[len(parts)-2])
	last := strings.Fields(parts[len(parts)-1])
	if city == "" || len(last) == 0 {
		return CityState{}, false
	}
	return CityState{City: city, State: last[0]}, true
}

// Enricher appends resolved postal codes to addresses that lack one. An
// Enricher accumulates counters and must not be shared between runs.
type Enricher struct {
	Column   string
	Lookuper Lookuper
	Cache    *Cache
	States   cleaning.StateTable

	added  int
	failed []CityState
}

// Added returns how many addresses received a code.
func (e *Enricher) Added() int {
	return e.added
}

// Failed returns the city and state pairs that could not be resolved, in the
// order they were attempted.
func (e *Enricher) Failed() []CityState {
	return append([]CityState(nil), e.failed...)
}

// Enrich returns a copy of t in which every address without a 5-digit code
// has the resolved code appended after a single space. Addresses that cannot
// be parsed or resolved are left as they are. Once ctx is done no further
// requests are made: cached pairs still resolve and every other pending
// address is recorded as a failed lookup. The only error is a missing table
// or column.
func (e *Enricher) Enrich(ctx context.Context, t *table.Table) (*table.Table, error) {
	if t == nil {
		return nil, cleaning.ErrMissingTable
	}
	if !t.Has(e.Column) {
		return nil, fmt.Errorf("%w: %q", cleaning.ErrMissingColumn, e.Column)
	}
	if e.Cache == nil {
		e.Cache = NewCache()
	}
	states := e.States
	if states == nil {
		states = cleaning.DefaultStates()
	}
	logger := logging.FromContext(ctx)
	interrupted := false

	return t.MapColumn(e.Column, func(r table.Row, c table.Cell) table.Cell {
		if c.Null || HasZip(c.Value) {
			return c
		}
		key, ok := ExtractCityState(c.Value)
		if !ok {
			logger.Debug("address has no city and state", "row", r.Index)
			return c
		}
		key.State = states.Expand(key.State)

		zip, ok := e.Cache.Get(key)
		if !ok {
			var err error
			if err = ctx.Err(); err == nil {
				zip, err = e.Lookuper.Lookup(ctx, key.City, key.State)
			}
			if err != nil {
				e.failed = append(e.failed, key)
				if ctx.Err() != nil {
					if !interrupted {
						interrupted = true
						logger.Warn("zip lookups cancelled, remaining addresses left unenriched", "error", ctx.Err())
					}
					return c
				}
				logger.Warn("zip lookup failed", "city", key.City, "state", key.State, "error", err)
				return c
			}
			e.Cache.Set(key, zip)
		}

		e.added++
		return table.Text(c.Value + " " + zip)
	})
}
