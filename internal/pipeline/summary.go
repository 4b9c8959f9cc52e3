package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/JonMunkholm/fuelclean/internal/ziplookup"
)

// Summary holds the per-stage counters of one run. Each counter is written
// once by its stage.
type Summary struct {
	RunID string `json:"run_id"`

	InputRows   int `json:"input_rows"`
	CleanedRows int `json:"cleaned_rows"`
	AnomalyRows int `json:"anomaly_rows"`

	NullsRemoved       int `json:"nulls_removed"`
	NegativesRemoved   int `json:"negatives_removed"`
	DuplicatesRemoved  int `json:"duplicates_removed"`
	NonFuelFiltered    int `json:"non_fuel_filtered"`
	ZipsAdded          int `json:"zips_added"`
	AddressesFormatted int `json:"addresses_formatted"`

	CacheHits     int                   `json:"cache_hits"`
	FailedLookups []ziplookup.CityState `json:"failed_lookups"`
	SkippedStages []Stage               `json:"skipped_stages,omitempty"`

	// Interrupted is set when the run was cancelled during zip enrichment.
	// Lookups that had not been made are counted in FailedLookups.
	Interrupted bool `json:"interrupted"`

	Duration time.Duration `json:"duration_ns"`
}

// Lines returns the counter labels and values in report order.
func (s Summary) Lines() [][2]string {
	return [][2]string{
		{"Rows read", strconv.Itoa(s.InputRows)},
		{"Null or invalid IDs removed", strconv.Itoa(s.NullsRemoved)},
		{"Negative IDs removed", strconv.Itoa(s.NegativesRemoved)},
		{"Duplicate rows removed", strconv.Itoa(s.DuplicatesRemoved)},
		{"Non-fuel rows filtered", strconv.Itoa(s.NonFuelFiltered)},
		{"Zip codes added", strconv.Itoa(s.ZipsAdded)},
		{"Addresses reformatted", strconv.Itoa(s.AddressesFormatted)},
		{"Clean rows written", strconv.Itoa(s.CleanedRows)},
		{"Anomalies written", strconv.Itoa(s.AnomalyRows)},
	}
}

// WriteText writes the human-readable end-of-run report.
func (s Summary) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Cleaning run %s\n", s.RunID)
	lines := s.Lines()
	width := 0
	for _, l := range lines {
		width = max(width, runewidth.StringWidth(l[0]))
	}
	for _, l := range lines {
		b.WriteString("  ")
		b.WriteString(runewidth.FillRight(l[0], width))
		b.WriteString("  ")
		b.WriteString(l[1])
		b.WriteByte('\n')
	}

	for _, st := range s.SkippedStages {
		fmt.Fprintf(&b, "  Skipped stage: %s\n", st)
	}
	if s.Interrupted {
		b.WriteString("Run cancelled during zip lookups; remaining addresses left unenriched\n")
	}

	if len(s.FailedLookups) == 0 {
		b.WriteString("No failed zip lookups\n")
	} else {
		fmt.Fprintf(&b, "Failed zip lookups (%d):\n", len(s.FailedLookups))
		cityWidth := runewidth.StringWidth("City")
		for _, f := range s.FailedLookups {
			cityWidth = max(cityWidth, runewidth.StringWidth(f.City))
		}
		fmt.Fprintf(&b, "  %s  %s\n", runewidth.FillRight("City", cityWidth), "State")
		for _, f := range s.FailedLookups {
			fmt.Fprintf(&b, "  %s  %s\n", runewidth.FillRight(f.City, cityWidth), f.State)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
