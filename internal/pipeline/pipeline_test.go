package pipeline

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/table"
	"github.com/JonMunkholm/fuelclean/internal/ziplookup"
)

var testColumns = []string{"Transaction Number", "Gross Price", "Fuel Type", "Full Address"}

type stubLookuper map[string]string

func (s stubLookuper) Lookup(_ context.Context, city, state string) (string, error) {
	if zip, ok := s[city+"/"+state]; ok {
		return zip, nil
	}
	return "", ziplookup.ErrNoResult
}

type lookupFunc func(ctx context.Context, city, state string) (string, error)

func (f lookupFunc) Lookup(ctx context.Context, city, state string) (string, error) {
	return f(ctx, city, state)
}

type recordingSink struct {
	runID     string
	cleaned   *table.Table
	anomalies *cleaning.AnomalyTable
	err       error
}

func (s *recordingSink) Persist(_ context.Context, runID string, cleaned *table.Table, anomalies *cleaning.AnomalyTable) error {
	s.runID, s.cleaned, s.anomalies = runID, cleaned, anomalies
	return s.err
}

func row(id table.Cell, price, fuel, addr string) []table.Cell {
	return []table.Cell{id, table.Text(price), table.Text(fuel), table.Text(addr)}
}

func fixture() *table.Table {
	return table.New(testColumns, [][]table.Cell{
		row(table.Text("1001"), "19.999", "diesel", "123 Main St, Springfield, IL"),
		row(table.Text("NaN"), "5", "gas", "x"),
		row(table.Text(""), "5", "gas", "x"),
		row(table.Missing(), "5", "gas", "x"),
		row(table.Text("-7"), "5", "gas", "x"),
		row(table.Text("1002"), "abc", "Gasoline", "1 A St, Austin, TX 73301"),
		row(table.Text("1001"), "19.999", "diesel", "123 Main St, Springfield, IL"),
		row(table.Text("1003"), "12", "LNG", "62704 IL, 9 Oak Ave, Springfield"),
		row(table.Text("1004"), "3.5", "gas", "5 Elm St, Nowhere, TX"),
	})
}

func newTestPipeline(sink Sink) *Pipeline {
	return New(DefaultOptions(), stubLookuper{"Springfield/Illinois": "62704"}, sink)
}

func values(t *testing.T, tbl *table.Table, col string) []string {
	t.Helper()
	out := make([]string, tbl.Len())
	for i := range out {
		c, ok := tbl.Value(i, col)
		require.True(t, ok)
		out[i] = c.String()
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	sink := &recordingSink{}
	res, err := newTestPipeline(sink).Run(context.Background(), fixture())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 7, 8}, res.Cleaned.Indices())
	assert.Equal(t, []string{"20.00", "12.00", "3.50"}, values(t, res.Cleaned, "Gross Price"))
	assert.Equal(t, []string{
		"123 Main St, Springfield, IL 62704",
		"9 Oak Ave, Springfield, IL, 62704",
		"5 Elm St, Nowhere, TX",
	}, values(t, res.Cleaned, "Full Address"))

	s := res.Summary
	assert.Equal(t, 9, s.InputRows)
	assert.Equal(t, 3, s.NullsRemoved)
	assert.Equal(t, 1, s.NegativesRemoved)
	assert.Equal(t, 1, s.DuplicatesRemoved)
	assert.Equal(t, 1, s.NonFuelFiltered)
	assert.Equal(t, 1, s.ZipsAdded)
	assert.Equal(t, 1, s.AddressesFormatted)
	assert.Equal(t, []ziplookup.CityState{{City: "Nowhere", State: "Texas"}}, s.FailedLookups)
	assert.Equal(t, 3, s.CleanedRows)
	assert.Equal(t, 5, s.AnomalyRows)
	assert.Empty(t, s.SkippedStages)

	assert.Equal(t, Stages, res.Stages)
	assert.Equal(t, res.RunID, sink.runID)
	assert.Same(t, res.Cleaned, sink.cleaned)
	assert.Same(t, res.Anomalies, sink.anomalies)
}

func TestRun_NoRowVanishesExceptDuplicates(t *testing.T) {
	in := fixture()
	res, err := newTestPipeline(nil).Run(context.Background(), in)
	require.NoError(t, err)

	var got []int
	got = append(got, res.Cleaned.Indices()...)
	for _, a := range res.Anomalies.Records() {
		got = append(got, a.Row.Index)
	}
	sort.Ints(got)

	deduped, _ := cleaning.RemoveDuplicates(in)
	assert.Equal(t, deduped.Indices(), got)
}

func TestRun_BlankRowIsNullAnomaly(t *testing.T) {
	in := table.New(testColumns, [][]table.Cell{
		row(table.Text("1001"), "2.5", "gas", "1 A St, X, IL 62704"),
		row(table.Text(""), "", "", ""),
		row(table.Text("  "), " ", " ", " "),
	})

	res, err := newTestPipeline(nil).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Summary.NullsRemoved)
	assert.Equal(t, []int{0}, res.Cleaned.Indices())
	assert.Equal(t, 2, res.Anomalies.Count(cleaning.ReasonNullOrInvalidID))
}

func TestRun_CancelledDuringLookupStillPersists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lookups := 0
	lookuper := lookupFunc(func(ctx context.Context, city, state string) (string, error) {
		lookups++
		cancel()
		return "", ctx.Err()
	})

	sink := &recordingSink{}
	res, err := New(DefaultOptions(), lookuper, sink).Run(ctx, fixture())
	require.NoError(t, err)

	assert.Equal(t, 1, lookups, "no requests after cancellation")
	assert.True(t, res.Summary.Interrupted)
	assert.Equal(t, 0, res.Summary.ZipsAdded)
	assert.Equal(t, []ziplookup.CityState{
		{City: "Springfield", State: "Illinois"},
		{City: "Nowhere", State: "Texas"},
	}, res.Summary.FailedLookups)
	assert.Equal(t, Stages, res.Stages)
	assert.Equal(t, 3, sink.cleaned.Len())
	assert.Equal(t, 5, sink.anomalies.Len())
}

func TestRun_InvalidIDsNeverClean(t *testing.T) {
	res, err := newTestPipeline(nil).Run(context.Background(), fixture())
	require.NoError(t, err)

	for i := range res.Cleaned.Len() {
		c, _ := res.Cleaned.Value(i, "Transaction Number")
		assert.False(t, c.Null, "null id in cleaned output")
		assert.NotContains(t, []string{"NaN", "", "-7"}, c.Value)
	}

	assert.Equal(t, 3, res.Anomalies.Count(cleaning.ReasonNullOrInvalidID))
	assert.Equal(t, 1, res.Anomalies.Count(cleaning.ReasonNegativeID))
	assert.Equal(t, 1, res.Anomalies.Count(cleaning.ReasonNonFuelCategory))
}

func TestRun_EmptyTableRunsEveryStage(t *testing.T) {
	sink := &recordingSink{}
	res, err := newTestPipeline(sink).Run(context.Background(), table.New(testColumns, nil))
	require.NoError(t, err)

	assert.Equal(t, Stages, res.Stages)
	assert.Equal(t, 0, res.Cleaned.Len())
	assert.Equal(t, 0, res.Anomalies.Len())
	assert.NotNil(t, sink.cleaned)
}

func TestRun_FatalInputs(t *testing.T) {
	p := newTestPipeline(nil)

	_, err := p.Run(context.Background(), nil)
	assert.ErrorIs(t, err, cleaning.ErrMissingTable)

	_, err = p.Run(context.Background(), table.New([]string{"Gross Price"}, nil))
	assert.ErrorIs(t, err, cleaning.ErrMissingColumn)
}

func TestRun_MissingOptionalColumnsSkipStages(t *testing.T) {
	in := table.New([]string{"Transaction Number"}, [][]table.Cell{
		{table.Text("1")},
		{table.Text("null")},
	})

	res, err := newTestPipeline(nil).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []Stage{
		StageNormalizePrices,
		StageFilterCategories,
		StageLookupZips,
		StageFormatAddresses,
	}, res.Summary.SkippedStages)
	assert.Equal(t, Stages, res.Stages)
	assert.Equal(t, 1, res.Cleaned.Len())
}

func TestRun_NoLookuperSkipsEnrichment(t *testing.T) {
	res, err := New(DefaultOptions(), nil, nil).Run(context.Background(), fixture())
	require.NoError(t, err)

	assert.Contains(t, res.Summary.SkippedStages, StageLookupZips)
	assert.Equal(t, 0, res.Summary.ZipsAdded)
}

func TestRun_SinkErrorKeepsResult(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}

	res, err := newTestPipeline(sink).Run(context.Background(), fixture())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Cleaned.Len())
	assert.Equal(t, StagePersist, res.Stages[len(res.Stages)-1])
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	in := fixture()
	_, err := newTestPipeline(nil).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 9, in.Len())
	c, _ := in.Value(0, "Gross Price")
	assert.Equal(t, "19.999", c.Value)
}

func TestSinks_TriesAllReturnsFirstError(t *testing.T) {
	a := &recordingSink{err: errors.New("first")}
	b := &recordingSink{err: errors.New("second")}
	c := &recordingSink{}

	err := Sinks{a, nil, b, c}.Persist(context.Background(), "run", table.New(nil, nil), cleaning.NewAnomalyTable(nil))

	assert.EqualError(t, err, "first")
	assert.Equal(t, "run", c.runID)
}

func TestSummary_WriteText(t *testing.T) {
	s := Summary{
		RunID:         "abc",
		NullsRemoved:  3,
		ZipsAdded:     1,
		FailedLookups: []ziplookup.CityState{{City: "Nowhere", State: "Texas"}},
		SkippedStages: []Stage{StageNormalizePrices},
	}

	var b strings.Builder
	require.NoError(t, s.WriteText(&b))
	out := b.String()

	assert.Contains(t, out, "Cleaning run abc")
	assert.Contains(t, out, "Null or invalid IDs removed  3")
	assert.Contains(t, out, "Skipped stage: normalize_prices")
	assert.Contains(t, out, "Failed zip lookups (1):")
	assert.Contains(t, out, "Nowhere  Texas")
	assert.NotContains(t, out, "cancelled")

	s.Interrupted = true
	b.Reset()
	require.NoError(t, s.WriteText(&b))
	assert.Contains(t, b.String(), "Run cancelled during zip lookups")
}
