// Package pipeline sequences the cleaning stages over one dataset snapshot.
//
// A run threads an immutable record table through every stage in a fixed
// order. Rows removed by validity stages are collected in a tagged anomaly
// table; the address stages only ever see rows that survived. At the end the
// cleaned and anomaly tables go to the configured Sink.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/logging"
	"github.com/JonMunkholm/fuelclean/internal/table"
	"github.com/JonMunkholm/fuelclean/internal/ziplookup"
)

// Options selects the columns and business rules of a run.
type Options struct {
	IDColumn       string
	PriceColumn    string
	CategoryColumn string
	AddressColumn  string
	FuelTypes      []string
	States         cleaning.StateTable

	// OutputDir is where file sinks write the run's outputs.
	OutputDir string
}

// DefaultOptions returns the column names and rules of the standard fuel
// purchase export.
func DefaultOptions() Options {
	return Options{
		IDColumn:       "Transaction Number",
		PriceColumn:    "Gross Price",
		CategoryColumn: "Fuel Type",
		AddressColumn:  "Full Address",
		FuelTypes:      append([]string(nil), cleaning.DefaultFuelTypes...),
		States:         cleaning.DefaultStates(),
		OutputDir:      "data",
	}
}

// Result is everything a run produced. Stages lists the stages entered, in order.
type Result struct {
	RunID     string
	Cleaned   *table.Table
	Anomalies *cleaning.AnomalyTable
	Summary   Summary
	Stages    []Stage
}

// Pipeline runs the cleaning stages. It holds no per-run state, so one
// Pipeline may serve concurrent runs as long as its Lookuper and Sink can.
type Pipeline struct {
	opts     Options
	lookuper ziplookup.Lookuper
	sink     Sink
}

// New creates a Pipeline. A nil lookuper skips zip enrichment and a nil sink
// skips persistence; both stages are still entered.
func New(opts Options, lookuper ziplookup.Lookuper, sink Sink) *Pipeline {
	if opts.States == nil {
		opts.States = cleaning.DefaultStates()
	}
	return &Pipeline{opts: opts, lookuper: lookuper, sink: sink}
}

// run is the mutable state of one invocation of Run.
type run struct {
	ctx    context.Context
	logger *slog.Logger
	res    *Result
	cur    *table.Table
}

func (r *run) enter(s Stage) {
	r.res.Stages = append(r.res.Stages, s)
}

func (r *run) skip(s Stage, column string) {
	r.res.Summary.SkippedStages = append(r.res.Summary.SkippedStages, s)
	r.logger.Warn("stage skipped, column not found", "stage", s, "column", column)
}

// Run cleans t. It fails only when t is nil, when the identifier column is
// absent, or when the sink fails. On a sink failure the returned Result is
// complete and the error is returned alongside it. Cancelling ctx stops zip
// lookups but not the run: the remaining stages still execute, the outputs
// are still persisted, and Summary.Interrupted is set.
func (p *Pipeline) Run(ctx context.Context, t *table.Table) (*Result, error) {
	if t == nil {
		return nil, cleaning.ErrMissingTable
	}
	if !t.Has(p.opts.IDColumn) {
		return nil, fmt.Errorf("%w: %q", cleaning.ErrMissingColumn, p.opts.IDColumn)
	}

	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)

	r := &run{
		ctx:    ctx,
		logger: logging.FromContext(ctx),
		cur:    t,
		res: &Result{
			RunID:     runID,
			Anomalies: cleaning.NewAnomalyTable(t.Columns()),
			Summary:   Summary{RunID: runID, InputRows: t.Len()},
		},
	}
	r.logger.Info("cleaning run started", "rows", t.Len(), "output_dir", p.opts.OutputDir)

	steps := []func(*run) error{
		p.detectNulls,
		p.detectNegatives,
		p.removeDuplicates,
		p.normalizePrices,
		p.filterCategories,
		p.lookupZips,
		p.formatAddresses,
	}
	for _, step := range steps {
		if err := step(r); err != nil {
			return nil, err
		}
	}

	res := r.res
	res.Cleaned = r.cur
	res.Summary.CleanedRows = r.cur.Len()
	res.Summary.AnomalyRows = res.Anomalies.Len()

	r.enter(StagePersist)
	if p.sink != nil {
		persistCtx := ctx
		if ctx.Err() != nil {
			persistCtx = context.WithoutCancel(ctx)
		}
		if err := p.sink.Persist(persistCtx, runID, res.Cleaned, res.Anomalies); err != nil {
			res.Summary.Duration = time.Since(start)
			r.logger.Error("persist failed", "error", err)
			return res, fmt.Errorf("persist run %s: %w", runID, err)
		}
	}
	r.enter(StagePersisted)
	res.Summary.Duration = time.Since(start)

	r.logger.Info("cleaning run complete",
		"cleaned", res.Summary.CleanedRows,
		"anomalies", res.Summary.AnomalyRows,
		"duration", res.Summary.Duration,
	)
	return res, nil
}

func (p *Pipeline) detectNulls(r *run) error {
	r.enter(StageDetectNulls)
	d := cleaning.NullDetector{Column: p.opts.IDColumn}
	kept, invalid, err := d.DetectNulls(r.cur)
	if err != nil {
		return err
	}
	r.res.Anomalies.Append(cleaning.ReasonNullOrInvalidID, invalid)
	r.res.Summary.NullsRemoved = invalid.Len()
	r.cur = kept
	r.logger.Info("null identifiers removed", "stage", StageDetectNulls, "removed", invalid.Len())
	return nil
}

func (p *Pipeline) detectNegatives(r *run) error {
	r.enter(StageDetectNegatives)
	d := cleaning.NullDetector{Column: p.opts.IDColumn}
	kept, negative, err := d.DetectNegatives(r.cur)
	if err != nil {
		return err
	}
	r.res.Anomalies.Append(cleaning.ReasonNegativeID, negative)
	r.res.Summary.NegativesRemoved = negative.Len()
	r.cur = kept
	r.logger.Info("negative identifiers removed", "stage", StageDetectNegatives, "removed", negative.Len())
	return nil
}

func (p *Pipeline) removeDuplicates(r *run) error {
	r.enter(StageRemoveDuplicates)
	kept, removed := cleaning.RemoveDuplicates(r.cur)
	r.res.Summary.DuplicatesRemoved = removed
	r.cur = kept
	r.logger.Info("duplicates removed", "stage", StageRemoveDuplicates, "removed", removed)
	return nil
}

func (p *Pipeline) normalizePrices(r *run) error {
	r.enter(StageNormalizePrices)
	if !r.cur.Has(p.opts.PriceColumn) {
		r.skip(StageNormalizePrices, p.opts.PriceColumn)
		return nil
	}
	out, err := cleaning.PriceNormalizer{Column: p.opts.PriceColumn}.Normalize(r.cur)
	if err != nil {
		return err
	}
	r.cur = out
	r.logger.Info("prices normalized", "stage", StageNormalizePrices, "rows", out.Len())
	return nil
}

func (p *Pipeline) filterCategories(r *run) error {
	r.enter(StageFilterCategories)
	if !r.cur.Has(p.opts.CategoryColumn) {
		r.skip(StageFilterCategories, p.opts.CategoryColumn)
		return nil
	}
	f := cleaning.NewCategoryFilter(p.opts.CategoryColumn, p.opts.FuelTypes)
	kept, rejected, err := f.Filter(r.cur)
	if err != nil {
		return err
	}
	r.res.Anomalies.Append(cleaning.ReasonNonFuelCategory, rejected)
	r.res.Summary.NonFuelFiltered = rejected.Len()
	r.cur = kept
	r.logger.Info("non-fuel rows filtered", "stage", StageFilterCategories, "removed", rejected.Len())
	return nil
}

func (p *Pipeline) lookupZips(r *run) error {
	r.enter(StageLookupZips)
	if !r.cur.Has(p.opts.AddressColumn) {
		r.skip(StageLookupZips, p.opts.AddressColumn)
		return nil
	}
	if p.lookuper == nil {
		r.res.Summary.SkippedStages = append(r.res.Summary.SkippedStages, StageLookupZips)
		r.logger.Warn("stage skipped, no zip lookup configured", "stage", StageLookupZips)
		return nil
	}

	cache := ziplookup.NewCache()
	e := &ziplookup.Enricher{
		Column:   p.opts.AddressColumn,
		Lookuper: p.lookuper,
		Cache:    cache,
		States:   p.opts.States,
	}
	out, err := e.Enrich(r.ctx, r.cur)
	if err != nil {
		return fmt.Errorf("zip lookup: %w", err)
	}
	r.res.Summary.ZipsAdded = e.Added()
	r.res.Summary.FailedLookups = e.Failed()
	r.res.Summary.CacheHits = cache.Hits()
	r.res.Summary.Interrupted = r.ctx.Err() != nil
	r.cur = out
	r.logger.Info("zip codes added",
		"stage", StageLookupZips,
		"added", e.Added(),
		"failed", len(e.Failed()),
		"cache_hits", cache.Hits(),
		"interrupted", r.res.Summary.Interrupted,
	)
	return nil
}

func (p *Pipeline) formatAddresses(r *run) error {
	r.enter(StageFormatAddresses)
	out, changed, skipped := cleaning.AddressNormalizer{Column: p.opts.AddressColumn}.Normalize(r.cur)
	if skipped {
		r.skip(StageFormatAddresses, p.opts.AddressColumn)
		return nil
	}
	r.res.Summary.AddressesFormatted = changed
	r.cur = out
	r.logger.Info("addresses formatted", "stage", StageFormatAddresses, "changed", changed)
	return nil
}
