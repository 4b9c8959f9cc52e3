package pipeline

import (
	"context"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/table"
)

// Sink receives the final tables of a run.
type Sink interface {
	Persist(ctx context.Context, runID string, cleaned *table.Table, anomalies *cleaning.AnomalyTable) error
}

// Sinks fans a run out to several sinks in order. Every sink is tried even
// if an earlier one fails; the first error is returned.
type Sinks []Sink

func (s Sinks) Persist(ctx context.Context, runID string, cleaned *table.Table, anomalies *cleaning.AnomalyTable) error {
	var first error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Persist(ctx, runID, cleaned, anomalies); err != nil && first == nil {
			first = err
		}
	}
	return first
}
