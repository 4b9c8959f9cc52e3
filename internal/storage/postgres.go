package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/logging"
	"github.com/JonMunkholm/fuelclean/internal/table"
)

// ErrInvalidRunID is returned when a run ID is not a UUID.
var ErrInvalidRunID = errors.New("run id is not a uuid")

// DB is the subset of *pgxpool.Pool the sink needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cleaning_runs (
	run_id        uuid PRIMARY KEY,
	cleaned_rows  integer NOT NULL,
	anomaly_rows  integer NOT NULL,
	created_at    timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cleaned_transactions (
	run_id             uuid NOT NULL REFERENCES cleaning_runs (run_id) ON DELETE CASCADE,
	row_index          integer NOT NULL,
	transaction_number text,
	gross_price        numeric(14, 2),
	data               jsonb NOT NULL,
	PRIMARY KEY (run_id, row_index)
);

CREATE TABLE IF NOT EXISTS transaction_anomalies (
	run_id             uuid NOT NULL REFERENCES cleaning_runs (run_id) ON DELETE CASCADE,
	row_index          integer NOT NULL,
	reason             text NOT NULL,
	transaction_number text,
	data               jsonb NOT NULL,
	PRIMARY KEY (run_id, row_index)
);`

var (
	cleanedColumns = []string{"run_id", "row_index", "transaction_number", "gross_price", "data"}
	anomalyColumns = []string{"run_id", "row_index", "reason", "transaction_number", "data"}
)

// PostgresSink stores each run in one transaction: a cleaning_runs row plus
// the cleaned and anomalous rows copied in bulk. Every row keeps its original
// index and its full contents as jsonb.
type PostgresSink struct {
	db          DB
	idColumn    string
	priceColumn string
}

// NewPostgresSink returns a sink writing through db. idColumn and priceColumn
// fill the typed columns; the full row always goes to data.
func NewPostgresSink(db DB, idColumn, priceColumn string) *PostgresSink {
	return &PostgresSink{db: db, idColumn: idColumn, priceColumn: priceColumn}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Persist implements pipeline.Sink.
func (s *PostgresSink) Persist(ctx context.Context, runID string, cleaned *table.Table, anomalies *cleaning.AnomalyTable) error {
	id := ToPgUUID(runID)
	if !id.Valid {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx,
		`INSERT INTO cleaning_runs (run_id, cleaned_rows, anomaly_rows) VALUES ($1, $2, $3)`,
		id, cleaned.Len(), anomalies.Len(),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	cleanedRows := s.cleanedRows(id, cleaned)
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"cleaned_transactions"}, cleanedColumns, pgx.CopyFromRows(cleanedRows))
	if err != nil {
		return fmt.Errorf("copy cleaned rows: %w", err)
	}

	anomalyRows := s.anomalyRows(id, anomalies)
	m, err := tx.CopyFrom(ctx, pgx.Identifier{"transaction_anomalies"}, anomalyColumns, pgx.CopyFromRows(anomalyRows))
	if err != nil {
		return fmt.Errorf("copy anomaly rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.FromContext(ctx).Info("run stored in database", "cleaned", n, "anomalies", m)
	return nil
}

func (s *PostgresSink) cleanedRows(id pgtype.UUID, t *table.Table) [][]any {
	cols := t.Columns()
	idIdx, hasID := t.ColumnIndex(s.idColumn)
	priceIdx, hasPrice := t.ColumnIndex(s.priceColumn)

	rows := make([][]any, 0, t.Len())
	for _, r := range t.Rows() {
		txn := CellToPgText(table.Missing())
		if hasID {
			txn = CellToPgText(r.Cells[idIdx])
		}
		price := ToPgNumeric("")
		if hasPrice {
			price = ToPgNumeric(r.Cells[priceIdx].String())
		}
		rows = append(rows, []any{id, int32(r.Index), txn, price, rowData(cols, r)})
	}
	return rows
}

func (s *PostgresSink) anomalyRows(id pgtype.UUID, a *cleaning.AnomalyTable) [][]any {
	cols := a.Columns()
	idIdx := -1
	for i, c := range cols {
		if c == s.idColumn {
			idIdx = i
			break
		}
	}

	records := a.Records()
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		txn := CellToPgText(table.Missing())
		if idIdx >= 0 {
			txn = CellToPgText(rec.Row.Cells[idIdx])
		}
		rows = append(rows, []any{id, int32(rec.Row.Index), rec.Reason.String(), txn, rowData(cols, rec.Row)})
	}
	return rows
}
