package csvio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/logging"
	"github.com/JonMunkholm/fuelclean/internal/table"
)

// Output file names.
const (
	CleanedFile   = "cleaned_fuel_data.csv"
	AnomaliesFile = "dataAnomalies.csv"
	WorkbookFile  = "dataAnomalies.xlsx"
)

// FileSink writes the run's tables into a directory. Both CSV files are
// always written, even when empty.
type FileSink struct {
	Dir string

	// PriceColumn is written quoted so its two-decimal text survives.
	PriceColumn string

	// Workbook also writes the anomaly workbook.
	Workbook bool

	// PerRun writes into a subdirectory named after the run ID.
	PerRun bool
}

// Persist implements pipeline.Sink.
func (s FileSink) Persist(ctx context.Context, runID string, cleaned *table.Table, anomalies *cleaning.AnomalyTable) error {
	dir := s.Dir
	if s.PerRun {
		dir = filepath.Join(dir, runID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var quoted []string
	if s.PriceColumn != "" {
		quoted = append(quoted, s.PriceColumn)
	}

	cleanedPath := filepath.Join(dir, CleanedFile)
	if err := writeFile(cleanedPath, func(w io.Writer) error {
		return WriteTable(w, cleaned, quoted...)
	}); err != nil {
		return err
	}

	anomaliesPath := filepath.Join(dir, AnomaliesFile)
	if err := writeFile(anomaliesPath, func(w io.Writer) error {
		return WriteTable(w, anomalies.Table(), quoted...)
	}); err != nil {
		return err
	}

	logger := logging.FromContext(ctx)
	if s.Workbook {
		workbookPath := filepath.Join(dir, WorkbookFile)
		if err := writeFile(workbookPath, func(w io.Writer) error {
			return WriteAnomalyWorkbook(w, anomalies)
		}); err != nil {
			return err
		}
		logger.Debug("anomaly workbook written", "path", workbookPath)
	}

	logger.Info("output files written",
		"cleaned", cleanedPath,
		"anomalies", anomaliesPath,
	)
	return nil
}

// writeFile writes through a temp file in the same directory and renames it
// into place.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
