package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/csvio"
	"github.com/JonMunkholm/fuelclean/internal/logging"
	"github.com/JonMunkholm/fuelclean/internal/pipeline"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory.
const multipartMemory = 32 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// runResponse is the JSON view of a finished run.
type runResponse struct {
	RunID        string            `json:"run_id"`
	Filename     string            `json:"filename,omitempty"`
	Summary      pipeline.Summary  `json:"summary"`
	Stages       []pipeline.Stage  `json:"stages"`
	Anomalies    map[string]int    `json:"anomalies"`
	PersistError string            `json:"persist_error,omitempty"`
	Links        map[string]string `json:"links"`
}

func newRunResponse(rec *runRecord) runResponse {
	res := rec.Result
	counts := make(map[string]int, len(cleaning.Reasons))
	for _, reason := range cleaning.Reasons {
		counts[reason.String()] = res.Anomalies.Count(reason)
	}
	base := "/api/runs/" + res.RunID
	return runResponse{
		RunID:        res.RunID,
		Filename:     rec.Filename,
		Summary:      res.Summary,
		Stages:       res.Stages,
		Anomalies:    counts,
		PersistError: rec.PersistError,
		Links: map[string]string{
			"self":           base,
			"report":         "/runs/" + res.RunID,
			"cleaned":        base + "/cleaned.csv",
			"anomalies":      base + "/anomalies.csv",
			"anomalies_xlsx": base + "/anomalies.xlsx",
		},
	}
}

// handleCreateRun reads an uploaded CSV and runs the cleaning pipeline on it.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Run.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			respondError(w, r, ErrFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %w", ErrNoFile, err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, ErrNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Run.Timeout)
	defer cancel()

	if err := s.limiter.Acquire(ctx); err != nil {
		w.Header().Set("Retry-After", "30")
		respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer s.limiter.Release()

	t, err := csvio.ReadTable(file, csvio.ReadOptions{MaxBytes: maxSize})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, csvio.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, r, err, status)
		return
	}

	res, err := s.runner.Run(ctx, t)
	if res == nil {
		respondError(w, r, err, runErrorStatus(err))
		return
	}

	rec := &runRecord{Result: res, Filename: header.Filename, Finished: time.Now()}
	if err != nil {
		// Only the sinks failed; the result stays downloadable.
		rec.PersistError = MapError(err).Message
		logging.FromContext(ctx).Error("run outputs not persisted", "run_id", res.RunID, "error", err)
	}
	s.runs.add(rec)

	writeJSON(w, r, http.StatusCreated, newRunResponse(rec))
}

// runErrorStatus picks the status for a run that produced no result.
func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, cleaning.ErrMissingColumn), errors.Is(err, cleaning.ErrMissingTable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// handleGetRun returns the summary of a finished run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.runs.get(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, newRunResponse(rec))
}

// handleCleanedCSV downloads the cleaned table.
func (s *Server) handleCleanedCSV(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, csvio.CleanedFile, "text/csv", func(rec *runRecord, w io.Writer) error {
		return csvio.WriteTable(w, rec.Result.Cleaned, s.quoted()...)
	})
}

// handleAnomaliesCSV downloads every anomaly tagged with its reason.
func (s *Server) handleAnomaliesCSV(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, csvio.AnomaliesFile, "text/csv", func(rec *runRecord, w io.Writer) error {
		return csvio.WriteTable(w, rec.Result.Anomalies.Table(), s.quoted()...)
	})
}

// handleAnomaliesXLSX downloads the anomaly workbook.
func (s *Server) handleAnomaliesXLSX(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, csvio.WorkbookFile, xlsxContentType, func(rec *runRecord, w io.Writer) error {
		return csvio.WriteAnomalyWorkbook(w, rec.Result.Anomalies)
	})
}

// download writes the output to a buffer before any header is sent.
func (s *Server) download(w http.ResponseWriter, r *http.Request, filename, contentType string, write func(*runRecord, io.Writer) error) {
	rec, err := s.runs.get(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := write(rec, &buf); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(buf.Bytes())
}

func (s *Server) quoted() []string {
	if s.priceColumn == "" {
		return nil
	}
	return []string{s.priceColumn}
}

// handleReport renders the HTML report of a run.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.runs.get(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := runReport(rec).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render report", "error", err)
	}
}

// handleHealth reports liveness and run capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"runs":    s.runs.count(),
		"limiter": s.limiter.Status(),
	})
}
