package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/config"
	"github.com/JonMunkholm/fuelclean/internal/pipeline"
	"github.com/JonMunkholm/fuelclean/internal/table"
)

const fuelCSV = "Transaction Number,Gross Price,Fuel Type,Full Address\n" +
	"1001,19.999,diesel,\"123 Main St, Springfield, IL 62704\"\n" +
	",5,gas,1 Elm St\n" +
	"-3,5,gas,2 Elm St\n" +
	"1002,abc,Gasoline,3 Elm St\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Run: config.RunConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       10 * time.Second,
			Retain:        5,
		},
	}
}

func newTestServer(cfg *config.Config) *Server {
	return NewServer(cfg, pipeline.New(pipeline.DefaultOptions(), nil, nil), "Gross Price")
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postRun(t *testing.T, s *Server, content string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", "fuel.csv", content)
	req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
	req.Header.Set("Content-Type", contentType)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

type createdRun struct {
	RunID   string `json:"run_id"`
	Summary struct {
		InputRows   int `json:"input_rows"`
		CleanedRows int `json:"cleaned_rows"`
		AnomalyRows int `json:"anomaly_rows"`
	} `json:"summary"`
	Stages    []string          `json:"stages"`
	Anomalies map[string]int    `json:"anomalies"`
	Links     map[string]string `json:"links"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}

func TestCreateRun_EndToEnd(t *testing.T) {
	s := newTestServer(testConfig())

	rec := postRun(t, s, fuelCSV, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run createdRun
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	require.NotEmpty(t, run.RunID)
	assert.Equal(t, 4, run.Summary.InputRows)
	assert.Equal(t, 1, run.Summary.CleanedRows)
	assert.Equal(t, 3, run.Summary.AnomalyRows)
	assert.Equal(t, 1, run.Anomalies["NullOrInvalidId"])
	assert.Equal(t, 1, run.Anomalies["NegativeId"])
	assert.Equal(t, 1, run.Anomalies["NonFuelCategory"])
	assert.Equal(t, string(pipeline.StagePersisted), run.Stages[len(run.Stages)-1])

	summary := get(s, run.Links["self"])
	assert.Equal(t, http.StatusOK, summary.Code)

	cleaned := get(s, run.Links["cleaned"])
	require.Equal(t, http.StatusOK, cleaned.Code)
	assert.Equal(t, "text/csv", cleaned.Header().Get("Content-Type"))
	assert.Contains(t, cleaned.Header().Get("Content-Disposition"), "cleaned_fuel_data.csv")
	assert.True(t, strings.HasPrefix(cleaned.Body.String(), "Transaction Number,Gross Price,Fuel Type,Full Address\n"))
	assert.Contains(t, cleaned.Body.String(), `1001,"20.00",diesel`)

	anomalies := get(s, run.Links["anomalies"])
	require.Equal(t, http.StatusOK, anomalies.Code)
	body := anomalies.Body.String()
	assert.True(t, strings.HasPrefix(body, cleaning.ReasonColumn+","))
	assert.Contains(t, body, "NonFuelCategory")
	assert.Contains(t, body, "NegativeId")

	xlsx := get(s, run.Links["anomalies_xlsx"])
	require.Equal(t, http.StatusOK, xlsx.Code)
	assert.Equal(t, xlsxContentType, xlsx.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(xlsx.Body.Bytes(), []byte("PK")), "xlsx should be a zip archive")

	report := get(s, run.Links["report"])
	require.Equal(t, http.StatusOK, report.Code)
	assert.Contains(t, report.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, report.Body.String(), run.RunID)
	assert.Contains(t, report.Body.String(), "No failed zip lookups")
}

func TestCreateRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		status  int
		code    string
	}{
		{"missing id column", "Gross Price,Fuel Type\n1,gas\n", http.StatusUnprocessableEntity, "PIPE001"},
		{"no header", "\n\n", http.StatusBadRequest, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postRun(t, newTestServer(testConfig()), tt.content, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestCreateRun_NoFile(t *testing.T) {
	s := newTestServer(testConfig())
	body, contentType := multipartBody(t, "upload", "fuel.csv", fuelCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE002", decodeError(t, rec).Code)
}

func TestCreateRun_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Run.MaxFileSize = 64
	rec := postRun(t, newTestServer(cfg), fuelCSV+strings.Repeat("1003,1,gas,x\n", 20), nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE003", decodeError(t, rec).Code)
}

func TestCreateRun_Busy(t *testing.T) {
	cfg := testConfig()
	cfg.Run.MaxConcurrent = 1
	cfg.Run.MaxWaitTime = 20 * time.Millisecond
	s := newTestServer(cfg)

	require.NoError(t, s.limiter.Acquire(context.Background()))
	defer s.limiter.Release()

	rec := postRun(t, s, fuelCSV, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RUN002", decodeError(t, rec).Code)
}

type failingRunner struct {
	err error
}

func (f failingRunner) Run(_ context.Context, t *table.Table) (*pipeline.Result, error) {
	res := &pipeline.Result{
		RunID:     "run-1",
		Cleaned:   t,
		Anomalies: cleaning.NewAnomalyTable(t.Columns()),
	}
	return res, f.err
}

func TestCreateRun_PersistErrorKeepsResult(t *testing.T) {
	s := NewServer(testConfig(), failingRunner{err: errors.New("persist run run-1: disk full")}, "")

	rec := postRun(t, s, fuelCSV, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "An unexpected error occurred", body["persist_error"])

	assert.Equal(t, http.StatusOK, get(s, "/api/runs/run-1/cleaned.csv").Code)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestServer(testConfig())

	for _, path := range []string{"/api/runs/nope", "/api/runs/nope/cleaned.csv", "/api/runs/nope/anomalies.xlsx"} {
		rec := get(s, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "RUN001", decodeError(t, rec).Code, path)
	}

	page := get(s, "/runs/nope")
	assert.Equal(t, http.StatusNotFound, page.Code)
	assert.Contains(t, page.Body.String(), "RUN001")
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret-key"}}
	s := newTestServer(cfg)

	assert.Equal(t, http.StatusUnauthorized, postRun(t, s, fuelCSV, nil).Code)
	assert.Equal(t, http.StatusForbidden, postRun(t, s, fuelCSV, http.Header{"X-Api-Key": {"wrong"}}).Code)
	assert.Equal(t, http.StatusCreated, postRun(t, s, fuelCSV, http.Header{"X-Api-Key": {"secret-key"}}).Code)

	// Health stays open
	assert.Equal(t, http.StatusOK, get(s, "/healthz").Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(testConfig())
	rec := get(s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string           `json:"status"`
		Runs    int              `json:"runs"`
		Limiter RunLimiterStatus `json:"limiter"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Limiter.MaxConcurrent)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRunRegistry_Evicts(t *testing.T) {
	g := newRunRegistry(2)
	for _, id := range []string{"a", "b", "c"} {
		g.add(&runRecord{Result: &pipeline.Result{RunID: id}})
	}

	assert.Equal(t, 2, g.count())
	_, err := g.get("a")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = g.get("c")
	assert.NoError(t, err)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{cleaning.ErrMissingColumn, "PIPE001"},
		{cleaning.ErrMissingTable, "PIPE002"},
		{ErrTooManyRuns, "RUN002"},
		{ErrRunNotFound, "RUN001"},
		{ErrNoFile, "FILE002"},
		{ErrFileTooLarge, "FILE003"},
		{context.DeadlineExceeded, "RUN003"},
		{errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, MapError(tt.err).Code, tt.err.Error())
	}
	assert.Equal(t, UserMessage{}, MapError(nil))
}

func TestRunReport_EscapesAndFlagsInterruptedRuns(t *testing.T) {
	rec := &runRecord{
		Filename: `<script>alert(1)</script>.csv`,
		Result: &pipeline.Result{
			RunID:     "run-1",
			Cleaned:   table.New([]string{"Transaction Number"}, nil),
			Anomalies: cleaning.NewAnomalyTable([]string{"Transaction Number"}),
			Summary:   pipeline.Summary{RunID: "run-1", Interrupted: true},
		},
	}

	var b strings.Builder
	require.NoError(t, runReport(rec).Render(context.Background(), &b))
	out := b.String()

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "cancelled during zip lookups")
	assert.Contains(t, out, "/api/runs/run-1/cleaned.csv")
}
