package http_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/malaria-risk-etl/internal/adapter/http"
	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRuns struct {
	got    domain.RunRequest
	result domain.RunResult
	err    error
}

func (m *mockRuns) Run(_ context.Context, req domain.RunRequest) (domain.RunResult, error) {
	m.got = req
	return m.result, m.err
}

type mockPredictions struct {
	got     domain.PredictionFilter
	records []domain.PredictionRecord
	err     error
}

func (m *mockPredictions) QueryPredictions(_ context.Context, f domain.PredictionFilter) ([]domain.PredictionRecord, error) {
	m.got = f
	return m.records, m.err
}

func newTestServer(deps httpadapter.Deps) *httpadapter.Server {
	if deps.Ready == nil {
		deps.Ready = &mockReadiness{}
	}
	return httpadapter.NewServer(":0", deps, slog.Default())
}

func serve(srv *httpadapter.Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(httpadapter.Deps{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(httpadapter.Deps{}), http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(httpadapter.Deps{Ready: &mockReadiness{err: fmt.Errorf("not ready yet")}})
	rec := serve(srv, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(httpadapter.Deps{}), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRun_Success(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := &mockRuns{result: domain.RunResult{
		RunID: "r1",
		Date:  day,
		Predictions: []domain.WardPrediction{
			{LocationID: "KN001", PredictedCases: 55},
		},
	}}
	srv := newTestServer(httpadapter.Deps{Runs: runs})

	rec := serve(srv, http.MethodPost, "/runs?date=2024-01-01&id=r1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", runs.got.ID)
	assert.True(t, runs.got.Date.Equal(day))

	var body domain.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]int{"KN001": 55}, body.PredictionMap())
}

func TestRun_ErrorStatuses(t *testing.T) {
	fetchDeadline := &domain.BatchFetchError{Requested: 3, Err: &domain.LocationFetchError{
		Lat: 12, Lon: 8.5, Reason: domain.ReasonCanceled, Err: context.DeadlineExceeded,
	}}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "batch fetch", err: &domain.BatchFetchError{Requested: 3}, want: http.StatusBadGateway},
		{name: "schema change", err: &domain.FeatureSchemaError{Missing: []string{"Rainfall"}}, want: http.StatusBadGateway},
		{name: "alignment", err: &domain.AlignmentError{Reason: "bad scaler"}, want: http.StatusInternalServerError},
		{name: "deadline", err: fmt.Errorf("run: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "deadline before any fetch completes", err: fetchDeadline, want: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(httpadapter.Deps{Runs: &mockRuns{err: tt.err}})
			rec := serve(srv, http.MethodPost, "/runs?date=2024-01-01")
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestRun_BatchFetchErrorMessageIsSurfaced(t *testing.T) {
	srv := newTestServer(httpadapter.Deps{Runs: &mockRuns{err: &domain.BatchFetchError{Requested: 3}}})
	rec := serve(srv, http.MethodPost, "/runs?date=2024-01-01")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "climate data retrieval failed")
}

func TestRun_BadDate(t *testing.T) {
	runs := &mockRuns{}
	srv := newTestServer(httpadapter.Deps{Runs: runs})
	for _, target := range []string{"/runs", "/runs?date=01-01-2024", "/runs?date=2024-13-01"} {
		rec := serve(srv, http.MethodPost, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Empty(t, runs.got.ID)
}

func TestRun_DisabledReturns503(t *testing.T) {
	rec := serve(newTestServer(httpadapter.Deps{}), http.MethodPost, "/runs?date=2024-01-01")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPredictions_CSVExport(t *testing.T) {
	preds := &mockPredictions{records: []domain.PredictionRecord{{
		RunID:          "r1",
		RunDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LocationID:     "KN001",
		PredictedCases: 55,
	}}}
	srv := newTestServer(httpadapter.Deps{Predictions: preds})

	rec := serve(srv, http.MethodGet, "/predictions?from=2024-01-01&to=2024-01-31&location=kn")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "predictions.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "r1,2024-01-01,KN001,"))

	assert.Equal(t, "kn", preds.got.Location)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), preds.got.To)
}

func TestPredictions_JSONFormat(t *testing.T) {
	srv := newTestServer(httpadapter.Deps{Predictions: &mockPredictions{}})
	rec := serve(srv, http.MethodGet, "/predictions?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestPredictions_BadRequests(t *testing.T) {
	srv := newTestServer(httpadapter.Deps{Predictions: &mockPredictions{}})
	for _, target := range []string{
		"/predictions?format=xml",
		"/predictions?from=yesterday",
		"/predictions?to=2024/01/01",
		"/predictions?from=2024-02-01&to=2024-01-01",
	} {
		rec := serve(srv, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestPredictions_QueryFailure(t *testing.T) {
	srv := newTestServer(httpadapter.Deps{Predictions: &mockPredictions{err: errors.New("db down")}})
	rec := serve(srv, http.MethodGet, "/predictions")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPredictions_NoArchiveReturns503(t *testing.T) {
	rec := serve(newTestServer(httpadapter.Deps{}), http.MethodGet, "/predictions")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
