// Package http serves health, metrics, on-demand prediction runs, and the
// prediction log export over HTTP.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/export"
)

const dateLayout = "2006-01-02"

// RunService executes a prediction run.
type RunService interface {
	Run(ctx context.Context, req domain.RunRequest) (domain.RunResult, error)
}

// PredictionQuerier reads the prediction log.
type PredictionQuerier interface {
	QueryPredictions(ctx context.Context, filter domain.PredictionFilter) ([]domain.PredictionRecord, error)
}

// Deps are the collaborators behind the API routes. Runs and Predictions
// may be nil, in which case their routes answer 503.
type Deps struct {
	Ready       sharedobs.ReadinessChecker
	Runs        RunService
	Predictions PredictionQuerier
	// RunTimeout bounds a synchronous run and sizes the write timeout.
	RunTimeout time.Duration
}

// Server exposes health, readiness, metrics, and prediction endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// POST /runs, and GET /predictions routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if deps.RunTimeout <= 0 {
		deps.RunTimeout = 2 * time.Minute
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: deps.RunTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /runs", s.handleRun)
	mux.HandleFunc("GET /predictions", s.handlePredictions)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction runs are not enabled")
		return
	}

	q := r.URL.Query()
	date, err := time.Parse(dateLayout, q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.deps.RunTimeout)
	defer cancel()

	result, err := s.deps.Runs.Run(ctx, domain.RunRequest{ID: q.Get("id"), Date: date})
	if err != nil {
		status := runErrorStatus(err)
		s.logger.Warn("run request failed", "date", q.Get("date"), "status", status, "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// runErrorStatus maps run failures onto HTTP statuses. A deadline anywhere
// in the run is a gateway timeout, even when it surfaces as a batch fetch
// failure. Other upstream data problems are gateway errors; broken artifacts
// are server errors.
func runErrorStatus(err error) int {
	var (
		batchErr  *domain.BatchFetchError
		schemaErr *domain.FeatureSchemaError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &batchErr), errors.As(err, &schemaErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Predictions == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction archive is not configured")
		return
	}

	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseFilter(q.Get("from"), q.Get("to"), q.Get("location"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.deps.Predictions.QueryPredictions(r.Context(), filter)
	if err != nil {
		s.logger.Error("query predictions", "error", err)
		writeError(w, http.StatusInternalServerError, "query prediction archive failed")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="predictions.`+format.Extension()+`"`)
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, format, records); err != nil {
		s.logger.Error("write predictions export", "format", format, "error", err)
	}
}

func parseFilter(from, to, location string) (domain.PredictionFilter, error) {
	filter := domain.PredictionFilter{Location: location}
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return filter, errors.New("from must be YYYY-MM-DD")
		}
		filter.From = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return filter, errors.New("to must be YYYY-MM-DD")
		}
		filter.To = t
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, errors.New("to must not be before from")
	}
	return filter, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
