package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/malaria-risk-etl/internal/adapter/artifact"
	httpadapter "github.com/couchcryptid/malaria-risk-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/malaria-risk-etl/internal/adapter/kafka"
	"github.com/couchcryptid/malaria-risk-etl/internal/adapter/power"
	"github.com/couchcryptid/malaria-risk-etl/internal/config"
	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/geo"
	"github.com/couchcryptid/malaria-risk-etl/internal/observability"
	"github.com/couchcryptid/malaria-risk-etl/internal/pipeline"
	"github.com/couchcryptid/malaria-risk-etl/internal/store"
)

// readiness reports ready only when every check passes.
type readiness []func(context.Context) error

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, check := range r {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	wards, err := geo.LoadWards(cfg.WardsPath, cfg.WardIDField, cfg.SimplifyTolerance)
	if err != nil {
		logger.Error("failed to load wards", "path", cfg.WardsPath, "error", err)
		os.Exit(1)
	}
	logger.Info("wards loaded", "path", cfg.WardsPath, "count", len(wards))

	predictor, err := loadPredictor(cfg)
	if err != nil {
		logger.Error("failed to load model artifacts", "scaler", cfg.ScalerPath, "model", cfg.ModelPath, "error", err)
		os.Exit(1)
	}
	logger.Info("model artifacts loaded", "features", predictor.ExpectedColumns())

	var source domain.ClimateSource = power.NewClient(cfg.PowerBaseURL, cfg.PowerCommunity, cfg.PowerRequestTimeout, logger, metrics)
	if cfg.ClimateCacheSize > 0 {
		source = power.NewCachedSource(source, cfg.ClimateCacheSize, metrics)
		logger.Info("climate cache enabled", "cache_size", cfg.ClimateCacheSize)
	}
	fetcher := pipeline.NewClimateFetcher(source, cfg.FetchWorkers, cfg.PowerBatchTimeout, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The prediction archive is optional (DATABASE_URL).
	var (
		archive     pipeline.Archive
		predictions httpadapter.PredictionQuerier
		db          *store.Store
	)
	if cfg.DatabaseURL != "" {
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to prediction archive", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare prediction archive", "error", err)
			os.Exit(1)
		}
		archive, predictions = db, db
		logger.Info("prediction archive enabled")
	} else {
		logger.Info("prediction archive disabled")
	}

	runner, err := pipeline.NewRunner(wards, fetcher, predictor, cfg.GapFill, archive, logger, metrics)
	if err != nil {
		logger.Error("failed to build runner", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, runner, writer, logger, metrics, cfg.BatchSize)

	ready := readiness{p.CheckReadiness}
	if db != nil {
		ready = append(ready, db.CheckReadiness)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Ready:       ready,
		Runs:        runner,
		Predictions: predictions,
		RunTimeout:  cfg.PowerBatchTimeout,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func loadPredictor(cfg *config.Config) (*pipeline.Predictor, error) {
	scaler, err := artifact.LoadScaler(cfg.ScalerPath)
	if err != nil {
		return nil, err
	}
	model, err := artifact.LoadForest(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	return pipeline.NewPredictor(pipeline.Artifacts{Scaler: scaler, Model: model})
}
