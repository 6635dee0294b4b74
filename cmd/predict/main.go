// Command predict runs one prediction for a date and prints the per-ward
// results. Ward, artifact, and POWER settings come from the same
// environment variables as the service.
//
// Usage:
//
//	go run ./cmd/predict -date 2024-01-01 -format csv > predictions.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/malaria-risk-etl/internal/adapter/artifact"
	"github.com/couchcryptid/malaria-risk-etl/internal/adapter/power"
	"github.com/couchcryptid/malaria-risk-etl/internal/config"
	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/export"
	"github.com/couchcryptid/malaria-risk-etl/internal/geo"
	"github.com/couchcryptid/malaria-risk-etl/internal/observability"
	"github.com/couchcryptid/malaria-risk-etl/internal/pipeline"
)

func main() {
	date := flag.String("date", "", "run date, YYYY-MM-DD (required)")
	format := flag.String("format", "csv", "output format: csv, tsv, or json")
	out := flag.String("out", "", "write to this file instead of stdout")
	location := flag.String("location", "", "only print wards whose ID contains this text")
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *date, *format, *out, *location); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, dateArg, formatArg, outPath, location string) error {
	if dateArg == "" {
		return errors.New("-date is required")
	}
	day, err := domain.ParseDate(dateArg)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(formatArg)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	wards, err := geo.LoadWards(cfg.WardsPath, cfg.WardIDField, cfg.SimplifyTolerance)
	if err != nil {
		return fmt.Errorf("load wards: %w", err)
	}
	scaler, err := artifact.LoadScaler(cfg.ScalerPath)
	if err != nil {
		return err
	}
	model, err := artifact.LoadForest(cfg.ModelPath)
	if err != nil {
		return err
	}
	predictor, err := pipeline.NewPredictor(pipeline.Artifacts{Scaler: scaler, Model: model})
	if err != nil {
		return err
	}

	client := power.NewClient(cfg.PowerBaseURL, cfg.PowerCommunity, cfg.PowerRequestTimeout, logger, metrics)
	fetcher := pipeline.NewClimateFetcher(client, cfg.FetchWorkers, cfg.PowerBatchTimeout, logger, metrics)
	runner, err := pipeline.NewRunner(wards, fetcher, predictor, cfg.GapFill, nil, logger, metrics)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx, domain.RunRequest{Date: day})
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	records := domain.PredictionFilter{Location: location}.Apply(result.Records())
	if err := export.Write(w, format, records); err != nil {
		return err
	}
	logger.Info("predictions written",
		"run_id", result.RunID,
		"date", dateArg,
		"wards", len(records),
		"fetched_locations", result.FetchedLocations,
		"total_locations", result.TotalLocations,
	)
	return nil
}
