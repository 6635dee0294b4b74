package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/observability"
)

// Archive stores completed runs.
type Archive interface {
	SaveRun(ctx context.Context, result domain.RunResult) error
}

// Runner executes prediction runs over a fixed ward set: fetch climate for
// every distinct centroid, merge, align, predict. It implements Transformer
// so the batch loop can drive it from run requests.
type Runner struct {
	wards     []domain.Ward
	fetcher   *ClimateFetcher
	predictor *Predictor
	gapFill   domain.GapFillPolicy
	archive   Archive
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewRunner creates a Runner. wards are read-only for the Runner's lifetime.
// archive may be nil.
func NewRunner(wards []domain.Ward, fetcher *ClimateFetcher, predictor *Predictor, gapFill domain.GapFillPolicy, archive Archive, logger *slog.Logger, metrics *observability.Metrics) (*Runner, error) {
	if err := gapFill.Validate(); err != nil {
		return nil, err
	}
	if len(wards) == 0 {
		return nil, errors.New("runner requires at least one ward")
	}
	return &Runner{
		wards:     wards,
		fetcher:   fetcher,
		predictor: predictor,
		gapFill:   gapFill,
		archive:   archive,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// Transform parses a run request, runs it and serializes the result.
func (r *Runner) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseRunRequest(raw)
	if err != nil {
		r.metrics.RunErrors.WithLabelValues("parse").Inc()
		return domain.OutputEvent{}, err
	}
	result, err := r.Run(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	return domain.SerializeRunResult(result)
}

// Run predicts cases for every ward on req.Date.
func (r *Runner) Run(ctx context.Context, req domain.RunRequest) (domain.RunResult, error) {
	start := time.Now()
	if req.ID == "" {
		req.ID = domain.NewRunID()
	}
	logger := r.logger.With("run_id", req.ID, "date", req.Date.Format(domain.DateLayout))

	result, err := r.run(ctx, req)
	r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		kind := errorKind(err)
		r.metrics.RunErrors.WithLabelValues(kind).Inc()
		logger.Error("prediction run failed", "kind", kind, "error", err)
		return domain.RunResult{}, err
	}

	r.metrics.RunsCompleted.Inc()
	r.metrics.PredictionsTotal.Add(float64(len(result.Predictions)))
	logger.Info("prediction run completed",
		"wards", len(result.Predictions),
		"locations", result.TotalLocations,
		"fetched", result.FetchedLocations,
		"duration", time.Since(start),
	)

	if r.archive != nil {
		if err := r.archive.SaveRun(ctx, result); err != nil {
			r.metrics.RunErrors.WithLabelValues("archive").Inc()
			logger.Warn("archive run failed", "error", err)
		}
	}
	return result, nil
}

func (r *Runner) run(ctx context.Context, req domain.RunRequest) (domain.RunResult, error) {
	locations := domain.DistinctLocations(r.wards)
	r.metrics.RunLocations.Observe(float64(len(locations)))

	records, err := r.fetcher.Fetch(ctx, locations, req.Date)
	if err != nil {
		return domain.RunResult{}, err
	}

	rows, err := domain.MergeClimate(r.wards, records, r.gapFill)
	if err != nil {
		return domain.RunResult{}, err
	}

	predictions, aligned, err := r.predictor.Predict(rows)
	if err != nil {
		return domain.RunResult{}, err
	}

	out := make([]domain.WardPrediction, len(rows))
	for i, row := range rows {
		out[i] = domain.WardPrediction{
			LocationID:       row.Ward.ID,
			Lat:              row.Ward.Lat,
			Lon:              row.Ward.Lon,
			PredictedCases:   predictions[i].PredictedValue,
			Rainfall:         row.Features[domain.ColumnRainfall],
			LST:              row.Features[domain.ColumnLST],
			RelativeHumidity: row.Features[domain.ColumnRelativeHumidity],
			Features:         aligned[i].Values,
		}
	}

	return domain.RunResult{
		RunID:            req.ID,
		Date:             req.Date,
		GapFill:          r.gapFill,
		FeatureColumns:   r.predictor.ExpectedColumns(),
		TotalLocations:   len(locations),
		FetchedLocations: len(records),
		Predictions:      out,
		ProcessedAt:      domain.Now(),
	}, nil
}

func errorKind(err error) string {
	var (
		bfe *domain.BatchFetchError
		fse *domain.FeatureSchemaError
		ae  *domain.AlignmentError
	)
	switch {
	case errors.As(err, &bfe):
		return "batch_fetch"
	case errors.As(err, &fse):
		return "feature_schema"
	case errors.As(err, &ae):
		return "alignment"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "predict"
	}
}

