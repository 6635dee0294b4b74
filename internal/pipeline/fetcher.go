package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/observability"
)

// ClimateFetcher retrieves climate data for many locations through a
// bounded worker pool. One location failing never fails the batch.
type ClimateFetcher struct {
	source       domain.ClimateSource
	workers      int
	batchTimeout time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewClimateFetcher creates a fetcher. workers bounds concurrent requests;
// batchTimeout bounds the whole batch, zero meaning no batch deadline.
func NewClimateFetcher(source domain.ClimateSource, workers int, batchTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *ClimateFetcher {
	if workers < 1 {
		workers = 1
	}
	return &ClimateFetcher{
		source:       source,
		workers:      workers,
		batchTimeout: batchTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Fetch returns the records that were retrieved, keyed by location
// coordinates. Locations that failed, or were still pending when the batch
// deadline passed, are absent from the result. When no location returns
// data the error is a *domain.BatchFetchError.
func (f *ClimateFetcher) Fetch(ctx context.Context, locations []domain.Location, date time.Time) (map[domain.Coord]domain.ClimateRecord, error) {
	batchCtx := ctx
	if f.batchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, f.batchTimeout)
		defer cancel()
	}

	var (
		mu       sync.Mutex
		results  = make(map[domain.Coord]domain.ClimateRecord, len(locations))
		failures int
		lastErr  error
	)

	g := new(errgroup.Group)
	g.SetLimit(f.workers)

	for _, loc := range locations {
		g.Go(func() error {
			rec, err := f.fetchOne(batchCtx, loc, date)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Error isolation: record the failure, let the rest of the batch run.
				failures++
				lastErr = err
				return nil
			}
			results[loc.Coord()] = rec
			return nil
		})
	}
	_ = g.Wait()

	f.logger.Info("climate batch fetched",
		"date", date.Format(domain.DateLayout),
		"requested", len(locations),
		"fetched", len(results),
		"failed", failures,
	)

	if len(results) == 0 {
		return nil, &domain.BatchFetchError{Requested: len(locations), Err: lastErr}
	}
	return results, nil
}

func (f *ClimateFetcher) fetchOne(ctx context.Context, loc domain.Location, date time.Time) (domain.ClimateRecord, error) {
	if err := ctx.Err(); err != nil {
		f.metrics.ClimateRequests.WithLabelValues(domain.ReasonCanceled).Inc()
		f.logger.Warn("climate fetch not started, location skipped",
			"location_id", loc.ID,
			"lat", loc.Lat,
			"lon", loc.Lon,
			"reason", domain.ReasonCanceled,
			"error", err,
		)
		return domain.ClimateRecord{}, &domain.LocationFetchError{
			Lat: loc.Lat, Lon: loc.Lon, Reason: domain.ReasonCanceled, Err: err,
		}
	}

	rec, err := f.source.FetchDaily(ctx, loc.Lat, loc.Lon, date)
	if err != nil {
		reason := "unknown"
		var lfe *domain.LocationFetchError
		if errors.As(err, &lfe) {
			reason = lfe.Reason
		}
		f.logger.Warn("climate fetch failed, location skipped",
			"location_id", loc.ID,
			"lat", loc.Lat,
			"lon", loc.Lon,
			"reason", reason,
			"error", err,
		)
		return domain.ClimateRecord{}, err
	}

	// Records carry the requested coordinates, not whatever the source echoes.
	rec.Lat, rec.Lon = loc.Lat, loc.Lon
	return rec, nil
}
