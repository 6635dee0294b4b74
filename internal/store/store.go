// Package store archives prediction runs in PostgreSQL and serves the
// prediction log back for export.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS prediction_runs (
	run_id            TEXT PRIMARY KEY,
	run_date          DATE NOT NULL,
	gap_fill          TEXT NOT NULL,
	feature_columns   TEXT[] NOT NULL,
	total_locations   INTEGER NOT NULL,
	fetched_locations INTEGER NOT NULL,
	processed_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	run_id            TEXT NOT NULL REFERENCES prediction_runs (run_id) ON DELETE CASCADE,
	location_id       TEXT NOT NULL,
	run_date          DATE NOT NULL,
	lat               DOUBLE PRECISION NOT NULL,
	lon               DOUBLE PRECISION NOT NULL,
	predicted_cases   INTEGER NOT NULL,
	rainfall          DOUBLE PRECISION,
	lst               DOUBLE PRECISION,
	relative_humidity DOUBLE PRECISION,
	features          DOUBLE PRECISION[] NOT NULL,
	PRIMARY KEY (run_id, location_id)
);

CREATE INDEX IF NOT EXISTS predictions_run_date_idx ON predictions (run_date);
`

// Store is a pgx-backed prediction archive.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and verifies it is reachable.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the archive tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveRun writes a run and its predictions. Saving a run ID again replaces
// the earlier predictions for it.
func (s *Store) SaveRun(ctx context.Context, result domain.RunResult) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(
			`INSERT INTO prediction_runs (run_id, run_date, gap_fill, feature_columns, total_locations, fetched_locations, processed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (run_id) DO UPDATE SET
			   run_date = $2, gap_fill = $3, feature_columns = $4,
			   total_locations = $5, fetched_locations = $6, processed_at = $7`,
			result.RunID, result.Date, string(result.GapFill), result.FeatureColumns,
			result.TotalLocations, result.FetchedLocations, result.ProcessedAt,
		)
		batch.Queue(`DELETE FROM predictions WHERE run_id = $1`, result.RunID)
		for _, p := range result.Predictions {
			batch.Queue(
				`INSERT INTO predictions (run_id, location_id, run_date, lat, lon, predicted_cases, rainfall, lst, relative_humidity, features)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				result.RunID, p.LocationID, result.Date, p.Lat, p.Lon, p.PredictedCases,
				p.Rainfall, p.LST, p.RelativeHumidity, p.Features,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("save run %s: %w", result.RunID, err)
			}
		}
		return br.Close()
	})
}

// QueryPredictions returns archived predictions matching the filter,
// ordered by run date and location.
func (s *Store) QueryPredictions(ctx context.Context, filter domain.PredictionFilter) ([]domain.PredictionRecord, error) {
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT p.run_id, p.run_date, p.location_id, p.lat, p.lon, p.predicted_cases,
		        p.rainfall, p.lst, p.relative_humidity, r.processed_at
		 FROM predictions p
		 JOIN prediction_runs r ON r.run_id = p.run_id
		 WHERE ($1::date IS NULL OR p.run_date >= $1)
		   AND ($2::date IS NULL OR p.run_date <= $2)
		   AND ($3 = '' OR strpos(lower(p.location_id), lower($3)) > 0)
		 ORDER BY p.run_date, p.location_id, r.processed_at
		 LIMIT $4`,
		dateArg(filter.From), dateArg(filter.To), filter.Location, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []domain.PredictionRecord
	for rows.Next() {
		var rec domain.PredictionRecord
		if err := rows.Scan(
			&rec.RunID, &rec.RunDate, &rec.LocationID, &rec.Lat, &rec.Lon, &rec.PredictedCases,
			&rec.Rainfall, &rec.LST, &rec.RelativeHumidity, &rec.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	return out, nil
}

func dateArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
