package domain

import (
	"strings"
	"time"
)

// PredictionRecord is one ward prediction as kept in the prediction log.
type PredictionRecord struct {
	RunID            string    `json:"run_id"`
	RunDate          time.Time `json:"date"`
	LocationID       string    `json:"location_id"`
	Lat              float64   `json:"lat"`
	Lon              float64   `json:"lon"`
	PredictedCases   int       `json:"predicted_cases"`
	Rainfall         *float64  `json:"rainfall"`
	LST              *float64  `json:"lst"`
	RelativeHumidity *float64  `json:"relative_humidity"`
	ProcessedAt      time.Time `json:"processed_at"`
}

// PredictionFilter selects prediction records. Zero fields match everything.
type PredictionFilter struct {
	// From and To bound the run date, both inclusive.
	From time.Time
	To   time.Time
	// Location matches location IDs containing it, ignoring case.
	Location string
	Limit    int
}

// Matches reports whether rec passes the filter.
func (f PredictionFilter) Matches(rec PredictionRecord) bool {
	if !f.From.IsZero() && rec.RunDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.RunDate.After(f.To) {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(rec.LocationID), strings.ToLower(f.Location)) {
		return false
	}
	return true
}

// Apply returns the records that pass the filter, honoring Limit.
func (f PredictionFilter) Apply(records []PredictionRecord) []PredictionRecord {
	out := make([]PredictionRecord, 0, len(records))
	for _, rec := range records {
		if !f.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Records flattens a run result into prediction log records.
func (r RunResult) Records() []PredictionRecord {
	out := make([]PredictionRecord, len(r.Predictions))
	for i, p := range r.Predictions {
		out[i] = PredictionRecord{
			RunID:            r.RunID,
			RunDate:          r.Date,
			LocationID:       p.LocationID,
			Lat:              p.Lat,
			Lon:              p.Lon,
			PredictedCases:   p.PredictedCases,
			Rainfall:         p.Rainfall,
			LST:              p.LST,
			RelativeHumidity: p.RelativeHumidity,
			ProcessedAt:      r.ProcessedAt,
		}
	}
	return out
}
