package domain

import (
	"context"
	"time"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// RunRequest asks for a prediction over every ward for one calendar day.
type RunRequest struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`
}

// WardPrediction is one ward's prediction together with the climate values
// it was computed from, so a renderer can switch between layers.
type WardPrediction struct {
	LocationID       string   `json:"location_id"`
	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	PredictedCases   int      `json:"predicted_cases"`
	Rainfall         *float64 `json:"rainfall"`
	LST              *float64 `json:"lst"`
	RelativeHumidity *float64 `json:"relative_humidity"`
	// Features is the scaler-ordered vector fed to the model, before scaling.
	Features []float64 `json:"features"`
}

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	RunID            string           `json:"run_id"`
	Date             time.Time        `json:"date"`
	GapFill          GapFillPolicy    `json:"gap_fill"`
	FeatureColumns   []string         `json:"feature_columns"`
	TotalLocations   int              `json:"total_locations"`
	FetchedLocations int              `json:"fetched_locations"`
	Predictions      []WardPrediction `json:"predictions"`
	ProcessedAt      time.Time        `json:"processed_at"`
}

// PredictionMap returns the predicted value keyed by location ID.
func (r RunResult) PredictionMap() map[string]int {
	out := make(map[string]int, len(r.Predictions))
	for _, p := range r.Predictions {
		out[p.LocationID] = p.PredictedCases
	}
	return out
}
