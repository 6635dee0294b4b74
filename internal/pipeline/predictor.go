package pipeline

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
)

// Artifacts are the pretrained scaler and model, loaded once per process.
type Artifacts struct {
	Scaler domain.Scaler
	Model  domain.Model
}

// Predictor aligns merged rows to the scaler's feature order, scales them
// and runs the model.
type Predictor struct {
	artifacts Artifacts
	expected  []string
}

// NewPredictor reads the scaler's expected feature order. A scaler that
// cannot supply a usable list yields a *domain.AlignmentError.
func NewPredictor(a Artifacts) (*Predictor, error) {
	if a.Scaler == nil || a.Model == nil {
		return nil, errors.New("predictor requires both a scaler and a model")
	}
	expected, err := a.Scaler.FeatureNames()
	if err != nil {
		var ae *domain.AlignmentError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, &domain.AlignmentError{Reason: fmt.Sprintf("read scaler feature names: %v", err)}
	}
	if err := domain.ValidateExpectedColumns(expected); err != nil {
		return nil, err
	}
	return &Predictor{artifacts: a, expected: append([]string(nil), expected...)}, nil
}

// ExpectedColumns returns the scaler's feature order.
func (p *Predictor) ExpectedColumns() []string {
	return append([]string(nil), p.expected...)
}

// Predict returns one integer prediction per row, in row order, together
// with the aligned (unscaled) feature rows. Model outputs are truncated
// towards zero.
func (p *Predictor) Predict(rows []domain.MergedFeatureRow) ([]domain.PredictionResult, []domain.AlignedFeatureRow, error) {
	aligned, err := domain.AlignAll(rows, p.expected)
	if err != nil {
		return nil, nil, err
	}

	results := make([]domain.PredictionResult, len(aligned))
	for i, row := range aligned {
		scaled, err := p.artifacts.Scaler.Transform(row.Values)
		if err != nil {
			return nil, nil, fmt.Errorf("scale features for %s: %w", row.LocationID, err)
		}
		v, err := p.artifacts.Model.Predict(scaled)
		if err != nil {
			return nil, nil, fmt.Errorf("predict for %s: %w", row.LocationID, err)
		}
		results[i] = domain.PredictionResult{LocationID: row.LocationID, PredictedValue: int(v)}
	}
	return results, aligned, nil
}
