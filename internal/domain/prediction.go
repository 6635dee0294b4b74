package domain

// Scaler is a fitted feature transform. FeatureNames returns the column
// order it was fitted with; Transform expects vectors in that order.
type Scaler interface {
	FeatureNames() ([]string, error)
	Transform(features []float64) ([]float64, error)
}

// Model is a fitted predictor over scaled feature vectors.
type Model interface {
	Predict(features []float64) (float64, error)
}

// PredictionResult is the integer prediction for one location.
type PredictionResult struct {
	LocationID     string
	PredictedValue int
}
