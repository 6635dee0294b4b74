// Package artifact loads pretrained feature scalers and models exported as JSON.
package artifact

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
)

// StandardScaler is a fitted z-score transform: (x - mean) / scale per feature.
type StandardScaler struct {
	names []string
	mean  []float64
	scale []float64
}

type scalerFile struct {
	FeatureNamesIn []string  `json:"feature_names_in"`
	Mean           []float64 `json:"mean"`
	Scale          []float64 `json:"scale"`
}

// LoadScaler reads a scaler export from path.
func LoadScaler(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	return ParseScaler(data)
}

// ParseScaler decodes a scaler export. An unusable feature list is reported
// as a *domain.AlignmentError.
func ParseScaler(data []byte) (*StandardScaler, error) {
	var f scalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	names := trimNames(f.FeatureNamesIn)
	if err := domain.ValidateExpectedColumns(names); err != nil {
		return nil, err
	}
	n := len(names)
	if len(f.Mean) != n || len(f.Scale) != n {
		return nil, &domain.AlignmentError{Reason: fmt.Sprintf(
			"scaler has %d feature names but %d means and %d scales", n, len(f.Mean), len(f.Scale))}
	}

	scale := make([]float64, n)
	for i, s := range f.Scale {
		// Zero-variance features are exported with scale 0 by some tools.
		if s == 0 {
			s = 1
		}
		scale[i] = s
	}
	return &StandardScaler{
		names: names,
		mean:  f.Mean,
		scale: scale,
	}, nil
}

// FeatureNames returns the column order the scaler was fitted with.
func (s *StandardScaler) FeatureNames() ([]string, error) {
	return append([]string(nil), s.names...), nil
}

// Transform scales a feature vector in FeatureNames order.
func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.names) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.names), len(features))
	}
	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

func trimNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.TrimSpace(n)
	}
	return out
}
