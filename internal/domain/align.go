package domain

import "fmt"

// AlignedFeatureRow is a feature vector laid out in the exact column order
// a fitted scaler expects.
type AlignedFeatureRow struct {
	LocationID string
	Columns    []string
	Values     []float64
}

// ValidateExpectedColumns checks that a scaler's recorded feature list is usable.
func ValidateExpectedColumns(expected []string) error {
	if len(expected) == 0 {
		return &AlignmentError{Reason: "scaler recorded no feature names"}
	}
	seen := make(map[string]struct{}, len(expected))
	for i, name := range expected {
		if name == "" {
			return &AlignmentError{Reason: fmt.Sprintf("feature name %d is empty", i)}
		}
		if _, dup := seen[name]; dup {
			return &AlignmentError{Reason: fmt.Sprintf("feature name %q repeated", name)}
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Align lays out row's features in expected order. Columns the row does not
// carry, or carries without a value, default to 0.
func Align(row MergedFeatureRow, expected []string) (AlignedFeatureRow, error) {
	if err := ValidateExpectedColumns(expected); err != nil {
		return AlignedFeatureRow{}, err
	}
	return align(row, expected), nil
}

// AlignAll aligns every row against the same expected column list.
func AlignAll(rows []MergedFeatureRow, expected []string) ([]AlignedFeatureRow, error) {
	if err := ValidateExpectedColumns(expected); err != nil {
		return nil, err
	}
	out := make([]AlignedFeatureRow, len(rows))
	for i, row := range rows {
		out[i] = align(row, expected)
	}
	return out, nil
}

func align(row MergedFeatureRow, expected []string) AlignedFeatureRow {
	columns := make([]string, len(expected))
	copy(columns, expected)
	values := make([]float64, len(expected))
	for i, name := range expected {
		if v, ok := row.Value(name); ok {
			values[i] = v
		}
	}
	return AlignedFeatureRow{
		LocationID: row.Ward.ID,
		Columns:    columns,
		Values:     values,
	}
}
