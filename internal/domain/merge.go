package domain

import (
	"fmt"
	"math"
	"slices"
)

// GapFillPolicy selects how missing climate values are substituted after
// the join. The zero value is not a valid policy; callers must choose.
type GapFillPolicy string

const (
	// GapFillMean replaces a missing value with the column mean over the
	// rows that have one.
	GapFillMean GapFillPolicy = "mean"
	// GapFillZero replaces a missing value with 0.
	GapFillZero GapFillPolicy = "zero"
)

// ParseGapFillPolicy validates a policy name.
func ParseGapFillPolicy(s string) (GapFillPolicy, error) {
	p := GapFillPolicy(s)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate returns an error unless p is GapFillMean or GapFillZero.
func (p GapFillPolicy) Validate() error {
	switch p {
	case GapFillMean, GapFillZero:
		return nil
	default:
		return fmt.Errorf("invalid gap fill policy %q: want %q or %q", string(p), GapFillMean, GapFillZero)
	}
}

// MergedFeatureRow is a ward left-joined with its climate record.
// A nil feature value means no value was available for that column.
type MergedFeatureRow struct {
	Ward     Ward
	Columns  []string
	Features map[string]*float64
	// Matched is true when a climate record with the ward's exact centroid existed.
	Matched bool
	// Filled lists columns whose value was substituted by gap filling.
	Filled []string
}

// NewMergedFeatureRow builds a row from parallel column and value slices.
// Repeated column labels keep their first value. A NaN value is stored as missing.
func NewMergedFeatureRow(ward Ward, columns []string, values []float64) MergedFeatureRow {
	row := MergedFeatureRow{
		Ward:     ward,
		Features: make(map[string]*float64, len(columns)),
	}
	for i, c := range columns {
		if _, dup := row.Features[c]; dup {
			continue
		}
		row.Columns = append(row.Columns, c)
		row.Features[c] = nil
		if i < len(values) && !math.IsNaN(values[i]) {
			v := values[i]
			row.Features[c] = &v
		}
	}
	return row
}

// Value returns the value of a feature column and whether it is present.
func (r MergedFeatureRow) Value(column string) (float64, bool) {
	v, ok := r.Features[column]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// DedupeColumns returns names with repeated labels removed, keeping the first occurrence.
func DedupeColumns(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// JoinClimate left-joins wards against climate records by exact centroid
// and renames the POWER parameters to their canonical columns. No gap
// filling is done: unmatched wards carry nil features.
//
// A canonical column that no record carries is reported as a
// *FeatureSchemaError. With no records at all every column is missing.
func JoinClimate(wards []Ward, records map[Coord]ClimateRecord) ([]MergedFeatureRow, error) {
	present := make(map[string]bool, len(ClimateColumns))
	for _, rec := range records {
		for _, param := range []string{ParamPrecipitation, ParamTemperature, ParamRelativeHumidity} {
			if !slices.Contains(rec.Absent, param) {
				present[CanonicalColumn(param)] = true
			}
		}
	}
	var missing []string
	for _, c := range ClimateColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &FeatureSchemaError{Missing: missing}
	}

	columns := DedupeColumns(ClimateColumns)
	rows := make([]MergedFeatureRow, 0, len(wards))
	for _, w := range wards {
		row := MergedFeatureRow{
			Ward:     w,
			Columns:  columns,
			Features: make(map[string]*float64, len(columns)),
		}
		for _, c := range columns {
			row.Features[c] = nil
		}

		if rec, ok := records[w.Coord()]; ok {
			row.Matched = true
			for param, v := range rec.Params() {
				if math.IsNaN(v) || slices.Contains(rec.Absent, param) {
					continue
				}
				row.Features[CanonicalColumn(param)] = &v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FillGaps substitutes missing values in every column of rows according to
// policy and returns new rows; the input is not modified. Rows without
// missing values come back unchanged, so filling twice is a no-op.
// Under GapFillMean a column with no values at all is filled with 0.
func FillGaps(rows []MergedFeatureRow, policy GapFillPolicy) ([]MergedFeatureRow, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	fill := make(map[string]float64)
	if policy == GapFillMean {
		sums := make(map[string]float64)
		counts := make(map[string]int)
		for _, row := range rows {
			for c, v := range row.Features {
				if v != nil {
					sums[c] += *v
					counts[c]++
				}
			}
		}
		for c, n := range counts {
			fill[c] = sums[c] / float64(n)
		}
	}

	out := make([]MergedFeatureRow, len(rows))
	for i, row := range rows {
		next := row
		next.Features = make(map[string]*float64, len(row.Features))
		next.Filled = slices.Clone(row.Filled)
		for _, c := range row.columnOrder() {
			v := row.Features[c]
			if v != nil {
				next.Features[c] = v
				continue
			}
			f := fill[c]
			next.Features[c] = &f
			next.Filled = append(next.Filled, c)
		}
		out[i] = next
	}
	return out, nil
}

// MergeClimate joins climate records onto wards and fills gaps with policy.
func MergeClimate(wards []Ward, records map[Coord]ClimateRecord, policy GapFillPolicy) ([]MergedFeatureRow, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	rows, err := JoinClimate(wards, records)
	if err != nil {
		return nil, err
	}
	return FillGaps(rows, policy)
}

// columnOrder returns Columns followed by any feature keys not listed there,
// sorted, so iteration is deterministic.
func (r MergedFeatureRow) columnOrder() []string {
	cols := slices.Clone(r.Columns)
	var extra []string
	for c := range r.Features {
		if !slices.Contains(cols, c) {
			extra = append(extra, c)
		}
	}
	slices.Sort(extra)
	return append(cols, extra...)
}
