package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func testWards() []Ward {
	return []Ward{
		{ID: "KN001", Lat: 12.0021, Lon: 8.5920, Attributes: map[string]any{"ward_name": "Dala", "lga": "Dala"}},
		{ID: "KN002", Lat: 11.9874, Lon: 8.4662, Attributes: map[string]any{"ward_name": "Gwale", "lga": "Gwale"}},
		{ID: "KN003", Lat: 12.1033, Lon: 8.6109, Attributes: map[string]any{"ward_name": "Fagge", "lga": "Fagge"}},
	}
}

// partialFailureRecords returns records for the first two test wards only.
func partialFailureRecords() map[Coord]ClimateRecord {
	w := testWards()
	return map[Coord]ClimateRecord{
		w[0].Coord(): {Lat: w[0].Lat, Lon: w[0].Lon, Date: testDate, Temperature: 25, RelativeHumidity: 60, Precipitation: 0.5},
		w[1].Coord(): {Lat: w[1].Lat, Lon: w[1].Lon, Date: testDate, Temperature: 30, RelativeHumidity: 55, Precipitation: 0.0},
	}
}

func mustValue(t *testing.T, row MergedFeatureRow, column string) float64 {
	t.Helper()
	v, ok := row.Value(column)
	require.True(t, ok, "column %s should have a value", column)
	return v
}

func TestJoinClimate_PopulatedIffMatched(t *testing.T) {
	rows, err := JoinClimate(testWards(), partialFailureRecords())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for _, row := range rows[:2] {
		assert.True(t, row.Matched, row.Ward.ID)
		for _, c := range ClimateColumns {
			_, ok := row.Value(c)
			assert.True(t, ok, "%s %s", row.Ward.ID, c)
		}
	}

	assert.False(t, rows[2].Matched)
	for _, c := range ClimateColumns {
		_, ok := rows[2].Value(c)
		assert.False(t, ok, c)
	}
}

func TestJoinClimate_RenamesParameters(t *testing.T) {
	rows, err := JoinClimate(testWards(), partialFailureRecords())
	require.NoError(t, err)

	assert.InDelta(t, 0.5, mustValue(t, rows[0], ColumnRainfall), 1e-9)
	assert.InDelta(t, 25.0, mustValue(t, rows[0], ColumnLST), 1e-9)
	assert.InDelta(t, 60.0, mustValue(t, rows[0], ColumnRelativeHumidity), 1e-9)
	assert.Equal(t, []string{ColumnRainfall, ColumnLST, ColumnRelativeHumidity}, rows[0].Columns)
}

func TestJoinClimate_LeavesWardAttributesUnchanged(t *testing.T) {
	wards := testWards()
	rows, err := JoinClimate(wards, partialFailureRecords())
	require.NoError(t, err)

	for i, row := range rows {
		if diff := cmp.Diff(wards[i], row.Ward); diff != "" {
			t.Fatalf("ward %d changed by join (-want +got):\n%s", i, diff)
		}
	}
}

func TestJoinClimate_ExactCoordinateMatchOnly(t *testing.T) {
	w := testWards()[:1]
	near := math.Nextafter(w[0].Lat, math.Inf(1))
	records := map[Coord]ClimateRecord{
		{Lat: near, Lon: w[0].Lon}: {Lat: near, Lon: w[0].Lon, Temperature: 25, RelativeHumidity: 60, Precipitation: 0.5},
	}

	rows, err := JoinClimate(w, records)
	require.NoError(t, err)
	assert.False(t, rows[0].Matched, "centroids one ulp apart must not join")
}

func TestJoinClimate_FillValueIsMissing(t *testing.T) {
	w := testWards()[:1]
	records := map[Coord]ClimateRecord{
		w[0].Coord(): {Lat: w[0].Lat, Lon: w[0].Lon, Temperature: 25, RelativeHumidity: math.NaN(), Precipitation: 1.2},
	}

	rows, err := JoinClimate(w, records)
	require.NoError(t, err)
	assert.True(t, rows[0].Matched)
	_, ok := rows[0].Value(ColumnRelativeHumidity)
	assert.False(t, ok)
}

func TestJoinClimate_MissingColumnIsSchemaError(t *testing.T) {
	records := partialFailureRecords()
	for k, rec := range records {
		rec.Absent = []string{ParamRelativeHumidity}
		records[k] = rec
	}

	_, err := JoinClimate(testWards(), records)
	var schemaErr *FeatureSchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{ColumnRelativeHumidity}, schemaErr.Missing)
	assert.Contains(t, err.Error(), "Relative_H")
}

func TestJoinClimate_NoRecordsIsSchemaError(t *testing.T) {
	_, err := JoinClimate(testWards(), nil)
	var schemaErr *FeatureSchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, ClimateColumns, schemaErr.Missing)
}

func TestMergeClimate_PartialFailureFillsUnmatchedWard(t *testing.T) {
	t.Run("zero fill", func(t *testing.T) {
		rows, err := MergeClimate(testWards(), partialFailureRecords(), GapFillZero)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		assert.Empty(t, rows[0].Filled)
		assert.Empty(t, rows[1].Filled)
		assert.ElementsMatch(t, ClimateColumns, rows[2].Filled)
		for _, c := range ClimateColumns {
			assert.Zero(t, mustValue(t, rows[2], c), c)
		}
	})

	t.Run("mean fill", func(t *testing.T) {
		rows, err := MergeClimate(testWards(), partialFailureRecords(), GapFillMean)
		require.NoError(t, err)

		assert.InDelta(t, 27.5, mustValue(t, rows[2], ColumnLST), 1e-9)
		assert.InDelta(t, 57.5, mustValue(t, rows[2], ColumnRelativeHumidity), 1e-9)
		assert.InDelta(t, 0.25, mustValue(t, rows[2], ColumnRainfall), 1e-9)
		assert.InDelta(t, 25.0, mustValue(t, rows[0], ColumnLST), 1e-9, "matched rows keep their values")
	})
}

func TestMergeClimate_RequiresExplicitPolicy(t *testing.T) {
	_, err := MergeClimate(testWards(), partialFailureRecords(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gap fill policy")
}

func TestFillGaps_IdempotentOnCompleteData(t *testing.T) {
	for _, policy := range []GapFillPolicy{GapFillMean, GapFillZero} {
		t.Run(string(policy), func(t *testing.T) {
			once, err := MergeClimate(testWards(), partialFailureRecords(), policy)
			require.NoError(t, err)

			twice, err := FillGaps(once, policy)
			require.NoError(t, err)

			if diff := cmp.Diff(once, twice); diff != "" {
				t.Fatalf("second fill changed rows (-once +twice):\n%s", diff)
			}
		})
	}
}

func TestFillGaps_DoesNotModifyInput(t *testing.T) {
	rows, err := JoinClimate(testWards(), partialFailureRecords())
	require.NoError(t, err)

	_, err = FillGaps(rows, GapFillZero)
	require.NoError(t, err)

	_, ok := rows[2].Value(ColumnLST)
	assert.False(t, ok, "input row must stay unfilled")
	assert.Empty(t, rows[2].Filled)
}

func TestFillGaps_MeanWithNoValuesFallsBackToZero(t *testing.T) {
	row := NewMergedFeatureRow(Ward{ID: "x"}, []string{ColumnLST}, []float64{math.NaN()})

	filled, err := FillGaps([]MergedFeatureRow{row}, GapFillMean)
	require.NoError(t, err)
	assert.Zero(t, mustValue(t, filled[0], ColumnLST))
}

func TestNewMergedFeatureRow_DedupesColumns(t *testing.T) {
	row := NewMergedFeatureRow(Ward{ID: "x"},
		[]string{ColumnLST, ColumnRainfall, ColumnLST},
		[]float64{25, 0.5, 99},
	)

	assert.Equal(t, []string{ColumnLST, ColumnRainfall}, row.Columns)
	assert.InDelta(t, 25.0, mustValue(t, row, ColumnLST), 1e-9)
}

func TestDedupeColumns(t *testing.T) {
	got := DedupeColumns([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestParseGapFillPolicy(t *testing.T) {
	p, err := ParseGapFillPolicy("mean")
	require.NoError(t, err)
	assert.Equal(t, GapFillMean, p)

	_, err = ParseGapFillPolicy("median")
	assert.Error(t, err)
}
