package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two wards: a unit square densified with collinear points, and a tiny
// triangle far smaller than the simplification tolerance.
const testCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "f-1",
      "properties": {"ward_code": "KN001", "ward_name": "Dala", "population": 120000},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[
          [8.0, 12.0], [8.25, 12.0], [8.5, 12.0], [8.75, 12.0], [9.0, 12.0],
          [9.0, 12.5], [9.0, 13.0],
          [8.5, 13.0], [8.0, 13.0],
          [8.0, 12.5], [8.0, 12.0]
        ]]
      }
    },
    {
      "type": "Feature",
      "id": 7,
      "properties": {"ward_name": "Tiny"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0.0, 0.0], [0.0003, 0.0], [0.0, 0.0003], [0.0, 0.0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"ward_code": 42},
      "geometry": {"type": "Point", "coordinates": [7.5, 11.25]}
    }
  ]
}`

func parseTestFeatures(t *testing.T) []Feature {
	t.Helper()
	features, err := ParseFeatures([]byte(testCollection), "ward_code")
	require.NoError(t, err)
	require.Len(t, features, 3)
	return features
}

func TestParseFeatures_IDs(t *testing.T) {
	features := parseTestFeatures(t)

	assert.Equal(t, "KN001", features[0].ID, "property takes precedence")
	assert.Equal(t, "7", features[1].ID, "falls back to feature id")
	assert.Equal(t, "42", features[2].ID, "numeric property")
}

func TestParseFeatures_KeepsAttributes(t *testing.T) {
	features := parseTestFeatures(t)

	assert.Equal(t, "Dala", features[0].Attributes["ward_name"])
	assert.InDelta(t, 120000.0, features[0].Attributes["population"], 0)
}

func TestParseFeatures_Errors(t *testing.T) {
	cases := map[string]string{
		"not json":   `{`,
		"empty":      `{"type":"FeatureCollection","features":[]}`,
		"linestring": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFeatures([]byte(data), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wards.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testCollection), 0o600))

	features, err := LoadFeatures(path, "ward_code")
	require.NoError(t, err)
	assert.Len(t, features, 3)

	_, err = LoadFeatures(filepath.Join(t.TempDir(), "missing.geojson"), "")
	assert.Error(t, err)
}

func TestLoadWards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wards.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testCollection), 0o600))

	wards, err := LoadWards(path, "ward_code", 0.001)
	require.NoError(t, err)
	require.Len(t, wards, 3)

	assert.Equal(t, "KN001", wards[0].ID)
	assert.InDelta(t, 12.5, wards[0].Lat, 1e-9)
	assert.InDelta(t, 8.5, wards[0].Lon, 1e-9)
	assert.Equal(t, 11.25, wards[2].Lat)
	assert.Equal(t, 7.5, wards[2].Lon)

	_, err = LoadWards(path, "ward_code", -1)
	assert.Error(t, err)
}

func TestSimplifyAndCenter(t *testing.T) {
	features := parseTestFeatures(t)

	out, err := SimplifyAndCenter(features, 0.001)
	require.NoError(t, err)
	require.Len(t, out, 3)

	square := out[0].Geometry.(orb.Polygon)
	assert.Len(t, square[0], 5, "collinear points removed")
	assert.InDelta(t, 12.5, out[0].Lat, 1e-9)
	assert.InDelta(t, 8.5, out[0].Lon, 1e-9)

	tiny := out[1].Geometry.(orb.Polygon)
	assert.Len(t, tiny[0], 4, "degenerate simplification falls back to the original ring")
	assert.InDelta(t, 0.0001, out[1].Lat, 1e-12)
	assert.InDelta(t, 0.0001, out[1].Lon, 1e-12)

	assert.Equal(t, 11.25, out[2].Lat)
	assert.Equal(t, 7.5, out[2].Lon)
}

func TestSimplifyAndCenter_DoesNotModifyInput(t *testing.T) {
	features := parseTestFeatures(t)

	_, err := SimplifyAndCenter(features, 0.001)
	require.NoError(t, err)

	assert.Len(t, features[0].Geometry.(orb.Polygon)[0], 11)
	assert.Zero(t, features[0].Lat)
}

func TestSimplifyAndCenter_NegativeTolerance(t *testing.T) {
	_, err := SimplifyAndCenter(parseTestFeatures(t), -1)
	assert.Error(t, err)
}

func TestSimplifyAndCenter_DistinctLocations(t *testing.T) {
	features := parseTestFeatures(t)
	dup := features[0]
	dup.ID = "KN001-copy"
	features = append(features, dup)

	out, err := SimplifyAndCenter(features, 0.001)
	require.NoError(t, err)

	locs := DistinctLocations(out)
	assert.Len(t, locs, 3, "identical boundaries share one centroid")
	assert.Equal(t, "KN001", locs[0].ID)
}

func TestSelfIntersects(t *testing.T) {
	bowtie := orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}
	square := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}

	assert.True(t, selfIntersects(bowtie))
	assert.False(t, selfIntersects(square))
}

func TestSimplifyAndCenter_HoleNearBumpKeepsOriginal(t *testing.T) {
	// Simplifying drops the shell's bump, which would leave the hole outside.
	bumped := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {5, 10.5}, {0, 10}, {0, 0}},
		{{4.5, 10.1}, {4.5, 10.3}, {5.5, 10.3}, {5.5, 10.1}, {4.5, 10.1}},
	}
	features := []Feature{{Geometry: bumped}}
	features[0].ID = "H1"

	out, err := SimplifyAndCenter(features, 1.0)
	require.NoError(t, err)

	assert.Equal(t, bumped, out[0].Geometry)
	c, _ := planar.CentroidArea(bumped)
	assert.InDelta(t, c.Lat(), out[0].Lat, 1e-12)
	assert.InDelta(t, c.Lon(), out[0].Lon, 1e-12)
}

func TestSimplifyAndCenter_InteriorHoleSimplifies(t *testing.T) {
	poly := orb.Polygon{
		{{0, 0}, {5, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {4, 6}, {6, 6}, {6, 4}, {4, 4}},
	}
	features := []Feature{{Geometry: poly}}
	features[0].ID = "H2"

	out, err := SimplifyAndCenter(features, 0.001)
	require.NoError(t, err)

	got := out[0].Geometry.(orb.Polygon)
	require.Len(t, got, 2)
	assert.Len(t, got[0], 5, "collinear shell point removed")
	assert.Len(t, got[1], 5)
	assert.InDelta(t, 5, out[0].Lat, 1e-9)
	assert.InDelta(t, 5, out[0].Lon, 1e-9)
}

func TestSimplifyAndCenter_MultiPolygonPartsStayApart(t *testing.T) {
	// Filling the notch in the first part would swallow the second part.
	parts := orb.MultiPolygon{
		{{{0, 0}, {10, 0}, {10, 10}, {5, 9.5}, {0, 10}, {0, 0}}},
		{{{4.8, 9.7}, {5.2, 9.7}, {5.2, 9.9}, {4.8, 9.9}, {4.8, 9.7}}},
	}
	features := []Feature{{Geometry: parts}}
	features[0].ID = "M1"

	out, err := SimplifyAndCenter(features, 1.0)
	require.NoError(t, err)
	assert.Equal(t, parts, out[0].Geometry)
}

func TestHolesValid(t *testing.T) {
	shell := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	inside := orb.Ring{{4, 4}, {4, 6}, {6, 6}, {6, 4}, {4, 4}}
	outside := orb.Ring{{4.5, 10.1}, {4.5, 10.3}, {5.5, 10.3}, {5.5, 10.1}, {4.5, 10.1}}
	crossing := orb.Ring{{5, 5}, {5, 11}, {6, 11}, {6, 5}, {5, 5}}
	overlapping := orb.Ring{{5, 5}, {5, 7}, {7, 7}, {7, 5}, {5, 5}}

	assert.True(t, holesValid(orb.Polygon{shell}))
	assert.True(t, holesValid(orb.Polygon{shell, inside}))
	assert.False(t, holesValid(orb.Polygon{shell, outside}))
	assert.False(t, holesValid(orb.Polygon{shell, crossing}))
	assert.False(t, holesValid(orb.Polygon{shell, inside, overlapping}))
}
