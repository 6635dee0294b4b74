// Package geo turns a ward boundary dataset into the centroids the climate
// fetch runs against.
//
// Input is a GeoJSON FeatureCollection. RFC 7946 fixes GeoJSON coordinates to
// WGS 84 (EPSG:4326) in lon,lat order, so no reprojection is done here;
// datasets in other projections must be converted upstream.
package geo

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is a ward row: its source attributes, its boundary and, once
// SimplifyAndCenter has run, its centroid.
type Feature struct {
	domain.Ward
	Geometry orb.Geometry
}

// LoadFeatures reads a GeoJSON FeatureCollection from path.
// See ParseFeatures for how ward IDs are chosen.
func LoadFeatures(path, idField string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wards: %w", err)
	}
	return ParseFeatures(data, idField)
}

// ParseFeatures decodes a FeatureCollection. Polygon, MultiPolygon and Point
// geometries are accepted; anything else is an error. The ward ID is the
// idField property when set, else the feature ID, else the feature index.
func ParseFeatures(data []byte, idField string) ([]Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode wards: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("decode wards: feature collection is empty")
	}

	out := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon, orb.Point:
		case nil:
			return nil, fmt.Errorf("decode wards: feature %d has no geometry", i)
		default:
			return nil, fmt.Errorf("decode wards: feature %d: unsupported geometry %s", i, f.Geometry.GeoJSONType())
		}

		out = append(out, Feature{
			Ward: domain.Ward{
				ID:         featureID(f, idField, i),
				Attributes: maps.Clone(map[string]any(f.Properties)),
			},
			Geometry: f.Geometry,
		})
	}
	return out, nil
}

// LoadWards reads path, simplifies every boundary to tolerance and returns
// the wards with their centroids set.
func LoadWards(path, idField string, tolerance float64) ([]domain.Ward, error) {
	features, err := LoadFeatures(path, idField)
	if err != nil {
		return nil, err
	}
	simplified, err := SimplifyAndCenter(features, tolerance)
	if err != nil {
		return nil, err
	}
	return Wards(simplified), nil
}

// Wards returns the ward rows of features.
func Wards(features []Feature) []domain.Ward {
	out := make([]domain.Ward, len(features))
	for i, f := range features {
		out[i] = f.Ward
	}
	return out
}

// DistinctLocations returns one location per distinct centroid.
func DistinctLocations(features []Feature) []domain.Location {
	return domain.DistinctLocations(Wards(features))
}

func featureID(f *geojson.Feature, idField string, index int) string {
	if idField != "" {
		if v, ok := f.Properties[idField]; ok && v != nil {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	if f.ID != nil {
		if s := stringify(f.ID); s != "" {
			return s
		}
	}
	return strconv.Itoa(index)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
