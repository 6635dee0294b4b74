package domain

import "fmt"

// Coord is a WGS-84 latitude/longitude pair used as a join key. Two Coords
// are equal only when both components are bit-identical floats.
type Coord struct {
	Lat float64
	Lon float64
}

func (c Coord) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Location is one distinct centroid to fetch climate data for.
type Location struct {
	ID  string
	Lat float64
	Lon float64
}

// Coord returns the location's join key.
func (l Location) Coord() Coord {
	return Coord{Lat: l.Lat, Lon: l.Lon}
}

// Ward is one row of the geometry dataset after centroid extraction.
// Attributes carries the source properties untouched.
type Ward struct {
	ID         string
	Attributes map[string]any
	Lat        float64
	Lon        float64
}

// Coord returns the ward centroid as a join key.
func (w Ward) Coord() Coord {
	return Coord{Lat: w.Lat, Lon: w.Lon}
}

// DistinctLocations returns one Location per distinct centroid. The ID of
// the first ward with a given centroid is used as the location ID.
func DistinctLocations(wards []Ward) []Location {
	seen := make(map[Coord]struct{}, len(wards))
	out := make([]Location, 0, len(wards))
	for _, w := range wards {
		key := w.Coord()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Location{ID: w.ID, Lat: w.Lat, Lon: w.Lon})
	}
	return out
}
