package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// SimplifyAndCenter simplifies every boundary to within tolerance (in
// degrees) and sets each ward's centroid. The input is not modified.
//
// Rings are simplified one at a time with Douglas-Peucker. A simplified ring
// that is no longer a valid ring (fewer than four points, zero area, flipped
// orientation or self-intersecting) is replaced by its original. A polygon
// whose holes no longer sit inside its shell, or cross each other, is
// replaced by its original. MultiPolygon parts that come to overlap are
// restored too, so every output polygon stays valid and encloses about the
// same area.
func SimplifyAndCenter(features []Feature, tolerance float64) ([]Feature, error) {
	if tolerance < 0 || math.IsNaN(tolerance) {
		return nil, fmt.Errorf("simplify tolerance must be >= 0, got %v", tolerance)
	}
	s := simplify.DouglasPeucker(tolerance)

	out := make([]Feature, len(features))
	for i, f := range features {
		g, err := simplifyGeometry(s, f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("ward %s: %w", f.ID, err)
		}
		c, err := centroid(g)
		if err != nil {
			return nil, fmt.Errorf("ward %s: %w", f.ID, err)
		}

		next := f
		next.Geometry = g
		next.Lat = c.Lat()
		next.Lon = c.Lon()
		out[i] = next
	}
	return out, nil
}

func simplifyGeometry(s *simplify.DouglasPeuckerSimplifier, g orb.Geometry) (orb.Geometry, error) {
	switch t := g.(type) {
	case orb.Point:
		return t, nil
	case orb.Polygon:
		return simplifyPolygon(s, t), nil
	case orb.MultiPolygon:
		mp := make(orb.MultiPolygon, len(t))
		for i, p := range t {
			mp[i] = simplifyPolygon(s, p)
		}
		restoreOverlappingParts(mp, t)
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry %T", g)
	}
}

func simplifyPolygon(s *simplify.DouglasPeuckerSimplifier, p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		simplified := s.Ring(r.Clone())
		if validRing(simplified, r.Orientation()) {
			out[i] = simplified
			continue
		}
		out[i] = r.Clone()
	}
	if !holesValid(out) {
		return p.Clone()
	}
	return out
}

// holesValid reports whether every hole lies inside the shell and no two
// rings of p cross.
func holesValid(p orb.Polygon) bool {
	if len(p) < 2 {
		return true
	}
	shell := p[0]
	for i, hole := range p[1:] {
		for _, v := range hole {
			if !planar.RingContains(shell, v) {
				return false
			}
		}
		if ringsCross(shell, hole) {
			return false
		}
		for _, other := range p[i+2:] {
			if ringsCross(hole, other) || planar.RingContains(hole, other[0]) || planar.RingContains(other, hole[0]) {
				return false
			}
		}
	}
	return true
}

// restoreOverlappingParts puts back the original of every simplified part
// that now crosses or contains another part.
func restoreOverlappingParts(mp, orig orb.MultiPolygon) {
	restored := make([]bool, len(mp))
	for changed := true; changed; {
		changed = false
		for i := range mp {
			for j := i + 1; j < len(mp); j++ {
				if !shellsOverlap(mp[i], mp[j]) {
					continue
				}
				for _, k := range []int{i, j} {
					if !restored[k] {
						mp[k] = orig[k].Clone()
						restored[k] = true
						changed = true
					}
				}
			}
		}
	}
}

func shellsOverlap(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 || len(a[0]) == 0 || len(b[0]) == 0 {
		return false
	}
	return ringsCross(a[0], b[0]) || planar.RingContains(a[0], b[0][0]) || planar.RingContains(b[0], a[0][0])
}

// ringsCross reports whether any edge of a crosses or touches any edge of b.
func ringsCross(a, b orb.Ring) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

func validRing(r orb.Ring, want orb.Orientation) bool {
	if len(r) < 4 || !r.Closed() {
		return false
	}
	if want != 0 && r.Orientation() != want {
		return false
	}
	if planar.Area(r) == 0 {
		return false
	}
	return !selfIntersects(r)
}

// selfIntersects reports whether any two non-adjacent edges of r cross or touch.
func selfIntersects(r orb.Ring) bool {
	n := len(r) - 1 // edges; last point repeats the first
	for i := range n {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(p3, p4, p1)) ||
		(d2 == 0 && onSegment(p3, p4, p2)) ||
		(d3 == 0 && onSegment(p1, p2, p3)) ||
		(d4 == 0 && onSegment(p1, p2, p4))
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

func centroid(g orb.Geometry) (orb.Point, error) {
	if p, ok := g.(orb.Point); ok {
		return p, nil
	}
	c, area := planar.CentroidArea(g)
	if area == 0 || math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return orb.Point{}, errors.New("geometry has no area; cannot compute centroid")
	}
	return c, nil
}
