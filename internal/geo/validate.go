package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// EachPoint calls fn for every vertex of g until fn returns false.
func EachPoint(g orb.Geometry, fn func(orb.Point) bool) bool {
	switch v := g.(type) {
	case nil:
		return true
	case orb.Point:
		return fn(v)
	case orb.MultiPoint:
		for _, p := range v {
			if !fn(p) {
				return false
			}
		}
	case orb.LineString:
		for _, p := range v {
			if !fn(p) {
				return false
			}
		}
	case orb.Ring:
		for _, p := range v {
			if !fn(p) {
				return false
			}
		}
	case orb.MultiLineString:
		for _, ls := range v {
			if !EachPoint(ls, fn) {
				return false
			}
		}
	case orb.Polygon:
		for _, r := range v {
			if !EachPoint(r, fn) {
				return false
			}
		}
	case orb.MultiPolygon:
		for _, p := range v {
			if !EachPoint(p, fn) {
				return false
			}
		}
	case orb.Collection:
		for _, c := range v {
			if !EachPoint(c, fn) {
				return false
			}
		}
	case orb.Bound:
		return fn(v.Min) && fn(v.Max)
	}
	return true
}

// ValidCoordinate reports whether lon/lat are finite and inside WGS84 range.
func ValidCoordinate(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// ValidateGeometry checks that g has at least one vertex and every vertex is a valid coordinate.
func ValidateGeometry(g orb.Geometry) error {
	if g == nil {
		return Errorf(KindCoordinateInvalid, "missing geometry")
	}

	count := 0
	var bad orb.Point
	ok := EachPoint(g, func(p orb.Point) bool {
		count++
		if !ValidCoordinate(p[0], p[1]) {
			bad = p
			return false
		}
		return true
	})
	if !ok {
		return Errorf(KindCoordinateInvalid, "coordinate out of range: %v,%v", bad[0], bad[1])
	}
	if count == 0 {
		return Errorf(KindCoordinateInvalid, "empty %s geometry", g.GeoJSONType())
	}
	return nil
}

// Flatten expands collections and multi-geometries into their single parts.
func Flatten(g orb.Geometry) []orb.Geometry {
	switch v := g.(type) {
	case nil:
		return nil
	case orb.MultiPoint:
		out := make([]orb.Geometry, 0, len(v))
		for _, p := range v {
			out = append(out, p)
		}
		return out
	case orb.MultiLineString:
		out := make([]orb.Geometry, 0, len(v))
		for _, ls := range v {
			out = append(out, ls)
		}
		return out
	case orb.MultiPolygon:
		out := make([]orb.Geometry, 0, len(v))
		for _, p := range v {
			out = append(out, p)
		}
		return out
	case orb.Collection:
		var out []orb.Geometry
		for _, c := range v {
			out = append(out, Flatten(c)...)
		}
		return out
	case orb.Ring:
		return []orb.Geometry{orb.Polygon{v}}
	case orb.Bound:
		return []orb.Geometry{v.ToPolygon()}
	default:
		return []orb.Geometry{g}
	}
}
