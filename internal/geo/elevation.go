package geo

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
)

// ElevationKey is the property carrying altitudes. A point holds a number;
// other geometries hold nested lists mirroring their coordinate arrays, with
// null for a vertex without altitude.
const ElevationKey = "ele"

// ShapeElevation arranges altitudes given in vertex order to mirror the
// coordinate nesting of g. It returns nil when no vertex has an altitude or
// the count does not match g.
func ShapeElevation(g orb.Geometry, alts []*float64) any {
	set := false
	for _, a := range alts {
		if a != nil {
			set = true
			break
		}
	}
	if !set {
		return nil
	}

	i := 0
	v, ok := shapeElevation(g, alts, &i)
	if !ok || i != len(alts) {
		return nil
	}
	return v
}

func shapeElevation(g orb.Geometry, alts []*float64, i *int) (any, bool) {
	if _, ok := g.(orb.Point); ok {
		if *i >= len(alts) {
			return nil, false
		}
		a := alts[*i]
		*i++
		if a == nil {
			return nil, true
		}
		return *a, true
	}

	parts, ok := elevationParts(g)
	if !ok {
		return nil, false
	}
	out := make([]any, len(parts))
	for j, p := range parts {
		v, ok := shapeElevation(p, alts, i)
		if !ok {
			return nil, false
		}
		out[j] = v
	}
	return out, true
}

// FlatElevation reads an ElevationKey value back into vertex order. It
// returns nil when v does not mirror g, e.g. after simplification.
func FlatElevation(g orb.Geometry, v any) []*float64 {
	if v == nil {
		return nil
	}
	var out []*float64
	if !flattenElevation(g, v, &out) {
		return nil
	}
	return out
}

// Elevation returns the flattened altitudes of f.
func (f *Feature) Elevation() []*float64 {
	v, ok := f.Properties.Get(ElevationKey)
	if !ok {
		return nil
	}
	return FlatElevation(f.Geometry, v)
}

func flattenElevation(g orb.Geometry, v any, out *[]*float64) bool {
	if _, ok := g.(orb.Point); ok {
		if v == nil {
			*out = append(*out, nil)
			return true
		}
		f, ok := elevationNumber(v)
		if !ok {
			return false
		}
		*out = append(*out, &f)
		return true
	}

	parts, ok := elevationParts(g)
	if !ok {
		return false
	}
	list, ok := v.([]any)
	if !ok || len(list) != len(parts) {
		return false
	}
	for j, p := range parts {
		if !flattenElevation(p, list[j], out) {
			return false
		}
	}
	return true
}

// elevationParts splits g into the members its altitude list mirrors.
func elevationParts(g orb.Geometry) ([]orb.Geometry, bool) {
	var parts []orb.Geometry
	switch g := g.(type) {
	case orb.MultiPoint:
		for _, p := range g {
			parts = append(parts, p)
		}
	case orb.LineString:
		for _, p := range g {
			parts = append(parts, p)
		}
	case orb.Ring:
		for _, p := range g {
			parts = append(parts, p)
		}
	case orb.Polygon:
		for _, r := range g {
			parts = append(parts, r)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			parts = append(parts, ls)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			parts = append(parts, p)
		}
	default:
		return nil, false
	}
	return parts, true
}

func elevationNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
