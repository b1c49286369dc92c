package export

import (
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// simplifyCollection returns a copy of fc with Douglas-Peucker simplified
// geometries. Geometries that collapse are kept unsimplified.
func simplifyCollection(fc *geo.FeatureCollection, tolerance float64) *geo.FeatureCollection {
	s := simplify.DouglasPeucker(tolerance)
	out := make([]*geo.Feature, len(fc.Features))
	for i, f := range fc.Features {
		c := *f
		if f.Geometry != nil {
			g := s.Simplify(orb.Clone(f.Geometry))
			if g != nil && geo.ValidateGeometry(g) == nil {
				c.Geometry = g
			}
		}
		out[i] = &c
	}
	res := fc.WithFeatures(out)
	res.Records = fc.Records
	return res
}
