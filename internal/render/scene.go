package render

import (
	"image/color"
	"strconv"
	"strings"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
)

// ShapeKind selects how a shape is painted.
type ShapeKind int

const (
	ShapeFill ShapeKind = iota
	ShapeStroke
	ShapeMarker
)

// Pt is a viewport pixel coordinate.
type Pt struct{ X, Y float64 }

// Shape is one paint operation in pixel space.
// Fill shapes carry closed rings, stroke shapes open paths and markers a single centre.
type Shape struct {
	Paths   [][]Pt
	Color   color.NRGBA
	Kind    ShapeKind
	Width   float64 // stroke width or marker radius
	Opacity float64
}

// Layer pairs a collection with the style it is drawn in.
type Layer struct {
	Collection *geo.FeatureCollection
	Style      dataset.Style
}

// Scene is the projected, clipped drawing list of one render.
type Scene struct {
	Shapes  []Shape
	View    View
	Clipped int // features entirely outside the Mercator band
}

var mercatorBand = orb.Bound{Min: orb.Point{-180, -geo.MaxLat}, Max: orb.Point{180, geo.MaxLat}}

// Build projects every feature of layers into v. Layers are painted in order.
func Build(v View, layers ...Layer) *Scene {
	s := &Scene{View: v}
	for _, l := range layers {
		if l.Collection == nil {
			continue
		}
		style := l.Style
		if style.Weight <= 0 {
			style.Weight = dataset.DefaultStyle().Weight
		}
		if style.Radius <= 0 {
			style.Radius = dataset.DefaultStyle().Radius
		}
		for _, f := range l.Collection.Features {
			g := clip.Geometry(mercatorBand, orb.Clone(f.Geometry))
			if empty(g) {
				s.Clipped++
				continue
			}
			col := ParseColor(style.ColorFor(f.Properties))
			s.add(g, col, style)
		}
	}
	return s
}

func (s *Scene) add(g orb.Geometry, col color.NRGBA, style dataset.Style) {
	switch g := g.(type) {
	case orb.Point:
		x, y := s.View.Project(g[0], g[1])
		s.Shapes = append(s.Shapes, Shape{
			Kind: ShapeMarker, Paths: [][]Pt{{{x, y}}}, Color: col,
			Width: style.Radius, Opacity: 1,
		})
	case orb.MultiPoint:
		for _, p := range g {
			s.add(p, col, style)
		}
	case orb.LineString:
		if len(g) < 2 {
			return
		}
		s.Shapes = append(s.Shapes, Shape{
			Kind: ShapeStroke, Paths: [][]Pt{s.path(g)}, Color: col,
			Width: style.Weight, Opacity: 1,
		})
	case orb.MultiLineString:
		for _, ls := range g {
			s.add(ls, col, style)
		}
	case orb.Ring:
		s.add(orb.Polygon{g}, col, style)
	case orb.Polygon:
		var rings [][]Pt
		for _, r := range g {
			if len(r) >= 3 {
				rings = append(rings, s.path(r))
			}
		}
		if len(rings) == 0 {
			return
		}
		s.Shapes = append(s.Shapes,
			Shape{Kind: ShapeFill, Paths: rings, Color: col, Opacity: style.FillOpacity},
			Shape{Kind: ShapeStroke, Paths: closeRings(rings), Color: col, Width: style.Weight, Opacity: 1},
		)
	case orb.MultiPolygon:
		for _, p := range g {
			s.add(p, col, style)
		}
	case orb.Collection:
		for _, c := range g {
			s.add(c, col, style)
		}
	case orb.Bound:
		s.add(g.ToPolygon(), col, style)
	}
}

func empty(g orb.Geometry) bool {
	return geo.EachPoint(g, func(orb.Point) bool { return false })
}

func (s *Scene) path(pts []orb.Point) []Pt {
	out := make([]Pt, len(pts))
	for i, p := range pts {
		out[i].X, out[i].Y = s.View.Project(p[0], p[1])
	}
	return out
}

// closeRings returns rings as open stroke paths ending on their first vertex.
func closeRings(rings [][]Pt) [][]Pt {
	out := make([][]Pt, len(rings))
	for i, r := range rings {
		out[i] = r
		if r[0] != r[len(r)-1] {
			out[i] = append(append([]Pt(nil), r...), r[0])
		}
	}
	return out
}

// ParseColor decodes "#rgb" or "#rrggbb". Anything else yields the default colour.
func ParseColor(s string) color.NRGBA {
	if c, ok := parseHex(s); ok {
		return c
	}
	c, _ := parseHex(dataset.DefaultColor)
	return c
}

func parseHex(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}

// Hex formats c as "#rrggbb".
func Hex(c color.NRGBA) string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{c.R, c.G, c.B} {
		b[1+i*2] = digits[v>>4]
		b[2+i*2] = digits[v&0x0f]
	}
	return string(b)
}
