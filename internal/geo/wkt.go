package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

var errWKTSyntax = errors.New("wkt: invalid syntax")

// ParseWKT decodes a Well-Known Text geometry. Z and M ordinates are read and discarded,
// an EWKT "SRID=n;" prefix is ignored.
func ParseWKT(s string) (orb.Geometry, error) {
	g, _, err := ParseWKTZ(s)
	return g, err
}

// ParseWKTZ is ParseWKT that also returns the Z ordinate of every vertex in
// vertex order, nil where a vertex has none. The third ordinate of an "M"
// tagged geometry is a measure, not an altitude.
func ParseWKTZ(s string) (orb.Geometry, []*float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		i := strings.IndexByte(s, ';')
		if i < 0 {
			return nil, nil, errWKTSyntax
		}
		s = strings.TrimSpace(s[i+1:])
	}
	if s == "" {
		return nil, nil, errors.New("empty wkt")
	}

	head, body := s, ""
	if i := strings.IndexByte(s, '('); i >= 0 {
		head, body = s[:i], s[i:]
	}
	words := strings.Fields(strings.ToUpper(head))
	if len(words) == 0 {
		return nil, nil, errWKTSyntax
	}
	kind := words[0]
	if body == "" {
		if words[len(words)-1] != "EMPTY" {
			return nil, nil, errWKTSyntax
		}
		g, err := emptyWKT(kind)
		return g, nil, err
	}
	if len(words) > 2 {
		return nil, nil, errWKTSyntax
	}

	inner, err := unwrapParens(body)
	if err != nil {
		return nil, nil, err
	}
	d := &wktDecoder{measured: len(words) == 2 && words[1] == "M"}
	g, err := d.decode(kind, inner)
	if err != nil {
		return nil, nil, err
	}
	return g, d.alts, nil
}

// MarshalWKT encodes g as WKT.
func MarshalWKT(g orb.Geometry) string {
	return wkt.MarshalString(g)
}

// MarshalWKTZ encodes g as WKT with a Z ordinate taken from alts, given in
// vertex order. Without an altitude for every vertex it falls back to MarshalWKT.
func MarshalWKTZ(g orb.Geometry, alts []*float64) string {
	n := 0
	EachPoint(g, func(orb.Point) bool { n++; return true })
	if n == 0 || n != len(alts) {
		return MarshalWKT(g)
	}
	for _, a := range alts {
		if a == nil {
			return MarshalWKT(g)
		}
	}

	e := &wktZEncoder{alts: alts}
	switch g := g.(type) {
	case orb.Point:
		e.b.WriteString("POINT Z ")
		e.points([]orb.Point{g})
	case orb.MultiPoint:
		e.b.WriteString("MULTIPOINT Z ")
		e.points(g)
	case orb.LineString:
		e.b.WriteString("LINESTRING Z ")
		e.points(g)
	case orb.Polygon:
		e.b.WriteString("POLYGON Z ")
		e.polygon(g)
	case orb.MultiLineString:
		e.b.WriteString("MULTILINESTRING Z (")
		for i, ls := range g {
			if i > 0 {
				e.b.WriteByte(',')
			}
			e.points(ls)
		}
		e.b.WriteByte(')')
	case orb.MultiPolygon:
		e.b.WriteString("MULTIPOLYGON Z (")
		for i, p := range g {
			if i > 0 {
				e.b.WriteByte(',')
			}
			e.polygon(p)
		}
		e.b.WriteByte(')')
	default:
		return MarshalWKT(g)
	}
	return e.b.String()
}

type wktZEncoder struct {
	b    strings.Builder
	alts []*float64
	i    int
}

func (e *wktZEncoder) points(pts []orb.Point) {
	e.b.WriteByte('(')
	for j, p := range pts {
		if j > 0 {
			e.b.WriteByte(',')
		}
		e.b.WriteString(strconv.FormatFloat(p[0], 'f', -1, 64))
		e.b.WriteByte(' ')
		e.b.WriteString(strconv.FormatFloat(p[1], 'f', -1, 64))
		e.b.WriteByte(' ')
		e.b.WriteString(strconv.FormatFloat(*e.alts[e.i], 'f', -1, 64))
		e.i++
	}
	e.b.WriteByte(')')
}

func (e *wktZEncoder) polygon(p orb.Polygon) {
	e.b.WriteByte('(')
	for j, r := range p {
		if j > 0 {
			e.b.WriteByte(',')
		}
		e.points(r)
	}
	e.b.WriteByte(')')
}

// wktDecoder collects altitudes while decoding.
type wktDecoder struct {
	alts     []*float64
	measured bool
}

func (d *wktDecoder) decode(kind, inner string) (orb.Geometry, error) {
	switch kind {
	case "POINT":
		return d.point(inner)
	case "LINESTRING":
		pts, err := d.points(inner)
		return orb.LineString(pts), err
	case "POLYGON":
		return d.polygon(inner)
	case "MULTIPOINT":
		var mp orb.MultiPoint
		for _, part := range splitTop(inner) {
			if strings.HasPrefix(part, "(") {
				p, err := unwrapParens(part)
				if err != nil {
					return nil, err
				}
				part = p
			}
			pt, err := d.point(part)
			if err != nil {
				return nil, err
			}
			mp = append(mp, pt)
		}
		return mp, nil
	case "MULTILINESTRING":
		var mls orb.MultiLineString
		for _, part := range splitTop(inner) {
			p, err := unwrapParens(part)
			if err != nil {
				return nil, err
			}
			pts, err := d.points(p)
			if err != nil {
				return nil, err
			}
			mls = append(mls, orb.LineString(pts))
		}
		return mls, nil
	case "MULTIPOLYGON":
		var mp orb.MultiPolygon
		for _, part := range splitTop(inner) {
			p, err := unwrapParens(part)
			if err != nil {
				return nil, err
			}
			poly, err := d.polygon(p)
			if err != nil {
				return nil, err
			}
			mp = append(mp, poly)
		}
		return mp, nil
	case "GEOMETRYCOLLECTION":
		var c orb.Collection
		for _, part := range splitTop(inner) {
			g, alts, err := ParseWKTZ(part)
			if err != nil {
				return nil, err
			}
			c = append(c, g)
			d.alts = append(d.alts, alts...)
		}
		return c, nil
	}
	return nil, errors.New("unsupported wkt type " + kind)
}

func emptyWKT(kind string) (orb.Geometry, error) {
	switch kind {
	case "POINT":
		return nil, errors.New("wkt: empty point")
	case "LINESTRING":
		return orb.LineString{}, nil
	case "POLYGON":
		return orb.Polygon{}, nil
	case "MULTIPOINT":
		return orb.MultiPoint{}, nil
	case "MULTILINESTRING":
		return orb.MultiLineString{}, nil
	case "MULTIPOLYGON":
		return orb.MultiPolygon{}, nil
	case "GEOMETRYCOLLECTION":
		return orb.Collection{}, nil
	}
	return nil, errors.New("unsupported wkt type " + kind)
}

func (d *wktDecoder) polygon(inner string) (orb.Polygon, error) {
	var poly orb.Polygon
	for _, part := range splitTop(inner) {
		p, err := unwrapParens(part)
		if err != nil {
			return nil, err
		}
		pts, err := d.points(p)
		if err != nil {
			return nil, err
		}
		poly = append(poly, orb.Ring(pts))
	}
	return poly, nil
}

func (d *wktDecoder) points(block string) ([]orb.Point, error) {
	parts := splitTop(block)
	pts := make([]orb.Point, 0, len(parts))
	for _, tup := range parts {
		p, err := d.point(tup)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func (d *wktDecoder) point(tup string) (orb.Point, error) {
	parts := strings.Fields(strings.TrimSpace(tup))
	if len(parts) < 2 || len(parts) > 4 {
		return orb.Point{}, errWKTSyntax
	}
	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return orb.Point{}, errWKTSyntax
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return orb.Point{}, errWKTSyntax
	}

	var alt *float64
	if len(parts) > 2 && !d.measured {
		z, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return orb.Point{}, errWKTSyntax
		}
		alt = &z
	}
	d.alts = append(d.alts, alt)
	return orb.Point{x, y}, nil
}

// unwrapParens strips one balanced pair of outer parentheses.
func unwrapParens(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", errWKTSyntax
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return "", errWKTSyntax
			}
			if depth < 0 {
				return "", errWKTSyntax
			}
		}
	}
	if depth != 0 {
		return "", errWKTSyntax
	}
	return s[1 : len(s)-1], nil
}

// splitTop splits s on commas outside parentheses.
func splitTop(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
