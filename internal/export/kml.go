package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"
	"github.com/woozymasta/geoconv/internal/render"

	"github.com/paulmach/orb"
)

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeXML(s string) string { return xmlEscaper.Replace(s) }

// cdata wraps s in a CDATA section, splitting any "]]>" it contains.
func cdata(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}

func encodeKML(_ *Exporter, r *request) ([]byte, error) {
	return buildKML(r), nil
}

func buildKML(r *request) []byte {
	styles := newKMLStyles(r.style)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<kml xmlns="http://www.opengis.net/kml/2.2">` + "\n<Document>\n")
	fmt.Fprintf(&b, "<name>%s</name>\n", escapeXML(r.fc.Metadata.Label))
	for _, block := range styles.blocks {
		b.WriteString(block)
	}

	dropped := 0
	for i, f := range r.fc.Features {
		geom, ok := kmlGeometry(f.Geometry, elevations(f))
		if !ok {
			dropped++
			continue
		}
		props, err := f.Properties.MarshalJSON()
		if err != nil {
			dropped++
			continue
		}
		b.WriteString("<Placemark>\n")
		fmt.Fprintf(&b, "<name>%s</name>\n", escapeXML(featureName(f, r.cfg.NameField, i)))
		fmt.Fprintf(&b, "<styleUrl>#%s</styleUrl>\n", styles.id(f))
		fmt.Fprintf(&b, "<description>%s</description>\n", cdata(string(props)))
		b.WriteString(geom)
		b.WriteString("\n</Placemark>\n")
	}
	if dropped > 0 {
		r.warn("%d feature(s) without encodable geometry skipped", dropped)
	}

	b.WriteString("</Document>\n</kml>\n")
	return []byte(b.String())
}

// altCursor hands out a feature's altitudes in vertex order. A nil cursor
// yields none.
type altCursor struct {
	alts []*float64
	i    int
}

func elevations(f *geo.Feature) *altCursor {
	alts := f.Elevation()
	if alts == nil {
		return nil
	}
	return &altCursor{alts: alts}
}

// take returns the next n altitudes, or nil when the cursor has none.
func (c *altCursor) take(n int) []*float64 {
	if c == nil || c.i+n > len(c.alts) {
		return nil
	}
	out := c.alts[c.i : c.i+n]
	c.i += n
	return out
}

// kmlGeometry encodes g, reporting false when nothing encodable remains.
func kmlGeometry(g orb.Geometry, alts *altCursor) (string, bool) {
	switch g := g.(type) {
	case orb.Point:
		return "<Point><coordinates>" + kmlCoords([]orb.Point{g}, alts.take(1)) + "</coordinates></Point>", true
	case orb.MultiPoint:
		parts := make([]orb.Geometry, len(g))
		for i, p := range g {
			parts[i] = p
		}
		return kmlMulti(parts, alts)
	case orb.LineString:
		z := alts.take(len(g))
		if len(g) < 2 {
			return "", false
		}
		return "<LineString><coordinates>" + kmlCoords(g, z) + "</coordinates></LineString>", true
	case orb.MultiLineString:
		parts := make([]orb.Geometry, len(g))
		for i, ls := range g {
			parts[i] = ls
		}
		return kmlMulti(parts, alts)
	case orb.Ring:
		return kmlGeometry(orb.Polygon{g}, alts)
	case orb.Polygon:
		return kmlPolygon(g, alts)
	case orb.MultiPolygon:
		parts := make([]orb.Geometry, len(g))
		for i, p := range g {
			parts[i] = p
		}
		return kmlMulti(parts, alts)
	case orb.Collection:
		return kmlMulti(g, nil)
	case orb.Bound:
		return kmlPolygon(g.ToPolygon(), nil)
	}
	return "", false
}

func kmlMulti(parts []orb.Geometry, alts *altCursor) (string, bool) {
	var b strings.Builder
	n := 0
	for _, p := range parts {
		if s, ok := kmlGeometry(p, alts); ok {
			b.WriteString(s)
			n++
		}
	}
	if n == 0 {
		return "", false
	}
	return "<MultiGeometry>" + b.String() + "</MultiGeometry>", true
}

// kmlPolygon drops rings shorter than four positions; a polygon whose outer
// ring is dropped cannot be encoded.
func kmlPolygon(p orb.Polygon, alts *altCursor) (string, bool) {
	z := make([][]*float64, len(p))
	for i, ring := range p {
		z[i] = alts.take(len(ring))
	}
	if len(p) == 0 || len(p[0]) < 4 {
		return "", false
	}
	var b strings.Builder
	b.WriteString("<Polygon><outerBoundaryIs><LinearRing><coordinates>")
	b.WriteString(kmlCoords(p[0], z[0]))
	b.WriteString("</coordinates></LinearRing></outerBoundaryIs>")
	for i, ring := range p[1:] {
		if len(ring) < 4 {
			continue
		}
		b.WriteString("<innerBoundaryIs><LinearRing><coordinates>")
		b.WriteString(kmlCoords(ring, z[i+1]))
		b.WriteString("</coordinates></LinearRing></innerBoundaryIs>")
	}
	b.WriteString("</Polygon>")
	return b.String(), true
}

// kmlCoords writes "lon,lat[,alt]" tuples; alts is nil or one entry per point.
func kmlCoords(pts []orb.Point, alts []*float64) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = formatCoord(p[0]) + "," + formatCoord(p[1])
		if i < len(alts) && alts[i] != nil {
			parts[i] += "," + formatCoord(*alts[i])
		}
	}
	return strings.Join(parts, " ")
}

// kmlStyles maps features to shared <Style> blocks derived from the dataset symbology.
type kmlStyles struct {
	byKey  map[string]string
	field  string
	blocks []string
}

const kmlDefaultStyle = "style-default"

func newKMLStyles(s dataset.Style) *kmlStyles {
	ks := &kmlStyles{byKey: map[string]string{}}
	ks.blocks = append(ks.blocks, kmlStyleBlock(kmlDefaultStyle, s.ColorFor(geo.Properties{}), s))

	sym := s.Symbology
	if sym == nil || sym.Kind != dataset.SymbologyCategorical {
		return ks
	}
	ks.field = sym.Field
	keys := make([]string, 0, len(sym.Categories))
	for k := range sym.Categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		id := fmt.Sprintf("style-%d", i+1)
		ks.byKey[k] = id
		ks.blocks = append(ks.blocks, kmlStyleBlock(id, sym.Categories[k], s))
	}
	return ks
}

func (ks *kmlStyles) id(f *geo.Feature) string {
	if ks.field == "" {
		return kmlDefaultStyle
	}
	if v, ok := f.Properties.Get(ks.field); ok && v != nil {
		if id, ok := ks.byKey[dataset.CategoryKey(v)]; ok {
			return id
		}
	}
	return kmlDefaultStyle
}

func kmlStyleBlock(id, hex string, s dataset.Style) string {
	line := kmlColor(hex, 1)
	fill := kmlColor(hex, s.FillOpacity)
	weight := s.Weight
	if weight <= 0 {
		weight = dataset.DefaultStyle().Weight
	}
	return fmt.Sprintf(
		"<Style id=\"%s\"><IconStyle><color>%s</color></IconStyle>"+
			"<LineStyle><color>%s</color><width>%s</width></LineStyle>"+
			"<PolyStyle><color>%s</color></PolyStyle></Style>\n",
		id, line, line, strconv.FormatFloat(weight, 'f', -1, 64), fill)
}

// kmlColor converts "#rrggbb" and an opacity to KML's aabbggrr notation.
func kmlColor(hex string, opacity float64) string {
	c := render.ParseColor(hex)
	a := uint8(clamp(opacity, 0, 1)*255 + 0.5)
	return fmt.Sprintf("%02x%02x%02x%02x", a, c.B, c.G, c.R)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
