package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
)

func encodeGPX(_ *Exporter, r *request) ([]byte, error) {
	var wpts, rtes, trks strings.Builder
	dropped := 0

	for i, f := range r.fc.Features {
		name := featureName(f, r.cfg.NameField, i)
		desc := gpxDescription(f)
		added := 0
		alts := elevations(f)
		parts := []orb.Geometry{f.Geometry}
		if c, ok := f.Geometry.(orb.Collection); ok {
			parts = geo.Flatten(c)
		}
		for _, g := range parts {
			switch g := g.(type) {
			case orb.Point:
				writeWaypoint(&wpts, g, firstAlt(alts.take(1)), name, desc, f)
				added++
			case orb.MultiPoint:
				for j, p := range g {
					writeWaypoint(&wpts, p, firstAlt(alts.take(1)), fmt.Sprintf("%s-%d", name, j+1), desc, f)
					added++
				}
			case orb.LineString:
				if writeRoute(&rtes, name, desc, g, alts.take(len(g))) {
					added++
				}
			case orb.MultiLineString:
				z := make([][]*float64, len(g))
				for j, ls := range g {
					z[j] = alts.take(len(ls))
				}
				if writeTrack(&trks, name, desc, g, z) {
					added++
				}
			case orb.Polygon:
				if len(g) == 0 {
					break
				}
				outer, z := outerRing(g, alts)
				if writeTrack(&trks, name, desc, []orb.LineString{outer}, [][]*float64{z}) {
					added++
				}
			case orb.MultiPolygon:
				var (
					outers []orb.LineString
					z      [][]*float64
				)
				for _, p := range g {
					if len(p) > 0 {
						outer, oz := outerRing(p, alts)
						outers = append(outers, outer)
						z = append(z, oz)
					}
				}
				if writeTrack(&trks, name, desc, outers, z) {
					added++
				}
			}
		}
		if added == 0 {
			dropped++
		}
	}
	if dropped > 0 {
		r.warn("%d feature(s) without GPX-encodable geometry skipped", dropped)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<gpx version="1.1" creator="geoconv" xmlns="http://www.topografix.com/GPX/1/1">` + "\n")
	fmt.Fprintf(&b, "<metadata><name>%s</name><desc>%s</desc><time>%s</time></metadata>\n",
		escapeXML(r.fc.Metadata.Label),
		escapeXML(fmt.Sprintf("Exported from %s (%d features)", r.fc.Metadata.SourceKind, len(r.fc.Features))),
		r.now.Format(time.RFC3339))
	b.WriteString(wpts.String())
	b.WriteString(rtes.String())
	b.WriteString(trks.String())
	b.WriteString("</gpx>\n")

	return []byte(b.String()), nil
}

// gpxDescription renders properties as "key: value" pairs. Altitudes are
// written as <ele> instead.
func gpxDescription(f *geo.Feature) string {
	parts := make([]string, 0, f.Properties.Len())
	for _, k := range f.Properties.Keys() {
		v, _ := f.Properties.Get(k)
		if v == nil || k == geo.ElevationKey {
			continue
		}
		parts = append(parts, k+": "+cellValue(v))
	}
	return strings.Join(parts, ", ")
}

func writeWaypoint(b *strings.Builder, p orb.Point, ele *float64, name, desc string, f *geo.Feature) {
	fmt.Fprintf(b, `<wpt lat="%s" lon="%s">`, formatCoord(p[1]), formatCoord(p[0]))
	if ele != nil {
		fmt.Fprintf(b, "<ele>%s</ele>", formatCoord(*ele))
	}
	if t := gpxTime(f); t != "" {
		fmt.Fprintf(b, "<time>%s</time>", t)
	}
	fmt.Fprintf(b, "<name>%s</name>", escapeXML(name))
	if desc != "" {
		fmt.Fprintf(b, "<desc>%s</desc>", escapeXML(desc))
	}
	b.WriteString("</wpt>\n")
}

// writeTrack emits one <trk> with a <trkseg> per line; lines with fewer than
// two points are skipped. alts[i] holds the altitudes of lines[i] or is nil.
func writeTrack(b *strings.Builder, name, desc string, lines []orb.LineString, alts [][]*float64) bool {
	var segs strings.Builder
	for i, ls := range lines {
		if len(ls) < 2 {
			continue
		}
		var z []*float64
		if i < len(alts) {
			z = alts[i]
		}
		segs.WriteString("<trkseg>")
		writeGPXPoints(&segs, "trkpt", ls, z)
		segs.WriteString("</trkseg>")
	}
	if segs.Len() == 0 {
		return false
	}
	fmt.Fprintf(b, "<trk><name>%s</name>", escapeXML(name))
	if desc != "" {
		fmt.Fprintf(b, "<desc>%s</desc>", escapeXML(desc))
	}
	b.WriteString(segs.String())
	b.WriteString("</trk>\n")
	return true
}

// writeRoute emits a line as one <rte>, reporting false for fewer than two points.
func writeRoute(b *strings.Builder, name, desc string, ls orb.LineString, alts []*float64) bool {
	if len(ls) < 2 {
		return false
	}
	fmt.Fprintf(b, "<rte><name>%s</name>", escapeXML(name))
	if desc != "" {
		fmt.Fprintf(b, "<desc>%s</desc>", escapeXML(desc))
	}
	writeGPXPoints(b, "rtept", ls, alts)
	b.WriteString("</rte>\n")
	return true
}

func writeGPXPoints(b *strings.Builder, tag string, ls orb.LineString, alts []*float64) {
	for i, p := range ls {
		fmt.Fprintf(b, `<%s lat="%s" lon="%s"`, tag, formatCoord(p[1]), formatCoord(p[0]))
		if i < len(alts) && alts[i] != nil {
			fmt.Fprintf(b, "><ele>%s</ele></%s>", formatCoord(*alts[i]), tag)
		} else {
			b.WriteString("/>")
		}
	}
}

// outerRing returns the outer ring of p as a line with its altitudes and
// skips the altitudes of the holes.
func outerRing(p orb.Polygon, alts *altCursor) (orb.LineString, []*float64) {
	var z []*float64
	for i, r := range p {
		if a := alts.take(len(r)); i == 0 {
			z = a
		}
	}
	return orb.LineString(p[0]), z
}

func firstAlt(a []*float64) *float64 {
	if len(a) == 0 {
		return nil
	}
	return a[0]
}

// gpxTime returns a waypoint time from a "time" or "timestamp" property in RFC 3339.
func gpxTime(f *geo.Feature) string {
	for _, key := range []string{"time", "timestamp"} {
		v, ok := f.Properties.Get(key)
		if !ok {
			continue
		}
		if ms, ok := geo.TimeValue(v); ok {
			return geo.FormatTime(ms)
		}
	}
	return ""
}
