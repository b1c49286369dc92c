package ingest

import (
	"strconv"
	"strings"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
)

// Placemark children that are never copied into properties.
var kmlSkipped = map[string]bool{
	"Point": true, "LineString": true, "LinearRing": true, "Polygon": true,
	"MultiGeometry": true, "Track": true, "MultiTrack": true, "Model": true,
	"ExtendedData": true, "TimeStamp": true, "TimeSpan": true,
	"Style": true, "StyleMap": true, "LookAt": true, "Camera": true, "Region": true,
}

// ParseKML converts every Placemark, at any nesting depth, to a feature.
func ParseKML(label string, data []byte) (*geo.FeatureCollection, error) {
	root, err := parseXMLTree(data)
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "parse KML")
	}
	if root.name() == "parsererror" {
		return nil, geo.Errorf(geo.KindDecode, "parse KML: %s", root.text())
	}

	fc := geo.NewFeatureCollection(label, geo.SourceKML)
	index := 0
	root.walk(func(n *xmlNode) bool {
		if n.name() != "Placemark" {
			return true
		}
		f, err := placemarkFeature(n)
		if err != nil {
			fc.Metadata.Drop(index, err)
		} else {
			fc.Append(f)
		}
		index++
		return false
	})
	if fc.Metadata.Dropped > 0 {
		fc.Metadata.Warn("%d placemark(s) without usable geometry dropped", fc.Metadata.Dropped)
	}

	return fc, nil
}

func placemarkFeature(pm *xmlNode) (*geo.Feature, error) {
	props := geo.NewProperties(8)
	if id := pm.attr("id"); id != "" {
		props.Set("id", id)
	}

	var geom orb.Geometry
	var geomErr error
	for i := range pm.Nodes {
		c := &pm.Nodes[i]
		switch c.name() {
		case "TimeStamp":
			props.Set("timestamp", c.childText("when"))
		case "TimeSpan":
			if v := c.childText("begin"); v != "" {
				props.Set("begin", v)
			}
			if v := c.childText("end"); v != "" {
				props.Set("end", v)
			}
		case "ExtendedData":
			extendedData(c, &props)
		default:
			if kmlSkipped[c.name()] {
				if geom == nil && geomErr == nil {
					geom, geomErr = kmlGeometry(c, &props)
				}
				continue
			}
			if c.isLeaf() {
				props.Set(c.name(), c.text())
			}
		}
	}

	if geomErr != nil {
		return nil, geomErr
	}
	if geom == nil {
		return nil, geo.Errorf(geo.KindCoordinateInvalid, "placemark has no geometry")
	}
	return &geo.Feature{Geometry: geom, Properties: props}, nil
}

func extendedData(ed *xmlNode, props *geo.Properties) {
	for _, d := range ed.children("Data") {
		name := d.attr("name")
		if name == "" {
			continue
		}
		props.Set(name, d.childText("value"))
	}
	for _, sd := range ed.children("SchemaData") {
		for _, s := range sd.children("SimpleData") {
			if name := s.attr("name"); name != "" {
				props.Set(name, s.text())
			}
		}
	}
}

// kmlGeometry decodes a geometry element. Non-geometry elements return (nil, nil).
func kmlGeometry(n *xmlNode, props *geo.Properties) (orb.Geometry, error) {
	switch n.name() {
	case "Point":
		pts, alts, err := kmlCoordinates(n.childText("coordinates"))
		if err != nil {
			return nil, err
		}
		if len(pts) == 0 {
			return nil, geo.Errorf(geo.KindCoordinateInvalid, "empty Point")
		}
		setElevation(props, pts[0], alts[:1])
		return pts[0], nil
	case "LineString":
		pts, alts, err := kmlCoordinates(n.childText("coordinates"))
		if err != nil {
			return nil, err
		}
		setElevation(props, orb.LineString(pts), alts)
		return orb.LineString(pts), nil
	case "LinearRing":
		pts, alts, err := kmlCoordinates(n.childText("coordinates"))
		if err != nil {
			return nil, err
		}
		poly := orb.Polygon{orb.Ring(pts)}
		setElevation(props, poly, alts)
		return poly, nil
	case "Polygon":
		poly, alts, err := kmlPolygon(n)
		if err != nil {
			return nil, err
		}
		setElevation(props, poly, alts)
		return poly, nil
	case "MultiGeometry":
		var c orb.Collection
		for i := range n.Nodes {
			g, err := kmlGeometry(&n.Nodes[i], nil)
			if err != nil {
				return nil, err
			}
			if g != nil {
				c = append(c, g)
			}
		}
		return c, nil
	case "Track":
		ls, times, alts, err := kmlTrack(n)
		if err != nil {
			return nil, err
		}
		if props != nil && len(times) > 0 {
			props.Set("coordTimes", times)
		}
		setElevation(props, ls, alts)
		return ls, nil
	case "MultiTrack":
		var (
			mls     orb.MultiLineString
			all     []any
			allAlts []*float64
		)
		for _, tr := range n.children("Track") {
			ls, times, alts, err := kmlTrack(tr)
			if err != nil {
				return nil, err
			}
			mls = append(mls, ls)
			all = append(all, times)
			allAlts = append(allAlts, alts...)
		}
		if props != nil && len(all) > 0 {
			props.Set("coordTimes", all)
		}
		setElevation(props, mls, allAlts)
		return mls, nil
	}
	return nil, nil
}

// kmlPolygon returns the rings and their altitudes in vertex order.
func kmlPolygon(n *xmlNode) (orb.Polygon, []*float64, error) {
	var (
		poly orb.Polygon
		all  []*float64
	)
	outer := n.child("outerBoundaryIs")
	if outer == nil {
		return nil, nil, geo.Errorf(geo.KindCoordinateInvalid, "polygon without outerBoundaryIs")
	}
	for _, b := range append([]*xmlNode{outer}, n.children("innerBoundaryIs")...) {
		for _, lr := range b.children("LinearRing") {
			pts, alts, err := kmlCoordinates(lr.childText("coordinates"))
			if err != nil {
				return nil, nil, err
			}
			poly = append(poly, orb.Ring(pts))
			all = append(all, alts...)
		}
	}
	return poly, all, nil
}

// setElevation stores altitudes of a top-level geometry; nested members of a
// MultiGeometry pass nil props.
func setElevation(props *geo.Properties, g orb.Geometry, alts []*float64) {
	if props == nil {
		return
	}
	if ele := geo.ShapeElevation(g, alts); ele != nil {
		props.Set(geo.ElevationKey, ele)
	}
}

func kmlTrack(n *xmlNode) (orb.LineString, []any, []*float64, error) {
	var (
		ls   orb.LineString
		alts []*float64
	)
	for _, c := range n.children("coord") {
		fields := strings.Fields(c.text())
		if len(fields) < 2 {
			return nil, nil, nil, geo.Errorf(geo.KindCoordinateInvalid, "malformed gx:coord %q", c.text())
		}
		lon, err1 := strconv.ParseFloat(fields[0], 64)
		lat, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return nil, nil, nil, geo.Errorf(geo.KindCoordinateInvalid, "malformed gx:coord %q", c.text())
		}
		ls = append(ls, orb.Point{lon, lat})

		var alt *float64
		if len(fields) > 2 {
			if v, err := strconv.ParseFloat(fields[2], 64); err == nil {
				alt = &v
			}
		}
		alts = append(alts, alt)
	}
	var times []any
	for _, w := range n.children("when") {
		times = append(times, w.text())
	}
	return ls, times, alts, nil
}

// kmlCoordinates parses a KML coordinates text of "lon,lat[,alt]" tuples separated by whitespace.
func kmlCoordinates(text string) ([]orb.Point, []*float64, error) {
	text = collapseCommas(text)
	fields := strings.Fields(text)
	pts := make([]orb.Point, 0, len(fields))
	alts := make([]*float64, 0, len(fields))
	for _, tuple := range fields {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return nil, nil, geo.Errorf(geo.KindCoordinateInvalid, "malformed coordinate %q", tuple)
		}
		lon, err1 := strconv.ParseFloat(parts[0], 64)
		lat, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return nil, nil, geo.Errorf(geo.KindCoordinateInvalid, "malformed coordinate %q", tuple)
		}
		pts = append(pts, orb.Point{lon, lat})

		var alt *float64
		if len(parts) > 2 {
			if v, err := strconv.ParseFloat(parts[2], 64); err == nil {
				alt = &v
			}
		}
		alts = append(alts, alt)
	}
	return pts, alts, nil
}

// collapseCommas removes whitespace around commas so "1, 2" reads as one tuple.
func collapseCommas(s string) string {
	if !strings.Contains(s, ",") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	lastComma := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			pendingSpace = true
		case r == ',':
			b.WriteRune(',')
			pendingSpace = false
			lastComma = true
		default:
			if pendingSpace && !lastComma && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			pendingSpace = false
			lastComma = false
		}
	}
	return b.String()
}
