package ingest

import (
	"bytes"
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
	"golang.org/x/net/html/charset"
)

type gpxDoc struct {
	XMLName   xml.Name   `xml:"gpx"`
	Waypoints []gpxPoint `xml:"wpt"`
	Routes    []gpxRoute `xml:"rte"`
	Tracks    []gpxTrack `xml:"trk"`
}

type gpxPoint struct {
	Extensions *xmlNode `xml:"extensions"`
	Lat        string   `xml:"lat,attr"`
	Lon        string   `xml:"lon,attr"`
	Ele        string   `xml:"ele"`
	Time       string   `xml:"time"`
	Name       string   `xml:"name"`
	Desc       string   `xml:"desc"`
	Cmt        string   `xml:"cmt"`
	Sym        string   `xml:"sym"`
	Type       string   `xml:"type"`
}

type gpxRoute struct {
	Extensions *xmlNode   `xml:"extensions"`
	Name       string     `xml:"name"`
	Desc       string     `xml:"desc"`
	Cmt        string     `xml:"cmt"`
	Type       string     `xml:"type"`
	Points     []gpxPoint `xml:"rtept"`
}

type gpxTrack struct {
	Extensions *xmlNode     `xml:"extensions"`
	Name       string       `xml:"name"`
	Desc       string       `xml:"desc"`
	Cmt        string       `xml:"cmt"`
	Type       string       `xml:"type"`
	Segments   []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

// ParseGPX emits one feature per waypoint, route and track. Routes become
// LineStrings and tracks MultiLineStrings with one line per segment, however
// many segments they have.
func ParseGPX(label string, data []byte) (*geo.FeatureCollection, error) {
	var doc gpxDoc
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "parse GPX")
	}

	fc := geo.NewFeatureCollection(label, geo.SourceGPX)
	index := 0
	add := func(f *geo.Feature, err error) {
		if err != nil {
			fc.Metadata.Drop(index, err)
		} else {
			fc.Append(f)
		}
		index++
	}

	for _, w := range doc.Waypoints {
		add(gpxWaypoint(w))
	}
	for _, r := range doc.Routes {
		add(gpxRouteFeature(r))
	}
	for _, t := range doc.Tracks {
		add(gpxTrackFeature(t))
	}
	if fc.Metadata.Dropped > 0 {
		fc.Metadata.Warn("%d GPX element(s) with invalid coordinates dropped", fc.Metadata.Dropped)
	}

	return fc, nil
}

func gpxWaypoint(w gpxPoint) (*geo.Feature, error) {
	p, err := w.point()
	if err != nil {
		return nil, err
	}
	props := geo.NewProperties(8)
	setNonEmpty(&props, "name", w.Name)
	setNonEmpty(&props, "desc", w.Desc)
	setNonEmpty(&props, "cmt", w.Cmt)
	setNonEmpty(&props, "time", w.Time)
	if ele := w.elevation(); ele != nil {
		props.Set(geo.ElevationKey, *ele)
	}
	setNonEmpty(&props, "sym", w.Sym)
	setNonEmpty(&props, "type", w.Type)
	gpxExtensions(&props, w.Extensions)

	return &geo.Feature{Geometry: p, Properties: props}, nil
}

func gpxRouteFeature(r gpxRoute) (*geo.Feature, error) {
	ls, times, alts, err := gpxLine(r.Points)
	if err != nil {
		return nil, err
	}
	props := geo.NewProperties(7)
	setNonEmpty(&props, "name", r.Name)
	setNonEmpty(&props, "desc", r.Desc)
	setNonEmpty(&props, "cmt", r.Cmt)
	setNonEmpty(&props, "type", r.Type)
	if times != nil {
		props.Set("time", times[0])
		props.Set("coordTimes", times)
	}
	if ele := geo.ShapeElevation(ls, alts); ele != nil {
		props.Set(geo.ElevationKey, ele)
	}
	gpxExtensions(&props, r.Extensions)

	return &geo.Feature{Geometry: ls, Properties: props}, nil
}

// gpxTrackFeature keeps every track a MultiLineString; coordTimes holds one
// list per segment, null for a segment without times.
func gpxTrackFeature(t gpxTrack) (*geo.Feature, error) {
	var (
		mls      orb.MultiLineString
		segTimes []any
		alts     []*float64
		first    any
	)
	for _, seg := range t.Segments {
		if len(seg.Points) == 0 {
			continue
		}
		ls, times, segAlts, err := gpxLine(seg.Points)
		if err != nil {
			return nil, err
		}
		mls = append(mls, ls)
		alts = append(alts, segAlts...)
		if times != nil && first == nil {
			first = times[0]
		}
		if times != nil {
			segTimes = append(segTimes, times)
		} else {
			segTimes = append(segTimes, nil)
		}
	}

	if len(mls) == 0 {
		return nil, geo.Errorf(geo.KindCoordinateInvalid, "track without points")
	}

	props := geo.NewProperties(7)
	setNonEmpty(&props, "name", t.Name)
	setNonEmpty(&props, "desc", t.Desc)
	setNonEmpty(&props, "cmt", t.Cmt)
	setNonEmpty(&props, "type", t.Type)
	if first != nil {
		props.Set("time", first)
		props.Set("coordTimes", segTimes)
	}
	if ele := geo.ShapeElevation(mls, alts); ele != nil {
		props.Set(geo.ElevationKey, ele)
	}
	gpxExtensions(&props, t.Extensions)

	return &geo.Feature{Geometry: mls, Properties: props}, nil
}

// gpxLine returns the line, the per-point times when any point carries one,
// and the per-point elevations.
func gpxLine(points []gpxPoint) (orb.LineString, []any, []*float64, error) {
	ls := make(orb.LineString, 0, len(points))
	times := make([]any, 0, len(points))
	alts := make([]*float64, 0, len(points))
	hasTime := false
	for _, pt := range points {
		p, err := pt.point()
		if err != nil {
			return nil, nil, nil, err
		}
		ls = append(ls, p)
		alts = append(alts, pt.elevation())
		times = append(times, strings.TrimSpace(pt.Time))
		if pt.Time != "" {
			hasTime = true
		}
	}
	if !hasTime {
		times = nil
	}
	return ls, times, alts, nil
}

func (p gpxPoint) elevation() *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(p.Ele), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (p gpxPoint) point() (orb.Point, error) {
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, geo.Errorf(geo.KindCoordinateInvalid, "invalid GPX point lat=%q lon=%q", p.Lat, p.Lon)
	}
	return orb.Point{lon, lat}, nil
}

// gpxExtensions copies leaf extension elements as properties, keyed by local name.
func gpxExtensions(props *geo.Properties, ext *xmlNode) {
	if ext == nil {
		return
	}
	for i := range ext.Nodes {
		ext.Nodes[i].walk(func(n *xmlNode) bool {
			if n.isLeaf() && n.text() != "" {
				props.Set(n.name(), typedValue(n.text()))
			}
			return true
		})
	}
}

func setNonEmpty(props *geo.Properties, key, v string) {
	if v = strings.TrimSpace(v); v != "" {
		props.Set(key, v)
	}
}
