package ingest

import (
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

var geometryTypes = map[string]bool{
	"Point": true, "MultiPoint": true, "LineString": true, "MultiLineString": true,
	"Polygon": true, "MultiPolygon": true, "GeometryCollection": true,
}

// ParseGeoJSON accepts a FeatureCollection, a bare Feature or a bare Geometry.
func ParseGeoJSON(label string, data []byte) (*geo.FeatureCollection, error) {
	if !gjson.ValidBytes(data) {
		return nil, geo.Errorf(geo.KindDecode, "invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, geo.Errorf(geo.KindInputShape, "top-level JSON value is not an object")
	}

	fc := geo.NewFeatureCollection(label, geo.SourceGeoJSON)
	typ := root.Get("type").String()
	switch {
	case typ == "FeatureCollection":
		features := root.Get("features")
		if !features.IsArray() {
			return nil, geo.Errorf(geo.KindInputShape, "FeatureCollection.features is not an array")
		}
		i := 0
		features.ForEach(func(_, v gjson.Result) bool {
			f, err := decodeFeature(v)
			if err != nil {
				fc.Metadata.Drop(i, err)
			} else {
				fc.Append(f)
			}
			i++
			return true
		})
		if fc.Metadata.Dropped > 0 {
			fc.Metadata.Warn("%d feature(s) without a decodable geometry dropped", fc.Metadata.Dropped)
		}
	case typ == "Feature":
		f, err := decodeFeature(root)
		if err != nil {
			return nil, err
		}
		fc.Append(f)
	case geometryTypes[typ]:
		g, err := geojson.UnmarshalGeometry([]byte(root.Raw))
		if err != nil {
			return nil, geo.WrapError(geo.KindDecode, err, "decode geometry")
		}
		fc.Append(geo.NewFeature(g.Geometry()))
	default:
		return nil, geo.Errorf(geo.KindInputShape, "unsupported GeoJSON type %q", typ)
	}

	return fc, nil
}

func decodeFeature(v gjson.Result) (*geo.Feature, error) {
	if !v.IsObject() {
		return nil, geo.Errorf(geo.KindInputShape, "feature is not an object")
	}
	g := v.Get("geometry")
	if !g.IsObject() {
		return nil, geo.Errorf(geo.KindCoordinateInvalid, "feature has no geometry")
	}
	geom, err := geojson.UnmarshalGeometry([]byte(g.Raw))
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "decode geometry")
	}
	if geom.Geometry() == nil {
		return nil, geo.Errorf(geo.KindDecode, "unsupported geometry type %q", g.Get("type").String())
	}

	f := &geo.Feature{
		Geometry:   geom.Geometry(),
		Properties: geo.PropertiesFromJSON(v.Get("properties")),
	}
	if id := v.Get("id"); id.Exists() {
		f.ID = id.Value()
	}
	return f, nil
}
