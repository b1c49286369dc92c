package export

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// WGS84PRJ is the .prj written beside every exported layer.
const WGS84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

const (
	dbfNameLength   = 10
	dbfStringLength = 254
	dbfFloatLength  = 24
	dbfFloatDecimal = 8
)

// shpFamily is one output layer: shapefiles hold a single shape type each.
type shpFamily struct {
	name     string
	shape    shp.ShapeType
	shapes   []shp.Shape
	features []*geo.Feature
}

func encodeShapefile(_ *Exporter, r *request) ([]byte, error) {
	if len(r.fc.Features) == 0 {
		return nil, geo.Errorf(geo.KindInputShape, "shapefile export needs at least one feature")
	}

	families := []*shpFamily{
		{name: "points", shape: shp.POINT},
		{name: "multipoints", shape: shp.MULTIPOINT},
		{name: "lines", shape: shp.POLYLINE},
		{name: "polygons", shape: shp.POLYGON},
	}
	dropped := 0
	for _, f := range r.fc.Features {
		parts := []orb.Geometry{f.Geometry}
		if c, ok := f.Geometry.(orb.Collection); ok {
			parts = geo.Flatten(c)
		}
		added := 0
		for _, g := range parts {
			fam, shape := shapeFor(g)
			if shape == nil {
				continue
			}
			families[fam].shapes = append(families[fam].shapes, shape)
			families[fam].features = append(families[fam].features, f)
			added++
		}
		if added == 0 {
			dropped++
		}
	}
	if dropped > 0 {
		r.warn("%d feature(s) without shapefile-encodable geometry skipped", dropped)
	}

	var used []*shpFamily
	for _, fam := range families {
		if len(fam.shapes) > 0 {
			used = append(used, fam)
		}
	}
	if len(used) == 0 {
		return nil, geo.Errorf(geo.KindInputShape, "no feature has shapefile-encodable geometry")
	}

	dir, err := os.MkdirTemp("", "geoconv-shp-*")
	if err != nil {
		return nil, geo.WrapError(geo.KindDownstreamIO, err, "create temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	stem := Sanitize(r.fc.Metadata.Label)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, fam := range used {
		layer := stem
		if len(used) > 1 {
			layer = stem + "_" + fam.name
		}
		if err := writeShapefileLayer(dir, layer, fam, r); err != nil {
			return nil, err
		}
		for _, ext := range []string{".shp", ".shx", ".dbf"} {
			data, err := os.ReadFile(filepath.Join(dir, layer+ext))
			if err != nil {
				return nil, geo.WrapError(geo.KindDownstreamIO, err, "read "+layer+ext)
			}
			if err := addZipEntry(zw, layer+ext, data); err != nil {
				return nil, err
			}
		}
		if err := addZipEntry(zw, layer+".prj", []byte(WGS84PRJ)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, geo.WrapError(geo.KindDownstreamIO, err, "close shapefile zip")
	}
	return buf.Bytes(), nil
}

func addZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return geo.WrapError(geo.KindDownstreamIO, err, "create "+name)
	}
	if _, err := w.Write(data); err != nil {
		return geo.WrapError(geo.KindDownstreamIO, err, "write "+name)
	}
	return nil
}

// shapeFor converts g to a shape and the index of its family; nil when g
// cannot be written.
func shapeFor(g orb.Geometry) (int, shp.Shape) {
	switch g := g.(type) {
	case orb.Point:
		return 0, &shp.Point{X: g[0], Y: g[1]}
	case orb.MultiPoint:
		if len(g) == 0 {
			return 0, nil
		}
		pts := shpPoints(g)
		return 1, &shp.MultiPoint{Box: shp.BBoxFromPoints(pts), NumPoints: int32(len(pts)), Points: pts}
	case orb.LineString:
		return shapeFor(orb.MultiLineString{g})
	case orb.MultiLineString:
		var parts [][]shp.Point
		for _, ls := range g {
			if len(ls) >= 2 {
				parts = append(parts, shpPoints(ls))
			}
		}
		if len(parts) == 0 {
			return 2, nil
		}
		return 2, shp.NewPolyLine(parts)
	case orb.Ring:
		return shapeFor(orb.Polygon{g})
	case orb.Polygon:
		return shapeFor(orb.MultiPolygon{g})
	case orb.MultiPolygon:
		var rings [][]shp.Point
		for _, p := range g {
			for i, ring := range p {
				if r := orientRing(ring, i == 0); r != nil {
					rings = append(rings, shpPoints(r))
				} else if i == 0 {
					break
				}
			}
		}
		if len(rings) == 0 {
			return 3, nil
		}
		poly := shp.Polygon(*shp.NewPolyLine(rings))
		return 3, &poly
	case orb.Bound:
		return shapeFor(g.ToPolygon())
	}
	return 0, nil
}

// orientRing closes ring and orients it clockwise for shells and
// counter-clockwise for holes. Rings shorter than four positions yield nil.
func orientRing(ring orb.Ring, outer bool) orb.Ring {
	r := append(orb.Ring(nil), ring...)
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	if len(r) < 4 {
		return nil
	}
	want := orb.CCW
	if outer {
		want = orb.CW
	}
	if r.Orientation() != want {
		r.Reverse()
	}
	return r
}

func shpPoints(pts []orb.Point) []shp.Point {
	out := make([]shp.Point, len(pts))
	for i, p := range pts {
		out[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return out
}

// dbfColumn is one attribute column of a layer.
type dbfColumn struct {
	key   string
	field shp.Field
	kind  byte // 'C', 'F' or 'L'
}

func writeShapefileLayer(dir, layer string, fam *shpFamily, r *request) error {
	w, err := shp.Create(filepath.Join(dir, layer+".shp"), fam.shape)
	if err != nil {
		return geo.WrapError(geo.KindDownstreamIO, err, "create "+layer+".shp")
	}

	columns := dbfColumns(fam.features)
	fields := make([]shp.Field, len(columns))
	for i, c := range columns {
		fields[i] = c.field
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return geo.WrapError(geo.KindDownstreamIO, err, "write "+layer+".dbf header")
	}

	skipped := 0
	for i, shape := range fam.shapes {
		row := int(w.Write(shape))
		f := fam.features[i]
		for col, c := range columns {
			v, ok := dbfCell(c, f, i)
			if !ok {
				continue
			}
			if err := w.WriteAttribute(row, col, v); err != nil {
				skipped++
			}
		}
	}
	w.Close()

	if skipped > 0 {
		r.warn("%d attribute value(s) did not fit layer %s and were left blank", skipped, layer)
	}
	return nil
}

// dbfColumns derives typed DBF fields from the property keys of features.
// Names are cut to ten bytes and de-duplicated. A layer without properties
// gets a sequential "fid" column.
func dbfColumns(features []*geo.Feature) []dbfColumn {
	keys := headerKeys(features)
	if len(keys) == 0 {
		return []dbfColumn{{key: "", kind: 'F', field: shp.NumberField("fid", 10)}}
	}

	taken := make(map[string]bool)
	columns := make([]dbfColumn, 0, len(keys))
	for _, k := range keys {
		name := uniqueFieldName(k, taken)
		kind, width := columnKind(k, features)
		var field shp.Field
		switch kind {
		case 'F':
			field = shp.FloatField(name, dbfFloatLength, dbfFloatDecimal)
		case 'L':
			field = shp.StringField(name, 1)
			field.Fieldtype = 'L'
		default:
			field = shp.StringField(name, uint8(width))
		}
		columns = append(columns, dbfColumn{key: k, field: field, kind: kind})
	}
	return columns
}

// columnKind returns 'F' when every non-null value is a number, 'L' when every
// one is a boolean, otherwise 'C' with the widest rendered value as width.
func columnKind(key string, features []*geo.Feature) (byte, int) {
	numbers, bools, total, width := 0, 0, 0, 1
	for _, f := range features {
		v, ok := f.Properties.Get(key)
		if !ok || v == nil {
			continue
		}
		total++
		switch v.(type) {
		case float64:
			numbers++
		case bool:
			bools++
		}
		width = max(width, len(cellValue(v)))
	}
	switch {
	case total > 0 && numbers == total:
		return 'F', dbfFloatLength
	case total > 0 && bools == total:
		return 'L', 1
	}
	return 'C', min(width, dbfStringLength)
}

func dbfCell(c dbfColumn, f *geo.Feature, index int) (any, bool) {
	if c.key == "" {
		return index + 1, true
	}
	v, ok := f.Properties.Get(c.key)
	if !ok || v == nil {
		return nil, false
	}
	switch c.kind {
	case 'F':
		return v.(float64), true
	case 'L':
		if v.(bool) {
			return "T", true
		}
		return "F", true
	}
	return truncateBytes(cellValue(v), int(c.field.Size)), true
}

func uniqueFieldName(key string, taken map[string]bool) string {
	base := truncateBytes(key, dbfNameLength)
	if base == "" {
		base = "field"
	}
	name := base
	for n := 1; taken[name]; n++ {
		suffix := "_" + strconv.Itoa(n)
		name = truncateBytes(base, dbfNameLength-len(suffix)) + suffix
	}
	taken[name] = true
	return name
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
