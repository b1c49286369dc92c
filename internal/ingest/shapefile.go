package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// ShapefileLayer is one .shp/.dbf pair with its optional projection.
type ShapefileLayer struct {
	Name string
	SHP  []byte
	DBF  []byte
	PRJ  []byte
}

// ParseShapefileZip locates every layer in a zip and merges them in entry order.
func ParseShapefileZip(label string, data []byte) (*geo.FeatureCollection, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "open shapefile zip")
	}

	type parts struct {
		name          string
		shp, dbf, prj *zip.File
	}
	var order []*parts
	byStem := make(map[string]*parts)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		ext := strings.ToLower(path.Ext(f.Name))
		key := strings.ToLower(strings.TrimSuffix(f.Name, path.Ext(f.Name)))
		p, ok := byStem[key]
		if !ok {
			p = &parts{name: path.Base(strings.TrimSuffix(f.Name, path.Ext(f.Name)))}
			byStem[key] = p
			order = append(order, p)
		}
		switch ext {
		case ".shp":
			p.shp = f
		case ".dbf":
			p.dbf = f
		case ".prj":
			p.prj = f
		}
	}

	var layers []ShapefileLayer
	var incomplete []string
	for _, p := range order {
		if p.shp == nil && p.dbf == nil {
			continue
		}
		if p.shp == nil || p.dbf == nil {
			incomplete = append(incomplete, p.name)
			continue
		}
		layer := ShapefileLayer{Name: p.name}
		if layer.SHP, err = readZipFile(p.shp); err != nil {
			return nil, geo.WrapError(geo.KindDecode, err, "read "+p.shp.Name)
		}
		if layer.DBF, err = readZipFile(p.dbf); err != nil {
			return nil, geo.WrapError(geo.KindDecode, err, "read "+p.dbf.Name)
		}
		if p.prj != nil {
			if layer.PRJ, err = readZipFile(p.prj); err != nil {
				return nil, geo.WrapError(geo.KindDecode, err, "read "+p.prj.Name)
			}
		}
		layers = append(layers, layer)
	}

	if len(layers) == 0 {
		if len(incomplete) > 0 {
			return nil, geo.Errorf(geo.KindIncomplete, "incomplete shapefile set %s: missing .shp or .dbf", strings.Join(incomplete, ", "))
		}
		return nil, geo.Errorf(geo.KindDecode, "zip contains no shapefile")
	}

	fc, err := ParseShapefileLayers(label, layers)
	if err != nil {
		return nil, err
	}
	for _, name := range incomplete {
		fc.Metadata.Warn("layer %s skipped: missing .shp or .dbf", name)
	}
	return fc, nil
}

// ParseShapefileLayers decodes layers and merges their features, preserving order.
func ParseShapefileLayers(label string, layers []ShapefileLayer) (*geo.FeatureCollection, error) {
	fc := geo.NewFeatureCollection(label, geo.SourceShapefile)
	for _, l := range layers {
		if err := readLayer(fc, l); err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.Name, err)
		}
		fc.Metadata.Layers = append(fc.Metadata.Layers, l.Name)
		if len(l.PRJ) > 0 && !isGeographicPRJ(string(l.PRJ)) {
			fc.Metadata.Warn("layer %s uses a projected CRS; coordinates are not reprojected", l.Name)
		}
	}
	if fc.Metadata.Dropped > 0 {
		fc.Metadata.Warn("%d shape record(s) without usable geometry dropped", fc.Metadata.Dropped)
	}
	return fc, nil
}

func readLayer(fc *geo.FeatureCollection, l ShapefileLayer) error {
	r := shp.SequentialReaderFromExt(
		io.NopCloser(bytes.NewReader(l.SHP)),
		io.NopCloser(bytes.NewReader(l.DBF)),
	)
	defer func() { _ = r.Close() }()

	index := len(fc.Features) + fc.Metadata.Dropped
	for r.Next() {
		_, shape := r.Shape()
		fields := r.Fields()

		props := geo.NewProperties(len(fields))
		for i, field := range fields {
			props.Set(field.String(), dbfValue(field.Fieldtype, r.Attribute(i)))
		}

		g, alts, err := shapeGeometry(shape)
		if err != nil {
			fc.Metadata.Drop(index, err)
		} else {
			if ele := geo.ShapeElevation(g, alts); ele != nil {
				props.Set(geo.ElevationKey, ele)
			}
			fc.Append(&geo.Feature{Geometry: g, Properties: props})
		}
		index++
	}
	if err := r.Err(); err != nil {
		return geo.WrapError(geo.KindDecode, err, "read shapefile")
	}
	return nil
}

// dbfValue types a DBF cell by field type: N/F numbers, L booleans, D dates as YYYY-MM-DD.
func dbfValue(fieldType byte, raw string) any {
	s := strings.TrimSpace(strings.Trim(raw, "\x00"))
	switch fieldType {
	case 'N', 'F':
		if s == "" {
			return nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
		return nil
	case 'L':
		switch s {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		}
		return nil
	case 'D':
		if len(s) == 8 {
			return s[:4] + "-" + s[4:6] + "-" + s[6:]
		}
		if s == "" {
			return nil
		}
		return s
	}
	return s
}

// shapeGeometry converts a shape, returning Z values in vertex order for
// the Z shape types.
func shapeGeometry(s shp.Shape) (orb.Geometry, []*float64, error) {
	switch v := s.(type) {
	case *shp.Point:
		return orb.Point{v.X, v.Y}, nil, nil
	case *shp.PointZ:
		z := v.Z
		return orb.Point{v.X, v.Y}, []*float64{&z}, nil
	case *shp.PointM:
		return orb.Point{v.X, v.Y}, nil, nil
	case *shp.MultiPoint:
		return shpMultiPoint(v.Points), nil, nil
	case *shp.MultiPointZ:
		return shpMultiPoint(v.Points), zValues(v.ZArray, 0, len(v.Points)), nil
	case *shp.MultiPointM:
		return shpMultiPoint(v.Points), nil, nil
	case *shp.PolyLine:
		g, _ := shpLines(v.Parts, v.Points, nil)
		return g, nil, nil
	case *shp.PolyLineZ:
		g, alts := shpLines(v.Parts, v.Points, v.ZArray)
		return g, alts, nil
	case *shp.PolyLineM:
		g, _ := shpLines(v.Parts, v.Points, nil)
		return g, nil, nil
	case *shp.Polygon:
		g, _ := shpPolygons(v.Parts, v.Points, nil)
		return g, nil, nil
	case *shp.PolygonZ:
		g, alts := shpPolygons(v.Parts, v.Points, v.ZArray)
		return g, alts, nil
	case *shp.PolygonM:
		g, _ := shpPolygons(v.Parts, v.Points, nil)
		return g, nil, nil
	case *shp.Null, nil:
		return nil, nil, geo.Errorf(geo.KindCoordinateInvalid, "null shape")
	}
	return nil, nil, geo.Errorf(geo.KindUnsupported, "unsupported shape type %T", s)
}

func shpMultiPoint(points []shp.Point) orb.MultiPoint {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = orb.Point{p.X, p.Y}
	}
	return mp
}

// zValues returns z[start:end] as altitudes, nil when the array is short.
func zValues(z []float64, start, end int) []*float64 {
	if start < 0 || end > len(z) || start > end {
		return nil
	}
	out := make([]*float64, 0, end-start)
	for i := start; i < end; i++ {
		v := z[i]
		out = append(out, &v)
	}
	return out
}

// shpParts splits points by part start offsets, with the matching Z values
// when z is given.
func shpParts(parts []int32, points []shp.Point, z []float64) ([][]orb.Point, [][]*float64) {
	out := make([][]orb.Point, 0, len(parts))
	alts := make([][]*float64, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		seq := make([]orb.Point, 0, end-start)
		for _, p := range points[start:end] {
			seq = append(seq, orb.Point{p.X, p.Y})
		}
		out = append(out, seq)

		partAlts := zValues(z, int(start), int(end))
		if partAlts == nil {
			partAlts = make([]*float64, len(seq))
		}
		alts = append(alts, partAlts)
	}
	return out, alts
}

func shpLines(parts []int32, points []shp.Point, z []float64) (orb.Geometry, []*float64) {
	seqs, partAlts := shpParts(parts, points, z)
	var alts []*float64
	for _, a := range partAlts {
		alts = append(alts, a...)
	}
	if len(seqs) == 1 {
		return orb.LineString(seqs[0]), alts
	}
	mls := make(orb.MultiLineString, len(seqs))
	for i, s := range seqs {
		mls[i] = s
	}
	return mls, alts
}

// shpPolygons groups rings into polygons: clockwise rings are outer shells,
// counter-clockwise rings are holes of the preceding shell. Altitudes follow
// the regrouped vertex order.
func shpPolygons(parts []int32, points []shp.Point, z []float64) (orb.Geometry, []*float64) {
	var (
		mp    orb.MultiPolygon
		rings [][][]*float64
	)
	seqs, partAlts := shpParts(parts, points, z)
	for i, seq := range seqs {
		ring := orb.Ring(seq)
		ringAlts := partAlts[i]
		if len(ring) > 0 && !ring.Closed() {
			ring = append(ring, ring[0])
			ringAlts = append(ringAlts, ringAlts[0])
		}
		if ring.Orientation() == orb.CCW && len(mp) > 0 {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
			rings[len(rings)-1] = append(rings[len(rings)-1], ringAlts)
			continue
		}
		mp = append(mp, orb.Polygon{ring})
		rings = append(rings, [][]*float64{ringAlts})
	}

	var alts []*float64
	for _, poly := range rings {
		for _, r := range poly {
			alts = append(alts, r...)
		}
	}
	if len(mp) == 1 {
		return mp[0], alts
	}
	return mp, alts
}

// isGeographicPRJ reports whether a .prj WKT describes a geographic (lon/lat) CRS.
func isGeographicPRJ(prj string) bool {
	up := strings.ToUpper(strings.TrimSpace(prj))
	return !strings.HasPrefix(up, "PROJCS") && !strings.HasPrefix(up, "PROJCRS") &&
		(strings.HasPrefix(up, "GEOGCS") || strings.HasPrefix(up, "GEOGCRS"))
}

func parseShapefileDataset(d *dataset.Dataset, _ Options) (*geo.FeatureCollection, *geo.Raster, error) {
	if len(d.Files) == 1 && dataset.Ext(d.Files[0].Name()) == "zip" {
		data, err := d.Bytes()
		if err != nil {
			return nil, nil, err
		}
		fc, err := ParseShapefileZip(d.Label, data)
		return fc, nil, err
	}

	layer := ShapefileLayer{Name: d.Label}
	for ext, dst := range map[string]*[]byte{"shp": &layer.SHP, "dbf": &layer.DBF, "prj": &layer.PRJ} {
		src, ok := d.File(ext)
		if !ok {
			continue
		}
		data, err := src.Bytes()
		if err != nil {
			return nil, nil, geo.WrapError(geo.KindDecode, err, "read "+src.Name())
		}
		*dst = data
	}
	if layer.SHP == nil || layer.DBF == nil {
		return nil, nil, geo.Errorf(geo.KindIncomplete, "incomplete shapefile set %s: missing .shp or .dbf", d.Label)
	}

	fc, err := ParseShapefileLayers(d.Label, []ShapefileLayer{layer})
	return fc, nil, err
}
