package ingest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// writeShapefile writes two clockwise squares with NAME and POP attributes
// and returns the .shp and .dbf bytes.
func writeShapefile(t *testing.T) (shpData, dbfData []byte) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "parcels.shp")

	w, err := shp.Create(base, shp.POLYGON)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SetFields([]shp.Field{
		shp.StringField("NAME", 20),
		shp.NumberField("POP", 10),
	}); err != nil {
		t.Fatal(err)
	}

	squares := []struct {
		name string
		x, y float64
		pop  int
	}{
		{"north", 0, 0, 1000},
		{"south", 10, 10, 250},
	}
	for _, sq := range squares {
		ring := []shp.Point{
			{X: sq.x, Y: sq.y}, {X: sq.x, Y: sq.y + 1}, {X: sq.x + 1, Y: sq.y + 1},
			{X: sq.x + 1, Y: sq.y}, {X: sq.x, Y: sq.y},
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		row := int(w.Write(&poly))
		if err := w.WriteAttribute(row, 0, sq.name); err != nil {
			t.Fatal(err)
		}
		if err := w.WriteAttribute(row, 1, sq.pop); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()

	if shpData, err = os.ReadFile(base); err != nil {
		t.Fatal(err)
	}
	if dbfData, err = os.ReadFile(filepath.Join(filepath.Dir(base), "parcels.dbf")); err != nil {
		t.Fatal(err)
	}
	return shpData, dbfData
}

func TestParseShapefileZip(t *testing.T) {
	shpData, dbfData := writeShapefile(t)
	data := buildZip(t,
		zipEntry{"parcels.shp", shpData},
		zipEntry{"parcels.dbf", dbfData},
		zipEntry{"parcels.prj", []byte(wgs84PRJ)},
	)

	fc := mustNormalize(t)(ParseShapefileZip("parcels", data))
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}

	want := orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}}
	if !reflect.DeepEqual(fc.Features[0].Geometry, want) {
		t.Errorf("geometry = %#v", fc.Features[0].Geometry)
	}
	if got := fc.Features[0].Properties.Keys(); !reflect.DeepEqual(got, []string{"NAME", "POP"}) {
		t.Errorf("keys = %v", got)
	}
	if propString(fc.Features[1], "NAME") != "south" {
		t.Errorf("NAME = %v", fc.Features[1].Properties.Map())
	}
	if v, _ := fc.Features[1].Properties.Get("POP"); v != float64(250) {
		t.Errorf("POP = %#v", v)
	}
	if fc.Metadata.BBox == nil || *fc.Metadata.BBox != (geo.BBox{West: 0, South: 0, East: 11, North: 11}) {
		t.Errorf("bbox = %+v", fc.Metadata.BBox)
	}
	if len(fc.Metadata.Warnings) != 0 {
		t.Errorf("warnings = %v", fc.Metadata.Warnings)
	}
}

func TestParseShapefileZipErrors(t *testing.T) {
	shpData, _ := writeShapefile(t)

	tests := []struct {
		name string
		data []byte
		kind geo.ErrorKind
	}{
		{"shp only", buildZip(t, zipEntry{"a.shp", shpData}), geo.KindIncomplete},
		{"no shapefile", buildZip(t, zipEntry{"readme.txt", []byte("x")}), geo.KindDecode},
		{"not a zip", []byte("garbage"), geo.KindDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseShapefileZip("x", tt.data); geo.KindOf(err) != tt.kind {
				t.Errorf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestParseShapefileBundle(t *testing.T) {
	shpData, dbfData := writeShapefile(t)
	projected := `PROJCS["WGS_1984_Web_Mercator",GEOGCS["GCS_WGS_1984"]]`

	d := dataset.New("parcels", geo.SourceShapefile,
		dataset.NewMemorySource("parcels.shp", shpData),
		dataset.NewMemorySource("parcels.dbf", dbfData),
		dataset.NewMemorySource("parcels.prj", []byte(projected)),
	)
	fc, raster, err := NewRegistry(Options{}).Parse(d)
	if err != nil {
		t.Fatal(err)
	}
	if raster != nil || len(fc.Features) != 2 {
		t.Fatalf("raster=%v features=%d", raster, len(fc.Features))
	}
	if len(fc.Metadata.Warnings) != 1 {
		t.Errorf("warnings = %v, want projected CRS warning", fc.Metadata.Warnings)
	}

	partial := dataset.New("parcels", geo.SourceShapefile, dataset.NewMemorySource("parcels.shp", shpData))
	if _, _, err := NewRegistry(Options{}).Parse(partial); geo.KindOf(err) != geo.KindIncomplete {
		t.Errorf("partial bundle error = %v", err)
	}
}

func TestShapefilePolygonHoles(t *testing.T) {
	points := []shp.Point{
		// clockwise shell
		{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0},
		// counter-clockwise hole, left open
		{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4},
		// second clockwise shell
		{X: 20, Y: 20}, {X: 20, Y: 21}, {X: 21, Y: 21}, {X: 21, Y: 20}, {X: 20, Y: 20},
	}

	g, alts := shpPolygons([]int32{0, 5, 9}, points, nil)
	if len(alts) != 15 {
		t.Errorf("alts = %d, want one per vertex after closing the hole", len(alts))
	}
	mp, ok := g.(orb.MultiPolygon)
	if !ok || len(mp) != 2 {
		t.Fatalf("geometry = %#v", g)
	}
	if len(mp[0]) != 2 || !mp[0][1].Closed() {
		t.Errorf("first polygon rings = %#v", mp[0])
	}
	if len(mp[1]) != 1 {
		t.Errorf("second polygon rings = %#v", mp[1])
	}
}

func TestShapeGeometryElevation(t *testing.T) {
	square := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}}

	tests := []struct {
		shape shp.Shape
		want  any
		name  string
	}{
		{
			name:  "point z",
			shape: &shp.PointZ{X: 1, Y: 2, Z: 30},
			want:  30.0,
		},
		{
			name:  "point m",
			shape: &shp.PointM{X: 1, Y: 2, M: 5},
		},
		{
			name: "polyline z",
			shape: &shp.PolyLineZ{
				Parts:  []int32{0, 2},
				Points: []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}},
				ZArray: []float64{1, 2, 3, 4},
			},
			want: []any{[]any{1.0, 2.0}, []any{3.0, 4.0}},
		},
		{
			name: "open polygon z",
			shape: &shp.PolygonZ{
				Parts:  []int32{0},
				Points: square,
				ZArray: []float64{5, 6, 7, 8},
			},
			want: []any{[]any{5.0, 6.0, 7.0, 8.0, 5.0}},
		},
		{
			name: "short z array",
			shape: &shp.PolyLineZ{
				Parts:  []int32{0},
				Points: []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
				ZArray: []float64{1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, alts, err := shapeGeometry(tt.shape)
			if err != nil {
				t.Fatal(err)
			}
			if got := geo.ShapeElevation(g, alts); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("elevation = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDBFValue(t *testing.T) {
	tests := []struct {
		want      any
		raw       string
		fieldType byte
	}{
		{float64(42), "  42", 'N'},
		{1.5, "1.5", 'F'},
		{nil, "   ", 'N'},
		{true, "T", 'L'},
		{false, "n", 'L'},
		{nil, "?", 'L'},
		{"2024-03-09", "20240309", 'D'},
		{"text", "text  ", 'C'},
	}
	for _, tt := range tests {
		if got := dbfValue(tt.fieldType, tt.raw); got != tt.want {
			t.Errorf("dbfValue(%c, %q) = %#v, want %#v", tt.fieldType, tt.raw, got, tt.want)
		}
	}
}

func TestIsGeographicPRJ(t *testing.T) {
	if !isGeographicPRJ(wgs84PRJ) {
		t.Error("WGS84 GEOGCS reported as projected")
	}
	if isGeographicPRJ(`PROJCS["UTM",GEOGCS["WGS84"]]`) {
		t.Error("PROJCS reported as geographic")
	}
}
