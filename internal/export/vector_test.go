package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"
	"github.com/woozymasta/geoconv/internal/ingest"

	"github.com/paulmach/orb"
)

func TestCSVHeaderAndQuoting(t *testing.T) {
	fc := newCollection("mixed",
		testFeature{geom: orb.Point{1, 2}, props: [][2]any{{"name", "A, the first"}, {"n", 1.5}}},
		testFeature{geom: orb.LineString{{0, 0}, {1, 1}}, props: [][2]any{{"note", `say "hi"`}, {"name", "B"}}},
		testFeature{geom: orb.Point{3, 4}, props: [][2]any{{"flag", true}, {"multi", "line\nbreak"}}},
	)

	res := mustExport(t, testExporter(nil), fc, Config{Format: FormatCSV})
	lines := strings.Split(strings.TrimSuffix(string(res.Bytes), "\r\n"), "\r\n")

	if lines[0] != "name,n,note,flag,multi,geometry" {
		t.Errorf("header = %q", lines[0])
	}
	want := []string{
		`"A, the first",1.5,,,,POINT(1 2)`,
		`B,,"say ""hi""",,,"LINESTRING(0 0,1 1)"`,
		",,,true,\"line\nbreak\",POINT(3 4)",
	}
	if got := strings.Join(lines[1:], "\r\n"); got != strings.Join(want, "\r\n") {
		t.Errorf("rows =\n%s\nwant\n%s", got, strings.Join(want, "\r\n"))
	}
}

func TestCSVLatLngRoundTrip(t *testing.T) {
	src := "name,lat,lon\nA,29.5,-95.8\nB,48.85,2.35\n"
	fc, err := ingest.ParseCSV("points", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	geo.Normalize(fc)

	res := mustExport(t, testExporter(nil), fc, Config{Format: FormatCSV, CSVGeometry: CSVGeometryLatLng})
	if !strings.HasPrefix(string(res.Bytes), "name,lng,lat\r\n") {
		t.Errorf("csv = %q", res.Bytes)
	}

	back, err := ingest.ParseCSV("points", res.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(geometries(back), geometries(fc)) {
		t.Errorf("geometries = %v, want %v", geometries(back), geometries(fc))
	}
}

func TestCSVRecordsOnly(t *testing.T) {
	fc, err := ingest.ParseCSV("people", []byte("name,age\nA,1\nB,2\n"))
	if err != nil {
		t.Fatal(err)
	}
	geo.Normalize(fc)

	res := mustExport(t, testExporter(nil), fc, Config{Format: FormatCSV})
	want := "name,age,geometry\r\nA,1,\r\nB,2,\r\n"
	if string(res.Bytes) != want {
		t.Errorf("csv = %q, want %q", res.Bytes, want)
	}
}

// Round trips through the matching parser keep feature count and geometry.
func TestVectorRoundTrip(t *testing.T) {
	kmlDoc := `<kml><Document>
<Placemark><name>P</name><Point><coordinates>2.35,48.85</coordinates></Point></Placemark>
<Placemark><LineString><coordinates>0,0 1,1 2,0</coordinates></LineString></Placemark>
<Placemark><Polygon><outerBoundaryIs><LinearRing><coordinates>0,0 4,0 4,4 0,4 0,0</coordinates></LinearRing></outerBoundaryIs>
<innerBoundaryIs><LinearRing><coordinates>1,1 2,1 2,2 1,1</coordinates></LinearRing></innerBoundaryIs></Polygon></Placemark>
<Placemark><MultiGeometry><Point><coordinates>5,5</coordinates></Point><LineString><coordinates>5,5 6,6</coordinates></LineString></MultiGeometry></Placemark>
<Placemark><name>Ridge</name><LineString><coordinates>0,0,10 1,1,20.5 2,2</coordinates></LineString></Placemark>
<Placemark><name>Summit</name><Point><coordinates>3,3,812</coordinates></Point></Placemark>
<Placemark><Polygon><outerBoundaryIs><LinearRing><coordinates>0,0,5 4,0,6 4,4,7 0,0,5</coordinates></LinearRing></outerBoundaryIs></Polygon></Placemark>
</Document></kml>`

	gpxDoc := `<gpx version="1.1">
<wpt lat="48.85" lon="2.35"><name>W</name></wpt>
<rte><rtept lat="1" lon="2"/><rtept lat="3" lon="4"/></rte>
<trk><trkseg><trkpt lat="10" lon="20"/><trkpt lat="11" lon="21"/></trkseg>
<trkseg><trkpt lat="12" lon="22"/><trkpt lat="13" lon="23"/></trkseg></trk>
<trk><name>Single</name><trkseg><trkpt lat="30" lon="40"><ele>100</ele></trkpt><trkpt lat="31" lon="41"><ele>120</ele></trkpt></trkseg></trk>
<rte><name>Climb</name><rtept lat="5" lon="6"><ele>1.5</ele></rtept><rtept lat="7" lon="8"/></rte>
</gpx>`

	geojsonDoc := `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"b":1,"a":"x"},"geometry":{"type":"Point","coordinates":[1,2]}},
{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}},
{"type":"Feature","properties":null,"geometry":{"type":"MultiLineString","coordinates":[[[0,0],[1,1]],[[2,2],[3,3]]]}}
]}`

	kmzDoc := func(t *testing.T) []byte {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("doc.kml")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(kmlDoc)); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	tests := []struct {
		name   string
		format Format
		input  func(t *testing.T) []byte
		parse  func(label string, data []byte) (*geo.FeatureCollection, error)
	}{
		{"kml", FormatKML, func(*testing.T) []byte { return []byte(kmlDoc) }, ingest.ParseKML},
		{"kmz", FormatKMZ, kmzDoc, ingest.ParseKMZ},
		{"gpx", FormatGPX, func(*testing.T) []byte { return []byte(gpxDoc) }, ingest.ParseGPX},
		{"geojson", FormatGeoJSON, func(*testing.T) []byte { return []byte(geojsonDoc) }, ingest.ParseGeoJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := tt.parse("round", tt.input(t))
			if err != nil {
				t.Fatal(err)
			}
			geo.Normalize(fc)

			res := mustExport(t, testExporter(nil), fc, Config{Format: tt.format})
			back, err := tt.parse("round", res.Bytes)
			if err != nil {
				t.Fatalf("re-parse: %v\n%s", err, res.Bytes)
			}
			if len(back.Features) != len(fc.Features) {
				t.Fatalf("features = %d, want %d", len(back.Features), len(fc.Features))
			}
			if !reflect.DeepEqual(geometries(back), geometries(fc)) {
				t.Errorf("geometries = %v, want %v", geometries(back), geometries(fc))
			}
			if !reflect.DeepEqual(elevationProps(back), elevationProps(fc)) {
				t.Errorf("elevations = %v, want %v", elevationProps(back), elevationProps(fc))
			}
		})
	}
}

func elevationProps(fc *geo.FeatureCollection) []any {
	out := make([]any, len(fc.Features))
	for i, f := range fc.Features {
		out[i], _ = f.Properties.Get(geo.ElevationKey)
	}
	return out
}

// Altitudes are written back as coordinates, not only as a property.
func TestElevationOutput(t *testing.T) {
	fc := newCollection("relief",
		testFeature{geom: orb.LineString{{0, 0}, {1, 1}}, props: [][2]any{{"name", "ridge"}, {"ele", []any{10.0, 20.5}}}},
		testFeature{geom: orb.MultiLineString{{{2, 2}, {3, 3}}}, props: [][2]any{{"name", "trail"}, {"ele", []any{[]any{1.0, nil}}}}},
		testFeature{geom: orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 0}}}, props: [][2]any{{"name", "lake"}, {"ele", []any{[]any{5.0, 5.0, 5.0, 5.0}}}}},
		testFeature{geom: orb.LineString{{0, 0}, {1, 1}, {2, 2}}, props: [][2]any{{"name", "mismatch"}, {"ele", []any{1.0}}}},
	)

	tests := []struct {
		format Format
		want   []string
		absent []string
	}{
		{
			format: FormatKML,
			want: []string{
				"<coordinates>0,0,10 1,1,20.5</coordinates>",
				"<coordinates>2,2,1 3,3</coordinates>",
				"<coordinates>0,0,5 4,0,5 4,4,5 0,0,5</coordinates>",
				"<coordinates>0,0 1,1 2,2</coordinates>",
			},
		},
		{
			format: FormatGPX,
			want: []string{
				`<rtept lat="0" lon="0"><ele>10</ele></rtept><rtept lat="1" lon="1"><ele>20.5</ele></rtept>`,
				`<trkpt lat="2" lon="2"><ele>1</ele></trkpt><trkpt lat="3" lon="3"/>`,
				`<trkpt lat="4" lon="4"><ele>5</ele></trkpt>`,
			},
			absent: []string{"ele: "},
		},
		{
			format: FormatCSV,
			want: []string{
				`"LINESTRING Z (0 0 10,1 1 20.5)"`,
				`"MULTILINESTRING((2 2,3 3))"`,
				`"POLYGON Z ((0 0 5,4 0 5,4 4 5,0 0 5))"`,
				`"LINESTRING(0 0,1 1,2 2)"`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			doc := string(mustExport(t, testExporter(nil), fc, Config{Format: tt.format}).Bytes)
			for _, w := range tt.want {
				if !strings.Contains(doc, w) {
					t.Errorf("%s missing %q\n%s", tt.format, w, doc)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(doc, a) {
					t.Errorf("%s contains %q\n%s", tt.format, a, doc)
				}
			}
		})
	}
}

func TestCSVElevationRoundTrip(t *testing.T) {
	fc := newCollection("relief",
		testFeature{geom: orb.LineString{{0, 0}, {1, 1}}, props: [][2]any{{"name", "ridge"}, {"ele", []any{10.0, 20.5}}}},
		testFeature{geom: orb.Point{3, 3}, props: [][2]any{{"name", "summit"}, {"ele", 812.0}}},
	)
	res := mustExport(t, testExporter(nil), fc, Config{Format: FormatCSV})

	back, err := ingest.ParseCSV("relief", res.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	geo.Normalize(back)
	if !reflect.DeepEqual(geometries(back), geometries(fc)) {
		t.Errorf("geometries = %v, want %v", geometries(back), geometries(fc))
	}
	if !reflect.DeepEqual(elevationProps(back), elevationProps(fc)) {
		t.Errorf("elevations = %v, want %v", elevationProps(back), elevationProps(fc))
	}
}

func TestKMZLineString(t *testing.T) {
	fc := newCollection("track", testFeature{geom: orb.LineString{{1, 2}, {3, 4}, {5, 6}}, props: [][2]any{{"name", "L"}}})

	res := mustExport(t, testExporter(nil), fc, Config{Format: FormatKMZ})
	files := readZip(t, res.Bytes)

	doc := string(files["doc.kml"])
	if strings.Count(doc, "<LineString>") != 1 || !strings.Contains(doc, "<coordinates>1,2 3,4 5,6</coordinates>") {
		t.Errorf("doc.kml = %s", doc)
	}

	var meta struct {
		ExportedAt   string       `json:"exportedAt"`
		Metadata     geo.Metadata `json:"metadata"`
		FeatureCount int          `json:"featureCount"`
	}
	if err := json.Unmarshal(files["metadata.json"], &meta); err != nil {
		t.Fatalf("metadata.json: %v", err)
	}
	if meta.FeatureCount != 1 || meta.ExportedAt != "2024-05-01T12:00:00Z" || meta.Metadata.Label != "track" {
		t.Errorf("metadata = %+v", meta)
	}

	zr, err := zip.NewReader(bytes.NewReader(res.Bytes), int64(len(res.Bytes)))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Errorf("%s stored with method %d", f.Name, f.Method)
		}
	}
}

func TestKMLDetails(t *testing.T) {
	fc := newCollection("a <b> & c",
		testFeature{geom: orb.Point{1, 2}, props: [][2]any{{"title", "Tom & Jerry"}, {"kind", "x"}}},
		testFeature{geom: orb.Point{3, 4}, props: [][2]any{{"kind", "y"}, {"note", "ends ]]> here"}}},
		testFeature{geom: orb.Polygon{{{0, 0}, {1, 1}, {0, 0}}}},
		testFeature{geom: orb.Polygon{
			{{0, 0}, {4, 0}, {4, 4}, {0, 0}},
			{{1, 1}, {2, 1}, {1, 1}},
		}},
	)
	style := dataset.DefaultStyle()
	style.Symbology = dataset.Categorize("kind", fc.Features)

	res, err := testExporter(nil).Export(t.Context(), fc, style, Config{Format: FormatKML, NameField: "title"})
	if err != nil {
		t.Fatal(err)
	}
	doc := string(res.Bytes)

	checks := []string{
		"<name>a &lt;b&gt; &amp; c</name>",
		"<name>Tom &amp; Jerry</name>",
		"<name>feature-1</name>",
		`<Style id="style-default">`,
		`<Style id="style-1">`,
		`<Style id="style-2">`,
		"<styleUrl>#style-1</styleUrl>",
		"<styleUrl>#style-2</styleUrl>",
		`<description><![CDATA[{"title":"Tom \u0026 Jerry","kind":"x"}]]></description>`,
		"ends ]]]]><![CDATA[> here",
	}
	for _, c := range checks {
		if !strings.Contains(doc, c) {
			t.Errorf("kml missing %q", c)
		}
	}
	if strings.Count(doc, "<Placemark>") != 3 || strings.Contains(doc, "<innerBoundaryIs>") {
		t.Errorf("ring filtering wrong:\n%s", doc)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestKMLColor(t *testing.T) {
	if got := kmlColor("#ff8000", 0.5); got != "800080ff" {
		t.Errorf("kmlColor = %s", got)
	}
}

func TestGPXDocument(t *testing.T) {
	fc := newCollection("trip",
		testFeature{geom: orb.MultiPoint{{1, 2}, {3, 4}}, props: [][2]any{{"name", "stop"}}},
		testFeature{geom: orb.Point{5, 6}, props: [][2]any{{"ele", 12.5}, {"time", "2024-01-01T00:00:00Z"}}},
		testFeature{geom: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, props: [][2]any{{"name", "area"}}},
	)
	res := mustExport(t, testExporter(nil), fc, Config{Format: FormatGPX})
	doc := string(res.Bytes)

	checks := []string{
		"<metadata><name>trip</name>",
		"<time>2024-05-01T12:00:00Z</time></metadata>",
		`<wpt lat="2" lon="1">`,
		"<name>stop-1</name>",
		"<name>stop-2</name>",
		"<ele>12.5</ele><time>2024-01-01T00:00:00Z</time>",
		"<trk><name>area</name>",
	}
	for _, c := range checks {
		if !strings.Contains(doc, c) {
			t.Errorf("gpx missing %q\n%s", c, doc)
		}
	}

	back, err := ingest.ParseGPX("trip", res.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Features) != 4 {
		t.Errorf("re-parsed features = %d, want 4", len(back.Features))
	}
}

func TestShapefileExport(t *testing.T) {
	fc := newCollection("Parcels 2024",
		testFeature{
			// counter-clockwise shell is re-oriented for the shapefile
			geom:  orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}},
			props: [][2]any{{"name", "north"}, {"population_total", 1000.0}, {"active", true}},
		},
		testFeature{
			geom:  orb.Polygon{{{10, 10}, {10, 11}, {11, 11}, {11, 10}, {10, 10}}},
			props: [][2]any{{"name", "south"}, {"population_total", 250.0}, {"active", false}},
		},
	)

	res := mustExport(t, testExporter(nil), fc, Config{Format: FormatShapefile})
	files := readZip(t, res.Bytes)
	for _, name := range []string{"Parcels_2024.shp", "Parcels_2024.shx", "Parcels_2024.dbf", "Parcels_2024.prj"} {
		if _, ok := files[name]; !ok {
			t.Errorf("zip missing %s", name)
		}
	}

	back, err := ingest.ParseShapefileZip("parcels", res.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(back.Features))
	}
	for i, f := range back.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok || len(poly) != 1 || !poly[0].Closed() || poly[0].Orientation() != orb.CW {
			t.Errorf("feature %d geometry = %#v", i, f.Geometry)
		}
	}
	if got := back.Features[0].Properties.Keys(); !reflect.DeepEqual(got, []string{"name", "population", "active"}) {
		t.Errorf("keys = %v", got)
	}
	if v, _ := back.Features[1].Properties.Get("population"); v != 250.0 {
		t.Errorf("population = %#v", v)
	}
	if v, _ := back.Features[0].Properties.Get("active"); v != true {
		t.Errorf("active = %#v", v)
	}
	if len(back.Metadata.Warnings) != 0 {
		t.Errorf("warnings = %v", back.Metadata.Warnings)
	}
}

func TestShapefileFamilies(t *testing.T) {
	fc := newCollection("mixed",
		testFeature{geom: orb.Point{1, 2}},
		testFeature{geom: orb.LineString{{0, 0}, {1, 1}}},
		testFeature{geom: orb.Collection{orb.Point{3, 4}, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}},
	)
	res := mustExport(t, testExporter(nil), fc, Config{Format: FormatShapefile})
	files := readZip(t, res.Bytes)
	for _, layer := range []string{"mixed_points", "mixed_lines", "mixed_polygons"} {
		if _, ok := files[layer+".shp"]; !ok {
			t.Errorf("missing layer %s", layer)
		}
	}

	back, err := ingest.ParseShapefileZip("mixed", res.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Features) != 4 {
		t.Errorf("features = %d, want 4", len(back.Features))
	}

	empty := geo.NewFeatureCollection("empty", geo.SourceGeoJSON)
	if _, err := testExporter(nil).Export(t.Context(), empty, dataset.DefaultStyle(), Config{Format: FormatShapefile}); geo.KindOf(err) != geo.KindInputShape {
		t.Errorf("empty export error = %v", err)
	}
}

func TestUniqueFieldName(t *testing.T) {
	taken := map[string]bool{}
	got := []string{
		uniqueFieldName("population_total", taken),
		uniqueFieldName("population_male", taken),
		uniqueFieldName("population", taken),
		uniqueFieldName("", taken),
		uniqueFieldName("éééééé", taken),
	}
	want := []string{"population", "populati_1", "populati_2", "field", "ééééé"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
}
