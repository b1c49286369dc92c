package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

func TestPropertiesOrder(t *testing.T) {
	p := NewProperties(0)
	p.Set("zeta", 1)
	p.Set("alpha", "a")
	p.Set("mid", nil)
	p.Set("zeta", 2)

	if got, want := p.Keys(), []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"zeta":2,"alpha":"a","mid":null}`; got != want {
		t.Errorf("MarshalJSON = %s, want %s", got, want)
	}

	var back Properties
	if err := json.Unmarshal([]byte(`{"b":1,"a":true,"c":"x"}`), &back); err != nil {
		t.Fatal(err)
	}
	if got, want := back.Keys(), []string{"b", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("UnmarshalJSON keys = %v, want %v", got, want)
	}

	p.Delete("alpha")
	if got, want := p.Keys(), []string{"zeta", "mid"}; !reflect.DeepEqual(got, want) {
		t.Errorf("after Delete Keys() = %v, want %v", got, want)
	}
}

func TestPropertiesTrimKeys(t *testing.T) {
	p := NewProperties(0)
	p.Set(" name ", "A")
	p.Set("age", 3)
	p.Set("name", "B")
	p.TrimKeys()

	if got, want := p.Keys(), []string{"name", "age"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	if v, _ := p.Get("name"); v != "B" {
		t.Errorf("name = %v, want B", v)
	}
}

func TestComputeBBoxContainsEveryCoordinate(t *testing.T) {
	features := []*Feature{
		NewFeature(orb.Point{-95.8, 29.5}),
		NewFeature(orb.LineString{{2.35, 48.85}, {10, -5}}),
		NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 70}, {0, 0}}}),
		NewFeature(nil),
	}
	b := ComputeBBox(features)
	if b == nil {
		t.Fatal("ComputeBBox returned nil")
	}
	want := BBox{West: -95.8, South: -5, East: 10, North: 70}
	if *b != want {
		t.Fatalf("bbox = %+v, want %+v", *b, want)
	}
	for _, f := range features {
		EachPoint(f.Geometry, func(p orb.Point) bool {
			if !b.Contains(p[0], p[1]) {
				t.Errorf("point %v outside bbox %+v", p, *b)
			}
			return true
		})
	}
	if ComputeBBox(nil) != nil {
		t.Error("ComputeBBox(nil) should be nil")
	}
}

func TestValidateGeometry(t *testing.T) {
	tests := []struct {
		geom orb.Geometry
		name string
		ok   bool
	}{
		{name: "point", geom: orb.Point{10, 20}, ok: true},
		{name: "nil", geom: nil},
		{name: "lat out of range", geom: orb.Point{10, 91}},
		{name: "lon out of range", geom: orb.Point{-181, 0}},
		{name: "nan", geom: orb.Point{math.NaN(), 0}},
		{name: "inf in line", geom: orb.LineString{{0, 0}, {math.Inf(1), 0}}},
		{name: "empty line", geom: orb.LineString{}},
		{name: "nested collection", geom: orb.Collection{orb.Point{1, 1}, orb.MultiPolygon{{{{0, 0}, {1, 1}, {0, 1}, {0, 0}}}}}, ok: true},
		{name: "boundary", geom: orb.Point{180, -90}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeometry(tt.geom)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if KindOf(err) != KindCoordinateInvalid {
					t.Errorf("kind = %q, want %q", KindOf(err), KindCoordinateInvalid)
				}
			}
		})
	}
}

func TestNormalizeDropsInvalid(t *testing.T) {
	fc := NewFeatureCollection("test", SourceGeoJSON)
	good := NewFeature(orb.Point{1, 2})
	good.Properties.Set(" t ", "2024-01-02T03:04:05Z")
	fc.Append(good, NewFeature(orb.Point{500, 2}), NewFeature(orb.LineString{{0, 0}, {3, 4}}))

	Normalize(fc)

	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	if fc.Metadata.Dropped != 1 || len(fc.Metadata.Warnings) != 1 {
		t.Errorf("dropped = %d warnings = %v", fc.Metadata.Dropped, fc.Metadata.Warnings)
	}
	if got := fc.Metadata.GeometryTypes; got["Point"] != 1 || got["LineString"] != 1 {
		t.Errorf("histogram = %v", got)
	}
	if got, want := fc.Metadata.TimeFields, []string{"t"}; !reflect.DeepEqual(got, want) {
		t.Errorf("time fields = %v, want %v", got, want)
	}
}

func TestParseWKT(t *testing.T) {
	tests := []struct {
		want  orb.Geometry
		input string
		fails bool
	}{
		{input: "POINT(-95.8 29.5)", want: orb.Point{-95.8, 29.5}},
		{input: " point z (1 2 3) ", want: orb.Point{1, 2}},
		{input: "SRID=4326;POINT(1 2)", want: orb.Point{1, 2}},
		{input: "LINESTRING(0 0, 1 1, 2 0)", want: orb.LineString{{0, 0}, {1, 1}, {2, 0}}},
		{input: "POLYGON((0 0,4 0,4 4,0 0),(1 1, 2 1, 2 2, 1 1))", want: orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 0}}, {{1, 1}, {2, 1}, {2, 2}, {1, 1}}}},
		{input: "MULTIPOINT((1 2),(3 4))", want: orb.MultiPoint{{1, 2}, {3, 4}}},
		{input: "MULTIPOINT(1 2, 3 4)", want: orb.MultiPoint{{1, 2}, {3, 4}}},
		{input: "MULTILINESTRING((0 0,1 1),(2 2,3 3))", want: orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}},
		{input: "MULTIPOLYGON(((0 0,1 0,1 1,0 0)),((5 5,6 5,6 6,5 5)))", want: orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, {{{5, 5}, {6, 5}, {6, 6}, {5, 5}}}}},
		{input: "GEOMETRYCOLLECTION(POINT(1 2),LINESTRING(0 0,1 1))", want: orb.Collection{orb.Point{1, 2}, orb.LineString{{0, 0}, {1, 1}}}},
		{input: "LINESTRING EMPTY", want: orb.LineString{}},
		{input: "POINT(1)", fails: true},
		{input: "POINT(1 2", fails: true},
		{input: "POINT(1 2))", fails: true},
		{input: "CIRCLE(1 2)", fails: true},
		{input: "", fails: true},
		{input: "hello world", fails: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWKT(tt.input)
			if tt.fails {
				if err == nil {
					t.Fatalf("ParseWKT(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWKT(%q): %v", tt.input, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseWKT(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWKTRoundTrip(t *testing.T) {
	geoms := []orb.Geometry{
		orb.Point{1.5, -2.25},
		orb.LineString{{0, 0}, {1, 1}},
		orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
	}
	for _, g := range geoms {
		s := MarshalWKT(g)
		back, err := ParseWKT(s)
		if err != nil {
			t.Fatalf("ParseWKT(%q): %v", s, err)
		}
		if !reflect.DeepEqual(back, g) {
			t.Errorf("roundtrip %q = %#v, want %#v", s, back, g)
		}
	}
}

func TestTimeValue(t *testing.T) {
	tests := []struct {
		input any
		want  float64
		ok    bool
	}{
		{input: float64(1700000000000), want: 1700000000000, ok: true},
		{input: 15, want: 15, ok: true},
		{input: "1970-01-01T00:00:01Z", want: 1000, ok: true},
		{input: "1970-01-01T01:00:00+01:00", want: 0, ok: true},
		{input: "1970-01-02", want: 86400000, ok: true},
		{input: "1970-01-01 00:00:02", want: 2000, ok: true},
		{input: math.NaN()},
		{input: math.Inf(-1)},
		{input: "yesterday"},
		{input: "12"},
		{input: true},
		{input: nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.input), func(t *testing.T) {
			got, ok := TimeValue(tt.input)
			if ok != tt.ok {
				t.Fatalf("TimeValue(%v) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("TimeValue(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCandidateTimeFields(t *testing.T) {
	rows := make([]*Feature, 0, 4)
	for i, when := range []any{"2020-01-01", "2020-02-01", "n/a", nil} {
		f := NewFeature(orb.Point{0, 0})
		f.Properties.Set("name", fmt.Sprintf("f%d", i))
		f.Properties.Set("when", when)
		f.Properties.Set("epoch", float64(i))
		f.Properties.Set("count", float64(i))
		rows = append(rows, f)
	}
	got := CandidateTimeFields(rows)
	if want := []string{"when", "epoch"}; !reflect.DeepEqual(got, want) {
		t.Errorf("CandidateTimeFields = %v, want %v", got, want)
	}
}

func TestMercatorRoundTrip(t *testing.T) {
	tests := []struct{ lon, lat float64 }{
		{0, 0},
		{-95.8, 29.5},
		{179.9, -60},
		{12.5, 84},
	}
	for _, tt := range tests {
		x, y := ProjectMercator(tt.lon, tt.lat, 3)
		lon, lat := UnprojectMercator(x, y, 3)
		if math.Abs(lon-tt.lon) > 1e-9 || math.Abs(lat-tt.lat) > 1e-9 {
			t.Errorf("roundtrip (%v,%v) = (%v,%v)", tt.lon, tt.lat, lon, lat)
		}
	}

	if _, y := ProjectMercator(0, 90, 0); y != 0 && math.Abs(y) > 1e-6 {
		t.Errorf("north pole should clamp to top edge, got y=%v", y)
	}
	if x, y := ProjectMercator(0, 0, 0); x != 128 || math.Abs(y-128) > 1e-9 {
		t.Errorf("origin = (%v,%v), want (128,128)", x, y)
	}
}

func TestKindOf(t *testing.T) {
	base := Errorf(KindDecode, "bad zip")
	wrapped := fmt.Errorf("parse shapefile: %w", base)
	if KindOf(wrapped) != KindDecode {
		t.Errorf("KindOf(wrapped) = %q", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error should have no kind")
	}
	inner := errors.New("eof")
	err := WrapError(KindDownstreamIO, inner, "write zip")
	if !errors.Is(err, inner) || err.Error() != "write zip: eof" {
		t.Errorf("WrapError = %v", err)
	}
}

func TestFeatureMarshal(t *testing.T) {
	f := NewFeature(orb.Point{1, 2})
	f.Properties.Set("name", "A")
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"geometry":{"type":"Point","coordinates":[1,2]},"properties":{"name":"A"},"type":"Feature"}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}

	b, err = json.Marshal(NewFeature(nil))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"geometry":null,"properties":{},"type":"Feature"}`; string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}
