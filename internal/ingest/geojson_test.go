package ingest

import (
	"reflect"
	"testing"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
)

func TestParseGeoJSONShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		features int
		kind     geo.ErrorKind
	}{
		{"collection", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"a":1}}]}`, 1, ""},
		{"feature", `{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":null}`, 1, ""},
		{"bare geometry", `{"type":"Point","coordinates":[1,2]}`, 1, ""},
		{"geometry collection", `{"type":"GeometryCollection","geometries":[{"type":"Point","coordinates":[1,2]}]}`, 1, ""},
		{"empty collection", `{"type":"FeatureCollection","features":[]}`, 0, ""},
		{"features not array", `{"type":"FeatureCollection","features":{}}`, 0, geo.KindInputShape},
		{"unknown type", `{"type":"Topology"}`, 0, geo.KindInputShape},
		{"array root", `[1,2,3]`, 0, geo.KindInputShape},
		{"malformed", `{"type":`, 0, geo.KindDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := ParseGeoJSON("test", []byte(tt.input))
			if tt.kind != "" {
				if geo.KindOf(err) != tt.kind {
					t.Fatalf("error kind = %q (%v), want %q", geo.KindOf(err), err, tt.kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGeoJSON: %v", err)
			}
			if len(fc.Features) != tt.features {
				t.Errorf("features = %d, want %d", len(fc.Features), tt.features)
			}
		})
	}
}

func TestParseGeoJSONBareGeometry(t *testing.T) {
	fc := mustNormalize(t)(ParseGeoJSON("p", []byte(`{"type":"Point","coordinates":[1,2]}`)))
	if len(fc.Features) != 1 {
		t.Fatalf("features = %d, want 1", len(fc.Features))
	}
	f := fc.Features[0]
	if f.Properties.Len() != 0 {
		t.Errorf("properties = %v, want empty", f.Properties.Keys())
	}
	if !reflect.DeepEqual(f.Geometry, orb.Point{1, 2}) {
		t.Errorf("geometry = %#v", f.Geometry)
	}
}

func TestParseGeoJSONDropsBadFeatures(t *testing.T) {
	input := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":null,"properties":{}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[200,95]},"properties":{}},
		{"type":"Feature","id":7,"geometry":{"type":"Point","coordinates":[3,4,120]},"properties":{" z ":1,"a":2,"m":3}}
	]}`
	fc := mustNormalize(t)(ParseGeoJSON("bad", []byte(input)))

	if len(fc.Features) != 1 {
		t.Fatalf("features = %d, want 1", len(fc.Features))
	}
	if fc.Metadata.Dropped != 2 {
		t.Errorf("dropped = %d, want 2", fc.Metadata.Dropped)
	}
	f := fc.Features[0]
	if got, want := f.Properties.Keys(), []string{"z", "a", "m"}; !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	if f.ID != float64(7) {
		t.Errorf("id = %v", f.ID)
	}
	if !reflect.DeepEqual(f.Geometry, orb.Point{3, 4}) {
		t.Errorf("geometry = %#v", f.Geometry)
	}
}
