package main

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/ingest"

	"gopkg.in/yaml.v3"
)

func ingestReports(t *testing.T, files map[string]string) map[string]Report {
	t.Helper()
	var sources []dataset.Source
	for name, content := range files {
		sources = append(sources, dataset.NewMemorySource(name, []byte(content)))
	}
	ws := dataset.NewWorkspace(ingest.NewRegistry(ingest.Options{}))
	datasets, _ := ws.Ingest(sources)

	out := map[string]Report{}
	for _, d := range datasets {
		out[d.Label] = newReport(ws, d)
	}
	return out
}

func TestNewReport(t *testing.T) {
	reports := ingestReports(t, map[string]string{
		"places.geojson": `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"name":"A","when":"2024-01-01T00:00:00Z"},"geometry":{"type":"Point","coordinates":[1,2]}},
			{"type":"Feature","properties":{"name":"B","pop":3},"geometry":{"type":"LineString","coordinates":[[0,0],[4,5]]}}]}`,
		"points.csv": "id,lat,lon\n1,10,20\n2,11,21\n",
		"broken.kml": "<kml",
	})

	places := reports["places.geojson"]
	if places.Features != 2 || places.Error != "" {
		t.Fatalf("places = %+v", places)
	}
	if !reflect.DeepEqual(places.Properties, []string{"name", "when", "pop"}) {
		t.Errorf("properties = %v", places.Properties)
	}
	if got := histogram(places.GeometryTypes); got != "LineString 1, Point 1" {
		t.Errorf("histogram = %q", got)
	}
	if b := places.BBox; b == nil || b.West != 0 || b.East != 4 || b.North != 5 {
		t.Errorf("bbox = %+v", b)
	}

	points := reports["points.csv"]
	if points.Features != 2 || points.Columns != "lat, lon" {
		t.Errorf("points = %+v", points)
	}

	if reports["broken.kml"].Error == "" {
		t.Error("broken KML reported no error")
	}
}

func TestEncode(t *testing.T) {
	reports := []Report{{Label: "a.geojson", Kind: "geojson", Files: []string{"a.geojson"}, Features: 1, Warnings: []string{"odd"}}}

	tests := []struct {
		format string
		check  func(t *testing.T, out []byte)
	}{
		{"json", func(t *testing.T, out []byte) {
			var back []Report
			if err := json.Unmarshal(out, &back); err != nil || len(back) != 1 || back[0].Label != "a.geojson" {
				t.Errorf("json = %s (%v)", out, err)
			}
		}},
		{"yaml", func(t *testing.T, out []byte) {
			var back []Report
			if err := yaml.Unmarshal(out, &back); err != nil || len(back) != 1 || back[0].Features != 1 {
				t.Errorf("yaml = %s (%v)", out, err)
			}
		}},
		{"table", func(t *testing.T, out []byte) {
			for _, want := range []string{"a.geojson", "features", "! odd"} {
				if !strings.Contains(string(out), want) {
					t.Errorf("table missing %q:\n%s", want, out)
				}
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := encode(reports, tt.format)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, out)
		})
	}
}
