package export

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/paulmach/orb"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testExporter(b Basemap) *Exporter {
	e := New(b)
	e.Now = func() time.Time { return fixedNow }
	return e
}

func mustExport(t *testing.T, e *Exporter, fc *geo.FeatureCollection, cfg Config) *Result {
	t.Helper()
	res, err := e.Export(context.Background(), fc, dataset.DefaultStyle(), cfg)
	if err != nil {
		t.Fatalf("export %s: %v", cfg.Format, err)
	}
	return res
}

type testFeature struct {
	geom  orb.Geometry
	props [][2]any
}

func newCollection(label string, features ...testFeature) *geo.FeatureCollection {
	fc := geo.NewFeatureCollection(label, geo.SourceGeoJSON)
	for _, tf := range features {
		f := geo.NewFeature(tf.geom)
		for _, kv := range tf.props {
			f.Properties.Set(kv[0].(string), kv[1])
		}
		fc.Append(f)
	}
	geo.Normalize(fc)
	return fc
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = data
	}
	return out
}

func geometries(fc *geo.FeatureCollection) []orb.Geometry {
	out := make([]orb.Geometry, len(fc.Features))
	for i, f := range fc.Features {
		out[i] = f.Geometry
	}
	return out
}
