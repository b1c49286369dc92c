package ingest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/woozymasta/geoconv/internal/geo"
)

type zipEntry struct {
	name string
	data []byte
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// mustNormalize wraps a parser result, failing the test on error.
func mustNormalize(t *testing.T) func(*geo.FeatureCollection, error) *geo.FeatureCollection {
	t.Helper()
	return func(fc *geo.FeatureCollection, err error) *geo.FeatureCollection {
		t.Helper()
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		geo.Normalize(fc)
		return fc
	}
}

func propString(f *geo.Feature, key string) string {
	v, _ := f.Properties.Get(key)
	s, _ := v.(string)
	return s
}
