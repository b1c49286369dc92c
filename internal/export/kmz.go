package export

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"encoding/json"
	"io"
	"time"

	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/tidwall/pretty"
)

// kmzCompression is the DEFLATE level of KMZ entries.
const kmzCompression = 6

type kmzMetadata struct {
	ExportedAt   string       `json:"exportedAt"`
	Metadata     geo.Metadata `json:"metadata"`
	FeatureCount int          `json:"featureCount"`
}

func encodeKMZ(_ *Exporter, r *request) ([]byte, error) {
	doc := buildKML(r)
	meta, err := json.Marshal(kmzMetadata{
		ExportedAt:   r.now.Format(time.RFC3339),
		FeatureCount: len(r.fc.Features),
		Metadata:     r.fc.Metadata,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, kmzCompression)
	})

	entries := []struct {
		name string
		data []byte
	}{
		{"doc.kml", doc},
		{"metadata.json", pretty.Pretty(meta)},
	}
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: r.now})
		if err != nil {
			return nil, geo.WrapError(geo.KindDownstreamIO, err, "create "+e.name)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, geo.WrapError(geo.KindDownstreamIO, err, "write "+e.name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, geo.WrapError(geo.KindDownstreamIO, err, "close KMZ")
	}
	return buf.Bytes(), nil
}
