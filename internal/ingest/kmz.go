package ingest

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/woozymasta/geoconv/internal/geo"
)

// ParseKMZ routes the first .kml entry outside __MACOSX/ to the KML parser.
func ParseKMZ(label string, data []byte) (*geo.FeatureCollection, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, geo.WrapError(geo.KindDecode, err, "open KMZ")
	}

	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "__MACOSX/") || !strings.EqualFold(path.Ext(f.Name), ".kml") {
			continue
		}
		doc, err := readZipFile(f)
		if err != nil {
			return nil, geo.WrapError(geo.KindDecode, err, "read "+f.Name)
		}
		fc, err := ParseKML(label, doc)
		if err != nil {
			return nil, err
		}
		fc.Metadata.SourceKind = geo.SourceKMZ
		return fc, nil
	}

	return nil, geo.Errorf(geo.KindDecode, "KMZ contains no .kml document")
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}
