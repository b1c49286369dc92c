// Package export serializes the normal form into target encodings.
package export

import (
	"strings"

	"github.com/woozymasta/geoconv/internal/geo"
)

// Format names a target encoding.
type Format string

const (
	FormatGeoJSON   Format = "geojson"
	FormatCSV       Format = "csv"
	FormatKML       Format = "kml"
	FormatKMZ       Format = "kmz"
	FormatGPX       Format = "gpx"
	FormatShapefile Format = "shapefile"
	FormatGeoTIFF   Format = "geotiff"
	FormatPNG       Format = "png"
	FormatSVG       Format = "svg"
)

type formatInfo struct {
	ext  string
	mime string
}

var formats = map[Format]formatInfo{
	FormatGeoJSON:   {"geojson", "application/geo+json"},
	FormatCSV:       {"csv", "text/csv"},
	FormatKML:       {"kml", "application/vnd.google-earth.kml+xml"},
	FormatKMZ:       {"kmz", "application/vnd.google-earth.kmz"},
	FormatGPX:       {"gpx", "application/gpx+xml"},
	FormatShapefile: {"zip", "application/zip"},
	FormatGeoTIFF:   {"tif", "image/tiff"},
	FormatPNG:       {"png", "image/png"},
	FormatSVG:       {"svg", "image/svg+xml"},
}

// Formats lists every supported format in a stable order.
func Formats() []Format {
	return []Format{
		FormatGeoJSON, FormatCSV, FormatKML, FormatKMZ, FormatGPX,
		FormatShapefile, FormatGeoTIFF, FormatPNG, FormatSVG,
	}
}

// ParseFormat resolves a format name or file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch s {
	case "json":
		return FormatGeoJSON, nil
	case "shp", "zip":
		return FormatShapefile, nil
	case "tif", "tiff":
		return FormatGeoTIFF, nil
	}
	if _, ok := formats[Format(s)]; ok {
		return Format(s), nil
	}
	return "", geo.Errorf(geo.KindUnsupported, "unsupported export format %q", s)
}

// Ext returns the file extension of f without the dot.
func (f Format) Ext() string { return formats[f].ext }

// MIME returns the media type of f.
func (f Format) MIME() string { return formats[f].mime }

// Raster reports whether f is rendered through the raster path.
func (f Format) Raster() bool {
	return f == FormatPNG || f == FormatGeoTIFF || f == FormatSVG
}
