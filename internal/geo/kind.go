package geo

// SourceKind names the encoding a dataset was ingested from.
type SourceKind string

const (
	SourceGeoJSON   SourceKind = "geojson"
	SourceKML       SourceKind = "kml"
	SourceKMZ       SourceKind = "kmz"
	SourceGPX       SourceKind = "gpx"
	SourceCSV       SourceKind = "csv"
	SourceExcel     SourceKind = "excel"
	SourceGeoTIFF   SourceKind = "geotiff"
	SourceShapefile SourceKind = "shapefile"
	SourceUnknown   SourceKind = "unknown"
)

// IsRaster reports whether the kind produces a Raster instead of a FeatureCollection.
func (k SourceKind) IsRaster() bool {
	return k == SourceGeoTIFF
}
