package export

// Coordinate reference systems accepted in Config.CRS. Only EPSG:4326 is fully
// honoured; EPSG:3857 additionally georeferences GeoTIFF output in metres.
const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
	CRSUTM33N      = "EPSG:32633"
)

// CSV geometry modes.
const (
	CSVGeometryWKT    = "wkt"
	CSVGeometryLatLng = "latlng"
)

// Config is the export option record. The same struct is read from YAML,
// decoded from HTTP JSON bodies and filled from CLI flags.
type Config struct {
	Format              Format  `yaml:"format" json:"format"`
	CRS                 string  `yaml:"crs" json:"crs"`
	CSVGeometry         string  `yaml:"csv_geometry" json:"geometry-mode-for-csv"`
	NameField           string  `yaml:"name_field" json:"nameField"`
	FilenameStem        string  `yaml:"filename_stem" json:"filename-stem"`
	Prefix              string  `yaml:"prefix" json:"prefix"`
	TIFFCompression     string  `yaml:"tiff_compression" json:"tiff-compression"`
	SimplifyTolerance   float64 `yaml:"simplify_tolerance" json:"simplify-tolerance"`
	RasterZoom          float64 `yaml:"raster_zoom" json:"raster-zoom"`
	RasterWidth         int     `yaml:"raster_width" json:"raster-width"`
	RasterHeight        int     `yaml:"raster_height" json:"raster-height"`
	RasterConcurrency   int     `yaml:"raster_concurrency" json:"raster-concurrency"`
	RasterTileTimeoutMS int     `yaml:"raster_tile_timeout_ms" json:"raster-tile-timeout-ms"`
	TIFFBits            int     `yaml:"tiff_bits" json:"tiff-bits"`
	IncludeMetadata     bool    `yaml:"include_metadata" json:"include-metadata"`
	Simplify            bool    `yaml:"simplify" json:"simplify-geometry"`
	Basemap             bool    `yaml:"basemap" json:"raster-basemap"`
}

// DefaultConfig returns the options used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Format:              FormatGeoJSON,
		CRS:                 CRSWGS84,
		CSVGeometry:         CSVGeometryWKT,
		NameField:           "name",
		Prefix:              "export_",
		TIFFCompression:     "lzw",
		SimplifyTolerance:   0.0001,
		RasterWidth:         1024,
		RasterHeight:        768,
		RasterConcurrency:   6,
		RasterTileTimeoutMS: 7000,
		TIFFBits:            8,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.CRS == "" {
		c.CRS = d.CRS
	}
	if c.CSVGeometry == "" {
		c.CSVGeometry = d.CSVGeometry
	}
	if c.NameField == "" {
		c.NameField = d.NameField
	}
	if c.TIFFCompression == "" {
		c.TIFFCompression = d.TIFFCompression
	}
	if c.SimplifyTolerance <= 0 {
		c.SimplifyTolerance = d.SimplifyTolerance
	}
	if c.RasterWidth <= 0 {
		c.RasterWidth = d.RasterWidth
	}
	if c.RasterHeight <= 0 {
		c.RasterHeight = d.RasterHeight
	}
	if c.RasterConcurrency <= 0 {
		c.RasterConcurrency = d.RasterConcurrency
	}
	if c.RasterTileTimeoutMS <= 0 {
		c.RasterTileTimeoutMS = d.RasterTileTimeoutMS
	}
	if c.TIFFBits == 0 {
		c.TIFFBits = d.TIFFBits
	}
	return c
}
