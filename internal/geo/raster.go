package geo

// Raster is the ingest result for gridded sources. It never reaches the vector serializers.
type Raster struct {
	BBox            *BBox       `json:"bbox,omitempty"`
	GeoKeys         map[int]any `json:"geoKeys,omitempty"`
	Label           string      `json:"label"`
	SourceKind      SourceKind  `json:"sourceKind"`
	Preview         []byte      `json:"-"`
	Original        []byte      `json:"-"`
	BitsPerSample   []int       `json:"bitsPerSample"`
	PixelScale      []float64   `json:"pixelScale,omitempty"`
	Tiepoints       []float64   `json:"tiepoints,omitempty"`
	Warnings        []string    `json:"warnings,omitempty"`
	Origin          [2]float64  `json:"origin"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	SamplesPerPixel int         `json:"samplesPerPixel"`
	SampleFormat    int         `json:"sampleFormat"`
	EPSG            int         `json:"epsg,omitempty"`
	PreviewWidth    int         `json:"previewWidth"`
	PreviewHeight   int         `json:"previewHeight"`
}
