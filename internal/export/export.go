package export

import (
	"context"
	"fmt"
	"image/draw"
	"time"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"
	"github.com/woozymasta/geoconv/internal/render"

	"github.com/rs/zerolog/log"
)

// Result is a serialized dataset ready to be written or downloaded.
type Result struct {
	Filename string   `json:"filename"`
	MIME     string   `json:"mime"`
	Bytes    []byte   `json:"-"`
	Warnings []string `json:"warnings,omitempty"`
	Features int      `json:"features"`
}

// Basemap composites background tiles covering a view onto dst.
// It returns the tiles that could not be drawn.
type Basemap interface {
	Composite(ctx context.Context, dst draw.Image, view render.View, concurrency int, timeout time.Duration) ([]string, error)
}

// Exporter dispatches collections to serializers.
type Exporter struct {
	Basemap Basemap          // optional, used when Config.Basemap is set
	Now     func() time.Time // clock for document timestamps
}

// New returns an exporter with an optional basemap source.
func New(basemap Basemap) *Exporter {
	return &Exporter{Basemap: basemap, Now: time.Now}
}

// request carries one export through a serializer.
type request struct {
	ctx      context.Context
	fc       *geo.FeatureCollection
	style    dataset.Style
	cfg      Config
	now      time.Time
	warnings []string
}

func (r *request) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

type serializer func(e *Exporter, r *request) ([]byte, error)

var serializers = map[Format]serializer{
	FormatGeoJSON:   encodeGeoJSON,
	FormatCSV:       encodeCSV,
	FormatKML:       encodeKML,
	FormatKMZ:       encodeKMZ,
	FormatGPX:       encodeGPX,
	FormatShapefile: encodeShapefile,
	FormatPNG:       encodePNG,
	FormatSVG:       encodeSVG,
	FormatGeoTIFF:   encodeGeoTIFF,
}

// Export serializes fc in the format cfg selects. The collection is never mutated.
func (e *Exporter) Export(ctx context.Context, fc *geo.FeatureCollection, style dataset.Style, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	ser, ok := serializers[cfg.Format]
	if !ok {
		return nil, geo.Errorf(geo.KindUnsupported, "unsupported export format %q", cfg.Format)
	}
	if fc == nil {
		return nil, geo.Errorf(geo.KindInputShape, "no collection to export")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	r := &request{ctx: ctx, fc: fc, style: style, cfg: cfg, now: now().UTC()}
	if cfg.CRS != CRSWGS84 && !(cfg.CRS == CRSWebMercator && cfg.Format == FormatGeoTIFF) {
		r.warn("CRS %s is advisory for %s output; coordinates written as %s", cfg.CRS, cfg.Format, CRSWGS84)
	}
	if cfg.Simplify {
		r.fc = simplifyCollection(fc, cfg.SimplifyTolerance)
	}

	start := time.Now()
	data, err := ser(e, r)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", cfg.Format, err)
	}

	stem := cfg.FilenameStem
	if stem == "" {
		stem = fc.Metadata.Label
	}
	res := &Result{
		Bytes:    data,
		Filename: Filename(cfg.Prefix, stem, cfg.Format),
		MIME:     cfg.Format.MIME(),
		Warnings: r.warnings,
		Features: len(r.fc.Features),
	}

	log.Info().
		Str("label", fc.Metadata.Label).
		Str("format", string(cfg.Format)).
		Str("file", res.Filename).
		Int("bytes", len(data)).
		Int("warnings", len(res.Warnings)).
		Dur("took", time.Since(start)).
		Msg("Dataset exported")

	return res, nil
}

// featureName returns the placemark/waypoint name of the i-th feature.
func featureName(f *geo.Feature, field string, i int) string {
	if v, ok := f.Properties.Get(field); ok && v != nil {
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return fmt.Sprintf("feature-%d", i)
}
