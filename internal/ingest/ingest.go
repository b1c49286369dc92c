// Package ingest converts source bytes of every supported kind into the normal form.
package ingest

import (
	"fmt"
	"time"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/rs/zerolog/log"
)

// Options tune individual parsers.
type Options struct {
	Sheet string // Excel sheet; first sheet when empty
}

// ParseFunc parses one dataset. Exactly one of the results is non-nil on success.
type ParseFunc func(d *dataset.Dataset, opts Options) (*geo.FeatureCollection, *geo.Raster, error)

// Registry dispatches datasets to parsers by source kind.
type Registry struct {
	parsers map[geo.SourceKind]ParseFunc
	opts    Options
}

// NewRegistry returns a registry with every built-in parser.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts: opts,
		parsers: map[geo.SourceKind]ParseFunc{
			geo.SourceGeoJSON:   vector(ParseGeoJSON),
			geo.SourceKML:       vector(ParseKML),
			geo.SourceKMZ:       vector(ParseKMZ),
			geo.SourceGPX:       vector(ParseGPX),
			geo.SourceCSV:       vector(ParseCSV),
			geo.SourceExcel:     parseExcelDataset,
			geo.SourceShapefile: parseShapefileDataset,
			geo.SourceGeoTIFF:   parseGeoTIFFDataset,
		},
	}
}

// Register replaces the parser for kind.
func (r *Registry) Register(kind geo.SourceKind, fn ParseFunc) {
	r.parsers[kind] = fn
}

// Parse implements dataset.Parser.
func (r *Registry) Parse(d *dataset.Dataset) (*geo.FeatureCollection, *geo.Raster, error) {
	return r.ParseWith(d, r.opts)
}

// ParseWith parses d with explicit options and finishes the collection metadata.
func (r *Registry) ParseWith(d *dataset.Dataset, opts Options) (*geo.FeatureCollection, *geo.Raster, error) {
	fn, ok := r.parsers[d.Kind]
	if !ok {
		return nil, nil, geo.Errorf(geo.KindUnsupported, "no parser for %s (%s)", d.Label, d.Kind)
	}

	start := time.Now()
	fc, raster, err := fn(d, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", d.Label, err)
	}

	if fc != nil {
		fc.Metadata.Label = d.Label
		fc.Metadata.SourceKind = d.Kind
		geo.Normalize(fc)
		log.Info().
			Str("label", d.Label).
			Str("kind", string(d.Kind)).
			Int("features", len(fc.Features)).
			Int("records", len(fc.Records)).
			Int("dropped", fc.Metadata.Dropped).
			Dur("took", time.Since(start)).
			Msg("Dataset parsed")
		return fc, nil, nil
	}

	raster.Label = d.Label
	log.Info().
		Str("label", d.Label).
		Int("width", raster.Width).
		Int("height", raster.Height).
		Int("samples", raster.SamplesPerPixel).
		Dur("took", time.Since(start)).
		Msg("Raster parsed")
	return nil, raster, nil
}

func vector(fn func(label string, data []byte) (*geo.FeatureCollection, error)) ParseFunc {
	return func(d *dataset.Dataset, _ Options) (*geo.FeatureCollection, *geo.Raster, error) {
		data, err := d.Bytes()
		if err != nil {
			return nil, nil, err
		}
		fc, err := fn(d.Label, data)
		return fc, nil, err
	}
}
