// Package processor runs file conversions and fetches basemap tiles for raster exports.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/export"
	"github.com/woozymasta/geoconv/internal/geo"

	"github.com/rs/zerolog/log"
)

// Job describes one batch conversion.
type Job struct {
	Files      []string      // input paths, grouped into datasets
	OutDir     string        // destination directory, created when missing
	Config     export.Config // target format and serializer options
	Style      *dataset.Style
	Categorize string // property to colour categories by, per dataset
	Force      bool   // overwrite existing outputs
}

// Output is one converted dataset.
type Output struct {
	Label    string   `json:"label"`
	Path     string   `json:"path,omitempty"`
	Features int      `json:"features"`
	Dropped  int      `json:"dropped"`
	Warnings []string `json:"warnings,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
	Err      string   `json:"error,omitempty"`
}

// Summary reports a finished batch.
type Summary struct {
	Outputs  []Output `json:"outputs"`
	Warnings []string `json:"warnings,omitempty"` // grouping warnings
	Datasets int      `json:"datasets"`
	Features int      `json:"features"`
	Failed   int      `json:"failed"`
}

// Converter ingests files through a parser and writes every dataset in the target format.
type Converter struct {
	Parser   dataset.Parser
	Exporter *export.Exporter
}

// Convert groups job.Files into datasets, parses and exports each one.
// Per-dataset failures are recorded in the summary; only setup errors and
// cancellation are returned.
func (c *Converter) Convert(ctx context.Context, job Job) (*Summary, error) {
	if job.Config.Format == "" {
		job.Config.Format = export.DefaultConfig().Format
	}

	sources := make([]dataset.Source, 0, len(job.Files))
	for _, path := range job.Files {
		src, err := dataset.NewFileSource(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		sources = append(sources, src)
	}

	if err := os.MkdirAll(job.OutDir, 0755); err != nil {
		return nil, geo.WrapError(geo.KindDownstreamIO, err, "create output directory")
	}

	ws := dataset.NewWorkspace(c.Parser)
	datasets, warnings := ws.Ingest(sources)
	summary := &Summary{Datasets: len(datasets), Warnings: warnings}
	for _, w := range warnings {
		log.Warn().Str("reason", w).Msg("File not grouped")
	}

	for _, d := range datasets {
		if err := ctx.Err(); err != nil {
			return summary, geo.WrapError(geo.KindCanceled, err, "conversion canceled")
		}

		out := c.convertDataset(ctx, ws, d, job)
		if out.Err != "" {
			summary.Failed++
			log.Error().Str("dataset", d.Label).Str("error", out.Err).Msg("Failed to convert dataset")
		}
		summary.Features += out.Features
		summary.Outputs = append(summary.Outputs, out)
	}

	log.Info().
		Int("datasets", summary.Datasets).
		Int("features", summary.Features).
		Int("failed", summary.Failed).
		Msg("Conversion finished")

	return summary, nil
}

func (c *Converter) convertDataset(ctx context.Context, ws *dataset.Workspace, d *dataset.Dataset, job Job) Output {
	out := Output{Label: d.Label}

	fc, raster, err := ws.Parse(d.UID)
	if err != nil {
		out.Err = err.Error()
		return out
	}

	if raster != nil {
		return writeRaster(out, raster, job)
	}

	out.Dropped = fc.Metadata.Dropped
	out.Warnings = append(out.Warnings, fc.Metadata.Warnings...)

	style, _ := ws.Style(d.UID)
	if job.Style != nil {
		style = *job.Style
	}
	if job.Categorize != "" {
		style.Symbology = dataset.Categorize(job.Categorize, fc.Features)
	}

	cfg := job.Config
	if cfg.FilenameStem == "" {
		cfg.FilenameStem = d.Label
	}
	filename := export.Filename(cfg.Prefix, cfg.FilenameStem, cfg.Format)
	path := filepath.Join(job.OutDir, filename)
	if !job.Force && exists(path) {
		log.Debug().Str("path", path).Msg("Output exists, skipping")
		out.Path, out.Skipped = path, true
		return out
	}

	res, err := c.Exporter.Export(ctx, fc, style, cfg)
	if err != nil {
		out.Err = err.Error()
		return out
	}
	out.Features = res.Features
	out.Warnings = append(out.Warnings, res.Warnings...)

	out.Path = filepath.Join(job.OutDir, res.Filename)
	if err := writeFile(out.Path, res.Bytes); err != nil {
		out.Err = err.Error()
	}
	return out
}

// writeRaster passes GeoTIFF sources through unchanged, or writes their PNG preview.
func writeRaster(out Output, r *geo.Raster, job Job) Output {
	out.Warnings = append(out.Warnings, r.Warnings...)

	var data []byte
	switch job.Config.Format {
	case export.FormatGeoTIFF:
		data = r.Original
	case export.FormatPNG:
		data = r.Preview
	default:
		out.Err = geo.Errorf(geo.KindUnsupported, "raster dataset %s cannot be exported as %s", r.Label, job.Config.Format).Error()
		return out
	}

	stem := job.Config.FilenameStem
	if stem == "" {
		stem = r.Label
	}
	out.Path = filepath.Join(job.OutDir, export.Filename(job.Config.Prefix, stem, job.Config.Format))
	if !job.Force && exists(out.Path) {
		out.Skipped = true
		return out
	}
	if err := writeFile(out.Path, data); err != nil {
		out.Err = err.Error()
	}
	return out
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// writeFile writes data to path, reporting close errors.
func writeFile(path string, data []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return geo.WrapError(geo.KindDownstreamIO, err, "create "+path)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
			if err == nil {
				err = geo.WrapError(geo.KindDownstreamIO, closeErr, "close "+path)
			}
		}
	}()

	if _, err := f.Write(data); err != nil {
		return geo.WrapError(geo.KindDownstreamIO, err, "write "+path)
	}
	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Output written")
	return nil
}
