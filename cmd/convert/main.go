package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/geoconv/internal/config"
	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/export"
	"github.com/woozymasta/geoconv/internal/ingest"
	"github.com/woozymasta/geoconv/internal/logger"
	"github.com/woozymasta/geoconv/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/pretty"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string  `short:"c" long:"config"         env:"CONFIG_FILE"  description:"Path to configuration file" default:"config.yaml"`
	OutDir      string  `short:"o" long:"out"            env:"OUT_DIR"      description:"Output directory" default:"."`
	Format      string  `short:"f" long:"format"         env:"FORMAT"       description:"Target format (geojson, csv, kml, kmz, gpx, shapefile, png, svg, geotiff)"`
	Prefix      *string `long:"prefix"                   description:"Output filename prefix"`
	Stem        string  `long:"stem"                     description:"Output filename stem; dataset label when empty"`
	CRS         string  `long:"crs"                      description:"Target CRS (EPSG:4326, EPSG:3857)"`
	CSVGeometry string  `long:"csv-geometry"             description:"CSV geometry layout" choice:"wkt" choice:"latlng"`
	NameField   string  `long:"name-field"               description:"Property used for KML and GPX names"`
	Simplify    float64 `long:"simplify"                 description:"Simplify geometries with this tolerance in degrees"`
	Metadata    bool    `long:"metadata"                 description:"Embed collection metadata in GeoJSON output"`
	Sheet       string  `short:"s" long:"sheet"          env:"EXCEL_SHEET"  description:"Excel sheet to read; first sheet when empty"`
	Color       string  `long:"color"                    description:"Stroke and fill colour (#rrggbb)"`
	Categorize  string  `long:"categorize"               description:"Colour features by the distinct values of this property"`
	Zoom        float64 `short:"z" long:"zoom"           description:"Raster zoom; fitted to the data when zero"`
	Width       int     `long:"width"                    description:"Raster width in pixels"`
	Height      int     `long:"height"                   description:"Raster height in pixels"`
	Basemap     bool    `short:"b" long:"basemap"        description:"Composite basemap tiles under raster exports"`
	Concurrency int     `short:"p" long:"concurrency"    env:"CONCURRENCY"  description:"Concurrent tile downloads"`
	TileTimeout int     `long:"tile-timeout"             description:"Per-tile timeout in milliseconds"`
	Compression string  `long:"tiff-compression"         description:"GeoTIFF compression" choice:"none" choice:"lzw" choice:"deflate"`
	Force       bool    `short:"F" long:"force"          description:"Force overwrite of existing files"`
	Summary     bool    `long:"summary"                  description:"Print a JSON summary to stdout"`

	Args struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.LoadOptional(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	exportCfg, err := opts.exportConfig(cfg.Export)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid export options")
	}

	var basemap export.Basemap
	if exportCfg.Basemap {
		client := &http.Client{
			Transport: &http.Transport{
				TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
			Timeout: 15 * time.Second,
		}
		basemap = processor.NewBasemap(client, cfg.Basemap)
	}

	job := processor.Job{
		Files:      opts.Args.Files,
		OutDir:     opts.OutDir,
		Config:     exportCfg,
		Categorize: opts.Categorize,
		Force:      opts.Force,
	}
	if opts.Color != "" {
		style := dataset.DefaultStyle()
		style.Color = opts.Color
		job.Style = &style
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Int("files", len(job.Files)).
		Str("format", string(exportCfg.Format)).
		Str("out", job.OutDir).
		Bool("basemap", basemap != nil).
		Msg("Starting conversion")

	converter := &processor.Converter{
		Parser:   ingest.NewRegistry(ingest.Options{Sheet: opts.Sheet}),
		Exporter: export.New(basemap),
	}
	summary, err := converter.Convert(ctx, job)
	if err != nil {
		log.Fatal().Err(err).Msg("Conversion failed")
	}

	for _, out := range summary.Outputs {
		for _, w := range out.Warnings {
			log.Warn().Str("dataset", out.Label).Msg(w)
		}
	}

	if opts.Summary {
		data, err := json.Marshal(summary)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode summary")
		}
		_, _ = os.Stdout.Write(pretty.Pretty(data))
	}

	if summary.Failed > 0 {
		os.Exit(2)
	}
}

// exportConfig overlays command line options on the configured export settings.
func (o *Options) exportConfig(base export.Config) (export.Config, error) {
	cfg := base
	if o.Format != "" {
		f, err := export.ParseFormat(o.Format)
		if err != nil {
			return cfg, err
		}
		cfg.Format = f
	}
	if o.Prefix != nil {
		cfg.Prefix = *o.Prefix
	}
	if o.Stem != "" {
		cfg.FilenameStem = o.Stem
	}
	if o.CRS != "" {
		cfg.CRS = o.CRS
	}
	if o.CSVGeometry != "" {
		cfg.CSVGeometry = o.CSVGeometry
	}
	if o.NameField != "" {
		cfg.NameField = o.NameField
	}
	if o.Simplify > 0 {
		cfg.Simplify = true
		cfg.SimplifyTolerance = o.Simplify
	}
	if o.Metadata {
		cfg.IncludeMetadata = true
	}
	if o.Zoom > 0 {
		cfg.RasterZoom = o.Zoom
	}
	if o.Width > 0 {
		cfg.RasterWidth = o.Width
	}
	if o.Height > 0 {
		cfg.RasterHeight = o.Height
	}
	if o.Basemap {
		cfg.Basemap = true
	}
	if o.Concurrency > 0 {
		cfg.RasterConcurrency = o.Concurrency
	}
	if o.TileTimeout > 0 {
		cfg.RasterTileTimeoutMS = o.TileTimeout
	}
	if o.Compression != "" {
		cfg.TIFFCompression = o.Compression
	}
	return cfg, nil
}
