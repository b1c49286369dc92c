package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/woozymasta/geoconv/internal/config"
	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/geo"
	"github.com/woozymasta/geoconv/internal/ingest"
	"github.com/woozymasta/geoconv/internal/logger"
	"github.com/woozymasta/geoconv/internal/temporal"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string        `short:"c" long:"config"   env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Field      string        `short:"t" long:"field"    description:"Timestamp property; first detected time field when empty"`
	Mode       string        `short:"m" long:"mode"     description:"Filter mode" choice:"full" choice:"window" choice:"moving" choice:"cumulative" default:"cumulative"`
	From       string        `long:"from"               description:"Range start (RFC 3339 or epoch milliseconds)"`
	To         string        `long:"to"                 description:"Range end (RFC 3339 or epoch milliseconds)"`
	Speed      float64       `long:"speed"              description:"Playback speed multiplier"`
	WindowSec  float64       `long:"window-sec"         description:"Data seconds advanced per wall-clock second"`
	Interval   time.Duration `short:"i" long:"interval" description:"Frame interval" default:"250ms"`
	Loop       bool          `long:"loop"               description:"Keep wrapping around in full and cumulative modes"`
	Sheet      string        `short:"s" long:"sheet"    env:"EXCEL_SHEET" description:"Excel sheet to read; first sheet when empty"`

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
	if opts.Speed <= 0 {
		opts.Speed = cfg.Temporal.Speed
	}
	if opts.WindowSec <= 0 {
		opts.WindowSec = cfg.Temporal.WindowSec
	}

	collections, labels, err := load(opts.Args.Files, opts.Sheet)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load datasets")
	}

	field := opts.Field
	if field == "" {
		field = detectField(collections)
		if field == "" {
			log.Fatal().Msg("No time field detected; pass --field")
		}
		log.Info().Str("field", field).Msg("Using detected time field")
	}

	mode, err := temporal.ParseMode(opts.Mode)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid mode")
	}

	engine := temporal.NewEngine(field, collections...)
	player := temporal.NewPlayer(engine, mode, opts.Speed, opts.WindowSec)
	if opts.From != "" || opts.To != "" {
		domain := engine.Domain()
		start, end := domain.Min, domain.Max
		if opts.From != "" {
			if start, err = parseBound(opts.From); err != nil {
				log.Fatal().Err(err).Msg("Invalid --from")
			}
		}
		if opts.To != "" {
			if end, err = parseBound(opts.To); err != nil {
				log.Fatal().Err(err).Msg("Invalid --to")
			}
		}
		player.SetRange(start, end)
		player.Seek(start)
	}

	log.Info().
		Str("field", field).
		Ints("indexed", engine.Indexed()).
		Ints("skipped", engine.Skipped()).
		Str("state", engine.Describe(player.State())).
		Msg("Timeline ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_, upper := engine.CursorRange(player.State())
	err = player.Run(ctx, opts.Interval, func(s temporal.State, frame []*geo.FeatureCollection) {
		fmt.Println(formatFrame(s, labels, temporal.Counts(frame)))
		if !opts.Loop && s.Cursor >= upper {
			cancel()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Playback failed")
	}
}

// load parses files into vector collections; rasters are skipped.
func load(files []string, sheet string) ([]*geo.FeatureCollection, []string, error) {
	sources := make([]dataset.Source, 0, len(files))
	for _, path := range files {
		src, err := dataset.NewFileSource(path)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, src)
	}

	ws := dataset.NewWorkspace(ingest.NewRegistry(ingest.Options{Sheet: sheet}))
	datasets, warnings := ws.Ingest(sources)
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	var (
		collections []*geo.FeatureCollection
		labels      []string
	)
	for _, d := range datasets {
		fc, _, err := ws.Parse(d.UID)
		if err != nil {
			log.Error().Err(err).Str("dataset", d.Label).Msg("Failed to parse dataset")
			continue
		}
		if fc == nil {
			log.Warn().Str("dataset", d.Label).Msg("Raster dataset has no timeline")
			continue
		}
		collections = append(collections, fc)
		labels = append(labels, d.Label)
	}
	if len(collections) == 0 {
		return nil, nil, errors.New("no vector datasets loaded")
	}
	return collections, labels, nil
}

// detectField returns the first time field any collection reports.
func detectField(collections []*geo.FeatureCollection) string {
	for _, fc := range collections {
		if len(fc.Metadata.TimeFields) > 0 {
			return fc.Metadata.TimeFields[0]
		}
	}
	return ""
}

func parseBound(s string) (float64, error) {
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		return ms, nil
	}
	t, ok := geo.TimeValue(s)
	if !ok {
		return 0, fmt.Errorf("unparseable time %q", s)
	}
	return t, nil
}

func formatFrame(s temporal.State, labels []string, counts []int) string {
	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = fmt.Sprintf("%s=%d", label, counts[i])
	}
	return fmt.Sprintf("%s  %s", geo.FormatTime(s.Cursor), strings.Join(parts, " "))
}
