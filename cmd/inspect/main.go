package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/ingest"
	"github.com/woozymasta/geoconv/internal/logger"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/pretty"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Output string `short:"o" long:"out"    description:"Output file path. Writes to stdout if empty"`
	Format string `short:"f" long:"format" description:"Output format" choice:"table" choice:"json" choice:"yaml" default:"table"`
	Sheet  string `short:"s" long:"sheet"  env:"EXCEL_SHEET" description:"Excel sheet to read; first sheet when empty"`
	Stdin  string `long:"stdin"            description:"Read one file from stdin under this name (e.g. points.csv)"`

	Args struct {
		Files []string `positional-arg-name:"FILE"`
	} `positional-args:"yes"`
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

	sources, err := opts.sources()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read input")
	}
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no input files (pass FILE arguments or --stdin NAME)")
		os.Exit(1)
	}

	ws := dataset.NewWorkspace(ingest.NewRegistry(ingest.Options{Sheet: opts.Sheet}))
	datasets, warnings := ws.Ingest(sources)
	for _, w := range warnings {
		log.Warn().Msg(w)
	}

	reports := make([]Report, 0, len(datasets))
	for _, d := range datasets {
		reports = append(reports, newReport(ws, d))
	}

	out, err := encode(reports, opts.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, out, 0644); err != nil {
			log.Fatal().Err(err).Str("path", opts.Output).Msg("Failed to write output")
		}
		log.Info().Str("path", opts.Output).Int("datasets", len(reports)).Msg("Report written")
		return
	}
	_, _ = os.Stdout.Write(out)
}

func (o *Options) sources() ([]dataset.Source, error) {
	var sources []dataset.Source
	for _, path := range o.Args.Files {
		src, err := dataset.NewFileSource(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if o.Stdin != "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		sources = append(sources, dataset.NewMemorySource(o.Stdin, data))
	}
	return sources, nil
}

func encode(reports []Report, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.Marshal(reports)
		if err != nil {
			return nil, err
		}
		return pretty.Pretty(data), nil
	case "yaml":
		return yaml.Marshal(reports)
	default:
		return []byte(renderTable(reports)), nil
	}
}
