package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/woozymasta/geoconv/internal/config"
	"github.com/woozymasta/geoconv/internal/export"
	"github.com/woozymasta/geoconv/internal/ingest"
	"github.com/woozymasta/geoconv/internal/logger"
	"github.com/woozymasta/geoconv/internal/processor"
	"github.com/woozymasta/geoconv/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"     env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	Addr       string `short:"a" long:"addr"       env:"LISTEN_ADDRESS" description:"Address to listen on"`
	Port       int    `short:"p" long:"port"       env:"LISTEN_PORT"    description:"Port to listen on"`
	Sheet      string `short:"s" long:"sheet"      env:"EXCEL_SHEET"    description:"Excel sheet to read; first sheet when empty"`
	NoBasemap  bool   `long:"no-basemap"           env:"NO_BASEMAP"     description:"Render raster exports without basemap tiles"`
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

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.LoadOptional(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}

	var basemap export.Basemap
	if !opts.NoBasemap && cfg.Basemap.URL != "" {
		basemap = processor.NewBasemap(&http.Client{Timeout: 15 * time.Second}, cfg.Basemap)
	}

	srvCtx := server.NewServerContext(cfg, ingest.NewRegistry(ingest.Options{Sheet: opts.Sheet}), basemap)

	listenAddr := fmt.Sprintf("%s:%d", cfg.Server.Addr, cfg.Server.Port)
	log.Info().
		Str("addr", listenAddr).
		Str("basemap", cfg.Basemap.URL).
		Msg("Web server started")

	if err := http.ListenAndServe(listenAddr, srvCtx.Routes()); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
