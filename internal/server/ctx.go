package server

import (
	"net/http"
	"sync"

	"github.com/woozymasta/geoconv/internal/config"
	"github.com/woozymasta/geoconv/internal/dataset"
	"github.com/woozymasta/geoconv/internal/export"

	"github.com/rs/zerolog/log"
)

// ServerContext holds dependencies for request handlers.
// The workspace has a single writer; mu serializes handlers that mutate it
// or fill its parse cache.
type ServerContext struct {
	Config    *config.Config
	Workspace *dataset.Workspace
	Exporter  *export.Exporter
	MaxUpload int64

	mu sync.RWMutex
}

// NewServerContext builds the workspace and exporter from the configuration.
// basemap may be nil, in which case raster exports render without tiles.
func NewServerContext(cfg *config.Config, parser dataset.Parser, basemap export.Basemap) *ServerContext {
	maxUpload := int64(cfg.Server.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 256 << 20
	}

	log.Info().
		Int64("max_upload_mb", maxUpload>>20).
		Str("export_format", string(cfg.Export.Format)).
		Bool("basemap", basemap != nil).
		Msg("Server context initialized")

	return &ServerContext{
		Config:    cfg,
		Workspace: dataset.NewWorkspace(parser),
		Exporter:  export.New(basemap),
		MaxUpload: maxUpload,
	}
}

// Routes registers the API on a new mux wrapped in request logging.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/formats", s.HandleFormats)
	mux.HandleFunc("POST /api/datasets", s.HandleUpload)
	mux.HandleFunc("GET /api/datasets", s.HandleList)
	mux.HandleFunc("GET /api/datasets/{id}", s.HandleGet)
	mux.HandleFunc("GET /api/datasets/{id}/preview", s.HandlePreview)
	mux.HandleFunc("PUT /api/datasets/{id}/style", s.HandleStyle)
	mux.HandleFunc("PUT /api/datasets/{id}/visible", s.HandleVisible)
	mux.HandleFunc("DELETE /api/datasets/{id}", s.HandleDelete)
	mux.HandleFunc("POST /api/datasets/{id}/export", s.HandleExport)
	mux.HandleFunc("POST /api/temporal", s.HandleTemporal)

	return RequestLogger(mux)
}
