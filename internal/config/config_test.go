package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/woozymasta/geoconv/internal/export"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9000
basemap:
  url: "https://tiles.example.com/{z}/{x}/{y}.png"
  cache_dir: /tmp/tiles
export:
  format: kml
  name_field: title
  raster_concurrency: 3
temporal:
  speed: 2
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadMB != 256 {
		t.Errorf("max upload should keep default, got %d", cfg.Server.MaxUploadMB)
	}
	if cfg.Basemap.CacheDir != "/tmp/tiles" {
		t.Errorf("cache dir = %q", cfg.Basemap.CacheDir)
	}
	if cfg.Export.Format != export.FormatKML || cfg.Export.NameField != "title" {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Export.RasterConcurrency != 3 {
		t.Errorf("concurrency = %d, want 3", cfg.Export.RasterConcurrency)
	}
	if cfg.Export.RasterWidth != export.DefaultConfig().RasterWidth {
		t.Errorf("raster width should keep default, got %d", cfg.Export.RasterWidth)
	}
	if cfg.Temporal.Speed != 2 || cfg.Temporal.WindowSec != 3600 {
		t.Errorf("temporal = %+v", cfg.Temporal)
	}
}

func TestLoadOptional(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("server: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOptional(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
