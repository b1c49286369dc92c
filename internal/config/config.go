// Package config handles configuration loading.
package config

import (
	"os"

	"github.com/woozymasta/geoconv/internal/export"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration file structure.
type Config struct {
	Basemap  Basemap       `yaml:"basemap" json:"basemap"`
	Server   Server        `yaml:"server" json:"server"`
	Export   export.Config `yaml:"export" json:"export"`
	Temporal Temporal      `yaml:"temporal" json:"temporal"`
}

// Server holds HTTP listener settings.
type Server struct {
	Addr        string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Port        int    `yaml:"port,omitempty" json:"port,omitempty"`
	MaxUploadMB int    `yaml:"max_upload_mb,omitempty" json:"max_upload_mb,omitempty"`
}

// Basemap configures the tile source for composite raster exports.
type Basemap struct {
	URL         string `yaml:"url,omitempty" json:"url,omitempty"` // {z} {x} {y} {tms_y} placeholders
	CacheDir    string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
	UserAgent   string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	Attribution string `yaml:"attribution,omitempty" json:"attribution,omitempty"`
}

// Temporal holds playback defaults.
type Temporal struct {
	Speed     float64 `yaml:"speed,omitempty" json:"speed,omitempty"`
	WindowSec float64 `yaml:"window_sec,omitempty" json:"window_sec,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   Server{Port: 8080, MaxUploadMB: 256},
		Export:   export.DefaultConfig(),
		Temporal: Temporal{Speed: 1, WindowSec: 3600},
		Basemap: Basemap{
			URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			UserAgent:   "geoconv",
			Attribution: "© OpenStreetMap contributors",
		},
	}
}

// Load reads and parses the YAML configuration file from the specified path.
// Missing values keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOptional behaves like Load but returns defaults when path is empty or absent.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}
