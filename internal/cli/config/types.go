// Package config loads CLI configuration from defaults, schemagraph.yaml,
// SCHEMAGRAPH_* environment variables and command-line flags.
package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/schemagraph/pkg/catalog"
	"github.com/leapstack-labs/schemagraph/pkg/diagram"
	"github.com/leapstack-labs/schemagraph/pkg/layout"
	"github.com/leapstack-labs/schemagraph/pkg/parser"
)

// Config holds all CLI configuration options.
type Config struct {
	Verbose      bool              `koanf:"verbose"`
	LogLevel     string            `koanf:"log_level"`
	OutputFormat string            `koanf:"output"`
	Resolution   parser.Resolution `koanf:"resolution"`
	AdHocName    string            `koanf:"adhoc_name"`
	Focus        string            `koanf:"focus"`
	Layout       layout.Options    `koanf:"layout"`
	Catalog      catalog.Config    `koanf:"catalog"`
	Server       ServerConfig      `koanf:"server"`
	Watch        WatchConfig       `koanf:"watch"`

	// ConfigFile is the file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second per client; 0 disables
	Burst           int           `koanf:"burst"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// WatchConfig holds configuration for file watching.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// Level returns the slog level: debug when verbose, otherwise LogLevel
// (warn when unset or unknown).
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelWarn
	}
	return lvl
}

// DiagramOptions builds pipeline options from the config. The catalog is
// not connected here.
func (c *Config) DiagramOptions(logger *slog.Logger) diagram.Options {
	return diagram.Options{
		Parser: parser.Options{
			Resolution: c.Resolution,
			AdHocName:  c.AdHocName,
			Logger:     logger,
		},
		Layout: c.Layout,
		Focus:  c.Focus,
		Logger: logger,
	}
}
