// Package config holds project-level defaults and config file discovery
// shared by the CLI and the server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/schemagraph/pkg/catalog"
)

// Default configuration values.
const (
	DefaultOutput          = "auto" // TTY=text, otherwise markdown
	DefaultLogLevel        = "warn"
	DefaultResolution      = "first"
	DefaultDirection       = "LR"
	DefaultServerAddr      = "127.0.0.1:8787"
	DefaultRateLimit       = 20.0 // requests per second per client
	DefaultRateBurst       = 40
	DefaultMaxBodyBytes    = 4 << 20
	DefaultRequestTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultDebounce        = 200 * time.Millisecond
)

// Defaults returns the lowest-priority configuration layer, keyed the way
// the config file is.
func Defaults() map[string]any {
	return map[string]any{
		"verbose":                 false,
		"log_level":               DefaultLogLevel,
		"output":                  DefaultOutput,
		"resolution":              DefaultResolution,
		"layout.direction":        DefaultDirection,
		"layout.node_sep":         100.0,
		"layout.rank_sep":         250.0,
		"layout.node_width":       240.0,
		"layout.header_height":    60.0,
		"layout.row_height":       32.0,
		"layout.sweeps":           12,
		"server.addr":             DefaultServerAddr,
		"server.allowed_origins":  []string{"*"},
		"server.rate_limit":       DefaultRateLimit,
		"server.burst":            DefaultRateBurst,
		"server.max_body_bytes":   DefaultMaxBodyBytes,
		"server.request_timeout":  DefaultRequestTimeout.String(),
		"server.shutdown_timeout": DefaultShutdownTimeout.String(),
		"watch.debounce":          DefaultDebounce.String(),
	}
}

// DefaultSchemaForType returns the schema unqualified names resolve to.
func DefaultSchemaForType(catalogType string) string {
	switch strings.ToLower(catalogType) {
	case "postgres", "postgresql":
		return "public"
	case "duckdb", "sqlite":
		return "main"
	default:
		return ""
	}
}

// ApplyCatalogDefaults normalizes the catalog type and fills the schema.
func ApplyCatalogDefaults(c *catalog.Config) {
	if c == nil || c.Type == "" {
		return
	}
	c.Type = strings.ToLower(c.Type)
	if c.Type == "postgresql" {
		c.Type = "postgres"
	}
	if c.Schema == "" {
		c.Schema = DefaultSchemaForType(c.Type)
	}
}

// ValidateCatalog checks that a configured catalog type is registered. An
// empty type means no catalog and is valid.
func ValidateCatalog(c *catalog.Config) error {
	if c == nil || c.Type == "" {
		return nil
	}
	if !catalog.IsRegistered(c.Type) {
		return &catalog.UnknownCatalogError{Type: c.Type, Available: catalog.List()}
	}
	if c.DSN == "" && c.Path == "" && c.Database == "" {
		return fmt.Errorf("catalog %s: one of dsn, path or database is required", c.Type)
	}
	return nil
}
