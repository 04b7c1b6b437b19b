// Package catalog looks up real column definitions for tables that SQL text
// references but never defines.
//
// This package holds the contract every catalog implements and the shared
// database/sql plumbing. Concrete catalogs live in subdirectories and
// register themselves from init:
//
//	import _ "github.com/leapstack-labs/schemagraph/pkg/catalog/postgres"
package catalog

import (
	"context"
	"errors"
)

// ErrTableNotFound is returned by Columns when the catalog has no such table.
var ErrTableNotFound = errors.New("table not found")

// Config holds connection settings for a catalog.
type Config struct {
	Type     string            `koanf:"type"`
	DSN      string            `koanf:"dsn"` // used as is when set
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"` // overrides the catalog's default schema
	Options  map[string]string `koanf:"options"`
}

// Column is a column as the database reports it.
type Column struct {
	Name         string
	Type         string
	Position     int
	Nullable     bool
	IsPrimaryKey bool
}

// Catalog resolves table names to their columns.
type Catalog interface {
	// Connect opens the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Columns returns the columns of table in ordinal order. table may be
	// qualified as schema.name. ErrTableNotFound (wrapped) signals a table
	// the catalog does not know.
	Columns(ctx context.Context, table string) ([]Column, error)

	// Name returns the registry name of the catalog.
	Name() string
}
