// Package duckdb provides a DuckDB catalog. Point it at a database file to
// resolve tables a project's SQL reads from.
//
// Import it with a blank identifier to register the catalog:
//
//	import _ "github.com/leapstack-labs/schemagraph/pkg/catalog/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/schemagraph/pkg/catalog"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Name is the registry name of this catalog.
const Name = "duckdb"

func init() {
	catalog.Register(Name, func(logger *slog.Logger) catalog.Catalog { return New(logger) })
}

// Catalog reads DuckDB's information_schema.
type Catalog struct {
	catalog.BaseSQLCatalog
}

// New creates a new DuckDB catalog instance.
func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		BaseSQLCatalog: catalog.BaseSQLCatalog{
			Logger:        logger,
			DefaultSchema: "main",
			Placeholder:   catalog.DollarPlaceholder,
		},
	}
}

// Name returns the registry name.
func (c *Catalog) Name() string {
	return Name
}

// Connect opens the database file in read-only mode.
// An empty path opens an in-memory database.
func (c *Catalog) Connect(ctx context.Context, cfg catalog.Config) error {
	path := cfg.DSN
	if path == "" {
		path = cfg.Path
	}
	if path != "" && path != ":memory:" {
		path += "?access_mode=read_only"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	c.DB = db
	c.Cfg = cfg
	return nil
}

// Columns returns the columns of table.
func (c *Catalog) Columns(ctx context.Context, table string) ([]catalog.Column, error) {
	return c.ColumnsCommon(ctx, table)
}
