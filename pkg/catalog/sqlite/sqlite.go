// Package sqlite provides a SQLite catalog backed by the pure-Go modernc
// driver.
//
// Import it with a blank identifier to register the catalog:
//
//	import _ "github.com/leapstack-labs/schemagraph/pkg/catalog/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/catalog"

	_ "modernc.org/sqlite" // sqlite driver
)

// Name is the registry name of this catalog.
const Name = "sqlite"

func init() {
	catalog.Register(Name, func(logger *slog.Logger) catalog.Catalog { return New(logger) })
}

// Catalog reads table definitions through pragma_table_info. SQLite has no
// information_schema.
type Catalog struct {
	catalog.BaseSQLCatalog
}

// New creates a new SQLite catalog instance.
func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		BaseSQLCatalog: catalog.BaseSQLCatalog{Logger: logger, DefaultSchema: "main"},
	}
}

// Name returns the registry name.
func (c *Catalog) Name() string {
	return Name
}

// Connect opens the database file read-only.
func (c *Catalog) Connect(ctx context.Context, cfg catalog.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Path
	}
	if dsn == "" {
		return fmt.Errorf("sqlite catalog requires a database path")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn + "?mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	c.DB = db
	c.Cfg = cfg
	return nil
}

// Columns returns the columns of table. A schema qualifier, or the configured
// schema for an unqualified table, names an attached database.
func (c *Catalog) Columns(ctx context.Context, table string) ([]catalog.Column, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	schema, name := c.SchemaFor(table)

	rows, err := c.DB.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`, name, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []catalog.Column
	for rows.Next() {
		var (
			col          catalog.Column
			cid, pk      int
			notNull      bool
			declaredType sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &declaredType, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Position = cid + 1
		col.Type = declaredType.String
		col.Nullable = !notNull
		col.IsPrimaryKey = pk > 0
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", schema, name, catalog.ErrTableNotFound)
	}
	return columns, nil
}
