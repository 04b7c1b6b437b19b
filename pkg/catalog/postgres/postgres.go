// Package postgres provides a PostgreSQL catalog.
//
// Import it with a blank identifier to register the catalog:
//
//	import _ "github.com/leapstack-labs/schemagraph/pkg/catalog/postgres"
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/leapstack-labs/schemagraph/pkg/catalog"
)

// Name is the registry name of this catalog.
const Name = "postgres"

func init() {
	catalog.Register(Name, func(logger *slog.Logger) catalog.Catalog { return New(logger) })
}

// Catalog reads PostgreSQL's information_schema.
type Catalog struct {
	catalog.BaseSQLCatalog
}

// New creates a new PostgreSQL catalog instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{
		BaseSQLCatalog: catalog.BaseSQLCatalog{
			Logger:        logger,
			DefaultSchema: "public",
			Placeholder:   catalog.DollarPlaceholder,
		},
	}
}

// Name returns the registry name.
func (c *Catalog) Name() string {
	return Name
}

// Connect establishes a connection to PostgreSQL.
func (c *Catalog) Connect(ctx context.Context, cfg catalog.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildPostgresDSN(cfg)
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("invalid postgres connection string: %w", err)
	}
	c.Logger.Debug("connecting to postgres", slog.String("host", connCfg.Host), slog.String("database", connCfg.Database))

	db := stdlib.OpenDB(*connCfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	c.DB = db
	c.Cfg = cfg
	return nil
}

// Columns returns the columns of table.
func (c *Catalog) Columns(ctx context.Context, table string) ([]catalog.Column, error) {
	return c.ColumnsCommon(ctx, table)
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg catalog.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		host, port, cfg.Database, sslmode)

	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}
