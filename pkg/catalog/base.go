package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// BaseSQLCatalog provides common database/sql functionality for catalogs
// backed by information_schema. Embed it in concrete catalogs.
type BaseSQLCatalog struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger

	// DefaultSchema is used for unqualified table names.
	DefaultSchema string
	// Placeholder formats the n-th (1-based) bind parameter. Nil means "?".
	Placeholder func(n int) string
}

// Close closes the database connection.
func (b *BaseSQLCatalog) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing catalog connection")
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLCatalog) IsConnected() bool {
	return b.DB != nil
}

func (b *BaseSQLCatalog) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func (b *BaseSQLCatalog) placeholder(n int) string {
	if b.Placeholder == nil {
		return "?"
	}
	return b.Placeholder(n)
}

// DollarPlaceholder formats $1, $2, ...
func DollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// ParseQualifiedName splits a table reference into schema and name. The last
// two dotted segments are used, so catalog.schema.table also works.
func ParseQualifiedName(table, defaultSchema string) (schema, name string) {
	parts := strings.Split(table, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2], parts[len(parts)-1]
	}
	return defaultSchema, table
}

// SchemaFor splits table into schema and name. An unqualified table takes
// the configured schema, or the catalog default when none is configured.
func (b *BaseSQLCatalog) SchemaFor(table string) (schema, name string) {
	def := b.DefaultSchema
	if b.Cfg.Schema != "" {
		def = b.Cfg.Schema
	}
	return ParseQualifiedName(table, def)
}

// ColumnsCommon reads columns from information_schema.columns and marks
// primary keys from information_schema.table_constraints.
func (b *BaseSQLCatalog) ColumnsCommon(ctx context.Context, table string) ([]Column, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	schema, name := b.SchemaFor(table)

	//nolint:gosec // placeholders come from the catalog, never from input
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, b.placeholder(1), b.placeholder(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", schema, name, ErrTableNotFound)
	}

	keys, err := b.primaryKeys(ctx, schema, name)
	if err != nil {
		// Non-fatal: columns are still useful without key flags
		b.logger().Debug("primary key lookup failed", slog.String("table", table), slog.Any("error", err))
		return columns, nil
	}
	for i := range columns {
		columns[i].IsPrimaryKey = keys[strings.ToLower(columns[i].Name)]
	}
	return columns, nil
}

func (b *BaseSQLCatalog) primaryKeys(ctx context.Context, schema, name string) (map[string]bool, error) {
	//nolint:gosec // placeholders come from the catalog, never from input
	query := fmt.Sprintf(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = %s AND tc.table_name = %s
	`, b.placeholder(1), b.placeholder(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]bool)
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan primary key: %w", err)
		}
		keys[strings.ToLower(col)] = true
	}
	return keys, rows.Err()
}
