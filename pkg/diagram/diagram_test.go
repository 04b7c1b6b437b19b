package diagram

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/schemagraph/internal/testutil"
	"github.com/leapstack-labs/schemagraph/pkg/catalog"
	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/layout"
	"github.com/leapstack-labs/schemagraph/pkg/parser"
)

const warehouse = `
CREATE TABLE users (
    id INT PRIMARY KEY,
    email VARCHAR(255)
);
CREATE TABLE orders (
    id INT PRIMARY KEY,
    user_id INT REFERENCES users(id),
    total DECIMAL(10, 2)
);
CREATE VIEW order_summary AS
SELECT u.email, SUM(o.total) AS revenue
FROM users u JOIN orders o ON o.user_id = u.id
GROUP BY u.email;
CREATE VIEW top_customers AS
SELECT s.email FROM order_summary s WHERE s.revenue > 1000;
SELECT e.id FROM events e;`

func TestGenerate(t *testing.T) {
	res, err := Generate(context.Background(), warehouse, Options{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)

	d := res.Diagram
	var ids []string
	for _, n := range d.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"users", "orders", "order_summary", "top_customers", parser.DefaultAdHocName, "events"}, ids)
	assert.Len(t, res.Tables, 6)
	assert.True(t, res.Tables[5].IsStub)
	assert.Empty(t, res.Skipped)

	for _, n := range d.Nodes {
		assert.Equal(t, 240.0, n.Width)
		assert.Equal(t, 60+32*float64(len(n.Columns)), n.Height)
	}

	// structural edges point at the referenced table
	assert.Equal(t, 0, res.Layout.Ranks["orders"])
	assert.Equal(t, 1, res.Layout.Ranks["users"])
	assert.Equal(t, 2, res.Layout.Ranks["order_summary"])
	assert.Equal(t, 3, res.Layout.Ranks["top_customers"])
	assert.Equal(t, 0, res.Layout.Ranks["events"])
	assert.Len(t, res.Fingerprint, 32)
}

func TestGenerate_Deterministic(t *testing.T) {
	first, err := Generate(context.Background(), warehouse, Options{})
	require.NoError(t, err)
	second, err := Generate(context.Background(), warehouse, Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Diagram, second.Diagram)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	changed, err := Generate(context.Background(), warehouse+"\nCREATE TABLE extra (id INT);", Options{})
	require.NoError(t, err)
	assert.NotEqual(t, first.Fingerprint, changed.Fingerprint)
}

func TestGenerate_TopToBottom(t *testing.T) {
	res, err := Generate(context.Background(), warehouse, Options{Layout: layout.Options{Direction: layout.TopToBottom}})
	require.NoError(t, err)

	users, _ := res.Diagram.Node("users")
	summary, _ := res.Diagram.Node("order_summary")
	assert.Less(t, users.Position.Y, summary.Position.Y)
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, warehouse, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_EmptyInput(t *testing.T) {
	res, err := Generate(context.Background(), "  -- nothing here\n", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Diagram.Nodes)
	assert.Empty(t, res.Diagram.Edges)
}

// staticCatalog serves fixed columns.
type staticCatalog struct {
	tables map[string][]catalog.Column
	err    error
}

func (s *staticCatalog) Connect(context.Context, catalog.Config) error { return nil }
func (s *staticCatalog) Close() error                                  { return nil }
func (s *staticCatalog) Name() string                                  { return "static" }

func (s *staticCatalog) Columns(_ context.Context, table string) ([]catalog.Column, error) {
	if s.err != nil {
		return nil, s.err
	}
	cols, ok := s.tables[table]
	if !ok {
		return nil, catalog.ErrTableNotFound
	}
	return cols, nil
}

func TestGenerate_CatalogEnrichment(t *testing.T) {
	cat := &staticCatalog{tables: map[string][]catalog.Column{
		"events": {
			{Name: "id", Type: "bigint", IsPrimaryKey: true},
			{Name: "kind", Type: "text"},
		},
	}}
	res, err := Generate(context.Background(), warehouse, Options{Catalog: cat})
	require.NoError(t, err)

	events, ok := res.Diagram.Node("events")
	require.True(t, ok)
	assert.True(t, events.IsStub)
	assert.Equal(t, []core.Column{
		{Name: "id", Type: "bigint", IsPrimaryKey: true},
		{Name: "kind", Type: "text"},
	}, events.Columns)
	assert.Equal(t, 60.0+2*32, events.Height)
}

func TestGenerate_CatalogFailureIsLogged(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger(slog.LevelWarn)
	res, err := Generate(context.Background(), warehouse, Options{
		Catalog: &staticCatalog{err: assert.AnError},
		Logger:  logger,
	})
	require.NoError(t, err)

	events, _ := res.Diagram.Node("events")
	assert.Equal(t, "id", events.Columns[0].Name)
	assert.Equal(t, core.ProvenanceSource, events.Columns[0].Provenance)
	assert.True(t, logs.Contains("catalog enrichment failed", "catalog=static"))
}

func TestImpactOf(t *testing.T) {
	res, err := Generate(context.Background(), warehouse, Options{})
	require.NoError(t, err)

	imp, ok := ImpactOf(res.Diagram, "ORDER_SUMMARY")
	require.True(t, ok)
	assert.Equal(t, Impact{
		Table:      "order_summary",
		Upstream:   []string{"orders", "users"},
		Downstream: []string{"top_customers"},
	}, imp)

	_, ok = ImpactOf(res.Diagram, "nope")
	assert.False(t, ok)
}

func TestLevels(t *testing.T) {
	res, err := Generate(context.Background(), warehouse, Options{})
	require.NoError(t, err)

	levels := Levels(res.Diagram)
	require.Len(t, levels, 4)
	assert.Equal(t, []string{"events", "users"}, levels[0])
	assert.Equal(t, []string{parser.DefaultAdHocName, "orders"}, levels[1])
	assert.Equal(t, []string{"order_summary"}, levels[2])
	assert.Equal(t, []string{"top_customers"}, levels[3])
}

func TestShapeOf(t *testing.T) {
	res, err := Generate(context.Background(), warehouse, Options{})
	require.NoError(t, err)

	shape := ShapeOf(res.Diagram)
	assert.Equal(t, []string{"events", "users"}, shape.Sources)
	assert.Equal(t, []string{parser.DefaultAdHocName, "top_customers"}, shape.Sinks)
	assert.Nil(t, shape.Cycle)

	cyclic, err := Generate(context.Background(), `
CREATE VIEW a AS SELECT b.id FROM b;
CREATE VIEW b AS SELECT a.id FROM a;`, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a"}, ShapeOf(cyclic.Diagram).Cycle)
}

func TestGenerate_Focus(t *testing.T) {
	res, err := Generate(context.Background(), warehouse, Options{Focus: "top_customers"})
	require.NoError(t, err)

	var ids []string
	for _, n := range res.Diagram.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"users", "orders", "order_summary", "top_customers"}, ids)
	for _, e := range res.Diagram.Edges {
		assert.NotEqual(t, "events", e.Source)
	}

	res, err = Generate(context.Background(), warehouse, Options{Focus: "missing"})
	require.NoError(t, err)
	assert.Empty(t, res.Diagram.Nodes)
}
