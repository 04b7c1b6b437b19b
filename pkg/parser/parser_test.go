package parser

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/schemagraph/pkg/core"
)

func columnNames(t *core.Table) []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func TestParse_CreateTablePrimaryKey(t *testing.T) {
	res := Parse(`CREATE TABLE t (c1 INT PRIMARY KEY, c2 VARCHAR(10))`, Options{})

	require.Len(t, res.Tables, 1)
	tbl := res.Tables[0]
	assert.Equal(t, "t", tbl.Name)
	assert.Equal(t, core.RoleTable, tbl.Role())
	require.Len(t, tbl.Columns, 2)
	assert.Equal(t, core.Column{Name: "c1", Type: "INT", IsPrimaryKey: true}, tbl.Columns[0])
	assert.Equal(t, core.Column{Name: "c2", Type: "VARCHAR(10)"}, tbl.Columns[1])
	assert.Empty(t, tbl.ForeignKeys)
}

func TestParse_TableForeignKey(t *testing.T) {
	res := Parse(`
CREATE TABLE t1 (id INT PRIMARY KEY);
CREATE TABLE t2 (id INT, uid INT, FOREIGN KEY (uid) REFERENCES t1(id));
`, Options{})

	t2 := res.Table("t2")
	require.NotNil(t, t2)
	assert.Equal(t, []core.ForeignKeyRef{{Column: "uid", ReferencedTable: "t1", ReferencedColumn: "id"}}, t2.ForeignKeys)
	assert.True(t, t2.Column("uid").IsForeignKey)
	assert.False(t, t2.Column("id").IsForeignKey)
}

func TestParse_CreateTableDetails(t *testing.T) {
	sql := `
CREATE TABLE IF NOT EXISTS sales.order_items (
  order_id BIGINT NOT NULL,
  line_no INT,
  product_id INT REFERENCES products(id),
  price DOUBLE PRECISION,
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
  CONSTRAINT pk_items PRIMARY KEY (order_id, line_no),
  CONSTRAINT fk_order FOREIGN KEY (order_id, line_no) REFERENCES sales.orders (id, line),
  INDEX idx_product (product_id)
) SORTKEY(created_at)`

	res := Parse(sql, Options{})
	tbl := res.Table("sales.order_items")
	require.NotNil(t, tbl)

	assert.Equal(t, []string{"order_id", "line_no", "product_id", "price", "created_at"}, columnNames(tbl))
	assert.Equal(t, "BIGINT", tbl.Column("order_id").Type)
	assert.Equal(t, "DOUBLE PRECISION", tbl.Column("price").Type)
	assert.Equal(t, "TIMESTAMP WITH TIME ZONE", tbl.Column("created_at").Type)

	assert.True(t, tbl.Column("order_id").IsPrimaryKey)
	assert.True(t, tbl.Column("line_no").IsPrimaryKey)
	assert.True(t, tbl.Column("order_id").IsForeignKey)
	assert.True(t, tbl.Column("product_id").IsForeignKey)
	assert.True(t, tbl.Column("created_at").IsSortKey)
	assert.False(t, tbl.Column("price").IsSortKey)

	assert.Equal(t, []core.ForeignKeyRef{
		{Column: "product_id", ReferencedTable: "products", ReferencedColumn: "id"},
		{Column: "order_id", ReferencedTable: "sales.orders", ReferencedColumn: "id"},
		{Column: "line_no", ReferencedTable: "sales.orders", ReferencedColumn: "line"},
	}, tbl.ForeignKeys)

	assert.Equal(t, []string{"id"}, res.Discovered.Columns("products"))
	assert.Equal(t, []string{"id", "line"}, res.Discovered.Columns("sales.orders"))
}

func TestParse_ViewLineage(t *testing.T) {
	res := Parse(`CREATE VIEW v AS SELECT a.id, a.amount * 2 AS doubled FROM accounts a`, Options{})

	v := res.Table("v")
	require.NotNil(t, v)
	assert.True(t, v.IsView)
	assert.False(t, v.IsCte)

	assert.Equal(t, []core.Column{
		core.SyntheticColumn("id", core.ProvenanceMapped),
		core.SyntheticColumn("doubled", core.ProvenanceCalculated),
	}, v.Columns)
	assert.Equal(t, []core.LineageEntry{
		{SourceTable: "accounts", SourceColumn: "id", TargetColumn: "id"},
		{SourceTable: "accounts", SourceColumn: "amount", TargetColumn: "doubled", Formula: "a.amount * 2"},
	}, v.Lineage)
	assert.Equal(t, []core.ForeignKeyRef{{ReferencedTable: "accounts"}}, v.ForeignKeys)
	assert.Equal(t, []string{"id", "amount"}, res.Discovered.Columns("accounts"))
}

func TestParse_CommaJoinWildcard(t *testing.T) {
	res := Parse(`SELECT * FROM t1, t2`, Options{})

	q := res.Table(DefaultAdHocName)
	require.NotNil(t, q)
	assert.True(t, q.IsView)
	assert.Empty(t, q.Columns)
	assert.Equal(t, []string{"t1", "t2"}, q.ReferencedTables())
	assert.Equal(t, []string{"*"}, res.Discovered.Columns("t1"))
	assert.Equal(t, []string{"*"}, res.Discovered.Columns("t2"))
}

func TestParse_ResolutionPolicy(t *testing.T) {
	const sql = `SELECT id FROM a, b`

	tests := []struct {
		policy      Resolution
		lineage     []core.LineageEntry
		discoveredA []string
		discoveredB []string
	}{
		{
			policy:      "",
			lineage:     []core.LineageEntry{{SourceTable: "a", SourceColumn: "id", TargetColumn: "id"}},
			discoveredA: []string{"id"},
			discoveredB: []string{"id"},
		},
		{
			policy:      ResolveFirst,
			lineage:     []core.LineageEntry{{SourceTable: "a", SourceColumn: "id", TargetColumn: "id"}},
			discoveredA: []string{"id"},
			discoveredB: []string{"id"},
		},
		{
			policy: ResolveAll,
			lineage: []core.LineageEntry{
				{SourceTable: "a", SourceColumn: "id", TargetColumn: "id"},
				{SourceTable: "b", SourceColumn: "id", TargetColumn: "id"},
			},
			discoveredA: []string{"id"},
			discoveredB: []string{"id"},
		},
		{
			policy: ResolveUnique,
		},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			res := Parse(sql, Options{Resolution: tt.policy})
			q := res.Table(DefaultAdHocName)
			require.NotNil(t, q)
			assert.Equal(t, tt.lineage, q.Lineage)
			assert.Equal(t, tt.discoveredA, res.Discovered.Columns("a"))
			assert.Equal(t, tt.discoveredB, res.Discovered.Columns("b"))
		})
	}
}

func TestParse_UniquePolicySingleTable(t *testing.T) {
	res := Parse(`SELECT id FROM a`, Options{Resolution: ResolveUnique})
	q := res.Table(DefaultAdHocName)
	require.NotNil(t, q)
	assert.Equal(t, []core.LineageEntry{{SourceTable: "a", SourceColumn: "id", TargetColumn: "id"}}, q.Lineage)
}

func TestParse_CTEScope(t *testing.T) {
	first := `CREATE VIEW v AS WITH x AS (SELECT id FROM base) SELECT x.id FROM x`

	res := Parse(first, Options{})
	require.Len(t, res.Tables, 2)

	x := res.Tables[0]
	assert.Equal(t, "x", x.Name)
	assert.True(t, x.IsCte)
	assert.Equal(t, []core.Column{core.SyntheticColumn("id", core.ProvenanceStart)}, x.Columns)
	assert.Equal(t, []core.LineageEntry{{SourceTable: "base", SourceColumn: "id", TargetColumn: "id"}}, x.Lineage)

	v := res.Tables[1]
	assert.Equal(t, "v", v.Name)
	assert.Equal(t, []core.LineageEntry{{SourceTable: "x", SourceColumn: "id", TargetColumn: "id"}}, v.Lineage)

	assert.False(t, res.Discovered.Has("x"), "CTE columns are not discovered inside their own statement")
	assert.Equal(t, []string{"id"}, res.Discovered.Columns("base"))

	// Another statement sees no CTE named x.
	res = Parse(first+";\nCREATE VIEW w AS SELECT x.k FROM x", Options{})
	assert.Equal(t, []string{"k"}, res.Discovered.Columns("x"))
}

func TestParse_RecursiveCTE(t *testing.T) {
	res := Parse(`
WITH RECURSIVE tree AS (
  SELECT id, parent_id FROM nodes
  UNION ALL
  SELECT n.id, n.parent_id FROM nodes n JOIN tree t ON n.parent_id = t.id
)
SELECT id FROM tree`, Options{})

	tree := res.Table("tree")
	require.NotNil(t, tree)
	assert.Equal(t, []string{"nodes", "tree"}, tree.ReferencedTables())
	assert.False(t, res.Discovered.Has("tree"))
	assert.Equal(t, []string{"id", "parent_id"}, res.Discovered.Columns("nodes"))

	q := res.Table(DefaultAdHocName)
	require.NotNil(t, q)
	assert.Equal(t, []core.LineageEntry{{SourceTable: "tree", SourceColumn: "id", TargetColumn: "id"}}, q.Lineage)
}

func TestParse_UnbalancedCTE(t *testing.T) {
	res := Parse(`WITH x AS (SELECT a FROM t`, Options{})

	require.Len(t, res.Tables, 2)
	assert.Equal(t, []string{"a"}, columnNames(res.Tables[0]))
	assert.Equal(t, []core.Column{core.SyntheticColumn(core.UnknownColumnsName, core.ProvenanceUnparsed)}, res.Tables[1].Columns)
	assert.Empty(t, res.Skipped)
}

func TestParse_GroupBy(t *testing.T) {
	res := Parse(`CREATE VIEW s AS
SELECT region, COUNT(*) AS n, o.status
FROM orders o
GROUP BY region, 3`, Options{})

	s := res.Table("s")
	require.NotNil(t, s)
	assert.Equal(t, []string{"region", "n", "status"}, columnNames(s))
	assert.True(t, s.Column("region").IsGroupingKey)
	assert.False(t, s.Column("n").IsGroupingKey)
	assert.True(t, s.Column("status").IsGroupingKey, "ordinal 3")
	assert.Equal(t, core.ProvenanceCalculated, s.Column("n").Provenance)
}

func TestParse_CreateTableAsSelect(t *testing.T) {
	res := Parse(`CREATE TABLE daily DISTKEY(day) SORTKEY(day) AS (SELECT created_at AS day, amount FROM sales)`, Options{})

	d := res.Table("daily")
	require.NotNil(t, d)
	assert.False(t, d.IsView)
	assert.Equal(t, []string{"day", "amount"}, columnNames(d))
	assert.True(t, d.Column("day").IsSortKey)
	assert.False(t, d.Column("amount").IsSortKey)
	assert.Equal(t, []core.LineageEntry{
		{SourceTable: "sales", SourceColumn: "created_at", TargetColumn: "day"},
		{SourceTable: "sales", SourceColumn: "amount", TargetColumn: "amount"},
	}, d.Lineage)
}

func TestParse_ViewColumnList(t *testing.T) {
	res := Parse(`CREATE OR REPLACE VIEW v (a, b) AS SELECT x, y FROM t`, Options{})

	v := res.Table("v")
	require.NotNil(t, v)
	assert.Equal(t, []string{"a", "b"}, columnNames(v))
	assert.Equal(t, []core.LineageEntry{
		{SourceTable: "t", SourceColumn: "x", TargetColumn: "a"},
		{SourceTable: "t", SourceColumn: "y", TargetColumn: "b"},
	}, v.Lineage)
}

func TestParse_ExpressionNoise(t *testing.T) {
	res := Parse(`CREATE MATERIALIZED VIEW m AS
SELECT EXTRACT(YEAR FROM o.created_at) AS yr,
       CAST(o.amount AS DOUBLE PRECISION) AS amt,
       DATE '2020-01-01' AS d,
       price::numeric(10,2) AS p
FROM orders o
WHERE o.a IS DISTINCT FROM o.b`, Options{})

	m := res.Table("m")
	require.NotNil(t, m)
	assert.Equal(t, []string{"orders"}, m.ReferencedTables())
	assert.Equal(t, []string{"yr", "amt", "d", "p"}, columnNames(m))
	assert.Equal(t, []string{"created_at", "amount", "price", "a", "b"}, res.Discovered.Columns("orders"))

	require.NotEmpty(t, m.Lineage)
	assert.Equal(t, core.LineageEntry{
		SourceTable: "orders", SourceColumn: "created_at", TargetColumn: "yr",
		Formula: "EXTRACT(YEAR FROM o.created_at)",
	}, m.Lineage[0])
}

func TestParse_StatementSplitting(t *testing.T) {
	res := Parse(`
-- header comment; with a semicolon
CREATE TABLE a (id INT)
GO
CREATE TABLE b (note TEXT DEFAULT 'x;y') /* trailing; */
GO
INSERT INTO a VALUES (1);
DROP TABLE b;
`, Options{})

	require.Len(t, res.Tables, 2)
	assert.Equal(t, "a", res.Tables[0].Name)
	assert.Equal(t, "b", res.Tables[1].Name)
	assert.Empty(t, res.Skipped)
}

func TestParse_LastWriteWins(t *testing.T) {
	res := Parse(`CREATE TABLE t (a INT); CREATE TABLE T (b INT)`, Options{})

	require.Len(t, res.Tables, 1)
	assert.Equal(t, "t", res.Tables[0].Name)
	assert.Equal(t, []string{"b"}, columnNames(res.Tables[0]))
}

func TestParse_CanonicalNames(t *testing.T) {
	res := Parse(`CREATE TABLE Orders (id INT); CREATE VIEW v AS SELECT o.id FROM orders o`, Options{})

	v := res.Table("v")
	require.NotNil(t, v)
	assert.Equal(t, []string{"Orders"}, v.ReferencedTables())
	assert.Equal(t, "Orders", v.Lineage[0].SourceTable)
}

func TestParse_QualifiedReferences(t *testing.T) {
	res := Parse(`SELECT sales.orders.id, orders.total, [dbo].[Customers].name
FROM sales.orders JOIN [dbo].[Customers] ON orders.cid = Customers.id`, Options{})

	q := res.Table(DefaultAdHocName)
	require.NotNil(t, q)
	assert.Equal(t, []string{"sales.orders", "dbo.Customers"}, q.ReferencedTables())
	assert.Equal(t, []core.LineageEntry{
		{SourceTable: "sales.orders", SourceColumn: "id", TargetColumn: "id"},
		{SourceTable: "sales.orders", SourceColumn: "total", TargetColumn: "total"},
		{SourceTable: "dbo.Customers", SourceColumn: "name", TargetColumn: "name"},
	}, q.Lineage)
}

func TestParse_UnresolvableAliasDropsLineage(t *testing.T) {
	res := Parse(`SELECT z.id, t.name FROM things t`, Options{})

	q := res.Table(DefaultAdHocName)
	require.NotNil(t, q)
	assert.Equal(t, []string{"id", "name"}, columnNames(q))
	assert.Equal(t, []core.LineageEntry{{SourceTable: "things", SourceColumn: "name", TargetColumn: "name"}}, q.Lineage)
}

func TestParse_EmptyQuotedNames(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		table    string
		wantCols []string
	}{
		{"double-quoted from", `CREATE VIEW v AS SELECT x.a FROM "" x`, "v", []string{"a"}},
		{"backtick from", "CREATE VIEW v AS SELECT x.a FROM `` x", "v", []string{"a"}},
		{"empty schema part", `CREATE VIEW v AS SELECT x.a FROM "".t x`, "v", []string{"a"}},
		{"bare column", `CREATE VIEW v AS SELECT a FROM ""`, "v", []string{"a"}},
		{"derived table alias", `CREATE VIEW v AS SELECT d.a FROM (SELECT 1 AS a) d`, "v", []string{"a"}},
		{"double-quoted column reference", `CREATE TABLE c (id INT REFERENCES ""(id))`, "c", []string{"id"}},
		{"backtick column reference", "CREATE TABLE c (id INT REFERENCES ``(id))", "c", []string{"id"}},
		{"table foreign key", `CREATE TABLE c (id INT, FOREIGN KEY (id) REFERENCES ""(id))`, "c", []string{"id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.sql, Options{})

			require.Len(t, res.Tables, 1)
			tbl := res.Table(tt.table)
			require.NotNil(t, tbl)
			assert.Equal(t, tt.wantCols, columnNames(tbl))
			assert.Empty(t, tbl.Lineage)
			assert.Empty(t, tbl.ForeignKeys)
			assert.Empty(t, tbl.ReferencedTables())
			for _, c := range tbl.Columns {
				assert.False(t, c.IsForeignKey, c.Name)
			}
			assert.Empty(t, res.Discovered.Columns(""))
			assert.Empty(t, res.Skipped)
		})
	}
}

func TestParse_KeyNamedColumn(t *testing.T) {
	res := Parse(`
CREATE TABLE kv (key TEXT PRIMARY KEY, val TEXT);
CREATE TABLE kq ("key" TEXT PRIMARY KEY, val TEXT)`, Options{})

	kv := res.Table("kv")
	require.NotNil(t, kv)
	assert.Equal(t, []string{"val"}, columnNames(kv), "unquoted key reads as an index clause")

	kq := res.Table("kq")
	require.NotNil(t, kq)
	assert.Equal(t, []string{"key", "val"}, columnNames(kq))
	assert.True(t, kq.Columns[0].IsPrimaryKey)
}

func TestParse_EmptyQuotedObjectName(t *testing.T) {
	res := Parse(`CREATE TABLE "" (a INT); CREATE VIEW `+"``"+` AS SELECT 1 AS a; CREATE TABLE t (b INT)`, Options{})

	require.Len(t, res.Tables, 1)
	assert.Equal(t, "t", res.Tables[0].Name)
}

// failingHandler panics on records with the given message and keeps the rest.
type failingHandler struct {
	msg string

	mu      sync.Mutex
	records []string
}

func (h *failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *failingHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h *failingHandler) WithGroup(string) slog.Handler             { return h }

func (h *failingHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Message == h.msg {
		panic("handler failure")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Message)
	return nil
}

func TestParse_RecoversStatementFailure(t *testing.T) {
	h := &failingHandler{msg: "statement not recognized"}
	res := Parse(`
CREATE TABLE a (id INT);
DROP TABLE a;
CREATE VIEW v AS SELECT id FROM a;
SELECT id FROM v`, Options{Logger: slog.New(h)})

	require.Len(t, res.Skipped, 1)
	skipped := res.Skipped[0]
	assert.Equal(t, 1, skipped.Index)
	assert.Equal(t, "DROP TABLE a", skipped.Statement)
	assert.ErrorContains(t, skipped, "statement 2: analyzer panic: handler failure")
	assert.Contains(t, h.records, "statement skipped")

	require.Len(t, res.Tables, 3)
	assert.Equal(t, "a", res.Tables[0].Name)
	v := res.Table("v")
	require.NotNil(t, v)
	assert.Equal(t, []core.LineageEntry{{SourceTable: "a", SourceColumn: "id", TargetColumn: "id"}}, v.Lineage)
	q := res.Table(DefaultAdHocName)
	require.NotNil(t, q)
	assert.Equal(t, []string{"v"}, q.ReferencedTables())
}

func TestParse_Idempotent(t *testing.T) {
	sql := `
CREATE TABLE users (id INT PRIMARY KEY, email TEXT);
CREATE VIEW active AS WITH recent AS (SELECT user_id FROM logins) SELECT u.id, u.email FROM users u JOIN recent r ON r.user_id = u.id;
SELECT * FROM active, audit`

	first := Parse(sql, Options{})
	second := Parse(sql, Options{})
	assert.Equal(t, first.Tables, second.Tables)
	assert.Equal(t, first.Discovered.Tables(), second.Discovered.Tables())
	for _, name := range first.Discovered.Tables() {
		assert.Equal(t, first.Discovered.Columns(name), second.Discovered.Columns(name))
	}
}

func TestResolution_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{"first", ResolveFirst, false},
		{" ALL ", ResolveAll, false},
		{"unique", ResolveUnique, false},
		{"", ResolveFirst, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var r Resolution
			err := r.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r)
		})
	}
}

func TestStatementError(t *testing.T) {
	err := StatementError{Index: 2, Statement: "SELECT", Err: assert.AnError}
	assert.Equal(t, "statement 3: "+assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)
}
