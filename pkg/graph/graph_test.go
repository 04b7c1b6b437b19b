package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/schemagraph/pkg/core"
	"github.com/leapstack-labs/schemagraph/pkg/parser"
)

// assemble parses sql and returns all tables (stubs last) and the diagram.
func assemble(t *testing.T, sql string) ([]*core.Table, *core.Diagram) {
	t.Helper()
	res := parser.Parse(sql, parser.Options{})
	require.Empty(t, res.Skipped)
	all := append(res.Tables, Synthesize(res.Tables, res.Discovered)...)
	return all, Build(all)
}

func requireClosed(t *testing.T, d *core.Diagram) {
	t.Helper()
	for _, e := range d.Edges {
		_, ok := d.Node(e.Source)
		assert.True(t, ok, "edge %s has unknown source %s", e.ID, e.Source)
		_, ok = d.Node(e.Target)
		assert.True(t, ok, "edge %s has unknown target %s", e.ID, e.Target)
	}
}

func TestStub(t *testing.T) {
	tests := []struct {
		name     string
		observed []string
		want     []core.Column
	}{
		{
			name:     "lone wildcard",
			observed: []string{"*"},
			want:     []core.Column{core.SyntheticColumn(core.AllColumnsPlaceholder, core.ProvenanceSource)},
		},
		{
			name:     "names and wildcard",
			observed: []string{"a", "*", "b"},
			want: []core.Column{
				core.SyntheticColumn("a", core.ProvenanceSource),
				core.SyntheticColumn("b", core.ProvenanceSource),
				core.SyntheticColumn(core.OtherColumnsPlaceholder, core.ProvenanceSource),
			},
		},
		{
			name:     "names only",
			observed: []string{"a"},
			want:     []core.Column{core.SyntheticColumn("a", core.ProvenanceSource)},
		},
		{
			name: "nothing observed",
			want: []core.Column{core.SyntheticColumn(core.UnknownSchemaPlaceholder, core.ProvenanceStub)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := Stub("ext", tt.observed)
			assert.Equal(t, "ext", stub.Name)
			assert.True(t, stub.IsStub)
			assert.Equal(t, tt.want, stub.Columns)
		})
	}
}

func TestSynthesize_OneStubPerName(t *testing.T) {
	tables, d := assemble(t, `
CREATE VIEW v1 AS SELECT e.a FROM ext e;
CREATE VIEW v2 AS SELECT e.b, e.a FROM ext e;`)

	var stubs []*core.Table
	for _, tbl := range tables {
		if tbl.IsStub {
			stubs = append(stubs, tbl)
		}
	}
	require.Len(t, stubs, 1)
	assert.Equal(t, "ext", stubs[0].Name)
	assert.Equal(t, []core.Column{
		core.SyntheticColumn("a", core.ProvenanceSource),
		core.SyntheticColumn("b", core.ProvenanceSource),
	}, stubs[0].Columns)

	n, ok := d.Node("ext")
	require.True(t, ok)
	assert.True(t, n.IsStub)
	assert.Equal(t, "2px dashed #999", n.Style.Border)
	requireClosed(t, d)
}

func TestBuild_ViewLineage(t *testing.T) {
	_, d := assemble(t, `CREATE VIEW v AS SELECT a.id, a.amount * 2 AS doubled FROM accounts a`)

	require.Len(t, d.Nodes, 2)
	assert.Equal(t, "v", d.Nodes[0].ID)
	assert.Equal(t, core.RoleView, d.Nodes[0].Role)
	assert.Equal(t, "accounts", d.Nodes[1].ID)

	assert.Empty(t, d.EdgesOfKind(core.EdgeUses), "lineage replaces uses edges")
	lineage := d.EdgesOfKind(core.EdgeLineage)
	require.Len(t, lineage, 2)

	assert.Equal(t, core.Edge{
		ID:           "e-lin-accounts.id-v.id-0",
		Source:       "accounts",
		Target:       "v",
		Kind:         core.EdgeLineage,
		SourceHandle: "src-id",
		TargetHandle: "tgt-id",
		Style:        core.EdgeStyle{Stroke: toneLineage, StrokeWidth: 2, Animated: true, Curve: "bezier"},
	}, lineage[0])

	assert.Equal(t, "e-lin-accounts.amount-v.doubled-1", lineage[1].ID)
	assert.Equal(t, FormulaLabel, lineage[1].Label)
	assert.Equal(t, toneFormula, lineage[1].Style.Stroke)
	assert.Equal(t, "tgt-doubled", lineage[1].TargetHandle)
	requireClosed(t, d)
}

func TestBuild_StructuralForeignKey(t *testing.T) {
	_, d := assemble(t, `
CREATE TABLE t1 (id INT PRIMARY KEY);
CREATE TABLE t2 (id INT, uid INT, FOREIGN KEY (uid) REFERENCES t1(id));`)

	edges := d.EdgesOfKind(core.EdgeStructural)
	require.Len(t, edges, 1)
	assert.Equal(t, "e-t2-t1-0", edges[0].ID)
	assert.Equal(t, "t2", edges[0].Source)
	assert.Equal(t, "t1", edges[0].Target)
	assert.Equal(t, "src-uid", edges[0].SourceHandle)
	assert.Equal(t, "tgt-id", edges[0].TargetHandle)
	assert.Len(t, d.Nodes, 2, "no stubs when every reference is defined")
}

func TestBuild_ForeignKeyToUndefinedTable(t *testing.T) {
	tables, d := assemble(t, `CREATE TABLE orders (id INT, user_id INT REFERENCES users(id))`)

	require.Len(t, tables, 2)
	users := tables[1]
	assert.True(t, users.IsStub)
	assert.Equal(t, []core.Column{core.SyntheticColumn("id", core.ProvenanceSource)}, users.Columns)
	requireClosed(t, d)
}

func TestBuild_UsesEdges(t *testing.T) {
	tables, d := assemble(t, `CREATE VIEW u AS SELECT * FROM a, b`)

	uses := d.EdgesOfKind(core.EdgeUses)
	require.Len(t, uses, 2)
	assert.Equal(t, "e-struc-a-u", uses[0].ID)
	assert.Equal(t, "a", uses[0].Source)
	assert.Equal(t, "u", uses[0].Target)
	assert.Equal(t, UsesLabel, uses[0].Label)
	assert.Equal(t, "5,5", uses[0].Style.DashArray)
	assert.Equal(t, "e-struc-b-u", uses[1].ID)

	require.Len(t, tables, 3)
	assert.Equal(t, []core.Column{core.SyntheticColumn(core.AllColumnsPlaceholder, core.ProvenanceSource)}, tables[1].Columns)
	requireClosed(t, d)
}

func TestBuild_LineageTones(t *testing.T) {
	_, d := assemble(t, `
CREATE VIEW v AS
WITH c1 AS (SELECT id FROM base),
     c2 AS (SELECT c1.id FROM c1)
SELECT c2.id FROM c2`)

	lineage := d.EdgesOfKind(core.EdgeLineage)
	require.Len(t, lineage, 3)

	tones := map[string]string{}
	for _, e := range lineage {
		tones[e.Source+"->"+e.Target] = e.Style.Stroke
	}
	assert.Equal(t, map[string]string{
		"base->c1": toneLineage,
		"c1->c2":   toneCteToCte,
		"c2->v":    toneCteToView,
	}, tones)

	c1, ok := d.Node("c1")
	require.True(t, ok)
	assert.Equal(t, core.RoleCTE, c1.Role)
	assert.Equal(t, "2px dashed #8b5cf6", c1.Style.Border)
	requireClosed(t, d)
}

func TestBuild_EmptyQuotedNamesStayClosed(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"double quotes", `CREATE TABLE c (id INT REFERENCES ""(id));
CREATE VIEW v AS SELECT x.a, x.b + 1 AS b1 FROM "" x JOIN c ON c.id = x.a`},
		{"backticks", "CREATE TABLE c (id INT REFERENCES ``(id));\n" +
			"CREATE VIEW v AS SELECT x.a, x.b + 1 AS b1 FROM `` x JOIN c ON c.id = x.a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables, d := assemble(t, tt.sql)

			for _, tbl := range tables {
				assert.NotEmpty(t, tbl.Name)
				assert.False(t, tbl.IsStub, tbl.Name)
			}
			_, ok := d.Node("")
			assert.False(t, ok)
			require.Len(t, d.Nodes, 2)
			requireClosed(t, d)
		})
	}
}

func TestBuild_CTENeverStubbed(t *testing.T) {
	tables, d := assemble(t, `WITH x AS (SELECT id FROM base) SELECT id FROM x`)

	var stubs []string
	for _, tbl := range tables {
		if tbl.IsStub {
			stubs = append(stubs, tbl.Name)
		}
	}
	assert.Equal(t, []string{"base"}, stubs)
	requireClosed(t, d)
}

func TestBuild_Idempotent(t *testing.T) {
	sql := `
CREATE TABLE users (id INT PRIMARY KEY);
CREATE VIEW v AS SELECT u.id, o.total FROM users u JOIN orders o ON o.user_id = u.id;
SELECT * FROM v, audit_log`
	_, first := assemble(t, sql)
	_, second := assemble(t, sql)
	assert.Equal(t, first, second)
}
