package graph

import (
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/core"
)

// ColumnSource reports the columns observed for a table name, including the
// wildcard marker. *parser.Discovered implements it.
type ColumnSource interface {
	Columns(table string) []string
}

// Synthesize returns one stub table for every lineage source or referenced
// table that tables do not define, in first-reference order. Each missing
// name yields exactly one stub.
func Synthesize(tables []*core.Table, src ColumnSource) []*core.Table {
	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[strings.ToLower(t.Name)] = true
	}

	var stubs []*core.Table
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || known[key] {
			return
		}
		known[key] = true
		stubs = append(stubs, Stub(name, columnsOf(src, name)))
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			add(fk.ReferencedTable)
		}
		for _, l := range t.Lineage {
			add(l.SourceTable)
		}
	}
	return stubs
}

func columnsOf(src ColumnSource, name string) []string {
	if src == nil {
		return nil
	}
	return src.Columns(name)
}

// Stub builds a stub table from observed column names. A lone wildcard
// becomes a single "All Columns (*)" column; names seen alongside a wildcard
// get a trailing "... (others)"; no names at all give "Unknown Schema".
func Stub(name string, observed []string) *core.Table {
	var concrete []string
	wildcard := false
	for _, c := range observed {
		if c == core.WildcardMarker {
			wildcard = true
			continue
		}
		concrete = append(concrete, c)
	}

	t := &core.Table{Name: name, IsStub: true}
	switch {
	case wildcard && len(concrete) == 0:
		t.Columns = []core.Column{core.SyntheticColumn(core.AllColumnsPlaceholder, core.ProvenanceSource)}
	case len(concrete) > 0:
		for _, c := range concrete {
			t.Columns = append(t.Columns, core.SyntheticColumn(c, core.ProvenanceSource))
		}
		if wildcard {
			t.Columns = append(t.Columns, core.SyntheticColumn(core.OtherColumnsPlaceholder, core.ProvenanceSource))
		}
	default:
		t.Columns = []core.Column{core.SyntheticColumn(core.UnknownSchemaPlaceholder, core.ProvenanceStub)}
	}
	return t
}
