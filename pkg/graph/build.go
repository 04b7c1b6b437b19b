package graph

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/schemagraph/pkg/core"
)

// Handle prefixes used by renderers to anchor edges on column rows.
const (
	SourceHandlePrefix = "src-"
	TargetHandlePrefix = "tgt-"
)

// Build projects tables (stubs included) onto nodes and classifies edges:
//   - every lineage entry is a lineage edge from its source table;
//   - a table without lineage gets one uses edge per table it reads;
//   - a foreign key with column detail is a structural edge to the
//     referenced table.
//
// Positions and sizes are left for layout.
func Build(tables []*core.Table) *core.Diagram {
	byName := make(map[string]*core.Table, len(tables))
	for _, t := range tables {
		byName[strings.ToLower(t.Name)] = t
	}

	d := &core.Diagram{
		Nodes: make([]core.Node, 0, len(tables)),
		Edges: []core.Edge{},
	}
	for _, t := range tables {
		d.Nodes = append(d.Nodes, core.Node{
			ID:      t.Name,
			Label:   t.Name,
			Role:    t.Role(),
			IsStub:  t.IsStub,
			Columns: append([]core.Column(nil), t.Columns...),
			Style:   nodeStyle(t),
		})
	}

	for _, t := range tables {
		for i, l := range t.Lineage {
			d.Edges = append(d.Edges, lineageEdge(t, byName[strings.ToLower(l.SourceTable)], l, i))
		}

		if len(t.Lineage) == 0 {
			for _, ref := range structuralRefs(t) {
				d.Edges = append(d.Edges, core.Edge{
					ID:     fmt.Sprintf("e-struc-%s-%s", ref, t.Name),
					Source: ref,
					Target: t.Name,
					Kind:   core.EdgeUses,
					Label:  UsesLabel,
					Style:  core.EdgeStyle{Stroke: toneUses, StrokeWidth: 1, DashArray: "5,5", Curve: "smoothstep"},
				})
			}
		}

		for i, fk := range t.ForeignKeys {
			if fk.IsStructural() {
				continue
			}
			e := core.Edge{
				ID:     fmt.Sprintf("e-%s-%s-%d", t.Name, fk.ReferencedTable, i),
				Source: t.Name,
				Target: fk.ReferencedTable,
				Kind:   core.EdgeStructural,
				Style:  core.EdgeStyle{Stroke: toneStructural, StrokeWidth: 1.5, Curve: "bezier"},
			}
			if fk.Column != "" && fk.ReferencedColumn != "" {
				e.SourceHandle = SourceHandlePrefix + fk.Column
				e.TargetHandle = TargetHandlePrefix + fk.ReferencedColumn
			}
			d.Edges = append(d.Edges, e)
		}
	}
	return d
}

func lineageEdge(target, source *core.Table, l core.LineageEntry, i int) core.Edge {
	tone := lineageTone(source, target, l.HasFormula())
	e := core.Edge{
		ID:           fmt.Sprintf("e-lin-%s.%s-%s.%s-%d", l.SourceTable, l.SourceColumn, target.Name, l.TargetColumn, i),
		Source:       l.SourceTable,
		Target:       target.Name,
		Kind:         core.EdgeLineage,
		SourceHandle: SourceHandlePrefix + l.SourceColumn,
		TargetHandle: TargetHandlePrefix + l.TargetColumn,
		Style:        core.EdgeStyle{Stroke: tone, StrokeWidth: 2, Animated: true, Curve: "bezier"},
	}
	if l.HasFormula() {
		e.Label = FormulaLabel
	}
	return e
}

// structuralRefs returns the distinct tables t reads without column detail.
func structuralRefs(t *core.Table) []string {
	seen := make(map[string]bool)
	var out []string
	for _, fk := range t.ForeignKeys {
		key := strings.ToLower(fk.ReferencedTable)
		if !fk.IsStructural() || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, fk.ReferencedTable)
	}
	return out
}
