package diagram

import (
	"strings"

	"github.com/leapstack-labs/schemagraph/internal/dag"
	"github.com/leapstack-labs/schemagraph/pkg/core"
)

// Impact is the set of tables feeding into and fed by one table.
type Impact struct {
	Table      string   `json:"table" yaml:"table"`
	Upstream   []string `json:"upstream" yaml:"upstream"`
	Downstream []string `json:"downstream" yaml:"downstream"`
}

// dependencyGraph orients every edge along data flow: lineage and uses
// edges already point source -> consumer; structural edges point from the
// referencing table to the referenced one and are flipped.
func dependencyGraph(d *core.Diagram) *dag.Graph {
	g := dag.NewGraph()
	for _, n := range d.Nodes {
		g.AddNode(n.ID)
	}
	for _, e := range d.Edges {
		from, to := e.Source, e.Target
		if e.Kind == core.EdgeStructural {
			from, to = to, from
		}
		_ = g.AddEdge(from, to)
	}
	return g
}

// ImpactOf returns the upstream and downstream tables of table. ok is false
// when the diagram has no such node.
func ImpactOf(d *core.Diagram, table string) (Impact, bool) {
	id, ok := nodeID(d, table)
	if !ok {
		return Impact{}, false
	}
	g := dependencyGraph(d)
	return Impact{
		Table:      id,
		Upstream:   g.Upstream(id),
		Downstream: g.Downstream(id),
	}, true
}

// Levels groups node ids by dependency depth: level 0 reads from nothing.
func Levels(d *core.Diagram) [][]string {
	return dependencyGraph(d).Levels()
}

// Shape summarizes the data flow of a diagram.
type Shape struct {
	// Sources read from nothing; Sinks feed nothing.
	Sources []string `json:"sources" yaml:"sources"`
	Sinks   []string `json:"sinks" yaml:"sinks"`
	// Cycle is one dependency cycle, first table repeated at the end, or
	// nil when the flow is acyclic.
	Cycle []string `json:"cycle,omitempty" yaml:"cycle,omitempty"`
}

// ShapeOf returns the sources, sinks and a cycle, if any, of d.
func ShapeOf(d *core.Diagram) Shape {
	g := dependencyGraph(d)
	_, cycle := g.HasCycle()
	return Shape{Sources: g.Roots(), Sinks: g.Leaves(), Cycle: cycle}
}

// Focus returns the part of d connected to table: the table itself, its
// upstream and its downstream. An unknown table yields an empty diagram.
func Focus(d *core.Diagram, table string) *core.Diagram {
	imp, ok := ImpactOf(d, table)
	if !ok {
		return &core.Diagram{Nodes: []core.Node{}, Edges: []core.Edge{}}
	}
	keep := map[string]bool{imp.Table: true}
	for _, id := range imp.Upstream {
		keep[id] = true
	}
	for _, id := range imp.Downstream {
		keep[id] = true
	}

	out := &core.Diagram{Nodes: []core.Node{}, Edges: []core.Edge{}}
	for _, n := range d.Nodes {
		if keep[n.ID] {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range d.Edges {
		if keep[e.Source] && keep[e.Target] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// nodeID finds a node by exact id, then case-insensitively.
func nodeID(d *core.Diagram, table string) (string, bool) {
	if n, ok := d.Node(table); ok {
		return n.ID, true
	}
	for _, n := range d.Nodes {
		if strings.EqualFold(n.ID, table) {
			return n.ID, true
		}
	}
	return "", false
}
