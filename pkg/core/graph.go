package core

// EdgeKind classifies a graph edge.
type EdgeKind string

// EdgeKind constants.
const (
	// EdgeStructural is a foreign key from a table to the table it references.
	EdgeStructural EdgeKind = "structural"
	// EdgeLineage is a column-level data-flow edge.
	EdgeLineage EdgeKind = "lineage"
	// EdgeUses is a coarse "view reads from table" edge without column detail.
	EdgeUses EdgeKind = "uses"
)

// Position is a top-left pixel coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NodeStyle is a rendering hint for a node.
type NodeStyle struct {
	Border     string  `json:"border,omitempty" yaml:"border,omitempty"`
	Background string  `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	Opacity    float64 `json:"opacity,omitempty" yaml:"opacity,omitempty"`
}

// EdgeStyle is a rendering hint for an edge.
type EdgeStyle struct {
	Stroke      string  `json:"stroke" yaml:"stroke"`
	StrokeWidth float64 `json:"strokeWidth" yaml:"strokeWidth"`
	DashArray   string  `json:"strokeDasharray,omitempty" yaml:"strokeDasharray,omitempty"`
	Animated    bool    `json:"animated,omitempty" yaml:"animated,omitempty"`
	Curve       string  `json:"curve,omitempty" yaml:"curve,omitempty"`
}

// Node is the renderer-facing projection of a Table.
type Node struct {
	ID       string    `json:"id" yaml:"id"`
	Label    string    `json:"label" yaml:"label"`
	Role     Role      `json:"role" yaml:"role"`
	IsStub   bool      `json:"isStub,omitempty" yaml:"isStub,omitempty"`
	Columns  []Column  `json:"columns" yaml:"columns"`
	Position Position  `json:"position" yaml:"position"`
	Width    float64   `json:"width" yaml:"width"`
	Height   float64   `json:"height" yaml:"height"`
	Style    NodeStyle `json:"style" yaml:"style"`
}

// Edge is the renderer-facing projection of a lineage entry or reference.
type Edge struct {
	ID           string    `json:"id" yaml:"id"`
	Source       string    `json:"source" yaml:"source"`
	Target       string    `json:"target" yaml:"target"`
	Kind         EdgeKind  `json:"kind" yaml:"kind"`
	SourceHandle string    `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string    `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Label        string    `json:"label,omitempty" yaml:"label,omitempty"`
	Style        EdgeStyle `json:"style" yaml:"style"`
}

// Diagram is the complete contract with the renderer.
type Diagram struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Node returns the node with the given id.
func (d *Diagram) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// EdgesOfKind returns the edges with the given kind, in order.
func (d *Diagram) EdgesOfKind(kind EdgeKind) []Edge {
	var out []Edge
	for _, e := range d.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
