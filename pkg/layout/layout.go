// Package layout places diagram nodes in ranks so that edges point mostly
// along one axis with few crossings.
//
// The pipeline is the classic layered drawing: break cycles, rank by longest
// path, split long edges with virtual nodes, order ranks by barycenter
// sweeps, then assign coordinates. Every step is iterative and bounded, so
// any finite diagram terminates, cycles and self-loops included.
package layout

import (
	"sort"

	"github.com/leapstack-labs/schemagraph/internal/dag"
	"github.com/leapstack-labs/schemagraph/pkg/core"
)

// Result summarizes a layout run.
type Result struct {
	Ranks     map[string]int // node id -> rank
	RankCount int
	Reversed  int // edges reversed to break cycles
	Crossings int // edge crossings in the chosen order
}

// Apply sizes and positions every node of d in place. Positions are
// top-left corners; the bounding box of all nodes starts at the origin.
// Nodes sharing an ID are laid out as one and receive the same position.
func Apply(d *core.Diagram, opts Options) Result {
	opts = opts.withDefaults()
	res := Result{Ranks: make(map[string]int, len(d.Nodes))}
	if len(d.Nodes) == 0 {
		return res
	}

	for i := range d.Nodes {
		d.Nodes[i].Width, d.Nodes[i].Height = opts.NodeSize(len(d.Nodes[i].Columns))
	}

	g := graphOf(d)
	at := make([]int, len(d.Nodes)) // diagram node -> graph vertex
	for i, n := range d.Nodes {
		at[i], _ = g.Index(n.ID)
	}
	acyclic, reversed := g.Acyclic()
	res.Reversed = reversed

	rank := assignRanks(acyclic)
	l := newLayered(acyclic, rank)
	res.Crossings = l.order(opts.Sweeps)

	l.place(d, at, opts)

	for i, n := range d.Nodes {
		r := l.rank[at[i]]
		res.Ranks[n.ID] = r
		res.RankCount = max(res.RankCount, r+1)
	}
	return res
}

// graphOf collapses the diagram's edges into distinct node pairs. Self-loops
// and edges with unknown endpoints are dropped.
func graphOf(d *core.Diagram) *dag.Graph {
	g := dag.NewGraph()
	for _, n := range d.Nodes {
		g.AddNode(n.ID)
	}
	for _, e := range d.Edges {
		_ = g.AddEdge(e.Source, e.Target)
	}
	return g
}

// assignRanks ranks by longest path, then moves each source to sit one rank
// before its nearest consumer.
func assignRanks(g *dag.Graph) []int {
	rank := g.LongestPathRanks()
	for i := range rank {
		if len(g.Parents(i)) > 0 || len(g.Children(i)) == 0 {
			continue
		}
		nearest := -1
		for _, c := range g.Children(i) {
			if nearest < 0 || rank[c] < nearest {
				nearest = rank[c]
			}
		}
		rank[i] = nearest - 1
	}

	lowest := rank[0]
	for _, r := range rank {
		lowest = min(lowest, r)
	}
	for i := range rank {
		rank[i] -= lowest
	}
	return rank
}

// layered is the acyclic graph with long edges split so every edge spans
// exactly one rank. Indices below real are diagram nodes; the rest are
// virtual.
type layered struct {
	real   int
	rank   []int
	succ   [][]int
	pred   [][]int
	layers [][]int
	pos    []int // index within the node's layer
}

func newLayered(g *dag.Graph, rank []int) *layered {
	l := &layered{
		real: g.NodeCount(),
		rank: append([]int(nil), rank...),
	}
	l.succ = make([][]int, l.real)
	l.pred = make([][]int, l.real)

	for u := 0; u < l.real; u++ {
		for _, v := range g.Children(u) {
			prev := u
			for r := l.rank[u] + 1; r < l.rank[v]; r++ {
				vn := len(l.rank)
				l.rank = append(l.rank, r)
				l.succ = append(l.succ, nil)
				l.pred = append(l.pred, nil)
				l.link(prev, vn)
				prev = vn
			}
			l.link(prev, v)
		}
	}

	top := 0
	for _, r := range l.rank {
		top = max(top, r)
	}
	l.layers = make([][]int, top+1)
	l.pos = make([]int, len(l.rank))
	for v, r := range l.rank {
		l.pos[v] = len(l.layers[r])
		l.layers[r] = append(l.layers[r], v)
	}
	return l
}

func (l *layered) link(u, v int) {
	l.succ[u] = append(l.succ[u], v)
	l.pred[v] = append(l.pred[v], u)
}

// order runs alternating barycenter sweeps and keeps the ordering with the
// fewest crossings. It returns that crossing count.
func (l *layered) order(sweeps int) int {
	best := l.crossings()
	bestLayers := cloneLayers(l.layers)

	for i := 0; i < sweeps && best > 0; i++ {
		if i%2 == 0 {
			for r := 1; r < len(l.layers); r++ {
				l.sortLayer(r, l.pred)
			}
		} else {
			for r := len(l.layers) - 2; r >= 0; r-- {
				l.sortLayer(r, l.succ)
			}
		}
		if c := l.crossings(); c < best {
			best = c
			bestLayers = cloneLayers(l.layers)
		}
	}

	l.layers = bestLayers
	l.reindex()
	return best
}

// sortLayer reorders layer r by the mean position of each node's neighbours
// in the adjacent layer. Nodes without neighbours keep their position.
func (l *layered) sortLayer(r int, adj [][]int) {
	layer := l.layers[r]
	bary := make(map[int]float64, len(layer))
	for _, v := range layer {
		if len(adj[v]) == 0 {
			bary[v] = float64(l.pos[v])
			continue
		}
		sum := 0
		for _, u := range adj[v] {
			sum += l.pos[u]
		}
		bary[v] = float64(sum) / float64(len(adj[v]))
	}
	sort.SliceStable(layer, func(i, j int) bool {
		return bary[layer[i]] < bary[layer[j]]
	})
	for i, v := range layer {
		l.pos[v] = i
	}
}

func (l *layered) reindex() {
	for _, layer := range l.layers {
		for i, v := range layer {
			l.pos[v] = i
		}
	}
}

// crossings counts pairwise edge crossings between adjacent layers.
func (l *layered) crossings() int {
	total := 0
	for r := 0; r+1 < len(l.layers); r++ {
		var ends [][2]int
		for _, u := range l.layers[r] {
			for _, v := range l.succ[u] {
				ends = append(ends, [2]int{l.pos[u], l.pos[v]})
			}
		}
		for i := range ends {
			for j := i + 1; j < len(ends); j++ {
				a, b := ends[i], ends[j]
				if (a[0]-b[0])*(a[1]-b[1]) < 0 {
					total++
				}
			}
		}
	}
	return total
}

func cloneLayers(layers [][]int) [][]int {
	out := make([][]int, len(layers))
	for i, l := range layers {
		out[i] = append([]int(nil), l...)
	}
	return out
}
