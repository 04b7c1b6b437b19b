package layout

import (
	"math"
	"sort"

	"github.com/leapstack-labs/schemagraph/pkg/core"
)

// refinePasses bounds neighbour-median refinement.
const refinePasses = 4

// place computes centre coordinates along the rank axis and the order axis,
// then writes top-left positions into d. at maps each diagram node to its
// vertex.
func (l *layered) place(d *core.Diagram, at []int, opts Options) {
	n := len(l.rank)
	along := make([]float64, n)  // extent on the rank axis
	across := make([]float64, n) // extent on the order axis
	for i, v := range at {
		w, h := d.Nodes[i].Width, d.Nodes[i].Height
		if opts.Direction == TopToBottom {
			w, h = h, w
		}
		along[v], across[v] = max(along[v], w), max(across[v], h)
	}

	rankCentre := make([]float64, len(l.layers))
	offset := 0.0
	for r, layer := range l.layers {
		size := 0.0
		for _, v := range layer {
			size = max(size, along[v])
		}
		rankCentre[r] = offset + size/2
		offset += size + opts.RankSep
	}

	c := l.stack(across, opts.NodeSep)
	for pass := 0; pass < refinePasses; pass++ {
		if pass%2 == 0 {
			for r := 1; r < len(l.layers); r++ {
				l.align(r, l.pred, c, across, opts.NodeSep)
			}
		} else {
			for r := len(l.layers) - 2; r >= 0; r-- {
				l.align(r, l.succ, c, across, opts.NodeSep)
			}
		}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	for i, v := range at {
		node := &d.Nodes[i]
		rc := rankCentre[l.rank[v]]
		if opts.Direction == TopToBottom {
			node.Position = core.Position{X: c[v] - node.Width/2, Y: rc - node.Height/2}
		} else {
			node.Position = core.Position{X: rc - node.Width/2, Y: c[v] - node.Height/2}
		}
		minX = min(minX, node.Position.X)
		minY = min(minY, node.Position.Y)
	}
	for i := range d.Nodes {
		d.Nodes[i].Position.X -= minX
		d.Nodes[i].Position.Y -= minY
	}
}

// gap is the minimum distance between the facing sides of two neighbours in
// a rank. Virtual nodes take half the separation on each side.
func (l *layered) gap(a, b int, sep float64) float64 {
	g := 0.0
	if a < l.real {
		g += sep / 2
	}
	if b < l.real {
		g += sep / 2
	}
	return g
}

// stack places each rank's nodes one after another, centred on zero.
func (l *layered) stack(across []float64, sep float64) []float64 {
	c := make([]float64, len(l.rank))
	for _, layer := range l.layers {
		cursor := 0.0
		for i, v := range layer {
			if i > 0 {
				prev := layer[i-1]
				cursor += across[prev]/2 + l.gap(prev, v, sep) + across[v]/2
			}
			c[v] = cursor
		}
		if len(layer) > 0 {
			shift := (c[layer[0]] + c[layer[len(layer)-1]]) / 2
			for _, v := range layer {
				c[v] -= shift
			}
		}
	}
	return c
}

// align moves the nodes of rank r toward the median of their neighbours,
// keeping the rank's order and spacing.
func (l *layered) align(r int, adj [][]int, c, across []float64, sep float64) {
	layer := l.layers[r]
	if len(layer) == 0 {
		return
	}
	want := make([]float64, len(layer))
	for i, v := range layer {
		want[i] = c[v]
		if len(adj[v]) > 0 {
			want[i] = median(adj[v], c)
		}
	}

	got := make([]float64, len(layer))
	for i, v := range layer {
		got[i] = want[i]
		if i > 0 {
			prev := layer[i-1]
			got[i] = max(got[i], got[i-1]+across[prev]/2+l.gap(prev, v, sep)+across[v]/2)
		}
	}

	// pushing only moves nodes forward; shift the rank back so the mean
	// displacement from the targets is zero
	drift := 0.0
	for i := range got {
		drift += want[i] - got[i]
	}
	drift /= float64(len(got))
	for i, v := range layer {
		c[v] = got[i] + drift
	}
}

func median(nodes []int, c []float64) float64 {
	vals := make([]float64, len(nodes))
	for i, n := range nodes {
		vals[i] = c[n]
	}
	sort.Float64s(vals)
	m := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[m]
	}
	return (vals[m-1] + vals[m]) / 2
}
