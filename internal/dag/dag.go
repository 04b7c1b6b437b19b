// Package dag provides a directed graph over table names for layout ranking
// and lineage impact queries. Nodes live in an arena addressed by integer
// index, and no walk recurses, so cycles and long chains are safe.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed graph with distinct edges and no self-loops.
type Graph struct {
	ids      []string
	index    map[string]int
	children [][]int // parent -> children, insertion order
	parents  [][]int // child -> parents, insertion order
	edges    map[[2]int]bool
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[string]int),
		edges: make(map[[2]int]bool),
	}
}

// AddNode adds a node and returns its index. Adding an existing id returns
// the existing index.
func (g *Graph) AddNode(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	i := len(g.ids)
	g.ids = append(g.ids, id)
	g.index[id] = i
	g.children = append(g.children, nil)
	g.parents = append(g.parents, nil)
	return i
}

// AddEdge adds a directed edge from parent to child. Duplicate edges are
// ignored; unknown nodes and self-loops are errors.
func (g *Graph) AddEdge(parentID, childID string) error {
	p, ok := g.index[parentID]
	if !ok {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	c, ok := g.index[childID]
	if !ok {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if p == c {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}
	g.link(p, c)
	return nil
}

func (g *Graph) link(p, c int) {
	key := [2]int{p, c}
	if g.edges[key] {
		return
	}
	g.edges[key] = true
	g.children[p] = append(g.children[p], c)
	g.parents[c] = append(g.parents[c], p)
}

// HasEdge reports whether the edge parent -> child exists.
func (g *Graph) HasEdge(p, c int) bool {
	return g.edges[[2]int{p, c}]
}

// Index returns the index of id.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// ID returns the id of the node at index i.
func (g *Graph) ID(i int) string {
	return g.ids[i]
}

// Children returns the children of node i.
func (g *Graph) Children(i int) []int {
	return g.children[i]
}

// Parents returns the parents of node i.
func (g *Graph) Parents(i int) []int {
	return g.parents[i]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.ids)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// HasCycle returns true if the graph contains a cycle, along with the cycle
// path (first node repeated at the end).
func (g *Graph) HasCycle() (bool, []string) {
	var cycle []string
	g.dfs(func(from, to int, stack []int) bool {
		for k, n := range stack {
			if n == to {
				for _, m := range stack[k:] {
					cycle = append(cycle, g.ids[m])
				}
				cycle = append(cycle, g.ids[to])
				return true
			}
		}
		return true
	})
	return cycle != nil, cycle
}

// Acyclic returns a copy of the graph in which every back edge found by a
// depth-first walk (nodes and children in insertion order) is reversed, and
// the number of edges reversed. A reversed edge that duplicates an existing
// one is dropped.
func (g *Graph) Acyclic() (*Graph, int) {
	back := make(map[[2]int]bool)
	g.dfs(func(from, to int, _ []int) bool {
		back[[2]int{from, to}] = true
		return false
	})

	out := NewGraph()
	for _, id := range g.ids {
		out.AddNode(id)
	}
	for p := range g.children {
		for _, c := range g.children[p] {
			if back[[2]int{p, c}] {
				out.link(c, p)
			} else {
				out.link(p, c)
			}
		}
	}
	return out, len(back)
}

// dfs walks the graph iteratively and calls onBack for every edge that
// points into the current stack. Returning true stops the walk.
func (g *Graph) dfs(onBack func(from, to int, stack []int) bool) {
	const (
		unvisited = iota
		active
		done
	)
	state := make([]int, len(g.ids))
	next := make([]int, len(g.ids)) // next child position per node

	for root := range g.ids {
		if state[root] != unvisited {
			continue
		}
		stack := []int{root}
		state[root] = active
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			if next[n] >= len(g.children[n]) {
				state[n] = done
				stack = stack[:len(stack)-1]
				continue
			}
			c := g.children[n][next[n]]
			next[n]++
			switch state[c] {
			case unvisited:
				state[c] = active
				stack = append(stack, c)
			case active:
				if onBack(n, c, stack) {
					return
				}
			}
		}
	}
}

// TopologicalOrder returns node indices with parents before children, ties
// broken by insertion order. ok is false when a cycle prevents a full order;
// the nodes on or behind a cycle are then missing.
func (g *Graph) TopologicalOrder() (order []int, ok bool) {
	indegree := make([]int, len(g.ids))
	for c := range g.parents {
		indegree[c] = len(g.parents[c])
	}
	queue := make([]int, 0, len(g.ids))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, c := range g.children[n] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	return order, len(order) == len(g.ids)
}

// LongestPathRanks assigns every node the length of the longest path from a
// root to it. Cycles are broken first, so every node gets a rank.
func (g *Graph) LongestPathRanks() []int {
	acyclic := g
	if cyclic, _ := g.HasCycle(); cyclic {
		acyclic, _ = g.Acyclic()
	}
	rank := make([]int, len(g.ids))
	order, _ := acyclic.TopologicalOrder()
	for _, n := range order {
		for _, c := range acyclic.children[n] {
			rank[c] = max(rank[c], rank[n]+1)
		}
	}
	return rank
}

// Levels returns node ids grouped by longest-path rank. Level 0 holds nodes
// without parents. Each level is sorted.
func (g *Graph) Levels() [][]string {
	ranks := g.LongestPathRanks()
	var levels [][]string
	for i, r := range ranks {
		for len(levels) <= r {
			levels = append(levels, []string{})
		}
		levels[r] = append(levels[r], g.ids[i])
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels
}

// Downstream returns every node reachable from id, excluding id, sorted.
func (g *Graph) Downstream(id string) []string {
	return g.reach(id, g.children)
}

// Upstream returns every node that reaches id, excluding id, sorted.
func (g *Graph) Upstream(id string) []string {
	return g.reach(id, g.parents)
}

func (g *Graph) reach(id string, adj [][]int) []string {
	start, ok := g.index[id]
	if !ok {
		return nil
	}
	seen := map[int]bool{start: true}
	queue := []int{start}
	var out []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range adj[n] {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, g.ids[m])
			queue = append(queue, m)
		}
	}
	sort.Strings(out)
	return out
}

// Roots returns nodes with no parents, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for i, p := range g.parents {
		if len(p) == 0 {
			roots = append(roots, g.ids[i])
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns nodes with no children, sorted.
func (g *Graph) Leaves() []string {
	var leaves []string
	for i, c := range g.children {
		if len(c) == 0 {
			leaves = append(leaves, g.ids[i])
		}
	}
	sort.Strings(leaves)
	return leaves
}
