package graph

import (
	"sort"

	"ncats/chp/internal/hypergraph"
)

// NodeInfo is one component in the dependency graph
type NodeInfo struct {
	Index  int
	Name   string
	States int
	Rules  int // S-nodes whose head is a state of this component
}

// EdgeInfo says some S-node with a head in Target has a tail in Source
type EdgeInfo struct {
	Source int
	Target int
	Rules  int     // S-nodes carrying the dependency
	Weight float64 // summed support of those S-nodes
}

// GraphSnapshot is the component dependency graph of a hypergraph, with
// precomputed adjacency lists indexed by component
type GraphSnapshot struct {
	Nodes  []NodeInfo
	Edges  []EdgeInfo
	Adj    [][]int // undirected, deduplicated
	OutAdj [][]int // directed: tail component -> head component
	InAdj  [][]int // directed: head component -> tail components
}

// SnapshotOptions controls which S-nodes contribute edges
type SnapshotOptions struct {
	IncludeSynthetic bool
}

// FromHypergraph folds every S-node's tail->head links into component edges
func FromHypergraph(h *hypergraph.Hypergraph, opts SnapshotOptions) *GraphSnapshot {
	nodes := make([]NodeInfo, h.NumComponents())
	for i := range nodes {
		c, _ := h.Component(i)
		nodes[i] = NodeInfo{Index: i, Name: c.Name, States: len(c.States)}
	}

	type key struct{ src, dst int }
	agg := make(map[key]*EdgeInfo)
	for _, s := range h.SNodes() {
		if s.Synthetic && !opts.IncludeSynthetic {
			continue
		}
		nodes[s.Head.Component].Rules++
		seen := make(map[int]bool, len(s.Tail))
		for _, t := range s.Tail {
			if t.Component == s.Head.Component || seen[t.Component] {
				continue
			}
			seen[t.Component] = true
			k := key{t.Component, s.Head.Component}
			e, ok := agg[k]
			if !ok {
				e = &EdgeInfo{Source: k.src, Target: k.dst}
				agg[k] = e
			}
			e.Rules++
			e.Weight += s.Weight
		}
	}

	edges := make([]EdgeInfo, 0, len(agg))
	for _, e := range agg {
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return NewSnapshot(nodes, edges)
}

// NewSnapshot builds a GraphSnapshot from raw nodes and edges. Node i must
// have Index i; edges referencing unknown indices are dropped.
func NewSnapshot(nodes []NodeInfo, edges []EdgeInfo) *GraphSnapshot {
	n := len(nodes)
	adj := make([][]int, n)
	outAdj := make([][]int, n)
	inAdj := make([][]int, n)

	type pair struct{ u, v int }
	undirected := make(map[pair]bool)
	var kept []EdgeInfo
	for _, e := range edges {
		if e.Source < 0 || e.Source >= n || e.Target < 0 || e.Target >= n {
			continue
		}
		kept = append(kept, e)
		outAdj[e.Source] = append(outAdj[e.Source], e.Target)
		inAdj[e.Target] = append(inAdj[e.Target], e.Source)

		if e.Source == e.Target {
			continue
		}
		p := pair{e.Source, e.Target}
		if p.u > p.v {
			p = pair{p.v, p.u}
		}
		if !undirected[p] {
			undirected[p] = true
			adj[p.u] = append(adj[p.u], p.v)
			adj[p.v] = append(adj[p.v], p.u)
		}
	}

	return &GraphSnapshot{
		Nodes:  nodes,
		Edges:  kept,
		Adj:    adj,
		OutAdj: outAdj,
		InAdj:  inAdj,
	}
}

// Sinks returns components that are explained by others but explain nothing:
// the outcome variables of a patient hypergraph
func (s *GraphSnapshot) Sinks() []int {
	var out []int
	for i := range s.Nodes {
		if len(s.InAdj[i]) > 0 && len(s.OutAdj[i]) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Sources returns components that only ever appear as conditions
func (s *GraphSnapshot) Sources() []int {
	var out []int
	for i := range s.Nodes {
		if len(s.OutAdj[i]) > 0 && len(s.InAdj[i]) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Names maps component indices to names
func (s *GraphSnapshot) Names(idx []int) []string {
	out := make([]string, len(idx))
	for i, c := range idx {
		out[i] = s.Nodes[c].Name
	}
	return out
}
