package mutex

import (
	"sort"

	"ncats/chp/internal/hypergraph"
)

// Pair is two I-nodes asserting different states of one component
type Pair struct {
	A hypergraph.INode `json:"a"`
	B hypergraph.INode `json:"b"`
}

// Check scans every pair of I-nodes sharing a component and reports whether
// any pair asserts two distinct states, together with the offending pairs.
// Cost is proportional to the number of component-sharing pairs.
func Check(nodes []hypergraph.INode) (bool, []Pair) {
	byComp := make(map[int][]hypergraph.INode)
	var comps []int
	for _, n := range nodes {
		if _, ok := byComp[n.Component]; !ok {
			comps = append(comps, n.Component)
		}
		byComp[n.Component] = append(byComp[n.Component], n)
	}
	sort.Ints(comps)

	var pairs []Pair
	for _, c := range comps {
		group := byComp[c]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[i].State != group[j].State {
					pairs = append(pairs, ordered(group[i], group[j]))
				}
			}
		}
	}
	return len(pairs) > 0, pairs
}

// Role distinguishes evidence requirements from queried targets
type Role int

const (
	RoleEvidence Role = iota
	RoleTarget
)

// Requirement says component Component must take one of States
type Requirement struct {
	Label     string
	Component int
	States    []int
	Role      Role
}

// Conflict is two requirements on one component with no state in common
type Conflict struct {
	A, B Requirement
	Pair Pair
}

// CheckRequirements finds pairs of requirements on the same component whose
// allowed state sets are disjoint. Target-vs-target pairs are alternatives
// being queried and are never in conflict.
func CheckRequirements(reqs []Requirement) (bool, []Conflict) {
	var conflicts []Conflict
	for i := 0; i < len(reqs); i++ {
		for j := i + 1; j < len(reqs); j++ {
			a, b := reqs[i], reqs[j]
			if a.Component != b.Component {
				continue
			}
			if a.Role == RoleTarget && b.Role == RoleTarget {
				continue
			}
			if overlaps(a.States, b.States) || len(a.States) == 0 || len(b.States) == 0 {
				continue
			}
			conflicts = append(conflicts, Conflict{
				A: a,
				B: b,
				Pair: ordered(
					hypergraph.INode{Component: a.Component, State: minState(a.States)},
					hypergraph.INode{Component: b.Component, State: minState(b.States)},
				),
			})
		}
	}
	return len(conflicts) > 0, conflicts
}

// SNodeViolation is an S-node whose head and tail together require two
// states of one component
type SNodeViolation struct {
	SNode int  `json:"snode"`
	Pair  Pair `json:"pair"`
}

// CheckHypergraph runs Check over the head and tail of every S-node
func CheckHypergraph(h *hypergraph.Hypergraph) []SNodeViolation {
	var out []SNodeViolation
	for i, s := range h.SNodes() {
		nodes := append([]hypergraph.INode{s.Head}, s.Tail...)
		if bad, pairs := Check(nodes); bad {
			for _, p := range pairs {
				out = append(out, SNodeViolation{SNode: i, Pair: p})
			}
		}
	}
	return out
}

func ordered(a, b hypergraph.INode) Pair {
	if b.Less(a) {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func overlaps(a, b []int) bool {
	set := make(map[int]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}

func minState(states []int) int {
	m := states[0]
	for _, s := range states[1:] {
		if s < m {
			m = s
		}
	}
	return m
}
