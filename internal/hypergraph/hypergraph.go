package hypergraph

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"ncats/chp/internal/apperr"
)

// ErrFrozen is returned by mutating calls once the hypergraph is frozen
var ErrFrozen = errors.New("hypergraph is frozen")

// INode is an instantiated (component, state) pair addressed by index
type INode struct {
	Component int `json:"component"`
	State     int `json:"state"`
}

// Less orders I-nodes by component, then state
func (n INode) Less(o INode) bool {
	if n.Component != o.Component {
		return n.Component < o.Component
	}
	return n.State < o.State
}

// Component is a random variable with an ordered state domain
type Component struct {
	Name   string   `json:"name"`
	States []string `json:"states"`
}

// Contribution is one source's support for an S-node
type Contribution struct {
	Source string  `json:"source"`
	Weight float64 `json:"weight"`
	Prob   float64 `json:"prob"`
}

// SNode is a probabilistic support rule: Head holds with Prob when every Tail node holds
type SNode struct {
	Head          INode          `json:"head"`
	Prob          float64        `json:"prob"`
	Tail          []INode        `json:"tail,omitempty"`
	Weight        float64        `json:"weight"`
	Sources       []Contribution `json:"sources,omitempty"`
	Synthetic     bool           `json:"synthetic,omitempty"`
	LowConfidence bool           `json:"low_confidence,omitempty"`
}

// Signature identifies the (head, tail-set) an S-node asserts
func (s SNode) Signature() string {
	return Signature(s.Head, s.Tail)
}

// Signature builds the merge key for a head and tail set
func Signature(head INode, tail []INode) string {
	sorted := sortedTail(tail)
	var b strings.Builder
	writeINode(&b, head)
	b.WriteByte('|')
	for i, t := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		writeINode(&b, t)
	}
	return b.String()
}

func writeINode(b *strings.Builder, n INode) {
	b.WriteString(strconv.Itoa(n.Component))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(n.State))
}

// SourceIDs returns the source identifiers in contribution order
func (s SNode) SourceIDs() []string {
	ids := make([]string, len(s.Sources))
	for i, c := range s.Sources {
		ids[i] = c.Source
	}
	return ids
}

// Hypergraph holds components, I-nodes and S-nodes with index tables.
// Indices never change once assigned. After Freeze it is safe for
// concurrent readers.
type Hypergraph struct {
	components []Component
	compIndex  map[string]int
	stateIndex []map[string]int
	snodes     []SNode
	bySig      map[string]int
	byHead     map[INode][]int
	frozen     bool
}

// New creates an empty, mutable hypergraph
func New() *Hypergraph {
	return &Hypergraph{
		compIndex: make(map[string]int),
		bySig:     make(map[string]int),
		byHead:    make(map[INode][]int),
	}
}

// AddComponent registers a component and returns its index. Names are unique.
func (h *Hypergraph) AddComponent(name string) (int, error) {
	if h.frozen {
		return 0, ErrFrozen
	}
	if name == "" {
		return 0, apperr.Structural("component name must not be empty")
	}
	if _, ok := h.compIndex[name]; ok {
		return 0, apperr.Structural("component %q already exists", name)
	}
	idx := len(h.components)
	h.components = append(h.components, Component{Name: name})
	h.compIndex[name] = idx
	h.stateIndex = append(h.stateIndex, make(map[string]int))
	return idx, nil
}

// AddState adds a state to a component's domain and returns the new I-node
func (h *Hypergraph) AddState(comp int, state string) (INode, error) {
	if h.frozen {
		return INode{}, ErrFrozen
	}
	if comp < 0 || comp >= len(h.components) {
		return INode{}, apperr.Structural("unknown component index %d", comp)
	}
	if state == "" {
		return INode{}, apperr.Structural("state name must not be empty (component %q)", h.components[comp].Name)
	}
	if _, ok := h.stateIndex[comp][state]; ok {
		return INode{}, apperr.Structural("state %q already exists on component %q", state, h.components[comp].Name)
	}
	idx := len(h.components[comp].States)
	h.components[comp].States = append(h.components[comp].States, state)
	h.stateIndex[comp][state] = idx
	return INode{Component: comp, State: idx}, nil
}

// AddSNode appends an S-node. Every referenced I-node must exist and the
// (head, tail-set) signature must be new.
func (h *Hypergraph) AddSNode(s SNode) (int, error) {
	if h.frozen {
		return 0, ErrFrozen
	}
	if !h.HasINode(s.Head) {
		return 0, apperr.Structural("S-node head %v references an unknown I-node", s.Head)
	}
	for _, t := range s.Tail {
		if !h.HasINode(t) {
			return 0, apperr.Structural("S-node tail %v references an unknown I-node", t)
		}
		if t == s.Head {
			return 0, apperr.Structural("S-node head %s appears in its own tail", h.INodeLabel(t))
		}
	}
	if err := checkSupport(s.Prob, s.Weight); err != nil {
		return 0, err
	}
	s.Tail = sortedTail(s.Tail)
	for i := 1; i < len(s.Tail); i++ {
		if s.Tail[i] == s.Tail[i-1] {
			return 0, apperr.Structural("S-node tail repeats %s", h.INodeLabel(s.Tail[i]))
		}
	}
	sig := s.Signature()
	if _, ok := h.bySig[sig]; ok {
		return 0, apperr.Structural("S-node %s already exists", h.SNodeLabel(s))
	}
	if len(s.Sources) == 0 {
		s.Sources = nil
	} else {
		s.Sources = append([]Contribution(nil), s.Sources...)
	}
	idx := len(h.snodes)
	h.snodes = append(h.snodes, s)
	h.bySig[sig] = idx
	h.byHead[s.Head] = append(h.byHead[s.Head], idx)
	return idx, nil
}

// ReplaceSupport overwrites the probability, weight and provenance of an existing S-node
func (h *Hypergraph) ReplaceSupport(idx int, prob, weight float64, sources []Contribution) error {
	if h.frozen {
		return ErrFrozen
	}
	if idx < 0 || idx >= len(h.snodes) {
		return apperr.Structural("unknown S-node index %d", idx)
	}
	if err := checkSupport(prob, weight); err != nil {
		return err
	}
	h.snodes[idx].Prob = prob
	h.snodes[idx].Weight = weight
	h.snodes[idx].Sources = append([]Contribution(nil), sources...)
	return nil
}

// checkSupport rejects NaN probabilities and non-finite or negative weights
func checkSupport(prob, weight float64) error {
	if !(prob >= 0 && prob <= 1) {
		return apperr.Structural("S-node probability %v outside [0,1]", prob)
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return apperr.Structural("S-node weight %v must be finite and non-negative", weight)
	}
	return nil
}

// Freeze makes the hypergraph read-only
func (h *Hypergraph) Freeze() {
	h.frozen = true
}

// Frozen reports whether Freeze has been called
func (h *Hypergraph) Frozen() bool {
	return h.frozen
}

// NumComponents returns the number of components
func (h *Hypergraph) NumComponents() int {
	return len(h.components)
}

// NumINodes returns the number of instantiated states across all components
func (h *Hypergraph) NumINodes() int {
	n := 0
	for _, c := range h.components {
		n += len(c.States)
	}
	return n
}

// NumSNodes returns the number of S-nodes
func (h *Hypergraph) NumSNodes() int {
	return len(h.snodes)
}

// Component returns a copy of the component at idx
func (h *Hypergraph) Component(idx int) (Component, bool) {
	if idx < 0 || idx >= len(h.components) {
		return Component{}, false
	}
	c := h.components[idx]
	return Component{Name: c.Name, States: append([]string(nil), c.States...)}, true
}

// ComponentName looks up a component name by index
func (h *Hypergraph) ComponentName(idx int) (string, error) {
	if idx < 0 || idx >= len(h.components) {
		return "", apperr.NotFound(fmt.Sprintf("component %d", idx))
	}
	return h.components[idx].Name, nil
}

// INodeName looks up a state name by (component, state) indices
func (h *Hypergraph) INodeName(comp, state int) (string, error) {
	if comp < 0 || comp >= len(h.components) {
		return "", apperr.NotFound(fmt.Sprintf("component %d", comp))
	}
	states := h.components[comp].States
	if state < 0 || state >= len(states) {
		return "", apperr.NotFound(fmt.Sprintf("state %d of component %q", state, h.components[comp].Name))
	}
	return states[state], nil
}

// ComponentNames enumerates component names in index order
func (h *Hypergraph) ComponentNames() []string {
	names := make([]string, len(h.components))
	for i, c := range h.components {
		names[i] = c.Name
	}
	return names
}

// ComponentIndex resolves a component name
func (h *Hypergraph) ComponentIndex(name string) (int, bool) {
	idx, ok := h.compIndex[name]
	return idx, ok
}

// StateIndex resolves a state name within a component
func (h *Hypergraph) StateIndex(comp int, state string) (int, bool) {
	if comp < 0 || comp >= len(h.stateIndex) {
		return 0, false
	}
	idx, ok := h.stateIndex[comp][state]
	return idx, ok
}

// Resolve turns a (component, state) name pair into an I-node
func (h *Hypergraph) Resolve(component, state string) (INode, bool) {
	c, ok := h.compIndex[component]
	if !ok {
		return INode{}, false
	}
	s, ok := h.stateIndex[c][state]
	if !ok {
		return INode{}, false
	}
	return INode{Component: c, State: s}, true
}

// NumStates returns the domain size of a component
func (h *Hypergraph) NumStates(comp int) int {
	if comp < 0 || comp >= len(h.components) {
		return 0
	}
	return len(h.components[comp].States)
}

// HasINode reports whether n references an existing I-node
func (h *Hypergraph) HasINode(n INode) bool {
	return n.Component >= 0 && n.Component < len(h.components) &&
		n.State >= 0 && n.State < len(h.components[n.Component].States)
}

// SNode returns the S-node at idx
func (h *Hypergraph) SNode(idx int) SNode {
	return h.snodes[idx]
}

// SNodes returns all S-nodes in index order. Callers must not modify the result.
func (h *Hypergraph) SNodes() []SNode {
	return h.snodes
}

// SNodesByHead returns indices of the S-nodes supporting n, in index order
func (h *Hypergraph) SNodesByHead(n INode) []int {
	return h.byHead[n]
}

// Lookup finds the S-node with the given head and tail set
func (h *Hypergraph) Lookup(head INode, tail []INode) (int, bool) {
	idx, ok := h.bySig[Signature(head, tail)]
	return idx, ok
}

// INodeLabel renders an I-node as "component=state"
func (h *Hypergraph) INodeLabel(n INode) string {
	comp, err := h.ComponentName(n.Component)
	if err != nil {
		return fmt.Sprintf("%d=%d", n.Component, n.State)
	}
	state, err := h.INodeName(n.Component, n.State)
	if err != nil {
		return fmt.Sprintf("%s=%d", comp, n.State)
	}
	return comp + "=" + state
}

// SNodeLabel renders an S-node as "head <- tail1 & tail2"
func (h *Hypergraph) SNodeLabel(s SNode) string {
	parts := make([]string, len(s.Tail))
	for i, t := range s.Tail {
		parts[i] = h.INodeLabel(t)
	}
	if len(parts) == 0 {
		return h.INodeLabel(s.Head) + " <- {}"
	}
	return h.INodeLabel(s.Head) + " <- " + strings.Join(parts, " & ")
}

// Sources returns the distinct provenance tags in sorted order
func (h *Hypergraph) Sources() []string {
	seen := make(map[string]bool)
	for _, s := range h.snodes {
		for _, c := range s.Sources {
			seen[c.Source] = true
		}
	}
	out := make([]string, 0, len(seen))
	for src := range seen {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two hypergraphs hold identical components, I-nodes and S-nodes
func (h *Hypergraph) Equal(o *Hypergraph) bool {
	if len(h.components) != len(o.components) || len(h.snodes) != len(o.snodes) {
		return false
	}
	for i, c := range h.components {
		oc := o.components[i]
		if c.Name != oc.Name || len(c.States) != len(oc.States) {
			return false
		}
		for j := range c.States {
			if c.States[j] != oc.States[j] {
				return false
			}
		}
	}
	for i, s := range h.snodes {
		if !snodeEqual(s, o.snodes[i]) {
			return false
		}
	}
	return true
}

func snodeEqual(a, b SNode) bool {
	if a.Head != b.Head || a.Prob != b.Prob || a.Weight != b.Weight ||
		a.Synthetic != b.Synthetic || a.LowConfidence != b.LowConfidence ||
		len(a.Tail) != len(b.Tail) || len(a.Sources) != len(b.Sources) {
		return false
	}
	for i := range a.Tail {
		if a.Tail[i] != b.Tail[i] {
			return false
		}
	}
	for i := range a.Sources {
		if a.Sources[i] != b.Sources[i] {
			return false
		}
	}
	return true
}

func sortedTail(tail []INode) []INode {
	if len(tail) == 0 {
		return nil
	}
	out := append([]INode(nil), tail...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
