package reasoner

import (
	"context"
	"sort"

	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/logger"
)

// ctxCheckInterval is how many explain steps run between cancellation checks
const ctxCheckInterval = 1024

// massMap maps an evidence-coverage mask to the probability mass of the
// explanations covering exactly those evidence components
type massMap map[uint64]float64

func (m massMap) keys() []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// convolve combines two independent conjunctive explanations
func convolve(a, b massMap) massMap {
	out := make(massMap, len(a)*len(b))
	for _, ka := range a.keys() {
		for _, kb := range b.keys() {
			out[ka|kb] += a[ka] * b[kb]
		}
	}
	return out
}

// TraceEntry is one real S-node that contributed mass to a target state
type TraceEntry struct {
	SNode   int      `json:"snode"`
	Rule    string   `json:"rule"`
	Mass    float64  `json:"mass"`
	Sources []string `json:"sources"`
}

// evaluator is the per-task traversal state. It is never shared.
type evaluator struct {
	ctx    context.Context
	g      *hypergraph.Hypergraph
	plan   *Plan
	memo   map[hypergraph.INode]massMap
	onPath map[hypergraph.INode]bool
	steps  int
}

func newEvaluator(ctx context.Context, g *hypergraph.Hypergraph, plan *Plan) *evaluator {
	return &evaluator{
		ctx:    ctx,
		g:      g,
		plan:   plan,
		memo:   make(map[hypergraph.INode]massMap),
		onPath: make(map[hypergraph.INode]bool),
	}
}

func weightOf(s hypergraph.SNode) float64 {
	if s.Weight > 0 {
		return s.Weight
	}
	return 1
}

// explain returns how n can hold given the evidence, keyed by which evidence
// components each explanation covers. Evidence nodes explain themselves;
// other nodes are explained by their real supporting S-nodes, each weighted
// by its share of the node's total support.
func (e *evaluator) explain(n hypergraph.INode) (massMap, error) {
	if isEvidence, ok := e.plan.Allowed(n.Component, n.State); isEvidence {
		if !ok {
			return nil, nil
		}
		return massMap{1 << e.plan.bits[n.Component]: 1}, nil
	}
	if m, ok := e.memo[n]; ok {
		return m, nil
	}
	if e.onPath[n] {
		return nil, nil
	}

	e.steps++
	if e.steps%ctxCheckInterval == 0 {
		if err := e.ctx.Err(); err != nil {
			return nil, err
		}
	}

	e.onPath[n] = true
	defer delete(e.onPath, n)

	var total float64
	var support []hypergraph.SNode
	for _, idx := range e.g.SNodesByHead(n) {
		s := e.g.SNode(idx)
		if s.Synthetic {
			continue
		}
		support = append(support, s)
		total += weightOf(s)
	}

	out := make(massMap)
	for _, s := range support {
		conv, err := e.tailMass(s.Tail)
		if err != nil {
			return nil, err
		}
		scale := weightOf(s) / total * s.Prob
		for _, k := range conv.keys() {
			out[k] += scale * conv[k]
		}
	}
	if len(out) == 0 {
		out = nil
	}
	e.memo[n] = out
	return out, nil
}

// tailMass is the conjunction of every tail node's explanation
func (e *evaluator) tailMass(tail []hypergraph.INode) (massMap, error) {
	conv := massMap{0: 1}
	for _, t := range tail {
		m, err := e.explain(t)
		if err != nil {
			return nil, err
		}
		if len(m) == 0 {
			return nil, nil
		}
		conv = convolve(conv, m)
	}
	return conv, nil
}

// distribution is the posterior over one component's states
type distribution struct {
	probs    []float64
	degraded bool
	trace    map[int][]TraceEntry // state -> contributing S-nodes
}

// scoreComponent computes the posterior over comp's states. Real S-nodes
// contribute w*p times the mass of explanations covering every evidence
// component; with no such mass the interpolator fallback is used.
func (e *evaluator) scoreComponent(comp int) (distribution, error) {
	n := e.g.NumStates(comp)
	required := e.plan.fullMask
	var selfBit uint64
	if bit, ok := e.plan.bits[comp]; ok {
		selfBit = 1 << bit
		required &^= selfBit
	}

	d := distribution{probs: make([]float64, n)}
	if e.plan.Options.Trace {
		d.trace = make(map[int][]TraceEntry)
	}

	var total float64
	for s := 0; s < n; s++ {
		if isEvidence, ok := e.plan.Allowed(comp, s); isEvidence && !ok {
			continue
		}
		head := hypergraph.INode{Component: comp, State: s}
		for _, idx := range e.g.SNodesByHead(head) {
			sn := e.g.SNode(idx)
			if sn.Synthetic {
				continue
			}
			conv, err := e.tailMass(sn.Tail)
			if err != nil {
				return d, err
			}
			var covered float64
			for _, k := range conv.keys() {
				if k&^selfBit == required {
					covered += conv[k]
				}
			}
			mass := weightOf(sn) * sn.Prob * covered
			if mass == 0 {
				continue
			}
			d.probs[s] += mass
			total += mass
			if d.trace != nil {
				d.trace[s] = append(d.trace[s], TraceEntry{
					SNode:   idx,
					Rule:    e.g.SNodeLabel(sn),
					Mass:    mass,
					Sources: sn.SourceIDs(),
				})
			}
		}
	}

	if total > 0 {
		for s := range d.probs {
			d.probs[s] /= total
		}
		return d, nil
	}

	name, _ := e.g.ComponentName(comp)
	logger.Debug("no real path explains the evidence, using interpolator", "component", name, "mode", string(e.plan.Options.Interpolation))
	d.probs = e.fallback(comp)
	d.degraded = true
	return d, nil
}
