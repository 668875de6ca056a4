package reasoner

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"ncats/chp/internal/hypergraph"
)

// fallback estimates comp's posterior from the interpolator's synthetic rules
func (e *evaluator) fallback(comp int) []float64 {
	n := e.g.NumStates(comp)
	switch e.plan.Options.Interpolation {
	case InterpolationIndependence:
		return e.independence(comp, n)
	case InterpolationNone:
		return make([]float64, n)
	default:
		return e.standard(comp, n)
	}
}

// standard uses the highest-order tier of synthetic rules whose tails are
// consistent with the evidence: pairs, then single features, then the prior
func (e *evaluator) standard(comp, n int) []float64 {
	for _, order := range []int{2, 1, 0} {
		scores := e.tier(comp, n, func(s hypergraph.SNode) bool {
			return len(s.Tail) == order && e.consistent(s.Tail)
		})
		if normalize(scores) {
			return scores
		}
	}
	return make([]float64, n)
}

// independence combines the prior with each evidence component's
// single-feature rules as if the features were conditionally independent
func (e *evaluator) independence(comp, n int) []float64 {
	prior := e.tier(comp, n, func(s hypergraph.SNode) bool { return len(s.Tail) == 0 })
	if !normalize(prior) {
		return prior
	}

	logp := make([]float64, n)
	for s := range logp {
		logp[s] = math.Log(prior[s])
	}
	for _, ev := range e.plan.evidence {
		if ev == comp {
			continue
		}
		cond := e.tier(comp, n, func(s hypergraph.SNode) bool {
			return len(s.Tail) == 1 && s.Tail[0].Component == ev && e.consistent(s.Tail)
		})
		if !normalize(cond) {
			continue
		}
		for s := range logp {
			if prior[s] == 0 {
				continue
			}
			logp[s] += math.Log(cond[s]) - math.Log(prior[s])
		}
	}

	lse := floats.LogSumExp(logp)
	if math.IsInf(lse, -1) || math.IsNaN(lse) {
		return prior
	}
	out := make([]float64, n)
	for s := range out {
		out[s] = math.Exp(logp[s] - lse)
	}
	return out
}

// tier sums w*p over the synthetic S-nodes heading each allowed state of comp
// that keep passes
func (e *evaluator) tier(comp, n int, keep func(hypergraph.SNode) bool) []float64 {
	scores := make([]float64, n)
	for s := 0; s < n; s++ {
		if isEvidence, ok := e.plan.Allowed(comp, s); isEvidence && !ok {
			continue
		}
		for _, idx := range e.g.SNodesByHead(hypergraph.INode{Component: comp, State: s}) {
			sn := e.g.SNode(idx)
			if sn.Synthetic && keep(sn) {
				scores[s] += weightOf(sn) * sn.Prob
			}
		}
	}
	return scores
}

// consistent reports whether every tail node is an allowed evidence state
func (e *evaluator) consistent(tail []hypergraph.INode) bool {
	for _, t := range tail {
		if isEvidence, ok := e.plan.Allowed(t.Component, t.State); !isEvidence || !ok {
			return false
		}
	}
	return true
}

// normalize scales v to sum to one in place; false when v sums to zero
func normalize(v []float64) bool {
	total := floats.Sum(v)
	if total <= 0 || math.IsNaN(total) {
		return false
	}
	floats.Scale(1/total, v)
	return true
}
