package fusion

import (
	"math"
	"sort"
	"time"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/logger"
	"ncats/chp/internal/metrics"
)

// Report summarises one fusion run
type Report struct {
	Fragments        int `json:"fragments"`
	Components       int `json:"components"`
	INodes           int `json:"inodes"`
	SNodes           int `json:"snodes"`
	Merged           int `json:"merged"`            // rule contributions folded into an existing S-node
	SyntheticAdded   int `json:"synthetic_added"`   // interpolator rules that filled a gap
	SyntheticSkipped int `json:"synthetic_skipped"` // interpolator rules shadowed by real evidence
}

// Fuse merges fragments into one frozen hypergraph. weights and sourceIDs are
// parallel to fragments.
func Fuse(fragments []Fragment, weights []float64, sourceIDs []string) (*hypergraph.Hypergraph, error) {
	h, _, err := FuseReport(fragments, weights, sourceIDs)
	return h, err
}

// FuseReport is Fuse that also returns merge statistics.
//
// S-nodes with the same (head, tail-set) are combined by weighted average:
// prob = Σ wᵢ·pᵢ / Σ wᵢ, weight = Σ wᵢ, where wᵢ is the fragment weight
// times the rule support. Every contribution is kept as provenance.
func FuseReport(fragments []Fragment, weights []float64, sourceIDs []string) (*hypergraph.Hypergraph, Report, error) {
	start := time.Now()
	var report Report

	if len(weights) != len(fragments) || len(sourceIDs) != len(fragments) {
		return nil, report, apperr.InputValidation(
			"fuse needs one weight and one source id per fragment (fragments=%d weights=%d sources=%d)",
			len(fragments), len(weights), len(sourceIDs))
	}

	// 1. Validate everything before touching the hypergraph
	for i := range fragments {
		w := weights[i]
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, report, apperr.InputValidation("fragment %q: weight must be positive and finite, got %v", sourceIDs[i], w)
		}
		if sourceIDs[i] == "" {
			return nil, report, apperr.InputValidation("fragment %d: empty source id", i)
		}
		if err := fragments[i].Validate(); err != nil {
			return nil, report, apperr.Wrapf(err, "fragment %q", sourceIDs[i])
		}
	}

	// 2. Real fragments first, synthetic ones last, each group in input order
	order := make([]int, len(fragments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return !fragments[order[a]].Synthetic && fragments[order[b]].Synthetic
	})

	h := hypergraph.New()
	for _, i := range order {
		if err := fuseOne(h, &fragments[i], weights[i], sourceIDs[i], &report); err != nil {
			return nil, report, apperr.Wrapf(err, "fusing fragment %q", sourceIDs[i])
		}
	}
	h.Freeze()

	report.Fragments = len(fragments)
	report.Components = h.NumComponents()
	report.INodes = h.NumINodes()
	report.SNodes = h.NumSNodes()

	metrics.FusionDuration.Observe(time.Since(start).Seconds())
	metrics.FusionSNodes.WithLabelValues("merged").Add(float64(report.Merged))
	metrics.FusionSNodes.WithLabelValues("synthetic_added").Add(float64(report.SyntheticAdded))
	metrics.FusionSNodes.WithLabelValues("synthetic_skipped").Add(float64(report.SyntheticSkipped))
	logger.Debug("fused hypergraph",
		"fragments", report.Fragments, "components", report.Components,
		"snodes", report.SNodes, "merged", report.Merged,
		"synthetic_added", report.SyntheticAdded, "synthetic_skipped", report.SyntheticSkipped)

	return h, report, nil
}

func fuseOne(h *hypergraph.Hypergraph, f *Fragment, weight float64, source string, report *Report) error {
	for _, c := range f.Components {
		comp, ok := h.ComponentIndex(c.Name)
		if !ok {
			var err error
			if comp, err = h.AddComponent(c.Name); err != nil {
				return err
			}
		}
		for _, s := range c.States {
			if _, ok := h.StateIndex(comp, s); ok {
				continue
			}
			if _, err := h.AddState(comp, s); err != nil {
				return err
			}
		}
	}

	for _, r := range f.Rules {
		head, _ := h.Resolve(r.Head.Component, r.Head.State)
		tail := make([]hypergraph.INode, len(r.Tail))
		for j, t := range r.Tail {
			tail[j], _ = h.Resolve(t.Component, t.State)
		}
		contrib := hypergraph.Contribution{Source: source, Weight: weight * r.support(), Prob: r.Prob}

		idx, exists := h.Lookup(head, tail)
		if !exists {
			if _, err := h.AddSNode(hypergraph.SNode{
				Head:          head,
				Prob:          r.Prob,
				Tail:          tail,
				Weight:        contrib.Weight,
				Sources:       []hypergraph.Contribution{contrib},
				Synthetic:     f.Synthetic,
				LowConfidence: r.LowConfidence,
			}); err != nil {
				return err
			}
			if f.Synthetic {
				report.SyntheticAdded++
			}
			continue
		}

		existing := h.SNode(idx)
		if f.Synthetic && !existing.Synthetic {
			report.SyntheticSkipped++
			continue
		}
		sources := append(append([]hypergraph.Contribution(nil), existing.Sources...), contrib)
		prob, total := combine(sources)
		if err := h.ReplaceSupport(idx, prob, total, sources); err != nil {
			return err
		}
		report.Merged++
	}
	return nil
}

// combine returns the weighted average probability and total weight
func combine(sources []hypergraph.Contribution) (float64, float64) {
	var num, den float64
	for _, c := range sources {
		num += c.Weight * c.Prob
		den += c.Weight
	}
	if den == 0 {
		return 0, 0
	}
	p := num / den
	if p > 1 {
		p = 1
	}
	return p, den
}
