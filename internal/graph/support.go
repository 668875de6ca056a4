package graph

import (
	"sort"

	"ncats/chp/internal/hypergraph"
)

// WeakComponent is a component none of whose states has real support
type WeakComponent struct {
	Name           string `json:"name"`
	SyntheticRules int    `json:"synthetic_rules"`
	LowConfidence  int    `json:"low_confidence_rules"`
}

// SharedClaim is an S-node backed by more than one source
type SharedClaim struct {
	Rule    string   `json:"rule"`
	Prob    float64  `json:"prob"`
	Weight  float64  `json:"weight"`
	Sources []string `json:"sources"`
}

// SupportReport summarises where the fused hypergraph's rules come from
type SupportReport struct {
	RealRules          int             `json:"real_rules"`
	SyntheticRules     int             `json:"synthetic_rules"`
	LowConfidenceRules int             `json:"low_confidence_rules"`
	Sources            int             `json:"sources"`
	WeakComponents     []WeakComponent `json:"weak_components"`
	WeakCount          int             `json:"weak_count"`
	TopShared          []SharedClaim   `json:"top_shared"`
}

// ComputeSupport counts real vs synthetic rules, flags components that only
// the interpolator speaks for, and lists the most widely shared claims
func ComputeSupport(h *hypergraph.Hypergraph, topN int) *SupportReport {
	r := &SupportReport{Sources: len(h.Sources())}

	realCount := make([]int, h.NumComponents())
	synth := make([]int, h.NumComponents())
	low := make([]int, h.NumComponents())
	var shared []SharedClaim
	for _, s := range h.SNodes() {
		c := s.Head.Component
		if s.Synthetic {
			r.SyntheticRules++
			synth[c]++
			if s.LowConfidence {
				r.LowConfidenceRules++
				low[c]++
			}
			continue
		}
		r.RealRules++
		realCount[c]++
		if len(s.Sources) > 1 {
			shared = append(shared, SharedClaim{
				Rule:    h.SNodeLabel(s),
				Prob:    s.Prob,
				Weight:  s.Weight,
				Sources: s.SourceIDs(),
			})
		}
	}

	// Components that never head a rule are conditions only; they are not weak
	for i := 0; i < h.NumComponents(); i++ {
		if realCount[i] == 0 && synth[i] > 0 {
			name, _ := h.ComponentName(i)
			r.WeakComponents = append(r.WeakComponents, WeakComponent{
				Name:           name,
				SyntheticRules: synth[i],
				LowConfidence:  low[i],
			})
		}
	}
	r.WeakCount = len(r.WeakComponents)

	sort.SliceStable(shared, func(i, j int) bool { return len(shared[i].Sources) > len(shared[j].Sources) })
	if len(shared) > topN {
		shared = shared[:topN]
	}
	r.TopShared = shared
	return r
}
