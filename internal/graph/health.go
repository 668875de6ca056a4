package graph

import (
	"math"

	"ncats/chp/internal/hypergraph"
	"ncats/chp/internal/mutex"
)

// HealthBreakdown shows the sub-scores of the health formula
type HealthBreakdown struct {
	Connectivity float64 `json:"connectivity"`
	Groups       float64 `json:"groups"`
	Confidence   float64 `json:"confidence"`
	Consistency  float64 `json:"consistency"`
}

// AnalysisReport is the full inspection result for a fused hypergraph
type AnalysisReport struct {
	HealthScore     float64                `json:"health_score"`
	HealthBreakdown HealthBreakdown        `json:"health_breakdown"`
	Topology        *TopologyReport        `json:"topology"`
	Bridges         *BridgeReport          `json:"bridges"`
	Support         *SupportReport         `json:"support"`
	Violations      []mutex.SNodeViolation `json:"mutex_violations"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold     int
	TopN             int
	ThinRules        int
	IncludeSynthetic bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 10,
		TopN:         50,
		ThinRules:    1,
	}
}

// Analyze runs every analysis over h and computes a composite health score
func Analyze(h *hypergraph.Hypergraph, config *AnalyzerConfig) *AnalysisReport {
	snap := FromHypergraph(h, SnapshotOptions{IncludeSynthetic: config.IncludeSynthetic})
	topology := ComputeTopology(snap, config.HubThreshold, config.TopN)
	bridges := ComputeBridges(snap, config.ThinRules)
	support := ComputeSupport(h, config.TopN)
	violations := mutex.CheckHypergraph(h)

	total := float64(topology.TotalComponents)
	rules := float64(support.RealRules + support.SyntheticRules)

	var connectivity, groups, confidence, consistency float64
	if total > 0 {
		connectivity = clamp(1.0-math.Min(float64(topology.OrphanCount)/total, 0.2)*5.0, 0, 1)
	}
	if topology.NumGroups > 0 {
		groups = clamp(1.0/float64(topology.NumGroups), 0, 1)
	}
	if rules > 0 {
		confidence = clamp(1.0-math.Min(float64(support.LowConfidenceRules)/rules, 0.5)*2.0, 0, 1)
	}
	if h.NumSNodes() > 0 {
		consistency = clamp(1.0-float64(len(violations))/float64(h.NumSNodes()), 0, 1)
	}

	healthScore := 0.30*connectivity + 0.20*groups + 0.20*confidence + 0.30*consistency

	return &AnalysisReport{
		HealthScore: healthScore,
		HealthBreakdown: HealthBreakdown{
			Connectivity: connectivity,
			Groups:       groups,
			Confidence:   confidence,
			Consistency:  consistency,
		},
		Topology:   topology,
		Bridges:    bridges,
		Support:    support,
		Violations: violations,
	}
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
