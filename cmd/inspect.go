package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"ncats/chp/internal/graph"
	"ncats/chp/internal/hypergraph"
)

var (
	inspectJSON         bool
	inspectTopN         int
	inspectHubThreshold int
	inspectThinRules    int
	inspectSynthetic    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect the fused hypergraph: topology, support, fragility, health score",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, _, err := OpenReasoner()
		if err != nil {
			return err
		}
		h := r.Graph()

		report := graph.Analyze(h, &graph.AnalyzerConfig{
			HubThreshold:     inspectHubThreshold,
			TopN:             inspectTopN,
			ThinRules:        inspectThinRules,
			IncludeSynthetic: inspectSynthetic,
		})

		if inspectJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printHumanReadable(report, h)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")
	inspectCmd.Flags().IntVar(&inspectTopN, "top-n", 10, "Number of top items to show per section")
	inspectCmd.Flags().IntVar(&inspectHubThreshold, "hub-threshold", 10, "Minimum degree to consider a component a hub")
	inspectCmd.Flags().IntVar(&inspectThinRules, "thin-rules", 1, "Dependencies backed by at most this many S-nodes are thin")
	inspectCmd.Flags().BoolVar(&inspectSynthetic, "synthetic", false, "Include interpolator rules in the dependency graph")
	rootCmd.AddCommand(inspectCmd)
}

func printHumanReadable(report *graph.AnalysisReport, h *hypergraph.Hypergraph) {
	// Health bar
	barLen := int(report.HealthScore * 20)
	if barLen > 20 {
		barLen = 20
	}
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Printf("\n  Hypergraph Health: %.0f%%  [%s]\n", report.HealthScore*100, bar)
	fmt.Printf("  breakdown: connectivity=%.2f groups=%.2f confidence=%.2f consistency=%.2f\n\n",
		report.HealthBreakdown.Connectivity,
		report.HealthBreakdown.Groups,
		report.HealthBreakdown.Confidence,
		report.HealthBreakdown.Consistency)

	// Topology
	t := report.Topology
	fmt.Println("  TOPOLOGY")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Components: %d  Dependencies: %d  Groups: %d\n", t.TotalComponents, t.TotalEdges, t.NumGroups)
	fmt.Printf("  Largest group: %d  Smallest: %d\n", t.LargestGroup, t.SmallestGroup)
	if len(t.Sinks) > 0 {
		fmt.Printf("  Sinks: %s\n", strings.Join(t.Sinks, ", "))
	}

	if t.OrphanCount > 0 {
		fmt.Printf("  Orphans: %d components without dependencies\n", t.OrphanCount)
		limit := 5
		if len(t.Orphans) < limit {
			limit = len(t.Orphans)
		}
		for _, name := range t.Orphans[:limit] {
			fmt.Printf("    - %s\n", truncName(name, 50))
		}
		if t.OrphanCount > 5 {
			fmt.Printf("    ... and %d more\n", t.OrphanCount-5)
		}
	}

	// Degree distribution
	fmt.Println("\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := int(math.Log2(float64(b.Count))) + 2
			if barWidth < 1 {
				barWidth = 1
			}
			fmt.Printf("    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	// Hubs
	if len(t.Hubs) > 0 {
		fmt.Println("\n  Top hubs (degree > threshold):")
		for _, hub := range t.Hubs {
			fmt.Printf("    %s degree=%d (in=%d, out=%d) rules=%d\n",
				truncName(hub.Name, 40), hub.Degree, hub.InDegree, hub.OutDegree, hub.Rules)
		}
	}

	// Support
	s := report.Support
	fmt.Println("\n  SUPPORT")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Sources: %d  Real rules: %d  Synthetic rules: %d (low confidence: %d)\n",
		s.Sources, s.RealRules, s.SyntheticRules, s.LowConfidenceRules)
	if s.WeakCount > 0 {
		fmt.Printf("  %d components backed only by the interpolator:\n", s.WeakCount)
		limit := 10
		if len(s.WeakComponents) < limit {
			limit = len(s.WeakComponents)
		}
		for _, w := range s.WeakComponents[:limit] {
			fmt.Printf("    %s synthetic=%d low_confidence=%d\n", truncName(w.Name, 40), w.SyntheticRules, w.LowConfidence)
		}
	}
	if len(s.TopShared) > 0 {
		fmt.Println("  Most shared rules:")
		for _, c := range s.TopShared {
			fmt.Printf("    %.3f w=%.1f  %s (%d sources)\n", c.Prob, c.Weight, truncName(c.Rule, 50), len(c.Sources))
		}
	}

	// Bridges
	br := report.Bridges
	if br.APCount > 0 || br.BridgeCount > 0 || len(br.ThinDependencies) > 0 {
		fmt.Println("\n  STRUCTURAL FRAGILITY")
		fmt.Println("  ────────────────────────────────────────")
		if br.APCount > 0 {
			fmt.Printf("  %d articulation points (removal splits a group):\n", br.APCount)
			limit := 10
			if len(br.ArticulationPoints) < limit {
				limit = len(br.ArticulationPoints)
			}
			for _, ap := range br.ArticulationPoints[:limit] {
				fmt.Printf("    %s (neighbors %d)\n", truncName(ap.Name, 40), ap.Neighbors)
			}
		}
		if br.BridgeCount > 0 {
			fmt.Printf("  %d bridge dependencies:\n", br.BridgeCount)
			limit := 10
			if len(br.BridgeEdges) < limit {
				limit = len(br.BridgeEdges)
			}
			for _, be := range br.BridgeEdges[:limit] {
				fmt.Printf("    %s -- %s\n", truncName(be.A, 30), truncName(be.B, 30))
			}
		}
		if len(br.ThinDependencies) > 0 {
			fmt.Printf("  %d thin dependencies:\n", len(br.ThinDependencies))
			limit := 10
			if len(br.ThinDependencies) < limit {
				limit = len(br.ThinDependencies)
			}
			for _, td := range br.ThinDependencies[:limit] {
				s := ""
				if td.Rules != 1 {
					s = "s"
				}
				fmt.Printf("    %s -> %s (%d rule%s)\n", truncName(td.Source, 25), truncName(td.Target, 25), td.Rules, s)
			}
		}
	}

	// Mutual exclusion
	if len(report.Violations) > 0 {
		fmt.Println("\n  CONSISTENCY")
		fmt.Println("  ────────────────────────────────────────")
		fmt.Printf("  %d mutually exclusive pairs inside S-nodes:\n", len(report.Violations))
		limit := 10
		if len(report.Violations) < limit {
			limit = len(report.Violations)
		}
		for _, v := range report.Violations[:limit] {
			fmt.Printf("    %s: %s vs %s\n", truncName(h.SNodeLabel(h.SNode(v.SNode)), 40),
				h.INodeLabel(v.Pair.A), h.INodeLabel(v.Pair.B))
		}
	}

	fmt.Println()
}

func truncName(s string, max int) string {
	if len(s) <= max {
		return s
	}
	truncated := s[:max]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "..."
}
