package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ncats/chp/internal/apperr"
	"ncats/chp/internal/patient"
	"ncats/chp/internal/reasoner"
)

var (
	queryEvidence      []string
	queryGenes         []string
	queryDrugs         []string
	queryMetaEvidence  []string
	queryTargets       []string
	queryMetaTargets   []string
	queryInterpolation string
	queryStrategy      string
	queryCheckMutex    bool
	queryTrace         bool
	queryJSON          bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Evaluate target probabilities given evidence",
	Example: `  chp query --gene RAF1 --meta-target "Survival_Time>=970"
  chp query -e mut_BRCA1=True --target "Survival_Time=[1000, 2000]" --trace`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := buildQuery()
		if err != nil {
			return err
		}

		opts := reasonerOptions()
		if cmd.Flags().Changed("interpolation") {
			opts.Interpolation = reasoner.Interpolation(queryInterpolation)
		}
		if cmd.Flags().Changed("strategy") {
			opts.TargetStrategy = reasoner.TargetStrategy(queryStrategy)
		}
		if cmd.Flags().Changed("check-mutex") {
			opts.CheckMutex = queryCheckMutex
		}
		opts.Trace = queryTrace

		r, _, err := OpenReasoner()
		if err != nil {
			return err
		}
		res, err := r.Analyze(cmd.Context(), q, opts)
		if err != nil {
			return err
		}
		report := res.Report(r.Graph())

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printQueryReport(report)
		return nil
	},
}

func buildQuery() (*reasoner.Query, error) {
	q := reasoner.NewQuery("cli")
	ev, err := parseAssignments(queryEvidence)
	if err != nil {
		return nil, apperr.InputValidation("--evidence: %v", err)
	}
	q.Evidence = ev
	geneEvidence(queryGenes, q.Evidence, patient.GeneComponent, patient.StateTrue)
	geneEvidence(queryDrugs, q.Evidence, patient.DrugComponent, patient.StateTrue)

	if q.MetaEvidence, err = parseMeta(queryMetaEvidence); err != nil {
		return nil, err
	}
	if q.Targets, err = parseTargets(queryTargets); err != nil {
		return nil, apperr.InputValidation("--target: %v", err)
	}
	if q.MetaTargets, err = parseMeta(queryMetaTargets); err != nil {
		return nil, err
	}
	return q, nil
}

func printQueryReport(report reasoner.Report) {
	fmt.Printf("\n  Query %s  (%.1f ms)\n\n", report.QueryID, report.ComputeTimeMS)

	fmt.Println("  TARGETS")
	fmt.Println("  ────────────────────────────────────────")
	for _, t := range report.Targets {
		switch {
		case t.ErrorCode != "":
			fmt.Printf("  %-40s  %s: %s\n", t.Label, t.ErrorCode, t.Error)
		case t.Degraded:
			fmt.Printf("  %-40s  %.4f  (interpolated)\n", t.Label, t.Probability)
		default:
			fmt.Printf("  %-40s  %.4f\n", t.Label, t.Probability)
		}
		keys := make([]string, 0, len(t.Trace))
		for k := range t.Trace {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, e := range t.Trace[k] {
				fmt.Printf("      %s  %s  mass=%.4f  sources=%s\n", k, e.Rule, e.Mass, strings.Join(e.Sources, ","))
			}
		}
	}

	if len(report.Updates) > 0 {
		fmt.Println("\n  POSTERIORS")
		fmt.Println("  ────────────────────────────────────────")
		comps := make([]string, 0, len(report.Updates))
		for c := range report.Updates {
			comps = append(comps, c)
		}
		sort.Strings(comps)
		for _, c := range comps {
			states := make([]string, 0, len(report.Updates[c]))
			for s := range report.Updates[c] {
				states = append(states, s)
			}
			sort.Strings(states)
			for _, s := range states {
				fmt.Printf("  %-24s %-20s %.4f\n", c, s, report.Updates[c][s])
			}
		}
	}
	fmt.Println()
}

func init() {
	queryCmd.Flags().StringArrayVarP(&queryEvidence, "evidence", "e", nil, "Evidence as Component=State (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryGenes, "gene", nil, "Mutated gene symbols, shorthand for mut_<gene>=True")
	queryCmd.Flags().StringSliceVar(&queryDrugs, "drug", nil, "Administered drugs, shorthand for drug_<name>=True")
	queryCmd.Flags().StringArrayVar(&queryMetaEvidence, "meta-evidence", nil, "Numeric evidence such as Age_of_Diagnosis<=15000 (repeatable)")
	queryCmd.Flags().StringArrayVarP(&queryTargets, "target", "t", nil, "Target as Component=State (repeatable)")
	queryCmd.Flags().StringArrayVar(&queryMetaTargets, "meta-target", nil, "Numeric target such as Survival_Time>=970 (repeatable)")
	queryCmd.Flags().StringVar(&queryInterpolation, "interpolation", "standard", "Fallback mode: standard, independence or none")
	queryCmd.Flags().StringVar(&queryStrategy, "strategy", "explicit", "Target strategy: explicit or topology")
	queryCmd.Flags().BoolVar(&queryCheckMutex, "check-mutex", false, "Reject evidence that is mutually exclusive")
	queryCmd.Flags().BoolVar(&queryTrace, "trace", false, "Include per-target contribution traces")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(queryCmd)
}
