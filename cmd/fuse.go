package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ncats/chp/internal/crossval"
	"ncats/chp/internal/fusion"
	"ncats/chp/internal/interpolate"
	"ncats/chp/internal/logger"
	"ncats/chp/internal/patient"
	"ncats/chp/internal/store"
)

// interpolatorSource is the provenance id of the synthetic fragment
const interpolatorSource = "interpolator"

var (
	fuseOut      string
	fuseWithhold string
	fuseJSON     bool
)

var fuseCmd = &cobra.Command{
	Use:   "fuse <patients.json>",
	Short: "Build the fused hypergraph from patient records",
	Long: "Discretises patient properties, builds one fragment per patient plus the " +
		"interpolator fragment, fuses them and saves the result to the store.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := patient.LoadJSON(args[0])
		if err != nil {
			return err
		}

		if fuseWithhold != "" {
			f, err := os.Open(fuseWithhold)
			if err != nil {
				return fmt.Errorf("opening withheld list: %w", err)
			}
			withheld, err := crossval.ReadWithheld(f)
			f.Close()
			if err != nil {
				return err
			}
			kept, held := patient.Split(records, withheld)
			logger.Info("withholding patients", "requested", len(withheld), "withheld", len(held))
			records = kept
		}

		fc := cfg.Fusion
		table, err := patient.BuildRangeTable(records, fc.Bins, patient.Binning(fc.Binning))
		if err != nil {
			return err
		}
		frags, ids, err := patient.BuildFragments(records, table, fc.OutcomeProperties)
		if err != nil {
			return err
		}

		interp, err := interpolate.Build(frags, interpolate.Options{
			Model:               interpolate.Model(fc.InterpolationModel),
			Selection:           interpolate.Selection(fc.InterpolationSelection),
			PairFeatureLimit:    fc.PairFeatureLimit,
			LowConfidenceWeight: fc.LowConfidenceWeight,
			Outcomes:            fc.OutcomeProperties,
		})
		if err != nil {
			return err
		}
		frags = append(frags, interp)
		ids = append(ids, interpolatorSource)

		weights := make([]float64, len(frags))
		for i := range weights {
			weights[i] = 1
		}
		h, report, err := fusion.FuseReport(frags, weights, ids)
		if err != nil {
			return err
		}

		out := fuseOut
		if out == "" {
			out = storePath
		}
		if out == "" {
			out = filepath.Join(".chp", defaultStoreName)
		}
		if err := store.Save(out, store.Bundle{Graph: h, Patients: records, Ranges: table}); err != nil {
			return err
		}
		logger.Info("saved fused hypergraph", "store", out, "snodes", report.SNodes)

		if fuseJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		fmt.Printf("Fused %d fragments into %s\n", report.Fragments, out)
		fmt.Printf("  components=%d inodes=%d snodes=%d\n", report.Components, report.INodes, report.SNodes)
		fmt.Printf("  merged=%d synthetic_added=%d synthetic_skipped=%d\n",
			report.Merged, report.SyntheticAdded, report.SyntheticSkipped)
		return nil
	},
}

func init() {
	fuseCmd.Flags().StringVarP(&fuseOut, "out", "o", "", "Output store path (default --store or .chp/fusion.db)")
	fuseCmd.Flags().StringVar(&fuseWithhold, "withhold", "", "CSV of patient hashes to leave out of fusion")
	fuseCmd.Flags().BoolVar(&fuseJSON, "json", false, "Output the fusion report as JSON")
	rootCmd.AddCommand(fuseCmd)
}
