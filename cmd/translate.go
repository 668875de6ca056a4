package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"ncats/chp/internal/translator"
)

var (
	translateSourceARA string
	translateCompact   bool
)

var translateCmd = &cobra.Command{
	Use:   "translate [message.json]",
	Short: "Answer a reasoner-std message and print the decorated response",
	Long:  "Reads a reasoner-std message from the file argument or stdin, evaluates it and writes the message with its knowledge graph and results to stdout.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening message: %w", err)
			}
			defer f.Close()
			in = f
		}
		msg, err := translator.DecodeMessage(in)
		if err != nil {
			return err
		}

		r, _, err := OpenReasoner()
		if err != nil {
			return err
		}
		source := translateSourceARA
		if !cmd.Flags().Changed("source-ara") && cfg.Server.SourceARA != "" {
			source = cfg.Server.SourceARA
		}
		h := translator.NewHandler(r, msg, translator.Options{
			SourceARA:  source,
			Vocabulary: vocabulary(),
			Reasoner:   reasonerOptions(),
		})
		out, err := h.Run(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		if !translateCompact {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(out)
	},
}

func init() {
	translateCmd.Flags().StringVar(&translateSourceARA, "source-ara", translator.DefaultSourceARA, "Calling ARA, used in the built query name")
	translateCmd.Flags().BoolVar(&translateCompact, "compact", false, "Write JSON without indentation")
	rootCmd.AddCommand(translateCmd)
}
