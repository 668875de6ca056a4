package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"ncats/chp/internal/reasoner"
	"ncats/chp/internal/store"
)

var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Evaluate one query target read from stdin",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := DiscoverStore()
		if err != nil {
			return err
		}
		b, err := store.Load(path)
		if err != nil {
			return err
		}
		r := reasoner.New(b.Graph, b.Ranges)
		return reasoner.ServeTask(cmd.Context(), r, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
