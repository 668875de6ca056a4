package cmd

import (
	"github.com/spf13/cobra"

	"ncats/chp/internal/logger"
	"ncats/chp/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reasoner-std queries over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, path, err := OpenReasoner()
		if err != nil {
			return err
		}
		httpCfg := cfg.Server
		if serveAddr != "" {
			httpCfg.Addr = serveAddr
		}
		logger.Info("loaded hypergraph", "store", path,
			"components", r.Graph().NumComponents(), "snodes", r.Graph().NumSNodes(),
			"backend", cfg.Reasoner.Backend)

		s := server.New(r, server.Options{
			HTTP:       httpCfg,
			Vocabulary: vocabulary(),
			Reasoner:   reasonerOptions(),
		})
		return s.ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}
