package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ncats/chp/internal/config"
	"ncats/chp/internal/logger"
	"ncats/chp/internal/logger/console"
	"ncats/chp/internal/reasoner"
	"ncats/chp/internal/store"
	"ncats/chp/internal/translator"
)

var (
	storePath  string
	configPath string
	debug      bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "chp",
	Short:         "Clinical hypothesis reasoning over a fused patient hypergraph",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		loaded, err := config.LoadFromEnvOrFile(configPath)
		if err != nil {
			return err
		}
		if debug {
			loaded.Debug = true
		}
		cfg = loaded
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.Debug}))
		return nil
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Path to the fused hypergraph store (.db or .badger)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "chp.yaml", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

const defaultStoreName = "fusion.db"

// DiscoverStore finds the store using priority: env > flag > config > walk-up > XDG fallback
func DiscoverStore() (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv("CHP_STORE"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	// 2. CLI flag
	if storePath != "" {
		if _, err := os.Stat(storePath); err == nil {
			return storePath, nil
		}
		return "", fmt.Errorf("store not found at --store path: %s", storePath)
	}

	// 3. Config file
	if cfg != nil && cfg.Store != "" {
		if _, err := os.Stat(cfg.Store); err == nil {
			return cfg.Store, nil
		}
	}

	// 4. Walk up from CWD
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, ".chp", defaultStoreName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 5. XDG fallback
	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".local", "share", "chp", defaultStoreName)
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", fmt.Errorf("no fused store found (set CHP_STORE, use --store, or run chp fuse first)")
}

// OpenReasoner loads the store and builds a reasoner with the configured backend
func OpenReasoner() (*reasoner.Reasoner, string, error) {
	path, err := DiscoverStore()
	if err != nil {
		return nil, "", err
	}
	start := time.Now()
	b, err := store.Load(path)
	if err != nil {
		return nil, "", err
	}
	logger.Debug("loaded store", "path", path, "snodes", b.Graph.NumSNodes(), "elapsed", time.Since(start))

	d, err := newDispatcher(path)
	if err != nil {
		return nil, "", err
	}
	return reasoner.New(b.Graph, b.Ranges, reasoner.WithDispatcher(d)), path, nil
}

func newDispatcher(path string) (reasoner.Dispatcher, error) {
	rc := cfg.Reasoner
	if rc.Backend != "process" {
		return &reasoner.LocalDispatcher{Workers: rc.Workers, Timeout: rc.TaskTimeout}, nil
	}
	bin, err := FindWorkerBinary()
	if err != nil {
		return nil, err
	}
	return &reasoner.ProcessDispatcher{
		Binary:         bin,
		Args:           []string{"worker", "--store", path},
		Workers:        rc.Workers,
		Timeout:        rc.TaskTimeout,
		StartupTimeout: 10 * time.Second,
		Retries:        rc.WorkerRetries,
	}, nil
}

// FindWorkerBinary resolves the worker executable: config/env > this binary
func FindWorkerBinary() (string, error) {
	if cfg != nil && cfg.Reasoner.WorkerBinary != "" {
		if _, err := os.Stat(cfg.Reasoner.WorkerBinary); err != nil {
			return "", fmt.Errorf("worker binary not found: %s", cfg.Reasoner.WorkerBinary)
		}
		return cfg.Reasoner.WorkerBinary, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating worker binary: %w", err)
	}
	return self, nil
}

// reasonerOptions returns the configured per-query defaults
func reasonerOptions() reasoner.Options {
	return reasoner.Options{
		CheckMutex:     cfg.Reasoner.CheckMutex,
		TargetStrategy: reasoner.TargetStrategy(cfg.Reasoner.TargetStrategy),
		Interpolation:  reasoner.Interpolation(cfg.Reasoner.Interpolation),
	}
}

func vocabulary() translator.Vocabulary {
	return translator.VocabularyFromConfig(cfg.Vocabulary)
}
