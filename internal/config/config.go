package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ncats/chp/internal/apperr"
)

// Config is the complete chp configuration
type Config struct {
	Store      string           `yaml:"store"`
	Debug      bool             `yaml:"debug"`
	Fusion     FusionConfig     `yaml:"fusion"`
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	Server     ServerConfig     `yaml:"server"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
}

// FusionConfig controls fragment construction, binning and interpolation
type FusionConfig struct {
	InterpolationModel     string   `yaml:"interpolation_model"`     // "bigram" or "frequency_based"
	InterpolationSelection string   `yaml:"interpolation_selection"` // "all" or "frequency_based"
	PairFeatureLimit       int      `yaml:"pair_feature_limit"`
	LowConfidenceWeight    float64  `yaml:"low_confidence_weight"`
	Bins                   int      `yaml:"bins"`
	Binning                string   `yaml:"binning"` // "quantile" or "uniform"
	OutcomeProperties      []string `yaml:"outcome_properties"`
}

// ReasonerConfig controls query evaluation defaults and the worker backend
type ReasonerConfig struct {
	Workers        int           `yaml:"workers"`
	TaskTimeout    time.Duration `yaml:"task_timeout"`
	Backend        string        `yaml:"backend"` // "local" or "process"
	WorkerBinary   string        `yaml:"worker_binary"`
	WorkerRetries  int           `yaml:"worker_retries"`
	Interpolation  string        `yaml:"interpolation"`   // "standard", "independence", "none"
	TargetStrategy string        `yaml:"target_strategy"` // "explicit" or "topology"
	CheckMutex     bool          `yaml:"check_mutex"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SourceARA    string        `yaml:"source_ara"`
}

// VocabularyConfig maps protocol curies to feature names
type VocabularyConfig struct {
	Diseases   map[string]string `yaml:"diseases"`
	Phenotypes map[string]string `yaml:"phenotypes"`
	Genes      map[string]string `yaml:"genes"`
	Drugs      map[string]string `yaml:"drugs"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Fusion: FusionConfig{
			InterpolationModel:     "bigram",
			InterpolationSelection: "frequency_based",
			PairFeatureLimit:       50,
			LowConfidenceWeight:    1e-6,
			Bins:                   4,
			Binning:                "quantile",
			OutcomeProperties:      []string{"Survival_Time"},
		},
		Reasoner: ReasonerConfig{
			Workers:        4,
			TaskTimeout:    30 * time.Second,
			Backend:        "local",
			WorkerRetries:  1,
			Interpolation:  "standard",
			TargetStrategy: "explicit",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			SourceARA:    "exploring",
		},
	}
}

// LoadConfig reads a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperr.Wrapf(apperr.ConfigInvalid(err.Error()), "parsing config %s", path)
	}
	return cfg, nil
}

// LoadFromEnv applies CHP_* environment overrides to cfg
func LoadFromEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = Default()
	}
	cfg.Store = getEnvOrDefault("CHP_STORE", cfg.Store)
	cfg.Debug = getEnvBoolOrDefault("CHP_DEBUG", cfg.Debug)

	cfg.Fusion.InterpolationModel = getEnvOrDefault("CHP_INTERPOLATION_MODEL", cfg.Fusion.InterpolationModel)
	cfg.Fusion.Bins = getEnvIntOrDefault("CHP_BINS", cfg.Fusion.Bins)
	cfg.Fusion.LowConfidenceWeight = getEnvFloatOrDefault("CHP_LOW_CONFIDENCE_WEIGHT", cfg.Fusion.LowConfidenceWeight)
	if v := os.Getenv("CHP_OUTCOME_PROPERTIES"); v != "" {
		cfg.Fusion.OutcomeProperties = splitList(v)
	}

	cfg.Reasoner.Workers = getEnvIntOrDefault("CHP_WORKERS", cfg.Reasoner.Workers)
	cfg.Reasoner.TaskTimeout = getEnvDurationOrDefault("CHP_TASK_TIMEOUT", cfg.Reasoner.TaskTimeout)
	cfg.Reasoner.Backend = getEnvOrDefault("CHP_BACKEND", cfg.Reasoner.Backend)
	cfg.Reasoner.WorkerBinary = getEnvOrDefault("CHP_WORKER_BINARY", cfg.Reasoner.WorkerBinary)
	cfg.Reasoner.Interpolation = getEnvOrDefault("CHP_INTERPOLATION", cfg.Reasoner.Interpolation)
	cfg.Reasoner.TargetStrategy = getEnvOrDefault("CHP_TARGET_STRATEGY", cfg.Reasoner.TargetStrategy)
	cfg.Reasoner.CheckMutex = getEnvBoolOrDefault("CHP_CHECK_MUTEX", cfg.Reasoner.CheckMutex)

	cfg.Server.Addr = getEnvOrDefault("CHP_ADDR", cfg.Server.Addr)
	return cfg
}

// LoadFromEnvOrFile loads filePath when it is set and exists, then applies env overrides
func LoadFromEnvOrFile(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			loaded, err := LoadConfig(filePath)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}
	cfg = LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, apperr.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings
func (c *Config) Validate() error {
	switch c.Fusion.InterpolationModel {
	case "bigram", "frequency_based":
	default:
		return apperr.ConfigInvalid(fmt.Sprintf("unknown interpolation model %q", c.Fusion.InterpolationModel))
	}
	switch c.Fusion.InterpolationSelection {
	case "all", "frequency_based":
	default:
		return apperr.ConfigInvalid(fmt.Sprintf("unknown interpolation selection %q", c.Fusion.InterpolationSelection))
	}
	switch c.Fusion.Binning {
	case "quantile", "uniform":
	default:
		return apperr.ConfigInvalid(fmt.Sprintf("unknown binning %q", c.Fusion.Binning))
	}
	if c.Fusion.Bins < 1 {
		return apperr.ConfigInvalid("fusion.bins must be at least 1")
	}
	if c.Fusion.LowConfidenceWeight <= 0 || c.Fusion.LowConfidenceWeight >= 1 {
		return apperr.ConfigInvalid("fusion.low_confidence_weight must be in (0, 1)")
	}
	if c.Reasoner.Workers < 1 {
		return apperr.ConfigInvalid("reasoner.workers must be at least 1")
	}
	if c.Reasoner.TaskTimeout <= 0 {
		return apperr.ConfigInvalid("reasoner.task_timeout must be positive")
	}
	switch c.Reasoner.Backend {
	case "local", "process":
	default:
		return apperr.ConfigInvalid(fmt.Sprintf("unknown reasoner backend %q", c.Reasoner.Backend))
	}
	switch c.Reasoner.Interpolation {
	case "standard", "independence", "none":
	default:
		return apperr.ConfigInvalid(fmt.Sprintf("unknown interpolation mode %q", c.Reasoner.Interpolation))
	}
	switch c.Reasoner.TargetStrategy {
	case "explicit", "topology":
	default:
		return apperr.ConfigInvalid(fmt.Sprintf("unknown target strategy %q", c.Reasoner.TargetStrategy))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
