package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ncats/chp/internal/apperr"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chp.yaml")
	yml := `
store: /data/fusion.db
fusion:
  interpolation_model: frequency_based
  bins: 6
reasoner:
  workers: 16
  task_timeout: 5s
  check_mutex: true
vocabulary:
  genes:
    "ENSEMBL:ENSG00000141510": TP53
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/fusion.db", cfg.Store)
	assert.Equal(t, "frequency_based", cfg.Fusion.InterpolationModel)
	assert.Equal(t, 6, cfg.Fusion.Bins)
	assert.Equal(t, "frequency_based", cfg.Fusion.InterpolationSelection, "unset keys keep defaults")
	assert.Equal(t, 16, cfg.Reasoner.Workers)
	assert.Equal(t, 5*time.Second, cfg.Reasoner.TaskTimeout)
	assert.True(t, cfg.Reasoner.CheckMutex)
	assert.Equal(t, "TP53", cfg.Vocabulary.Genes["ENSEMBL:ENSG00000141510"])
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reasoner: [unclosed"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConfigInvalid, apperr.GetCode(err))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHP_WORKERS", "3")
	t.Setenv("CHP_TASK_TIMEOUT", "250ms")
	t.Setenv("CHP_CHECK_MUTEX", "true")
	t.Setenv("CHP_OUTCOME_PROPERTIES", "Survival_Time, Recurrence_Time")
	t.Setenv("CHP_BINS", "not-a-number")

	cfg := LoadFromEnv(nil)
	assert.Equal(t, 3, cfg.Reasoner.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Reasoner.TaskTimeout)
	assert.True(t, cfg.Reasoner.CheckMutex)
	assert.Equal(t, []string{"Survival_Time", "Recurrence_Time"}, cfg.Fusion.OutcomeProperties)
	assert.Equal(t, 4, cfg.Fusion.Bins, "unparsable values fall back")
}

func TestLoadFromEnvOrFileMissingFile(t *testing.T) {
	cfg, err := LoadFromEnvOrFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Reasoner.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"model", func(c *Config) { c.Fusion.InterpolationModel = "trigram" }},
		{"selection", func(c *Config) { c.Fusion.InterpolationSelection = "random" }},
		{"binning", func(c *Config) { c.Fusion.Binning = "kmeans" }},
		{"bins", func(c *Config) { c.Fusion.Bins = 0 }},
		{"low confidence", func(c *Config) { c.Fusion.LowConfidenceWeight = 0 }},
		{"workers", func(c *Config) { c.Reasoner.Workers = 0 }},
		{"timeout", func(c *Config) { c.Reasoner.TaskTimeout = 0 }},
		{"backend", func(c *Config) { c.Reasoner.Backend = "grpc" }},
		{"interpolation", func(c *Config) { c.Reasoner.Interpolation = "magic" }},
		{"strategy", func(c *Config) { c.Reasoner.TargetStrategy = "all" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, apperr.CodeConfigInvalid, apperr.GetCode(err))
		})
	}
}
