package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MARKET_MAX_ROUNDS", "42")
	t.Setenv("PRICING_POLICY", "uniform")
	t.Setenv("PRICING_K", "0.25")
	t.Setenv("CHECK_INTEGRITY", "true")
	t.Setenv("ROUND_INTERVAL_MS", "0")
	t.Setenv("AGENTS_SEED", "99")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Market.MaxRounds)
	assert.Equal(t, "uniform", cfg.Market.Pricing)
	assert.Equal(t, 0.25, cfg.Market.PricingK)
	assert.True(t, cfg.Market.CheckIntegrity)
	assert.Equal(t, time.Duration(0), cfg.Node.RoundInterval)
	assert.Equal(t, int64(99), cfg.Agents.Seed)
	assert.Equal(t, Default().Agents.Buyers, cfg.Agents.Buyers)
}

func TestLoadFromDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AGENTS_UNITS=3\nMARKET_ID=from-file\n"), 0o644))
	// godotenv does not override variables that are already set.
	t.Setenv("MARKET_ID", "from-env")
	t.Cleanup(func() { os.Unsetenv("AGENTS_UNITS") })

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Market.ID)
	assert.Equal(t, int64(3), cfg.Agents.Units)
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct{ key, value string }{
		{"MARKET_MAX_ROUNDS", "many"},
		{"PRICING_K", "1.5"},
		{"PRICING_POLICY", "vickrey"},
		{"CHECK_INTEGRITY", "perhaps"},
		{"ROUND_INTERVAL_MS", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
