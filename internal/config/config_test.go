package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/gpubill/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Port:           8000,
		JWTPrivateKey:  "aa",
		JWTPublicKey:   "04bb",
		DatabaseURL:    "postgres://localhost:5432/gpubill",
		ComputeURL:     "https://api.compute.example",
		ComputeAPIKey:  "key",
		PaymentsURL:    "http://localhost:3000",
		SafetyBuffer:   1.2,
		BillingEnabled: true,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 24, cfg.JWTExpiryHours)
	assert.Equal(t, "binancecoin", cfg.RateCoinID)
	assert.Equal(t, 60, cfg.RateCacheTTLSec)
	assert.Equal(t, 1.2, cfg.SafetyBuffer)
	assert.True(t, cfg.BillingEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GPUBILL_PORT", "9100")
	t.Setenv("GPUBILL_BILLING_ENABLED", "false")
	t.Setenv("GPUBILL_RATE_COIN_ID", "ethereum")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.False(t, cfg.BillingEnabled)
	assert.Equal(t, "ethereum", cfg.RateCoinID)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("accepts complete config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("reports all missing keys", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTPrivateKey = ""
		cfg.PaymentsURL = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt_private_key")
		assert.Contains(t, err.Error(), "payments_url")
	})

	t.Run("rejects buffer at or below 1.0", func(t *testing.T) {
		cfg := validConfig()
		cfg.SafetyBuffer = 1.0
		assert.Error(t, cfg.Validate())
	})
}
