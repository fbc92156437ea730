// Package config loads service configuration from a config file and
// environment variables, env taking precedence.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all service configuration
type Config struct {
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	DatabaseURL string `mapstructure:"database_url"`

	// Raw hex EC key material (not PEM); see internal/auth
	JWTPrivateKey  string `mapstructure:"jwt_private_key"`
	JWTPublicKey   string `mapstructure:"jwt_public_key"`
	JWTExpiryHours int    `mapstructure:"jwt_expiry_hours"`

	// Static shared secret for the admin gate; empty disables it
	AdminAPIKey string `mapstructure:"admin_api_key"`

	ComputeURL    string `mapstructure:"compute_url"`
	ComputeAPIKey string `mapstructure:"compute_api_key"`

	PaymentsURL string `mapstructure:"payments_url"`

	// Settlement currency exchange rate
	RateCoinID      string  `mapstructure:"rate_coin_id"`
	RateCacheTTLSec int     `mapstructure:"rate_cache_ttl_sec"`
	SafetyBuffer    float64 `mapstructure:"safety_buffer"`

	// When false every job is admitted and its debit recorded unbilled
	BillingEnabled bool `mapstructure:"billing_enabled"`

	// Optional YAML price table; when set it replaces the provider's
	// live pricing endpoint
	PriceTableFile string `mapstructure:"price_table_file"`

	NotifyURL    string `mapstructure:"notify_url"`
	NotifyAPIKey string `mapstructure:"notify_api_key"`
}

// Load reads configuration from an optional config.yaml and the
// GPUBILL_* environment
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/gpubill/")
	v.AddConfigPath(".")

	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_private_key", "")
	v.SetDefault("jwt_public_key", "")
	v.SetDefault("jwt_expiry_hours", 24)
	v.SetDefault("admin_api_key", "")
	v.SetDefault("compute_url", "")
	v.SetDefault("compute_api_key", "")
	v.SetDefault("payments_url", "")
	v.SetDefault("rate_coin_id", "binancecoin")
	v.SetDefault("rate_cache_ttl_sec", 60)
	v.SetDefault("safety_buffer", 1.2)
	v.SetDefault("billing_enabled", true)
	v.SetDefault("price_table_file", "")
	v.SetDefault("notify_url", "")
	v.SetDefault("notify_api_key", "")

	v.SetEnvPrefix("GPUBILL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file; defaults and env only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that everything the service cannot run without is set
func (c *Config) Validate() error {
	var missing []string

	required := map[string]string{
		"jwt_private_key": c.JWTPrivateKey,
		"jwt_public_key":  c.JWTPublicKey,
		"database_url":    c.DatabaseURL,
		"compute_url":     c.ComputeURL,
		"compute_api_key": c.ComputeAPIKey,
		"payments_url":    c.PaymentsURL,
	}
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.SafetyBuffer <= 1.0 {
		return fmt.Errorf("safety_buffer must exceed 1.0, got %v", c.SafetyBuffer)
	}

	return nil
}
