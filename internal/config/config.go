// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"gitlab.com/minqi/travel-standards/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL     string
	ListenAddr      string
	LogLevel        string
	LogJSON         bool
	RatesAPIBaseURL string
	RatesAPITimeout time.Duration
	RateCacheTTL    time.Duration
	DefaultCurrency string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ListenAddr:      os.Getenv("LISTEN_ADDR"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		RatesAPIBaseURL: os.Getenv("RATES_API_BASE_URL"),
	}

	cfg.LogJSON = os.Getenv("LOG_JSON") == "true"

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.RatesAPITimeout = 5 * time.Second
	if v := os.Getenv("RATES_API_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RatesAPITimeout = time.Duration(secs) * time.Second
		}
	}

	cfg.RateCacheTTL = 5 * time.Minute
	if v := os.Getenv("RATE_CACHE_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.RateCacheTTL = time.Duration(secs) * time.Second
		}
	}

	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_CURRENCY")))
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = models.BaseCurrency
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if _, ok := models.SupportedCurrencies[c.DefaultCurrency]; !ok {
		errs = append(errs, fmt.Sprintf("DEFAULT_CURRENCY %q is not a supported currency", c.DefaultCurrency))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
