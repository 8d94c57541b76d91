package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"
	"github.com/winsave/winsave-api/constants"
)

// Config is the environment-derived application configuration.
type Config struct {
	Stage string `env:"STAGE" envDefault:"dev"`
	Port  string `env:"PORT" envDefault:"8000"`

	// Chain binding. RPCURL and OperatorKey are required only in production;
	// non-production stages run against the deterministic simulator.
	RPCURL      string `env:"CHAIN_RPC_URL"`
	OperatorKey string `env:"OPERATOR_PRIVATE_KEY"`

	GasLimitMultiplier float64 `env:"GAS_LIMIT_MULTIPLIER" envDefault:"1.2"`
	GasPriceMultiplier float64 `env:"GAS_PRICE_MULTIPLIER" envDefault:"1.1"`

	DefaultConfirmations int `env:"DEFAULT_CONFIRMATIONS" envDefault:"1"`
	ConfirmTimeoutMs     int `env:"CONFIRMATION_TIMEOUT_MS" envDefault:"60000"`
	PollIntervalMs       int `env:"CONFIRMATION_POLL_INTERVAL_MS" envDefault:"2000"`

	// Simulator knobs, only read on non-production stages.
	SimConfirmLatencyMs int  `env:"SIM_CONFIRM_LATENCY_MS" envDefault:"2000"`
	SimFailSubmissions  bool `env:"SIM_FAIL_SUBMISSIONS" envDefault:"false"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.IsProduction() {
		if cfg.RPCURL == "" {
			return nil, fmt.Errorf("CHAIN_RPC_URL is required in production")
		}
		if cfg.OperatorKey == "" {
			return nil, fmt.Errorf("OPERATOR_PRIVATE_KEY is required in production")
		}
	}
	if cfg.GasLimitMultiplier < 1.0 {
		return nil, fmt.Errorf("GAS_LIMIT_MULTIPLIER must be >= 1.0, got %v", cfg.GasLimitMultiplier)
	}
	if cfg.GasPriceMultiplier < 1.0 {
		return nil, fmt.Errorf("GAS_PRICE_MULTIPLIER must be >= 1.0, got %v", cfg.GasPriceMultiplier)
	}

	return cfg, nil
}

// IsProduction reports whether the configured stage is prod.
func (c *Config) IsProduction() bool {
	return c.Stage == constants.ProdEnvironment
}

// ConfirmTimeout returns the confirmation timeout as a duration.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutMs) * time.Millisecond
}

// PollInterval returns the receipt poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// SimConfirmLatency returns the simulator confirm latency as a duration.
func (c *Config) SimConfirmLatency() time.Duration {
	return time.Duration(c.SimConfirmLatencyMs) * time.Millisecond
}
