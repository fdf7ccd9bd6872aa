package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration for the cordon runtime.
type Config struct {
	Sandbox SandboxConfig
	Logging LoggingConfig
}

// SandboxConfig controls sandbox construction and pooling.
type SandboxConfig struct {
	Timeout       time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	MaxCallStack  int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	EnableConsole bool          `envconfig:"SANDBOX_CONSOLE" default:"true"`
	PoolSize      int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Default returns the built-in configuration, independent of the
// environment.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			Timeout:       5 * time.Second,
			MaxCallStack:  1024,
			EnableConsole: true,
			PoolSize:      4,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from CORDON_-prefixed environment
// variables, applying struct-tag defaults for anything unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("cordon", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads from the environment, falling back to defaults
// on malformed values.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}
