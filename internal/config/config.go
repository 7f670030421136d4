package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Config holds the ssrrunner configuration. Every field can be set with an
// SSR_ prefixed environment variable and overridden by a flag.
type Config struct {
	MaxHeapMB    uint   `envconfig:"MAX_HEAP_MB" default:"16"`
	RecycleAfter int    `envconfig:"RECYCLE_AFTER" default:"0"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ssr", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
