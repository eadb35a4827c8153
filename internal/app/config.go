package app

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/pricebot/core/config"
	coredatabase "github.com/m3rciful/pricebot/core/database"
	"github.com/m3rciful/pricebot/internal/collector"
	"github.com/m3rciful/pricebot/internal/feed"
)

// Config aggregates the bot configuration: the shared core settings plus the
// database, price feed, and background job sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config  `yaml:"database"`
	Feed     feed.Config          `yaml:"feed"`
	Jobs     collector.JobsConfig `yaml:"jobs"`
}

// CoreConfig exposes the embedded core configuration for the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads the YAML file at path and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("app: failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("app: failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("app: failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if cfg.Feed.BaseURL == "" {
		return nil, fmt.Errorf("app: feed.base_url is required")
	}
	return &cfg, nil
}
