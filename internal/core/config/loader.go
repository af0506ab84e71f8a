package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but falls back to defaults when the file does not exist.
func LoadOrDefault(path string) (*AppConfig, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.LookbackMonths == 0 {
		cfg.LookbackMonths = 3
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "output"
	}
	if cfg.Scraper.Command == "" {
		cfg.Scraper.Command = "node"
		if len(cfg.Scraper.Args) == 0 {
			cfg.Scraper.Args = []string{"scrapers/fetch-source.js"}
		}
	}
	if cfg.Session.Backend == "" {
		cfg.Session.Backend = SessionBackendMemory
	}
	if cfg.Session.LockDir == "" {
		cfg.Session.LockDir = cfg.Output.Dir
	}
	if cfg.Session.LockTTL == 0 {
		cfg.Session.LockTTL = 30 * time.Minute
	}
	if cfg.Session.PollInterval == 0 {
		cfg.Session.PollInterval = time.Second
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
}

// Validate checks cross-field rules.
func (c *AppConfig) Validate() error {
	if err := c.RetryPolicy(SourceConfig{}).Validate(); err != nil {
		return err
	}

	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendDir:
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for session backend %q", c.Session.Backend)
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	if c.Output.Retention < 0 {
		return fmt.Errorf("output.retention must be >= 0, got %s", c.Output.Retention)
	}

	if c.LookbackMonths < 0 {
		return fmt.Errorf("lookback_months must be >= 0, got %d", c.LookbackMonths)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if string(src.ID) == domain.SelectorAll {
			return fmt.Errorf("sources[%d]: id %q is reserved", i, src.ID)
		}
		if seen[string(src.ID)] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[string(src.ID)] = true

		if src.Company == "" {
			return fmt.Errorf("source %s: company is required", src.ID)
		}
		if len(src.Credentials) == 0 {
			return fmt.Errorf("source %s: at least one credential is required", src.ID)
		}
		for _, cred := range src.Credentials {
			if cred.Field == "" || cred.Env == "" {
				return fmt.Errorf("source %s: credential needs both field and env", src.ID)
			}
		}
		if err := c.RetryPolicy(src).Validate(); err != nil {
			return fmt.Errorf("source %s: %w", src.ID, err)
		}
	}
	return nil
}
