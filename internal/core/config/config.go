package config

import (
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/core/retry"
	redisclient "github.com/maya-1807/finance-manager/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Logging        LoggingConfig      `yaml:"logging"`
	Retry          RetryConfig        `yaml:"retry"`
	StartDate      string             `yaml:"start_date"`      // YYYY-MM-DD or RFC3339
	LookbackMonths int                `yaml:"lookback_months"` // used when no start date is set
	Output         OutputConfig       `yaml:"output"`
	Scraper        ScraperConfig      `yaml:"scraper"`
	Session        SessionConfig      `yaml:"session"`
	Redis          redisclient.Config `yaml:"redis"`
	Metrics        MetricsConfig      `yaml:"metrics"`
	Sources        []SourceConfig     `yaml:"sources"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RetryConfig holds retry numbers. Nil fields inherit from the enclosing level.
type RetryConfig struct {
	MaxRetries *int           `yaml:"max_retries"`
	BaseDelay  *time.Duration `yaml:"base_delay"`
	Multiplier *float64       `yaml:"multiplier"`
}

// Apply overlays the set fields onto base.
func (r RetryConfig) Apply(base retry.Policy) retry.Policy {
	if r.MaxRetries != nil {
		base.MaxRetries = *r.MaxRetries
	}
	if r.BaseDelay != nil {
		base.BaseDelay = *r.BaseDelay
	}
	if r.Multiplier != nil {
		base.Multiplier = *r.Multiplier
	}
	return base
}

// OutputConfig holds snapshot output settings.
type OutputConfig struct {
	Dir       string        `yaml:"dir"`
	Retention time.Duration `yaml:"retention"` // 0 keeps every snapshot
}

// ScraperConfig describes the external command that drives the browser.
type ScraperConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	WorkDir string   `yaml:"workdir"`
	Env     []string `yaml:"env"` // extra KEY=VALUE pairs
}

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendDir    = "dir"
	SessionBackendRedis  = "redis"
)

// SessionConfig selects how the one-browser-session rule is enforced.
type SessionConfig struct {
	Backend      string        `yaml:"backend"`
	LockDir      string        `yaml:"lock_dir"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // optional Prometheus textfile path
}

// SourceConfig holds settings for a specific data source.
type SourceConfig struct {
	ID          domain.SourceID    `yaml:"id"`
	Company     domain.Company     `yaml:"company"`
	ShowBrowser bool               `yaml:"show_browser"`
	Credentials []CredentialConfig `yaml:"credentials"`
	Retry       RetryConfig        `yaml:"retry"`
}

// CredentialConfig maps a login field to the env var holding it.
type CredentialConfig struct {
	Field string `yaml:"field"`
	Env   string `yaml:"env"`
}

// RetryPolicy returns the effective policy numbers for a source.
func (c *AppConfig) RetryPolicy(src SourceConfig) retry.Policy {
	return src.Retry.Apply(c.Retry.Apply(retry.DefaultPolicy()))
}

// DefaultSources returns the built-in source definitions.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{
			ID:      domain.SourceLeumi,
			Company: domain.CompanyLeumi,
			Credentials: []CredentialConfig{
				{Field: "username", Env: "LEUMI_USERNAME"},
				{Field: "password", Env: "LEUMI_PASSWORD"},
			},
		},
		{
			ID:          domain.SourceIsracard,
			Company:     domain.CompanyIsracard,
			ShowBrowser: true,
			Credentials: []CredentialConfig{
				{Field: "id", Env: "ISRACARD_ID"},
				{Field: "password", Env: "ISRACARD_PASSWORD"},
				{Field: "card6Digits", Env: "ISRACARD_CARD_6_DIGITS"},
			},
		},
		{
			ID:      domain.SourceMax,
			Company: domain.CompanyMax,
			Credentials: []CredentialConfig{
				{Field: "username", Env: "MAX_USERNAME"},
				{Field: "password", Env: "MAX_PASSWORD"},
			},
		},
	}
}
