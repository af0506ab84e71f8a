package config

import (
	"os"
	"strings"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// StartDateEnv overrides the configured start date when set.
const StartDateEnv = "SCRAPE_START_DATE"

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// EnvProvider resolves credentials and the start date from environment variables.
type EnvProvider struct {
	lookup LookupFunc
	cfg    *AppConfig
	now    func() time.Time
}

// NewEnvProvider creates a provider backed by os.LookupEnv.
func NewEnvProvider(cfg *AppConfig) *EnvProvider {
	return NewEnvProviderWithLookup(cfg, os.LookupEnv)
}

// NewEnvProviderWithLookup creates a provider with a custom lookup.
func NewEnvProviderWithLookup(cfg *AppConfig, lookup LookupFunc) *EnvProvider {
	return &EnvProvider{lookup: lookup, cfg: cfg, now: time.Now}
}

// Credentials returns the credential map of src, or a *domain.ConfigError naming
// the first missing field.
func (p *EnvProvider) Credentials(src SourceConfig) (domain.Credentials, error) {
	creds := make(domain.Credentials, len(src.Credentials))
	for _, c := range src.Credentials {
		val, ok := p.lookup(c.Env)
		if !ok || strings.TrimSpace(val) == "" {
			return nil, &domain.ConfigError{Source: src.ID, Field: c.Field, EnvVar: c.Env}
		}
		creds[c.Field] = val
	}
	return creds, nil
}

// StartDate returns the first day to fetch. SCRAPE_START_DATE wins over the
// config file; an unparsable or missing value falls back to the lookback window.
func (p *EnvProvider) StartDate() time.Time {
	if raw, ok := p.lookup(StartDateEnv); ok {
		if t, ok := parseDate(raw); ok {
			return t
		}
	}
	if t, ok := parseDate(p.cfg.StartDate); ok {
		return t
	}
	return p.now().AddDate(0, -p.cfg.LookbackMonths, 0)
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MissingCredentials lists the env vars of src that are not set.
func (p *EnvProvider) MissingCredentials(src SourceConfig) []string {
	var missing []string
	for _, c := range src.Credentials {
		if val, ok := p.lookup(c.Env); !ok || strings.TrimSpace(val) == "" {
			missing = append(missing, c.Env)
		}
	}
	return missing
}
