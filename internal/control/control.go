package control

import (
	"github.com/maya-1807/finance-manager/internal/core/config"
	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/fetching/source"
)

// Config holds the application configuration.
type Config struct {
	App *config.AppConfig

	// DryRun keeps snapshots in memory instead of writing files.
	DryRun bool

	// Lookup overrides environment lookups for credentials and start date.
	Lookup config.LookupFunc

	// NewFetcher overrides the subprocess fetcher, one call per source.
	NewFetcher func(src config.SourceConfig) source.Fetcher
}

// SourceStatus describes a configured source without contacting it.
type SourceStatus struct {
	ID          domain.SourceID
	Company     domain.Company
	ShowBrowser bool
	EnvVars     []EnvVarStatus
}

// EnvVarStatus reports whether one credential env var is set.
type EnvVarStatus struct {
	Name  string
	Field string
	Set   bool
}

// Ready reports whether every credential env var is set.
func (s SourceStatus) Ready() bool {
	for _, v := range s.EnvVars {
		if !v.Set {
			return false
		}
	}
	return true
}
