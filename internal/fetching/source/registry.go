// Package source holds the ordered set of configured data sources.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maya-1807/finance-manager/internal/core/config"
	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/core/retry"
)

var (
	// ErrUnknownSource is returned for a selector that names no configured source.
	ErrUnknownSource = errors.New("unknown source")

	// ErrDuplicateSource is returned when two definitions share an ID.
	ErrDuplicateSource = errors.New("duplicate source")
)

// Fetcher performs one fetch attempt against a provider.
// Expected domain failures are reported in the result, not as errors.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	return f(ctx, req)
}

// Definition binds a source ID to its fetch operation and settings.
type Definition struct {
	Config  config.SourceConfig
	Fetcher Fetcher
	Policy  retry.Policy
}

// ID returns the source identifier.
func (d Definition) ID() domain.SourceID {
	return d.Config.ID
}

// Registry is an ordered, immutable set of source definitions.
type Registry struct {
	order []domain.SourceID
	defs  map[domain.SourceID]Definition
}

// NewRegistry builds a registry, preserving the order of defs.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		order: make([]domain.SourceID, 0, len(defs)),
		defs:  make(map[domain.SourceID]Definition, len(defs)),
	}
	for _, d := range defs {
		id := d.ID()
		if id == "" {
			return nil, fmt.Errorf("source definition without id")
		}
		if d.Fetcher == nil {
			return nil, fmt.Errorf("source %s: fetcher is required", id)
		}
		if _, exists := r.defs[id]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, id)
		}
		r.order = append(r.order, id)
		r.defs[id] = d
	}
	return r, nil
}

// Lookup returns the definition for id.
func (r *Registry) Lookup(id domain.SourceID) (Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns the source IDs in registration order.
func (r *Registry) IDs() []domain.SourceID {
	ids := make([]domain.SourceID, len(r.order))
	copy(ids, r.order)
	return ids
}

// Len returns the number of sources.
func (r *Registry) Len() int {
	return len(r.order)
}

// Resolve turns a CLI selector into the list of sources to run.
// "all" selects every source in order.
func (r *Registry) Resolve(selector string) ([]domain.SourceID, error) {
	selector = strings.TrimSpace(selector)
	if selector == domain.SelectorAll {
		return r.IDs(), nil
	}
	id := domain.SourceID(selector)
	if _, ok := r.defs[id]; !ok {
		return nil, fmt.Errorf("%w: %q. Valid options: %s", ErrUnknownSource, selector, r.ValidSelectors())
	}
	return []domain.SourceID{id}, nil
}

// ValidSelectors lists the accepted selector values for usage messages.
func (r *Registry) ValidSelectors() string {
	parts := make([]string, 0, len(r.order)+1)
	for _, id := range r.order {
		parts = append(parts, string(id))
	}
	parts = append(parts, domain.SelectorAll)
	return strings.Join(parts, ", ")
}
