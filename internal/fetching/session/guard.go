// Package session enforces that at most one browser session runs at a time.
package session

import (
	"context"
	"fmt"

	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// Guard hands out the exclusive browser session.
// The returned release func must be called exactly once.
type Guard interface {
	Acquire(ctx context.Context, source domain.SourceID) (release func(), err error)
}

// MemoryGuard serializes sessions within one process.
type MemoryGuard struct {
	sem chan struct{}
}

// NewMemoryGuard creates an in-process guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{sem: make(chan struct{}, 1)}
}

// Acquire blocks until no other session is active or ctx is done.
func (g *MemoryGuard) Acquire(ctx context.Context, source domain.SourceID) (func(), error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire session for %s: %w", source, ctx.Err())
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		<-g.sem
	}, nil
}
