package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/infra/storage"
)

// Pruner deletes old snapshots based on retention policy.
type Pruner struct {
	retention time.Duration
	repo      storage.SnapshotRepository
	now       func() time.Time
	log       *slog.Logger
}

// NewPruner creates a new Pruner. A zero retention disables pruning.
func NewPruner(retention time.Duration, repo storage.SnapshotRepository, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		retention: retention,
		repo:      repo,
		now:       time.Now,
		log:       log,
	}
}

// Enabled reports whether a retention period is set.
func (p *Pruner) Enabled() bool {
	return p.retention > 0
}

// Prune removes expired snapshots of each source and returns how many went.
// Errors are logged per source and do not stop the others.
func (p *Pruner) Prune(ctx context.Context, sources []domain.SourceID) int {
	if !p.Enabled() {
		return 0
	}

	threshold := p.now().Add(-p.retention)
	total := 0
	for _, id := range sources {
		n, err := p.repo.DeleteOlderThan(ctx, id, threshold)
		total += n
		if err != nil {
			p.log.Error("Failed to prune snapshots", "source", id, "error", err)
			continue
		}
		if n > 0 {
			p.log.Info("Pruned old snapshots", "source", id, "deleted", n)
		}
	}
	return total
}
