package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/infra/storage"
)

// SnapshotRepo keeps snapshots in process memory. Used for dry runs.
type SnapshotRepo struct {
	mu        sync.RWMutex
	snapshots map[domain.SourceID][]storage.Snapshot
	now       func() time.Time
}

func NewSnapshotRepo() *SnapshotRepo {
	return &SnapshotRepo{
		snapshots: make(map[domain.SourceID][]storage.Snapshot),
		now:       time.Now,
	}
}

func (r *SnapshotRepo) Save(
	ctx context.Context,
	source domain.SourceID,
	result *domain.FetchResult,
) (string, error) {
	if result == nil {
		return "", storage.ErrNilResult
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[source] = append(r.snapshots[source], storage.NewSnapshot(source, result, r.now()))
	return fmt.Sprintf("memory://%s/%d", source, len(r.snapshots[source])), nil
}

func (r *SnapshotRepo) Latest(ctx context.Context, source domain.SourceID) (*storage.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.snapshots[source]
	if len(list) == 0 {
		return nil, storage.ErrSnapshotNotFound
	}
	snap := list[len(list)-1]
	return &snap, nil
}

// DeleteOlderThan keeps the newest snapshot of a source whatever its age.
func (r *SnapshotRepo) DeleteOlderThan(
	ctx context.Context,
	source domain.SourceID,
	before time.Time,
) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.snapshots[source]
	kept := list[:0]
	for i, snap := range list {
		if i == len(list)-1 || !snap.ScrapedAt.Before(before) {
			kept = append(kept, snap)
		}
	}
	deleted := len(list) - len(kept)
	r.snapshots[source] = kept
	return deleted, nil
}

// Count returns how many snapshots were saved for a source.
func (r *SnapshotRepo) Count(source domain.SourceID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots[source])
}
