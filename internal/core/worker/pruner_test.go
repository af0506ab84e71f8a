package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/infra/storage"
	"github.com/maya-1807/finance-manager/internal/infra/storage/snapshot"
)

type fakeRepo struct {
	storage.SnapshotRepository
	deleted map[domain.SourceID]time.Time
	failFor domain.SourceID
}

func (r *fakeRepo) DeleteOlderThan(ctx context.Context, source domain.SourceID, before time.Time) (int, error) {
	if source == r.failFor {
		return 0, errors.New("permission denied")
	}
	r.deleted[source] = before
	return 2, nil
}

func TestPruner_Disabled(t *testing.T) {
	repo := &fakeRepo{deleted: map[domain.SourceID]time.Time{}}
	p := NewPruner(0, repo, nil)

	if p.Enabled() {
		t.Error("zero retention should disable pruning")
	}
	if n := p.Prune(context.Background(), []domain.SourceID{"a"}); n != 0 {
		t.Errorf("expected 0 deletions, got %d", n)
	}
	if len(repo.deleted) != 0 {
		t.Error("repository must not be touched when disabled")
	}
}

func TestPruner_PrunesEachSource(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{deleted: map[domain.SourceID]time.Time{}, failFor: "b"}
	p := NewPruner(30*24*time.Hour, repo, nil)
	p.now = func() time.Time { return now }

	n := p.Prune(context.Background(), []domain.SourceID{"a", "b", "c"})

	if n != 4 {
		t.Errorf("expected 4 deletions, got %d", n)
	}
	want := now.Add(-30 * 24 * time.Hour)
	for _, id := range []domain.SourceID{"a", "c"} {
		if got := repo.deleted[id]; !got.Equal(want) {
			t.Errorf("source %s: expected threshold %v, got %v", id, want, got)
		}
	}
	if _, ok := repo.deleted["b"]; ok {
		t.Error("failing source should not be recorded")
	}
}

func TestPruner_SubDayRetentionKeepsFreshSnapshot(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	savedAt := time.Date(2026, 10, 17, 13, 0, 0, 0, time.UTC)
	store := snapshot.NewStoreWithClock(dir, func() time.Time { return savedAt })
	if _, err := store.Save(ctx, domain.SourceLeumi, &domain.FetchResult{Success: true}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	p := NewPruner(12*time.Hour, snapshot.NewStore(dir), nil)
	p.now = func() time.Time { return savedAt.Add(time.Second) }

	if n := p.Prune(ctx, []domain.SourceID{domain.SourceLeumi}); n != 0 {
		t.Errorf("expected nothing pruned, got %d", n)
	}
	if _, err := snapshot.NewStore(dir).Latest(ctx, domain.SourceLeumi); err != nil {
		t.Errorf("fresh snapshot must survive pruning: %v", err)
	}
}
