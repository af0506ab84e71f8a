package storage

import (
	"context"
	"errors"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a source
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrNilResult is returned when asked to persist nothing
	ErrNilResult = errors.New("nil fetch result")
)

// Snapshot is the persisted form of one successful fetch.
type Snapshot struct {
	Bank      domain.SourceID  `json:"bank"`
	ScrapedAt time.Time        `json:"scrapedAt"`
	Accounts  []domain.Account `json:"accounts"`
}

// NewSnapshot builds a snapshot from a fetch result. Accounts is never nil.
func NewSnapshot(source domain.SourceID, result *domain.FetchResult, at time.Time) Snapshot {
	accounts := result.Accounts
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return Snapshot{
		Bank:      source,
		ScrapedAt: at.UTC(),
		Accounts:  accounts,
	}
}

// SnapshotRepository handles snapshot persistence
type SnapshotRepository interface {
	// Save stores a successful result and returns where it went
	Save(ctx context.Context, source domain.SourceID, result *domain.FetchResult) (string, error)

	// Latest returns the most recently saved snapshot for a source
	Latest(ctx context.Context, source domain.SourceID) (*Snapshot, error)

	// DeleteOlderThan removes snapshots taken before the given time
	DeleteOlderThan(ctx context.Context, source domain.SourceID, before time.Time) (int, error)
}
