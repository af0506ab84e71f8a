// Package snapshot writes fetch results as pretty-printed JSON files, one per
// source per day.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/infra/storage"
)

const fileDateLayout = "2006-01-02"

// Store persists snapshots under <dir>/<source>/<source>_<date>.json.
type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// NewStoreWithClock is NewStore with an injectable clock.
func NewStoreWithClock(dir string, now func() time.Time) *Store {
	return &Store{dir: dir, now: now}
}

// Path returns the snapshot path for a source on the given day.
func (s *Store) Path(source domain.SourceID, at time.Time) string {
	name := fmt.Sprintf("%s_%s.json", source, at.UTC().Format(fileDateLayout))
	return filepath.Join(s.dir, string(source), name)
}

func (s *Store) Save(
	ctx context.Context,
	source domain.SourceID,
	result *domain.FetchResult,
) (string, error) {
	if result == nil {
		return "", storage.ErrNilResult
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	at := s.now()
	data, err := json.MarshalIndent(storage.NewSnapshot(source, result, at), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot for %s: %w", source, err)
	}
	data = append(data, '\n')

	path := s.Path(source, at)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) Latest(ctx context.Context, source domain.SourceID) (*storage.Snapshot, error) {
	names, err := s.list(source)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, storage.ErrSnapshotNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.dir, string(source), names[len(names)-1]))
	if err != nil {
		return nil, fmt.Errorf("read snapshot for %s: %w", source, err)
	}
	var snap storage.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot for %s: %w", source, err)
	}
	return &snap, nil
}

// list returns the snapshot file names of a source, oldest first.
func (s *Store) list(source domain.SourceID) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, string(source)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots for %s: %w", source, err)
	}

	prefix := string(source) + "_"
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || filepath.Ext(name) != ".json" {
			continue
		}
		names = append(names, name)
	}
	// YYYY-MM-DD sorts lexically
	sort.Strings(names)
	return names, nil
}

// DeleteOlderThan removes snapshot files whose whole day ended at or before
// the given time. The newest snapshot of a source is always kept.
func (s *Store) DeleteOlderThan(
	ctx context.Context,
	source domain.SourceID,
	before time.Time,
) (int, error) {
	names, err := s.list(source)
	if err != nil || len(names) == 0 {
		return 0, err
	}

	prefix := string(source) + "_"
	deleted := 0
	for _, name := range names[:len(names)-1] {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		day, err := time.Parse(fileDateLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"))
		if err != nil || day.AddDate(0, 0, 1).After(before) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, string(source), name)); err != nil {
			return deleted, fmt.Errorf("remove snapshot %s: %w", name, err)
		}
		deleted++
	}
	return deleted, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
