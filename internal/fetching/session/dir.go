package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
)

const (
	lockDirName   = ".session.lock"
	lockOwnerFile = "owner.json"
)

// ErrSessionLocked is returned when another process holds the session.
var ErrSessionLocked = errors.New("browser session is locked")

type lockOwner struct {
	PID       int    `json:"pid"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// DirGuard serializes sessions across processes on one host using a lock directory.
// It fails fast when the lock is held instead of waiting, so a stale lock left by
// a crashed run is reported with its owner rather than hanging the job.
type DirGuard struct {
	dir string
}

// NewDirGuard creates a guard that places its lock directory inside dir.
func NewDirGuard(dir string) *DirGuard {
	return &DirGuard{dir: dir}
}

// Acquire creates the lock directory and records the owner.
func (g *DirGuard) Acquire(ctx context.Context, source domain.SourceID) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := strings.TrimSpace(g.dir)
	if target == "" {
		return nil, fmt.Errorf("session lock directory is required")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("create session lock parent %s: %w", target, err)
	}

	lockDir := filepath.Join(target, lockDirName)
	ownerPath := filepath.Join(lockDir, lockOwnerFile)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			var owner lockOwner
			if data, readErr := os.ReadFile(ownerPath); readErr == nil && json.Unmarshal(data, &owner) == nil && owner.PID > 0 {
				return nil, fmt.Errorf("%w: %s (source=%s pid=%d created_at=%s host=%s)",
					ErrSessionLocked, lockDir, owner.Source, owner.PID, owner.CreatedAt, owner.Hostname)
			}
			return nil, fmt.Errorf("%w: %s", ErrSessionLocked, lockDir)
		}
		return nil, fmt.Errorf("acquire session lock %s: %w", lockDir, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		Source:    string(source),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	data, err := json.Marshal(owner)
	if err == nil {
		err = os.WriteFile(ownerPath, data, 0o644)
	}
	if err != nil {
		_ = os.Remove(lockDir)
		return nil, fmt.Errorf("write session lock owner: %w", err)
	}

	return func() {
		_ = os.Remove(ownerPath)
		_ = os.Remove(lockDir)
	}, nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
