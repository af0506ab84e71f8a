package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// BrowserSessionLock is the lock name shared by every source:
// only one browser session may run at a time, whatever the provider.
const BrowserSessionLock = "browser_session"

type locker interface {
	AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
	RefreshLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
}

// SessionLock guards the browser session across hosts with a Redis lock.
type SessionLock struct {
	client locker
	ttl    time.Duration
	poll   time.Duration
	log    *slog.Logger
}

// NewSessionLock creates a Redis-backed session guard.
func NewSessionLock(client *Client, ttl, poll time.Duration) *SessionLock {
	return newSessionLock(client, ttl, poll)
}

func newSessionLock(client locker, ttl, poll time.Duration) *SessionLock {
	return &SessionLock{
		client: client,
		ttl:    ttl,
		poll:   poll,
		log:    slog.Default().With("component", "session_lock"),
	}
}

// Acquire blocks until the session lock is held or ctx is done.
// The lock TTL is refreshed in the background until release is called.
func (l *SessionLock) Acquire(ctx context.Context, source domain.SourceID) (func(), error) {
	owner := fmt.Sprintf("%s:%s", source, uuid.NewString())

	for {
		ok, err := l.client.AcquireLock(ctx, BrowserSessionLock, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire session lock for %s: %w", source, err)
		}
		if ok {
			break
		}

		l.log.Debug("Session lock busy, waiting", "source", source, "poll", l.poll)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire session lock for %s: %w", source, ctx.Err())
		case <-time.After(l.poll):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.refreshLoop(source, owner, stop, done)

	release := func() {
		close(stop)
		<-done

		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.client.ReleaseLock(releaseCtx, BrowserSessionLock, owner); err != nil {
			l.log.Warn("Failed to release session lock", "source", source, "error", err)
		}
	}
	return release, nil
}

func (l *SessionLock) refreshLoop(source domain.SourceID, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			ok, err := l.client.RefreshLock(ctx, BrowserSessionLock, owner, l.ttl)
			cancel()
			if err != nil {
				l.log.Warn("Failed to refresh session lock", "source", source, "error", err)
				continue
			}
			if !ok {
				l.log.Error("Session lock lost while held", "source", source)
				return
			}
		}
	}
}
