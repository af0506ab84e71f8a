package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// ErrInvalidTransition is returned when a run moves to a state it cannot reach.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions is the per-source lifecycle. Pending may go straight to
// Failed when the source is rejected before any fetch starts.
var validTransitions = map[domain.RunState][]domain.RunState{
	domain.RunStatePending: {domain.RunStateRunning, domain.RunStateFailed},
	domain.RunStateRunning: {domain.RunStateSucceeded, domain.RunStateFailed},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to domain.RunState) bool {
	for _, target := range validTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// run tracks one source through its lifecycle and builds its Outcome.
type run struct {
	outcome domain.Outcome
	now     func() time.Time
}

func newRun(source domain.SourceID, now func() time.Time) *run {
	return &run{
		outcome: domain.Outcome{
			Source:    source,
			State:     domain.RunStatePending,
			StartedAt: now(),
		},
		now: now,
	}
}

func (r *run) transition(to domain.RunState) error {
	if !CanTransition(r.outcome.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.outcome.State, to)
	}
	r.outcome.State = to
	if to.Terminal() {
		r.outcome.Duration = r.now().Sub(r.outcome.StartedAt)
	}
	return nil
}

func (r *run) start() error {
	return r.transition(domain.RunStateRunning)
}

func (r *run) succeed(result *domain.FetchResult, location string) error {
	r.outcome.Accounts = len(result.Accounts)
	r.outcome.Transactions = result.TransactionCount()
	r.outcome.Location = location
	return r.transition(domain.RunStateSucceeded)
}

func (r *run) fail(err error) error {
	r.outcome.Err = err
	if kind, ok := domain.KindOf(err); ok {
		r.outcome.Kind = kind
	}
	return r.transition(domain.RunStateFailed)
}
