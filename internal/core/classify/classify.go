// Package classify decides whether a failed fetch is worth retrying.
package classify

import (
	"slices"

	"github.com/maya-1807/finance-manager/internal/core/domain"
)

// nonRetryable lists the failure kinds no retry can fix.
// Anything not listed, including kinds never seen before, is retryable.
var nonRetryable = map[domain.FailureKind]struct{}{
	domain.FailureInvalidPassword:      {},
	domain.FailureChangePasswordNeeded: {},
	domain.FailureAccountBlocked:       {},

	// Descriptive aliases
	"invalid-credentials":  {},
	"must-change-password": {},
	"account-blocked":      {},
	"account-locked":       {},
}

// IsRetryable reports whether a failure of the given kind may succeed on retry.
func IsRetryable(kind domain.FailureKind) bool {
	_, denied := nonRetryable[kind]
	return !denied
}

// ShouldRetry is the retry predicate used by the orchestrator.
// Errors that carry no kind are opaque and retried by default.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := domain.KindOf(err)
	if !ok {
		return true
	}
	return IsRetryable(kind)
}

// NonRetryableKinds returns the denylist sorted by name, for reporting.
func NonRetryableKinds() []domain.FailureKind {
	kinds := make([]domain.FailureKind, 0, len(nonRetryable))
	for k := range nonRetryable {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
