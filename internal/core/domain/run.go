package domain

import "time"

// RunState is the lifecycle state of one source run.
type RunState string

const (
	RunStatePending   RunState = "pending"
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == RunStateSucceeded || s == RunStateFailed
}

// Outcome is the terminal result of one source run.
type Outcome struct {
	Source       SourceID
	State        RunState
	Attempts     int
	Accounts     int
	Transactions int
	Location     string
	Kind         FailureKind
	Err          error
	StartedAt    time.Time
	Duration     time.Duration
}

// Failed reports whether the run ended in RunStateFailed.
func (o Outcome) Failed() bool {
	return o.State == RunStateFailed
}
