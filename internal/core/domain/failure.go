package domain

import (
	"errors"
	"fmt"
)

// FailureKind is an open-ended tag describing why a fetch did not succeed.
// Tags come from the automation library and new ones may appear at any time.
type FailureKind string

const (
	FailureGeneric              FailureKind = "Generic"
	FailureGeneral              FailureKind = "General"
	FailureTimeout              FailureKind = "Timeout"
	FailureInvalidPassword      FailureKind = "InvalidPassword"
	FailureChangePasswordNeeded FailureKind = "ChangePasswordNeeded"
	FailureAccountBlocked       FailureKind = "AccountBlocked"
)

// FetchError is a classified failure: a kind plus a human readable message.
// It is immutable once built.
type FetchError struct {
	kind    FailureKind
	message string
}

// NewFetchError builds a FetchError. An empty kind falls back to FailureGeneric.
func NewFetchError(kind FailureKind, message string) *FetchError {
	if kind == "" {
		kind = FailureGeneric
	}
	return &FetchError{kind: kind, message: message}
}

func (e *FetchError) Error() string {
	return e.message
}

// Kind returns the failure kind tag.
func (e *FetchError) Kind() FailureKind {
	return e.kind
}

// KindOf extracts the failure kind carried by err, if any.
func KindOf(err error) (FailureKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.kind, true
	}
	return "", false
}

// ConfigError reports a missing or invalid setting for a source.
// It is raised before any network activity and is never retried.
type ConfigError struct {
	Source SourceID
	Field  string
	EnvVar string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Missing environment variable %s (%s) for %s", e.EnvVar, e.Field, e.Source)
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
