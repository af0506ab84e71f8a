// Package orchestrator runs every selected source through the backoff
// executor, one at a time, and aggregates the outcomes. A failing source never
// stops the sources after it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maya-1807/finance-manager/internal/core/classify"
	"github.com/maya-1807/finance-manager/internal/core/config"
	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/core/retry"
	"github.com/maya-1807/finance-manager/internal/fetching/metrics"
	"github.com/maya-1807/finance-manager/internal/fetching/session"
	"github.com/maya-1807/finance-manager/internal/fetching/source"
)

// ErrNoResult is returned when a fetcher reports neither a result nor an error.
var ErrNoResult = errors.New("fetch returned no result")

// CredentialProvider resolves login data before any fetch is attempted.
type CredentialProvider interface {
	Credentials(src config.SourceConfig) (domain.Credentials, error)
	StartDate() time.Time
}

// Store persists a successful result and returns its location.
type Store interface {
	Save(ctx context.Context, source domain.SourceID, result *domain.FetchResult) (string, error)
}

// Orchestrator runs sources strictly sequentially.
type Orchestrator struct {
	mu sync.Mutex

	registry *source.Registry
	creds    CredentialProvider
	guard    session.Guard
	store    Store

	log   *slog.Logger
	sleep retry.Sleeper
	now   func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSleeper replaces the backoff sleep. Tests use it to skip real delays.
func WithSleeper(s retry.Sleeper) Option {
	return func(o *Orchestrator) {
		o.sleep = s
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func New(
	registry *source.Registry,
	creds CredentialProvider,
	guard session.Guard,
	store Store,
	opts ...Option,
) *Orchestrator {
	if guard == nil {
		guard = session.NewMemoryGuard()
	}
	o := &Orchestrator{
		registry: registry,
		creds:    creds,
		guard:    guard,
		store:    store,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunAll processes ids in order and returns once every source has settled.
// Concurrent calls queue behind each other.
func (o *Orchestrator) RunAll(ctx context.Context, ids []domain.SourceID) *Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		Outcomes:  make([]domain.Outcome, 0, len(ids)),
	}
	log := o.log.With("run_id", summary.RunID)
	log.Info("Starting fetch run", "sources", len(ids))

	for _, id := range ids {
		outcome := o.runSource(ctx, log.With("source", id), id)
		summary.Outcomes = append(summary.Outcomes, outcome)
		record(outcome)
	}

	summary.Duration = o.now().Sub(summary.StartedAt)
	if summary.Failed() {
		log.Error("Fetch run finished with failures",
			"failed", summary.FailedSources(),
			"duration", summary.Duration)
	} else {
		log.Info("Fetch run finished", "duration", summary.Duration)
	}
	return summary
}

func (o *Orchestrator) runSource(ctx context.Context, log *slog.Logger, id domain.SourceID) domain.Outcome {
	r := newRun(id, o.now)
	settle := func(err error) domain.Outcome {
		if tErr := r.fail(err); tErr != nil {
			log.Error("Failed to settle source run", "error", tErr)
		}
		log.Error("Source failed",
			"attempts", r.outcome.Attempts,
			"kind", r.outcome.Kind,
			"error", err)
		return r.outcome
	}

	def, ok := o.registry.Lookup(id)
	if !ok {
		return settle(fmt.Errorf("%w: %q", source.ErrUnknownSource, id))
	}

	creds, err := o.creds.Credentials(def.Config)
	if err != nil {
		return settle(err)
	}

	if err := r.start(); err != nil {
		return settle(err)
	}
	startDate := o.creds.StartDate()
	log.Info("Fetching transactions", "since", startDate.Format(time.DateOnly))

	release, err := o.guard.Acquire(ctx, id)
	if err != nil {
		return settle(fmt.Errorf("acquire browser session: %w", err))
	}
	defer release()

	req := domain.FetchRequest{
		Source:      id,
		Company:     def.Config.Company,
		Credentials: creds,
		StartDate:   startDate,
		ShowBrowser: def.Config.ShowBrowser,
	}

	policy := def.Policy
	policy.ShouldRetry = classify.ShouldRetry
	log.Debug("Retry policy", "max_retries", policy.MaxRetries, "schedule", policy.Schedule())

	opts := []retry.Option{
		retry.WithLogger(log),
		retry.WithRetryHook(func(attempt int, delay time.Duration, err error) {
			metrics.FetchRetriesTotal.WithLabelValues(string(id)).Inc()
		}),
	}
	if o.sleep != nil {
		opts = append(opts, retry.WithSleeper(o.sleep))
	}

	result, err := retry.Do(ctx, func(ctx context.Context) (*domain.FetchResult, error) {
		r.outcome.Attempts++
		metrics.FetchAttemptsTotal.WithLabelValues(string(id)).Inc()

		res, err := o.attempt(ctx, def, req)
		if err != nil {
			metrics.FetchFailuresTotal.WithLabelValues(string(id), kindLabel(err)).Inc()
			return nil, err
		}
		return res, nil
	}, policy, opts...)
	if err != nil {
		return settle(err)
	}

	location, err := o.store.Save(ctx, id, result)
	if err != nil {
		return settle(fmt.Errorf("save snapshot: %w", err))
	}

	if err := r.succeed(result, location); err != nil {
		return settle(err)
	}
	log.Info("Source succeeded",
		"attempts", r.outcome.Attempts,
		"accounts", r.outcome.Accounts,
		"transactions", r.outcome.Transactions,
		"location", location)
	return r.outcome
}

// attempt runs one fetch and turns a reported failure into a classified one.
func (o *Orchestrator) attempt(
	ctx context.Context,
	def source.Definition,
	req domain.FetchRequest,
) (*domain.FetchResult, error) {
	res, err := def.Fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNoResult
	}
	if !res.Success {
		return nil, unsuccessful(req.Source, res)
	}
	return res, nil
}

func unsuccessful(id domain.SourceID, res *domain.FetchResult) *domain.FetchError {
	kind := domain.FailureKind(res.ErrorType)
	if kind == "" {
		kind = domain.FailureGeneric
	}
	return domain.NewFetchError(kind,
		fmt.Sprintf("Scraper failed for %s: %s - %s", id, kind, res.ErrorMessage))
}

func kindLabel(err error) string {
	if kind, ok := domain.KindOf(err); ok {
		return string(kind)
	}
	return "unclassified"
}

func record(o domain.Outcome) {
	id := string(o.Source)
	metrics.SourceRunsTotal.WithLabelValues(id, string(o.State)).Inc()
	metrics.SourceRunDuration.WithLabelValues(id).Observe(o.Duration.Seconds())
	if o.State == domain.RunStateSucceeded {
		metrics.TransactionsFetched.WithLabelValues(id).Add(float64(o.Transactions))
		metrics.LastSuccessTimestamp.WithLabelValues(id).Set(float64(o.StartedAt.Add(o.Duration).Unix()))
	}
}
