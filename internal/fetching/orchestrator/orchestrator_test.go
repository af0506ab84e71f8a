package orchestrator

import (
	"bytes"
	"context"
	"log/slog"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maya-1807/finance-manager/internal/core/config"
	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/core/retry"
	"github.com/maya-1807/finance-manager/internal/fetching/session"
	"github.com/maya-1807/finance-manager/internal/fetching/source"
	"github.com/maya-1807/finance-manager/internal/infra/storage/memory"
)

type step struct {
	result *domain.FetchResult
	err    error
}

// scriptedFetcher replays steps in order and repeats the last one.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
	reqs  []domain.FetchRequest
}

func (f *scriptedFetcher) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	s := f.steps[min(f.calls, len(f.steps)-1)]
	f.calls++
	return s.result, s.err
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCreds struct {
	missing map[domain.SourceID]bool
	start   time.Time
}

func (c *fakeCreds) Credentials(src config.SourceConfig) (domain.Credentials, error) {
	if c.missing[src.ID] {
		return nil, &domain.ConfigError{Source: src.ID, Field: "password", EnvVar: "TEST_PASSWORD"}
	}
	return domain.Credentials{"username": "u", "password": "p"}, nil
}

func (c *fakeCreds) StartDate() time.Time {
	return c.start
}

type failingStore struct{}

func (failingStore) Save(context.Context, domain.SourceID, *domain.FetchResult) (string, error) {
	return "", errors.New("disk full")
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func ok(accounts ...domain.Account) step {
	return step{result: &domain.FetchResult{Success: true, Accounts: accounts}}
}

func reported(kind, msg string) step {
	return step{result: &domain.FetchResult{Success: false, ErrorType: kind, ErrorMessage: msg}}
}

func def(id domain.SourceID, f source.Fetcher) source.Definition {
	return source.Definition{
		Config:  config.SourceConfig{ID: id, Company: domain.Company(id)},
		Fetcher: f,
		Policy:  retry.Policy{MaxRetries: 3, BaseDelay: time.Second, Multiplier: 3},
	}
}

type harness struct {
	orch    *Orchestrator
	store   *memory.SnapshotRepo
	sleeper *recordingSleeper
	creds   *fakeCreds
}

func newHarness(t *testing.T, defs ...source.Definition) *harness {
	t.Helper()
	reg, err := source.NewRegistry(defs...)
	require.NoError(t, err)

	h := &harness{
		store:   memory.NewSnapshotRepo(),
		sleeper: &recordingSleeper{},
		creds: &fakeCreds{
			missing: map[domain.SourceID]bool{},
			start:   time.Date(2026, 7, 17, 0, 0, 0, 0, time.UTC),
		},
	}
	h.orch = New(reg, h.creds, session.NewMemoryGuard(), h.store, WithSleeper(h.sleeper.Sleep))
	return h
}

func TestRunAll_FailureIsolation(t *testing.T) {
	a := &scriptedFetcher{steps: []step{reported("AccountBlocked", "locked out")}}
	b := &scriptedFetcher{steps: []step{ok(domain.Account{AccountNumber: "1", Txns: make([]domain.Transaction, 3)})}}
	h := newHarness(t, def("a", a), def("b", b))

	summary := h.orch.RunAll(context.Background(), []domain.SourceID{"a", "b"})

	require.Len(t, summary.Outcomes, 2)
	assert.True(t, summary.Failed())
	assert.Equal(t, []domain.SourceID{"a"}, summary.FailedSources())

	outA, _ := summary.Outcome("a")
	assert.Equal(t, domain.RunStateFailed, outA.State)
	assert.Equal(t, 1, outA.Attempts)
	assert.Equal(t, domain.FailureAccountBlocked, outA.Kind)
	assert.Equal(t, "Scraper failed for a: AccountBlocked - locked out", outA.Err.Error())
	assert.Equal(t, 1, a.Calls())
	assert.Empty(t, h.sleeper.delays)

	outB, _ := summary.Outcome("b")
	assert.Equal(t, domain.RunStateSucceeded, outB.State)
	assert.Equal(t, 1, outB.Attempts)
	assert.Equal(t, 1, outB.Accounts)
	assert.Equal(t, 3, outB.Transactions)
	assert.Equal(t, "memory://b/1", outB.Location)
	assert.Equal(t, 1, h.store.Count("b"))
}

func TestRunAll_MissingKindDefaultsToGenericAndRetries(t *testing.T) {
	f := &scriptedFetcher{steps: []step{reported("", "something odd"), ok()}}
	h := newHarness(t, def("a", f))

	summary := h.orch.RunAll(context.Background(), []domain.SourceID{"a"})

	out, _ := summary.Outcome("a")
	assert.Equal(t, domain.RunStateSucceeded, out.State)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, h.sleeper.delays)
	assert.False(t, summary.Failed())
}

func TestRunAll_GenericKindOnTerminalFailure(t *testing.T) {
	f := &scriptedFetcher{steps: []step{reported("", "no kind")}}
	h := newHarness(t, def("a", f))

	out, _ := h.orch.RunAll(context.Background(), []domain.SourceID{"a"}).Outcome("a")

	assert.Equal(t, domain.FailureGeneric, out.Kind)
	assert.Equal(t, "Scraper failed for a: Generic - no kind", out.Err.Error())
}

func TestRunAll_ExhaustionReturnsLastFailure(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		reported("Timeout", "t1"),
		reported("Timeout", "t2"),
		reported("Timeout", "t3"),
		reported("Timeout", "t4"),
	}}
	h := newHarness(t, def("a", f))

	out, _ := h.orch.RunAll(context.Background(), []domain.SourceID{"a"}).Outcome("a")

	assert.Equal(t, domain.RunStateFailed, out.State)
	assert.Equal(t, 4, out.Attempts)
	assert.Equal(t, 4, f.Calls())
	assert.Contains(t, out.Err.Error(), "t4")
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}, h.sleeper.delays)
}

func TestRunAll_OpaqueErrorsRetried(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{err: errors.New("exit status 1")}, ok()}}
	h := newHarness(t, def("a", f))

	out, _ := h.orch.RunAll(context.Background(), []domain.SourceID{"a"}).Outcome("a")

	assert.Equal(t, domain.RunStateSucceeded, out.State)
	assert.Equal(t, 2, out.Attempts)
}

func TestRunAll_NilResultIsOpaqueFailure(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{}}}
	d := def("a", f)
	d.Policy.MaxRetries = 0
	h := newHarness(t, d)

	out, _ := h.orch.RunAll(context.Background(), []domain.SourceID{"a"}).Outcome("a")

	assert.ErrorIs(t, out.Err, ErrNoResult)
	assert.Empty(t, out.Kind)
}

func TestRunAll_MissingCredentialsSkipsFetch(t *testing.T) {
	a := &scriptedFetcher{steps: []step{ok()}}
	b := &scriptedFetcher{steps: []step{ok()}}
	h := newHarness(t, def("a", a), def("b", b))
	h.creds.missing["a"] = true

	summary := h.orch.RunAll(context.Background(), []domain.SourceID{"a", "b"})

	outA, _ := summary.Outcome("a")
	assert.Equal(t, domain.RunStateFailed, outA.State)
	assert.Zero(t, outA.Attempts)
	assert.True(t, domain.IsConfigError(outA.Err))
	assert.Equal(t, "Missing environment variable TEST_PASSWORD (password) for a", outA.Err.Error())
	assert.Zero(t, a.Calls())

	outB, _ := summary.Outcome("b")
	assert.Equal(t, domain.RunStateSucceeded, outB.State)
}

func TestRunAll_PersistenceFailureNotRetried(t *testing.T) {
	f := &scriptedFetcher{steps: []step{ok()}}
	reg, err := source.NewRegistry(def("a", f))
	require.NoError(t, err)
	sleeper := &recordingSleeper{}
	orch := New(reg, &fakeCreds{}, nil, failingStore{}, WithSleeper(sleeper.Sleep))

	out, _ := orch.RunAll(context.Background(), []domain.SourceID{"a"}).Outcome("a")

	assert.Equal(t, domain.RunStateFailed, out.State)
	assert.Equal(t, 1, f.Calls())
	assert.Contains(t, out.Err.Error(), "disk full")
	assert.Empty(t, sleeper.delays)
}

func TestRunAll_UnknownSource(t *testing.T) {
	h := newHarness(t, def("a", &scriptedFetcher{steps: []step{ok()}}))

	out, _ := h.orch.RunAll(context.Background(), []domain.SourceID{"nope"}).Outcome("nope")

	assert.ErrorIs(t, out.Err, source.ErrUnknownSource)
	assert.Equal(t, domain.RunStateFailed, out.State)
}

func TestRunAll_RequestCarriesSourceSettings(t *testing.T) {
	f := &scriptedFetcher{steps: []step{ok()}}
	d := def("isracard", f)
	d.Config.Company = domain.CompanyIsracard
	d.Config.ShowBrowser = true
	h := newHarness(t, d)

	h.orch.RunAll(context.Background(), []domain.SourceID{"isracard"})

	require.Len(t, f.reqs, 1)
	req := f.reqs[0]
	assert.Equal(t, domain.SourceID("isracard"), req.Source)
	assert.Equal(t, domain.CompanyIsracard, req.Company)
	assert.True(t, req.ShowBrowser)
	assert.Equal(t, h.creds.start, req.StartDate)
	assert.Equal(t, "u", req.Credentials["username"])
}

func TestRunAll_LogsRetrySchedule(t *testing.T) {
	var buf bytes.Buffer
	reg, err := source.NewRegistry(def("a", &scriptedFetcher{steps: []step{ok()}}))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	orch := New(reg, &fakeCreds{}, nil, memory.NewSnapshotRepo(), WithLogger(logger))

	orch.RunAll(context.Background(), []domain.SourceID{"a"})

	assert.Contains(t, buf.String(), "max_retries=3")
	assert.Contains(t, buf.String(), "1s 3s 9s")
}

func TestRunAll_PreservesOrder(t *testing.T) {
	h := newHarness(t,
		def("a", &scriptedFetcher{steps: []step{ok()}}),
		def("b", &scriptedFetcher{steps: []step{ok()}}),
		def("c", &scriptedFetcher{steps: []step{ok()}}),
	)

	summary := h.orch.RunAll(context.Background(), []domain.SourceID{"c", "a", "b"})

	var got []domain.SourceID
	for _, o := range summary.Outcomes {
		got = append(got, o.Source)
	}
	assert.Equal(t, []domain.SourceID{"c", "a", "b"}, got)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunAll_CancelDuringBackoffKeepsCause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &scriptedFetcher{steps: []step{reported("Timeout", "slow portal")}}
	reg, err := source.NewRegistry(def("a", f))
	require.NoError(t, err)
	orch := New(reg, &fakeCreds{}, nil, memory.NewSnapshotRepo(),
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}))

	out, _ := orch.RunAll(ctx, []domain.SourceID{"a"}).Outcome("a")

	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, domain.FailureTimeout, out.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

// activeFetcher fails the test if two fetches ever overlap.
type activeFetcher struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (f *activeFetcher) Fetch(ctx context.Context, req domain.FetchRequest) (*domain.FetchResult, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	if n > f.peak.Load() {
		f.peak.Store(n)
	}
	time.Sleep(5 * time.Millisecond)
	return &domain.FetchResult{Success: true}, nil
}

func TestRunAll_ConcurrentCallsDoNotOverlap(t *testing.T) {
	f := &activeFetcher{}
	h := newHarness(t, def("a", f), def("b", f))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.orch.RunAll(context.Background(), []domain.SourceID{"a", "b"})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.peak.Load())
}
