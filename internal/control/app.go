package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/maya-1807/finance-manager/internal/core/config"
	"github.com/maya-1807/finance-manager/internal/core/domain"
	"github.com/maya-1807/finance-manager/internal/core/worker"
	"github.com/maya-1807/finance-manager/internal/fetching/metrics"
	"github.com/maya-1807/finance-manager/internal/fetching/orchestrator"
	"github.com/maya-1807/finance-manager/internal/fetching/session"
	"github.com/maya-1807/finance-manager/internal/fetching/source"
	redisclient "github.com/maya-1807/finance-manager/internal/infra/redis"
	"github.com/maya-1807/finance-manager/internal/infra/scraper"
	"github.com/maya-1807/finance-manager/internal/infra/storage"
	"github.com/maya-1807/finance-manager/internal/infra/storage/memory"
	"github.com/maya-1807/finance-manager/internal/infra/storage/snapshot"
)

// App wires configuration into a ready-to-run orchestrator.
type App struct {
	cfg         Config
	registry    *source.Registry
	creds       *config.EnvProvider
	store       storage.SnapshotRepository
	orch        *orchestrator.Orchestrator
	pruner      *worker.Pruner
	redisClient *redisclient.Client
	log         *slog.Logger
}

// Option configures an App.
type Option func(*options)

type options struct {
	orchestratorOpts []orchestrator.Option
}

// WithOrchestratorOptions passes options through to the orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(o *options) {
		o.orchestratorOpts = append(o.orchestratorOpts, opts...)
	}
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg Config, opts ...Option) (*App, error) {
	if cfg.App == nil {
		return nil, errors.New("control: nil app config")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := slog.Default()
	appCfg := cfg.App

	// 1. Credentials
	var creds *config.EnvProvider
	if cfg.Lookup != nil {
		creds = config.NewEnvProviderWithLookup(appCfg, cfg.Lookup)
	} else {
		creds = config.NewEnvProvider(appCfg)
	}

	// 2. Sources
	newFetcher := cfg.NewFetcher
	if newFetcher == nil {
		runner := scraper.NewExecFetcher(appCfg.Scraper, log)
		newFetcher = func(config.SourceConfig) source.Fetcher { return runner }
	}
	defs := make([]source.Definition, 0, len(appCfg.Sources))
	for _, src := range appCfg.Sources {
		defs = append(defs, source.Definition{
			Config:  src,
			Fetcher: newFetcher(src),
			Policy:  appCfg.RetryPolicy(src),
		})
	}
	registry, err := source.NewRegistry(defs...)
	if err != nil {
		return nil, fmt.Errorf("failed to build source registry: %w", err)
	}

	// 3. Storage
	var store storage.SnapshotRepository
	if cfg.DryRun {
		store = memory.NewSnapshotRepo()
		log.Info("Dry run: snapshots kept in memory")
	} else {
		store = snapshot.NewStore(appCfg.Output.Dir)
		log.Info("Writing snapshots", "dir", appCfg.Output.Dir)
	}

	// 4. Browser session guard
	app := &App{
		cfg:      cfg,
		registry: registry,
		creds:    creds,
		store:    store,
		log:      log,
	}
	guard, err := app.newGuard()
	if err != nil {
		return nil, err
	}

	orchOpts := append([]orchestrator.Option{orchestrator.WithLogger(log)}, o.orchestratorOpts...)
	app.orch = orchestrator.New(registry, creds, guard, store, orchOpts...)
	app.pruner = worker.NewPruner(appCfg.Output.Retention, store, log)
	return app, nil
}

func (a *App) newGuard() (session.Guard, error) {
	sess := a.cfg.App.Session
	switch sess.Backend {
	case config.SessionBackendDir:
		a.log.Info("Using lock directory for browser sessions", "dir", sess.LockDir)
		return session.NewDirGuard(sess.LockDir), nil
	case config.SessionBackendRedis:
		client, err := redisclient.NewClient(a.cfg.App.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redisClient = client
		a.log.Info("Using Redis lock for browser sessions", "ttl", sess.LockTTL)
		return redisclient.NewSessionLock(client, sess.LockTTL, sess.PollInterval), nil
	default:
		return session.NewMemoryGuard(), nil
	}
}

// Run resolves selector and fetches the selected sources in order. An unknown
// selector returns source.ErrUnknownSource before any work is done.
func (a *App) Run(ctx context.Context, selector string) (*orchestrator.Summary, error) {
	ids, err := a.registry.Resolve(selector)
	if err != nil {
		return nil, err
	}

	summary := a.orch.RunAll(ctx, ids)

	var succeeded []domain.SourceID
	for _, o := range summary.Outcomes {
		if o.State == domain.RunStateSucceeded {
			succeeded = append(succeeded, o.Source)
		}
	}
	a.pruner.Prune(ctx, succeeded)

	if path := a.cfg.App.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.log.Warn("Failed to export metrics", "path", path, "error", err)
		} else {
			a.log.Debug("Exported metrics", "path", path)
		}
	}
	return summary, nil
}

// Sources lists every configured source and the state of its env vars.
func (a *App) Sources() []SourceStatus {
	out := make([]SourceStatus, 0, a.registry.Len())
	for _, id := range a.registry.IDs() {
		def, _ := a.registry.Lookup(id)
		missing := a.creds.MissingCredentials(def.Config)

		status := SourceStatus{
			ID:          id,
			Company:     def.Config.Company,
			ShowBrowser: def.Config.ShowBrowser,
		}
		for _, c := range def.Config.Credentials {
			status.EnvVars = append(status.EnvVars, EnvVarStatus{
				Name:  c.Env,
				Field: c.Field,
				Set:   !slices.Contains(missing, c.Env),
			})
		}
		out = append(out, status)
	}
	return out
}

// ValidSelectors lists the accepted run selectors.
func (a *App) ValidSelectors() string {
	return a.registry.ValidSelectors()
}

// LatestSnapshot returns the newest saved snapshot for a source.
func (a *App) LatestSnapshot(ctx context.Context, id domain.SourceID) (*storage.Snapshot, error) {
	if _, ok := a.registry.Lookup(id); !ok {
		return nil, fmt.Errorf("%w: %q. Valid options: %s", source.ErrUnknownSource, id, a.registry.ValidSelectors())
	}
	return a.store.Latest(ctx, id)
}

// Close releases external connections.
func (a *App) Close() error {
	if a.redisClient != nil {
		return a.redisClient.Close()
	}
	return nil
}
