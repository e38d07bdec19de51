package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/rosterwatch/rosterwatch/internal/config"
	"github.com/rosterwatch/rosterwatch/internal/core"
	"github.com/rosterwatch/rosterwatch/internal/core/client"
	"github.com/rosterwatch/rosterwatch/internal/core/engine"
	"github.com/rosterwatch/rosterwatch/internal/core/repo"
	"github.com/rosterwatch/rosterwatch/internal/core/roster"
	"github.com/rosterwatch/rosterwatch/internal/core/store"
	"github.com/rosterwatch/rosterwatch/internal/metrics"
)

// cycleRecorder keeps the most recent cycle outcome for the stats
// endpoint and watch-mode status lines.
type cycleRecorder struct {
	mu    sync.Mutex
	stats core.CycleStats
	seen  bool
}

func (c *cycleRecorder) Record(stats core.CycleStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = stats
	c.seen = true
}

// LastCycle implements handlers.StatsSource.
func (c *cycleRecorder) LastCycle() (core.CycleStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, c.seen
}

// engineSink merges fetch outcomes into the repository and feeds
// per-fetch telemetry.
type engineSink struct {
	repo *repo.Repository
}

func (s engineSink) Apply(result core.FetchResult) {
	s.repo.Apply(result)
	metrics.RecordFetch(result)
}

// fetchEngine bundles everything one refresh cycle needs. It is built
// once per command invocation and shared between cycles in watch mode.
type fetchEngine struct {
	cfg       *config.Config
	db        *store.Store
	limiter   *engine.RateLimiter
	repo      *repo.Repository
	scheduler *engine.Scheduler
	lastCycle *cycleRecorder
}

// newFetchEngine loads config, opens the store, and assembles the
// limiter, client, repository, and scheduler.
func newFetchEngine(ctx context.Context) (*fetchEngine, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	limiter := engine.NewRateLimiter(engine.RateLimiterConfig{
		CapacityPerMinute: cfg.Rate.CapPerMinute,
		MinInterval:       cfg.Rate.MinInterval,
		MinPenalty:        cfg.Rate.MinPenalty,
	})
	limiter.Journal = db
	limiter.Endpoint = "user"

	backoff := &engine.BackoffPolicy{
		Base:            cfg.Retry.BackoffBase,
		Ceiling:         cfg.Retry.BackoffCeiling,
		MaxAttempts:     cfg.Retry.MaxAttempts,
		HonorServerHint: cfg.Retry.HonorRetryAfter,
	}

	apiClient := &client.Client{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.Key,
		Limiter: limiter,
		Backoff: backoff,
		Timeout: cfg.Fetch.Timeout,
	}

	repository := repo.New()

	fe := &fetchEngine{
		cfg:     cfg,
		db:      db,
		limiter: limiter,
		repo:    repository,
		scheduler: &engine.Scheduler{
			Fetcher:     apiClient,
			Cache:       db,
			Sink:        engineSink{repo: repository},
			Limiter:     limiter,
			Concurrency: cfg.Fetch.Concurrency,
			CacheTTL:    cfg.Cache.TTL,
		},
		lastCycle: &cycleRecorder{},
	}

	if cfg.Cache.Preload {
		if err := fe.preload(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return fe, nil
}

// preload seeds the repository from the persistent cache so last-known
// state is visible before the first cycle.
func (fe *fetchEngine) preload(ctx context.Context) error {
	entries, err := fe.db.LoadEntities(ctx)
	if err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}

	entities := make([]core.Entity, 0, len(entries))
	for _, entry := range entries {
		entity := entry.Payload
		entity.ID = entry.ID
		fetched := entry.FetchedAt
		entity.LastFetchedAt = &fetched
		entities = append(entities, entity)
	}
	fe.repo.Seed(entities)
	return nil
}

// rosterIDs loads the targets and ignore files, seeds placeholder
// entities for roster members not yet fetched, and returns the IDs due
// for fetching.
func (fe *fetchEngine) rosterIDs() ([]int64, error) {
	targets, err := roster.LoadTargets(fe.cfg.Roster.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}

	ignored, err := roster.LoadIgnore(fe.cfg.Roster.IgnoreFile)
	if err != nil {
		return nil, fmt.Errorf("load ignore list: %w", err)
	}
	skip := roster.IgnoreSet(ignored)

	ids := make([]int64, 0, len(targets))
	for _, target := range targets {
		if _, ok := fe.repo.Get(target.ID); !ok {
			fe.repo.Seed([]core.Entity{{ID: target.ID, DisplayName: target.Name, Status: core.StatusUnknown}})
		}
		if skip[target.ID] {
			fe.repo.SetIgnored(target.ID, true)
			continue
		}
		fe.repo.SetIgnored(target.ID, false)
		ids = append(ids, target.ID)
	}

	return ids, nil
}

// runCycle executes one refresh cycle over the current roster.
func (fe *fetchEngine) runCycle(ctx context.Context) (core.CycleStats, error) {
	ids, err := fe.rosterIDs()
	if err != nil {
		return core.CycleStats{}, err
	}

	stats, err := fe.scheduler.Run(ctx, ids)
	if err != nil {
		return stats, err
	}

	fe.lastCycle.Record(stats)
	metrics.RecordCycle(stats)
	return stats, nil
}

// connectivityMonitor builds a monitor wired to the scheduler gate.
func (fe *fetchEngine) connectivityMonitor() *engine.ConnectivityMonitor {
	return &engine.ConnectivityMonitor{
		ProbeURL:  fe.cfg.Connectivity.ProbeURL,
		Interval:  fe.cfg.Connectivity.Interval,
		Threshold: fe.cfg.Connectivity.Threshold,
		OnChange: func(online bool) {
			fe.scheduler.SetOnline(online)
			metrics.RecordConnectivityFlip(online)
		},
	}
}

func (fe *fetchEngine) Close() error {
	if fe == nil || fe.db == nil {
		return nil
	}
	return fe.db.Close()
}
