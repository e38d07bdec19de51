package cmd

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/rosterwatch/internal/config"
	"github.com/rosterwatch/rosterwatch/internal/core"
	"github.com/rosterwatch/rosterwatch/internal/core/engine"
	"github.com/rosterwatch/rosterwatch/internal/core/repo"
	"github.com/rosterwatch/rosterwatch/internal/core/roster"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls map[int64]int
}

func (f *countingFetcher) Fetch(ctx context.Context, id int64) core.FetchResult {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[int64]int)
	}
	f.calls[id]++
	f.mu.Unlock()

	now := time.Now().UTC()
	return core.FetchResult{
		ID:        id,
		Entity:    &core.Entity{ID: id, Status: core.StatusActive, LastFetchedAt: &now},
		FetchedAt: now,
	}
}

func writeRosterFiles(t *testing.T, targets []roster.Entry, ignored []int64) config.RosterConfig {
	t.Helper()

	dir := t.TempDir()
	cfg := config.RosterConfig{
		TargetsFile: filepath.Join(dir, "targets.json"),
		IgnoreFile:  filepath.Join(dir, "ignore.json"),
	}
	require.NoError(t, roster.SaveTargets(cfg.TargetsFile, targets))
	require.NoError(t, roster.SaveIgnore(cfg.IgnoreFile, ignored))
	return cfg
}

func TestRosterIDsExcludesIgnoredFromDispatch(t *testing.T) {
	rosterCfg := writeRosterFiles(t,
		[]roster.Entry{{ID: 1, Name: "alpha"}, {ID: 2, Name: "bravo"}, {ID: 3, Name: "charlie"}},
		[]int64{2},
	)

	fe := &fetchEngine{
		cfg:  &config.Config{Roster: rosterCfg},
		repo: repo.New(),
	}

	ids, err := fe.rosterIDs()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ids)

	// Ignored members stay addressable and flagged, never dispatched.
	ignored, ok := fe.repo.Get(2)
	require.True(t, ok)
	require.True(t, ignored.Ignored)

	tracked, ok := fe.repo.Get(1)
	require.True(t, ok)
	require.False(t, tracked.Ignored)

	fetcher := &countingFetcher{}
	scheduler := &engine.Scheduler{
		Fetcher:     fetcher,
		Sink:        engineSink{repo: fe.repo},
		Concurrency: 2,
	}

	stats, err := scheduler.Run(context.Background(), ids)
	require.NoError(t, err)

	// The ignored ID inflates neither the denominator nor the fetch count.
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.Success)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	require.Equal(t, 1, fetcher.calls[1])
	require.Equal(t, 1, fetcher.calls[3])
	require.Zero(t, fetcher.calls[2])
}

func TestRosterIDsUnignoresOnRemoval(t *testing.T) {
	rosterCfg := writeRosterFiles(t,
		[]roster.Entry{{ID: 7, Name: "golf"}},
		[]int64{7},
	)

	fe := &fetchEngine{
		cfg:  &config.Config{Roster: rosterCfg},
		repo: repo.New(),
	}

	ids, err := fe.rosterIDs()
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, roster.SaveIgnore(rosterCfg.IgnoreFile, nil))

	ids, err = fe.rosterIDs()
	require.NoError(t, err)
	require.Equal(t, []int64{7}, ids)

	entity, ok := fe.repo.Get(7)
	require.True(t, ok)
	require.False(t, entity.Ignored)
}
