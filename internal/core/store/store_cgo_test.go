//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/rosterwatch/internal/config"
	"github.com/rosterwatch/rosterwatch/internal/core"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())
}

func TestEntityCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	fetched := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entry := core.CacheEntry{
		ID: 42,
		Payload: core.Entity{
			ID:          42,
			DisplayName: "Shadow",
			Level:       17,
			Status:      core.StatusHospitalized,
		},
		FetchedAt: fetched,
	}

	require.NoError(t, store.PutEntity(ctx, entry))

	loaded, err := store.GetEntity(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, entry.Payload, loaded.Payload)
	require.Equal(t, fetched, loaded.FetchedAt)

	missing, err := store.GetEntity(ctx, 99)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestEntityCacheUpsertReplacesRow(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	first := core.CacheEntry{
		ID:        7,
		Payload:   core.Entity{ID: 7, DisplayName: "Before", Status: core.StatusActive},
		FetchedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PutEntity(ctx, first))

	second := first
	second.Payload.DisplayName = "After"
	second.FetchedAt = first.FetchedAt.Add(time.Hour)
	require.NoError(t, store.PutEntity(ctx, second))

	loaded, err := store.GetEntity(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "After", loaded.Payload.DisplayName)
	require.Equal(t, second.FetchedAt, loaded.FetchedAt)

	entries, err := store.LoadEntities(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadEntitiesOrdered(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	for _, id := range []int64{30, 10, 20} {
		require.NoError(t, store.PutEntity(ctx, core.CacheEntry{
			ID:        id,
			Payload:   core.Entity{ID: id, Status: core.StatusActive},
			FetchedAt: time.Now().UTC(),
		}))
	}

	entries, err := store.LoadEntities(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, int64(10), entries[0].ID)
	require.Equal(t, int64(20), entries[1].ID)
	require.Equal(t, int64(30), entries[2].ID)
}

func TestClearEntities(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)

	require.NoError(t, store.PutEntity(ctx, core.CacheEntry{ID: 1, Payload: core.Entity{ID: 1}, FetchedAt: old}))
	require.NoError(t, store.PutEntity(ctx, core.CacheEntry{ID: 2, Payload: core.Entity{ID: 2}, FetchedAt: recent}))

	removed, err := store.ClearEntities(ctx, old.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	entries, err := store.LoadEntities(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(2), entries[0].ID)

	removed, err = store.ClearEntities(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestRateLimitJournalRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)

	missing, err := store.GetRateLimit(ctx, "api.example")
	require.NoError(t, err)
	require.Nil(t, missing)

	until := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC)
	state := &core.RateLimitState{
		RequestCount: 12,
		WindowStart:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		BackoffUntil: &until,
	}
	require.NoError(t, store.UpdateRateLimit(ctx, "api.example", state))

	loaded, err := store.GetRateLimit(ctx, "api.example")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 12, loaded.RequestCount)
	require.NotNil(t, loaded.BackoffUntil)
	require.Equal(t, until, *loaded.BackoffUntil)

	rows, err := store.ListRateLimits(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "api.example", rows[0].Endpoint)

	removed, err := store.ResetRateLimits(ctx, "api.example")
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	rows, err = store.ListRateLimits(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}
