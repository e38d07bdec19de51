package repo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

func successResult(id int64, name string) core.FetchResult {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return core.FetchResult{
		ID: id,
		Entity: &core.Entity{
			ID:            id,
			DisplayName:   name,
			Status:        core.StatusActive,
			LastFetchedAt: &now,
		},
		FetchedAt: now,
	}
}

func TestRepositoryApplySuccess(t *testing.T) {
	r := New()
	r.Apply(successResult(7, "Shadow"))

	entity, ok := r.Get(7)
	require.True(t, ok)
	require.Equal(t, "Shadow", entity.DisplayName)
	require.Equal(t, core.StatusActive, entity.Status)
	require.Nil(t, entity.LastError)
}

func TestRepositoryFailureKeepsLastKnownData(t *testing.T) {
	r := New()
	r.Apply(successResult(7, "Shadow"))
	r.Apply(core.Failure(7, core.ErrorKindNetwork, "connection refused"))

	entity, ok := r.Get(7)
	require.True(t, ok)
	require.Equal(t, "Shadow", entity.DisplayName)
	require.NotNil(t, entity.LastError)
	require.Equal(t, core.ErrorKindNetwork, *entity.LastError)

	// The next success clears the recorded error.
	r.Apply(successResult(7, "Shadow"))
	entity, _ = r.Get(7)
	require.Nil(t, entity.LastError)
}

func TestRepositoryFailureForUnknownEntity(t *testing.T) {
	r := New()
	r.Apply(core.Failure(9, core.ErrorKindNotFound, "entity not found"))

	entity, ok := r.Get(9)
	require.True(t, ok)
	require.Equal(t, core.StatusUnknown, entity.Status)
	require.Equal(t, core.ErrorKindNotFound, *entity.LastError)
}

func TestRepositoryIgnoredSurvivesMerge(t *testing.T) {
	r := New()
	r.SetIgnored(7, true)
	r.Apply(successResult(7, "Shadow"))

	entity, _ := r.Get(7)
	require.True(t, entity.Ignored)
	require.Equal(t, "Shadow", entity.DisplayName)
}

func TestRepositorySnapshotOrdered(t *testing.T) {
	r := New()
	r.Seed([]core.Entity{{ID: 30}, {ID: 10}, {ID: 20}})

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 3)
	require.Equal(t, int64(10), snapshot[0].ID)
	require.Equal(t, int64(20), snapshot[1].ID)
	require.Equal(t, int64(30), snapshot[2].ID)
}

func TestRepositoryConcurrentMerges(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			r.Apply(successResult(id%10, "entity"))
		}(int64(i))
	}
	wg.Wait()

	require.Equal(t, 10, r.Len())
}
