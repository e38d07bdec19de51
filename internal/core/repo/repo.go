package repo

import (
	"sort"
	"sync"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

// Repository holds the authoritative in-memory view of tracked
// entities. Writes are per-ID merges; readers always observe either the
// pre-merge or post-merge state of an entity, never a partial write.
type Repository struct {
	mu       sync.RWMutex
	entities map[int64]core.Entity
}

// New returns an empty repository.
func New() *Repository {
	return &Repository{entities: make(map[int64]core.Entity)}
}

// Seed inserts entities without merge semantics, used for cache
// preload before the first cycle. Existing entries are overwritten.
func (r *Repository) Seed(entities []core.Entity) {
	if r == nil || len(entities) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entity := range entities {
		r.entities[entity.ID] = entity
	}
}

// Apply merges one fetch outcome. A successful result replaces the
// entity's remote fields and clears any recorded error. A failed result
// keeps the last-known data and records the error kind, so stale
// information survives transient outages.
func (r *Repository) Apply(result core.FetchResult) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entities[result.ID]
	if !ok {
		current = core.Entity{ID: result.ID, Status: core.StatusUnknown}
	}

	if result.Success() {
		merged := *result.Entity
		merged.ID = result.ID
		merged.Ignored = current.Ignored
		merged.LastError = nil
		r.entities[result.ID] = merged
		return
	}

	kind := result.Err
	current.LastError = &kind
	r.entities[result.ID] = current
}

// SetIgnored flags an entity without touching its remote fields.
func (r *Repository) SetIgnored(id int64, ignored bool) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entities[id]
	if !ok {
		current = core.Entity{ID: id, Status: core.StatusUnknown}
	}
	current.Ignored = ignored
	r.entities[id] = current
}

// Get returns one entity by ID.
func (r *Repository) Get(id int64) (core.Entity, bool) {
	if r == nil {
		return core.Entity{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.entities[id]
	return entity, ok
}

// Snapshot returns a copy of all entities ordered by ID.
func (r *Repository) Snapshot() []core.Entity {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]core.Entity, 0, len(r.entities))
	for _, entity := range r.entities {
		snapshot = append(snapshot, entity)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	return snapshot
}

// Len returns the number of tracked entities.
func (r *Repository) Len() int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
