package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

type fakeRoster struct {
	entities map[int64]core.Entity
}

func (f fakeRoster) Get(id int64) (core.Entity, bool) {
	entity, ok := f.entities[id]
	return entity, ok
}

func (f fakeRoster) Snapshot() []core.Entity {
	out := make([]core.Entity, 0, len(f.entities))
	for _, entity := range f.entities {
		out = append(out, entity)
	}
	return out
}

type fakeStats struct {
	stats core.CycleStats
	ok    bool
}

func (f fakeStats) LastCycle() (core.CycleStats, bool) {
	return f.stats, f.ok
}

func entityRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/v1/entities", ListEntitiesHandler)
	r.Get("/api/v1/entities/{id}", GetEntityHandler)
	r.Get("/api/v1/stats", StatsHandler)
	return r
}

func TestListEntitiesHandlerReturnsSnapshot(t *testing.T) {
	SetEntitySource(fakeRoster{entities: map[int64]core.Entity{
		7: {ID: 7, DisplayName: "alpha", Status: core.StatusActive},
		9: {ID: 9, DisplayName: "beta", Status: core.StatusTraveling},
	}})
	t.Cleanup(func() { SetEntitySource(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil)
	rec := httptest.NewRecorder()

	entityRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp EntityListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Count != 2 || len(resp.Entities) != 2 {
		t.Fatalf("expected 2 entities, got count=%d len=%d", resp.Count, len(resp.Entities))
	}
}

func TestGetEntityHandlerReturnsEntity(t *testing.T) {
	SetEntitySource(fakeRoster{entities: map[int64]core.Entity{
		42: {ID: 42, DisplayName: "gamma", Status: core.StatusHospitalized},
	}})
	t.Cleanup(func() { SetEntitySource(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/42", nil)
	rec := httptest.NewRecorder()

	entityRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var entity core.Entity
	if err := json.NewDecoder(rec.Body).Decode(&entity); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if entity.ID != 42 || entity.DisplayName != "gamma" {
		t.Fatalf("unexpected entity: %+v", entity)
	}
}

func TestGetEntityHandlerRejectsBadID(t *testing.T) {
	SetEntitySource(fakeRoster{entities: map[int64]core.Entity{}})
	t.Cleanup(func() { SetEntitySource(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/not-a-number", nil)
	rec := httptest.NewRecorder()

	entityRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestGetEntityHandlerReturnsNotFound(t *testing.T) {
	SetEntitySource(fakeRoster{entities: map[int64]core.Entity{}})
	t.Cleanup(func() { SetEntitySource(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/123", nil)
	rec := httptest.NewRecorder()

	entityRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", resp.Error.Code)
	}
}

func TestStatsHandlerReportsIdleBeforeFirstCycle(t *testing.T) {
	SetStatsSource(fakeStats{ok: false})
	t.Cleanup(func() { SetStatsSource(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()

	entityRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "idle" || resp.LastCycle != nil {
		t.Fatalf("expected idle stats, got %+v", resp)
	}
}

func TestStatsHandlerReturnsLastCycle(t *testing.T) {
	stats := core.CycleStats{
		CycleID:   "cycle-1",
		Total:     10,
		Success:   7,
		CacheHits: 2,
		Errors:    map[core.ErrorKind]int{core.ErrorKindTimeout: 1},
		StartedAt: time.Now().UTC(),
		Elapsed:   3 * time.Second,
	}
	SetStatsSource(fakeStats{stats: stats, ok: true})
	t.Cleanup(func() { SetStatsSource(nil) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()

	entityRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "completed" {
		t.Fatalf("expected completed status, got %s", resp.Status)
	}
	if resp.LastCycle == nil || resp.LastCycle.CycleID != "cycle-1" || resp.LastCycle.Success != 7 {
		t.Fatalf("unexpected cycle stats: %+v", resp.LastCycle)
	}
}
