package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rosterwatch/rosterwatch/internal/core"
	apperrors "github.com/rosterwatch/rosterwatch/internal/errors"
)

// EntitySource provides read access to the tracked roster.
type EntitySource interface {
	Get(id int64) (core.Entity, bool)
	Snapshot() []core.Entity
}

// StatsSource reports the most recent refresh cycle outcome.
type StatsSource interface {
	LastCycle() (core.CycleStats, bool)
}

var (
	entitySource EntitySource
	statsSource  StatsSource
)

// SetEntitySource injects the roster backing the entity endpoints.
func SetEntitySource(source EntitySource) {
	entitySource = source
}

// SetStatsSource injects the cycle stats backing the stats endpoint.
func SetStatsSource(source StatsSource) {
	statsSource = source
}

// EntityListResponse is the payload for the entity list endpoint.
type EntityListResponse struct {
	Entities []core.Entity `json:"entities"`
	Count    int           `json:"count"`
}

// StatsResponse is the payload for the stats endpoint.
type StatsResponse struct {
	Status    string           `json:"status"`
	LastCycle *core.CycleStats `json:"last_cycle,omitempty"`
}

// ListEntitiesHandler returns the full roster snapshot sorted by ID.
func ListEntitiesHandler(w http.ResponseWriter, r *http.Request) {
	if entitySource == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("entity source not initialized"))
		return
	}

	entities := entitySource.Snapshot()
	response := EntityListResponse{
		Entities: entities,
		Count:    len(entities),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// GetEntityHandler returns the last-known state of one tracked entity.
func GetEntityHandler(w http.ResponseWriter, r *http.Request) {
	if entitySource == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("entity source not initialized"))
		return
	}

	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("entity id must be a positive integer"))
		return
	}

	entity, ok := entitySource.Get(id)
	if !ok {
		respondWithError(w, r, apperrors.NewNotFoundError("entity is not tracked"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(entity)
}

// StatsHandler returns the outcome of the most recent refresh cycle.
// Before the first cycle completes it reports an idle status.
func StatsHandler(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{Status: "idle"}

	if statsSource != nil {
		if stats, ok := statsSource.LastCycle(); ok {
			status := "completed"
			if stats.Aborted {
				status = "aborted"
			}
			response.Status = status
			response.LastCycle = &stats
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
