package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rosterwatch/rosterwatch/internal/core"
)

// GetEntity returns the cached snapshot for one entity ID, regardless
// of age. Freshness is the caller's decision so a reconfigured TTL
// applies to existing rows.
func (s *Store) GetEntity(ctx context.Context, id int64) (*core.CacheEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if id <= 0 {
		return nil, errors.New("entity id is required")
	}

	var (
		payloadJSON string
		fetchedAt   int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT payload, fetched_at
		FROM entity_cache
		WHERE id = ?
	`, id)

	if err := row.Scan(&payloadJSON, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached entity: %w", err)
	}

	var payload core.Entity
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("decode cached entity: %w", err)
	}

	return &core.CacheEntry{
		ID:        id,
		Payload:   payload,
		FetchedAt: time.Unix(fetchedAt, 0).UTC(),
	}, nil
}

// PutEntity stores one entity snapshot. The upsert replaces the whole
// row, so readers never observe a partially updated entry.
func (s *Store) PutEntity(ctx context.Context, entry core.CacheEntry) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if entry.ID <= 0 {
		return errors.New("entity id is required")
	}

	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("encode cached entity: %w", err)
	}

	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO entity_cache (id, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, entry.ID, string(payloadJSON), fetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("store cached entity: %w", err)
	}

	return nil
}

// LoadEntities returns all cached snapshots ordered by ID, used for
// startup preload and cache listings.
func (s *Store) LoadEntities(ctx context.Context) ([]core.CacheEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, payload, fetched_at
		FROM entity_cache
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load cached entities: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var entries []core.CacheEntry
	for rows.Next() {
		var (
			id          int64
			payloadJSON string
			fetchedAt   int64
		)
		if err := rows.Scan(&id, &payloadJSON, &fetchedAt); err != nil {
			return nil, fmt.Errorf("load cached entities: %w", err)
		}

		var payload core.Entity
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("decode cached entity %d: %w", id, err)
		}

		entries = append(entries, core.CacheEntry{
			ID:        id,
			Payload:   payload,
			FetchedAt: time.Unix(fetchedAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cached entities: %w", err)
	}

	return entries, nil
}

// ClearEntities removes cached snapshots. A zero cutoff clears
// everything; otherwise only rows fetched before the cutoff go.
func (s *Store) ClearEntities(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		result sql.Result
		err    error
	)
	if before.IsZero() {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM entity_cache`)
	} else {
		result, err = s.DB.ExecContext(ctx, `DELETE FROM entity_cache WHERE fetched_at < ?`, before.UTC().Unix())
	}
	if err != nil {
		return 0, fmt.Errorf("clear cached entities: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear cached entities: %w", err)
	}

	return removed, nil
}
