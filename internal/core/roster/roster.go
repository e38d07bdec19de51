package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Entry is one roster line: a tracked entity ID with an optional
// user-supplied label.
type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// targetsFile is the canonical on-disk shape. Older files are a bare
// JSON array of entries or IDs; both forms load, the wrapper form is
// written back.
type targetsFile struct {
	Targets []json.RawMessage `json:"targets"`
}

// LoadTargets reads the roster file. A missing file is an empty roster.
// Duplicate IDs are dropped, first occurrence wins, order is preserved.
func LoadTargets(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read roster: %w", err)
	}

	items, err := rawEntries(raw)
	if err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", filepath.Base(path), err)
	}

	entries := make([]Entry, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		entry, err := decodeEntry(item)
		if err != nil {
			return nil, fmt.Errorf("parse roster %s: %w", filepath.Base(path), err)
		}
		if entry.ID <= 0 || seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true
		entries = append(entries, entry)
	}

	return entries, nil
}

// SaveTargets writes the roster in the wrapper form. The write is
// atomic: a temp file in the same directory is renamed over the target.
func SaveTargets(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	payload := struct {
		Targets []Entry `json:"targets"`
	}{Targets: entries}

	return writeJSON(path, payload)
}

// Add appends an entry unless its ID is already present.
func Add(entries []Entry, entry Entry) ([]Entry, bool) {
	for _, existing := range entries {
		if existing.ID == entry.ID {
			return entries, false
		}
	}
	return append(entries, entry), true
}

// Remove deletes the entry with the given ID, preserving order.
func Remove(entries []Entry, id int64) ([]Entry, bool) {
	for i, existing := range entries {
		if existing.ID == id {
			return append(entries[:i:i], entries[i+1:]...), true
		}
	}
	return entries, false
}

// LoadIgnore reads the ignore file: a bare JSON array of IDs. A missing
// file means nothing is ignored.
func LoadIgnore(path string) ([]int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ignore list: %w", err)
	}

	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("parse ignore list %s: %w", filepath.Base(path), err)
	}

	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}

	return out, nil
}

// SaveIgnore writes the ignore file atomically.
func SaveIgnore(path string, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	return writeJSON(path, ids)
}

// IgnoreSet builds a membership set from an ignore list.
func IgnoreSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func rawEntries(raw []byte) ([]json.RawMessage, error) {
	var wrapper targetsFile
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Targets != nil {
		return wrapper.Targets, nil
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

func decodeEntry(raw json.RawMessage) (Entry, error) {
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err == nil {
		return entry, nil
	}

	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return Entry{}, fmt.Errorf("unsupported roster entry %s", string(raw))
	}
	return Entry{ID: id}, nil
}

func writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           // nolint:errcheck // cleanup after write failure
		os.Remove(tmp.Name()) // nolint:errcheck // cleanup after write failure
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) // nolint:errcheck // cleanup after close failure
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) // nolint:errcheck // cleanup after rename failure
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	return nil
}
