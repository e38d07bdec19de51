package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTargetsWrapperForm(t *testing.T) {
	path := writeFile(t, "targets.json", `{"targets": [{"id": 1, "name": "Shadow"}, {"id": 2}]}`)

	entries, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(1), entries[0].ID)
	require.Equal(t, "Shadow", entries[0].Name)
	require.Equal(t, int64(2), entries[1].ID)
}

func TestLoadTargetsBareArrayOfIDs(t *testing.T) {
	path := writeFile(t, "targets.json", `[3, 1, 2]`)

	entries, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, int64(3), entries[0].ID)
	require.Equal(t, int64(1), entries[1].ID)
	require.Equal(t, int64(2), entries[2].ID)
}

func TestLoadTargetsBareArrayOfObjects(t *testing.T) {
	path := writeFile(t, "targets.json", `[{"id": 5, "name": "Five"}]`)

	entries, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Five", entries[0].Name)
}

func TestLoadTargetsDedupesPreservingOrder(t *testing.T) {
	path := writeFile(t, "targets.json", `[2, 1, 2, 3, 1]`)

	entries, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, int64(2), entries[0].ID)
	require.Equal(t, int64(1), entries[1].ID)
	require.Equal(t, int64(3), entries[2].ID)
}

func TestLoadTargetsMissingFile(t *testing.T) {
	entries, err := LoadTargets(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLoadTargetsRejectsMalformed(t *testing.T) {
	path := writeFile(t, "targets.json", `{"targets": "nope"`)

	_, err := LoadTargets(path)
	require.Error(t, err)
}

func TestSaveTargetsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "targets.json")

	entries := []Entry{{ID: 1, Name: "Shadow"}, {ID: 2}}
	require.NoError(t, SaveTargets(path, entries))

	loaded, err := LoadTargets(path)
	require.NoError(t, err)
	require.Equal(t, entries, loaded)
}

func TestAddAndRemove(t *testing.T) {
	entries := []Entry{{ID: 1}, {ID: 2}}

	entries, added := Add(entries, Entry{ID: 3})
	require.True(t, added)
	require.Len(t, entries, 3)

	_, added = Add(entries, Entry{ID: 2})
	require.False(t, added)

	entries, removed := Remove(entries, 2)
	require.True(t, removed)
	require.Equal(t, []Entry{{ID: 1}, {ID: 3}}, entries)

	_, removed = Remove(entries, 99)
	require.False(t, removed)
}

func TestIgnoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.json")

	require.NoError(t, SaveIgnore(path, []int64{4, 5}))

	ids, err := LoadIgnore(path)
	require.NoError(t, err)
	require.Equal(t, []int64{4, 5}, ids)

	set := IgnoreSet(ids)
	require.True(t, set[4])
	require.False(t, set[1])
}

func TestLoadIgnoreMissingFile(t *testing.T) {
	ids, err := LoadIgnore(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Empty(t, ids)
}
