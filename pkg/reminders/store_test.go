package reminders

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "reminders.json"))
	got, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStore_SaveCreatesDirAndRestrictsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reminders.json")
	store := NewFileStore(path)

	due := time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save([]Reminder{{ID: "abcd1234", Message: "water plants", DueAt: due}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "water plants", got[0].Message)
	assert.True(t, got[0].DueAt.Equal(due))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_SaveNilWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestFileStore_LoadsNaiveTimestampsAsLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	raw := `[{"id":"a1b2c3d4","message":"stand up","due_at":"2026-05-11T09:30:00","created_at":"2026-05-10T14:00:00.123456"}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	got, err := NewFileStore(path).Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].DueAt.Equal(time.Date(2026, 5, 11, 9, 30, 0, 0, time.Local)))
	assert.Equal(t, "a1b2c3d4", got[0].ID)
}

func TestFileStore_CorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestScheduler_CorruptStoreStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := New(NewFileStore(path), Options{})
	assert.Empty(t, s.List())
}
