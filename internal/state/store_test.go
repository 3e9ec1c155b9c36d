package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiersync/tiersync/internal/state"
	"github.com/tiersync/tiersync/pkg/model"
)

func TestLoad_MissingFileReportsUnknown(t *testing.T) {
	store := state.New(filepath.Join(t.TempDir(), "user-state.json"))

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnknown, rec.Status)
	assert.Zero(t, rec.TotalBytes)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := state.New(filepath.Join(t.TempDir(), "user-state.json"))

	want := model.StateRecord{
		Timestamp:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Operation:  model.OpSave,
		Status:     model.StatusSuccess,
		TotalBytes: 10485760,
		PID:        os.Getpid(),
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_OverwritesPrevious(t *testing.T) {
	store := state.New(filepath.Join(t.TempDir(), "user-state.json"))

	require.NoError(t, store.Save(model.StateRecord{Operation: model.OpLoad, Status: model.StatusSuccess}))
	require.NoError(t, store.Save(model.StateRecord{Operation: model.OpSave, Status: model.StatusDryRun}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, model.OpSave, got.Operation)
	assert.Equal(t, model.StatusDryRun, got.Status)
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user-state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	_, err := state.New(path).Load()
	require.Error(t, err)
}

func TestSave_CreatesStateDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "user-state.json")
	require.NoError(t, state.New(path).Save(model.StateRecord{Status: model.StatusSuccess}))

	_, err := os.Stat(path)
	require.NoError(t, err)
}
