package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/state"
)

func testSnapshot(ids ...string) diff.Snapshot {
	snap := diff.Snapshot{CapturedAt: time.Now().UTC()}
	for _, id := range ids {
		snap.Visits = append(snap.Visits, diff.Visit{
			ID:            id,
			StoreNumber:   "12",
			ScheduledDate: "2025-06-01",
		})
	}
	return snap
}

func TestSnapshotStore_RotateAndLoad(t *testing.T) {
	store := state.NewSnapshotStore(t.TempDir(), state.NewLocks())

	// First capture: current exists, previous does not.
	require.NoError(t, store.Rotate("alice", testSnapshot("W-100")))

	current, err := store.Current("alice")
	require.NoError(t, err)
	require.Len(t, current.Visits, 1)
	assert.Equal(t, "W-100", current.Visits[0].ID)

	_, err = store.Previous("alice")
	require.Error(t, err)
	assert.True(t, state.IsNotExist(err))

	// Second capture rotates current into previous.
	require.NoError(t, store.Rotate("alice", testSnapshot("W-100", "W-200")))

	previous, err := store.Previous("alice")
	require.NoError(t, err)
	require.Len(t, previous.Visits, 1)

	current, err = store.Current("alice")
	require.NoError(t, err)
	assert.Len(t, current.Visits, 2)
}

func TestSnapshotStore_UsersAreIsolated(t *testing.T) {
	store := state.NewSnapshotStore(t.TempDir(), state.NewLocks())

	require.NoError(t, store.Rotate("alice", testSnapshot("W-1")))
	require.NoError(t, store.Rotate("bob", testSnapshot("W-2")))

	a, err := store.Current("alice")
	require.NoError(t, err)
	b, err := store.Current("bob")
	require.NoError(t, err)

	assert.Equal(t, "W-1", a.Visits[0].ID)
	assert.Equal(t, "W-2", b.Visits[0].ID)
}

func TestSnapshotStore_CorruptFileIsReadError(t *testing.T) {
	dir := t.TempDir()
	store := state.NewSnapshotStore(dir, state.NewLocks())

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "alice"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice", "current.json"), []byte("{not json"), 0600))

	_, err := store.Current("alice")
	require.Error(t, err)
	assert.False(t, state.IsNotExist(err))

	var readErr *state.ReadError
	require.ErrorAs(t, err, &readErr)
}

func TestSnapshotStore_Delete(t *testing.T) {
	store := state.NewSnapshotStore(t.TempDir(), state.NewLocks())

	require.NoError(t, store.Rotate("alice", testSnapshot("W-1")))
	require.NoError(t, store.Delete("alice"))

	_, err := store.Current("alice")
	assert.True(t, state.IsNotExist(err))
}
