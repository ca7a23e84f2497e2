package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/state"
)

func writeUser(t *testing.T, dir, userID, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, userID+".json"), []byte(content), 0600))
}

func TestUserStore_GetResolvesSettings(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, "alice", `{
		"email": "alice@example.com",
		"pushoverKey": "u-alice",
		"notificationSettings": {
			"email": {"frequency": "daily", "deliveryTime": "07:30"}
		}
	}`)

	store := state.NewUserStore(dir)
	rec, err := store.Get("alice")
	require.NoError(t, err)

	assert.Equal(t, "alice", rec.ID)
	assert.Equal(t, "alice@example.com", rec.Email)

	settings := rec.ResolvedSettings()
	assert.Equal(t, config.FrequencyDaily, settings.Email.Frequency)
	assert.Equal(t, "07:30", settings.Email.DeliveryTime)
	// Absent fields resolve to defaults.
	assert.True(t, settings.Email.Enabled)
	assert.True(t, settings.Pushover.Enabled)
}

func TestUserStore_MissingUser(t *testing.T) {
	store := state.NewUserStore(t.TempDir())
	_, err := store.Get("ghost")
	require.Error(t, err)
	assert.True(t, state.IsNotExist(err))
}

func TestUserStore_ListSortedAndTolerant(t *testing.T) {
	dir := t.TempDir()
	writeUser(t, dir, "bob", `{"email": "bob@example.com"}`)
	writeUser(t, dir, "alice", `{"email": "alice@example.com"}`)
	writeUser(t, dir, "corrupt", `{nope`)

	store := state.NewUserStore(dir)
	users, err := store.List()
	require.NoError(t, err)

	// The corrupt record is skipped, the rest come back sorted.
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].ID)
	assert.Equal(t, "bob", users[1].ID)
}

func TestUserStore_ListEmptyDir(t *testing.T) {
	store := state.NewUserStore(filepath.Join(t.TempDir(), "does-not-exist"))
	users, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, users)
}
