package state_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/assert"

	"github.com/fieldops/visitwatch/internal/state"
)

func writeRegistry(t *testing.T, dir, userID, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, userID+".json"), []byte(content), 0600))
}

func TestOracle_CompletedJobs(t *testing.T) {
	dir := t.TempDir()
	writeRegistry(t, dir, "alice", `{"completedJobs": ["W-100", "200"]}`)

	oracle := state.NewCompletedJobOracle(dir, nil)

	assert.True(t, oracle.IsCompleted("alice", "W-100"))
	// Matching is identity-normalized in both directions.
	assert.True(t, oracle.IsCompleted("alice", "100"))
	assert.True(t, oracle.IsCompleted("alice", "W-200"))
	assert.False(t, oracle.IsCompleted("alice", "W-300"))
}

func TestOracle_MissingRegistryMeansNothingCompleted(t *testing.T) {
	oracle := state.NewCompletedJobOracle(t.TempDir(), nil)
	assert.False(t, oracle.IsCompleted("ghost", "W-1"))
}

func TestOracle_CorruptRegistryMeansNothingCompleted(t *testing.T) {
	dir := t.TempDir()
	writeRegistry(t, dir, "alice", `{broken`)

	oracle := state.NewCompletedJobOracle(dir, nil)
	assert.False(t, oracle.IsCompleted("alice", "W-1"))
}

func TestOracle_InvalidateRereadsFile(t *testing.T) {
	dir := t.TempDir()
	writeRegistry(t, dir, "alice", `{"completedJobs": []}`)

	oracle := state.NewCompletedJobOracle(dir, nil)
	assert.False(t, oracle.IsCompleted("alice", "W-100"))

	// External closeout process marks the job completed.
	writeRegistry(t, dir, "alice", `{"completedJobs": ["W-100"]}`)

	// Cached set still answers false until invalidated.
	assert.False(t, oracle.IsCompleted("alice", "W-100"))
	oracle.Invalidate("alice")
	assert.True(t, oracle.IsCompleted("alice", "W-100"))
}

func TestOracle_FuncBindsUser(t *testing.T) {
	dir := t.TempDir()
	writeRegistry(t, dir, "alice", `{"completedJobs": ["W-100"]}`)
	writeRegistry(t, dir, "bob", `{"completedJobs": []}`)

	oracle := state.NewCompletedJobOracle(dir, nil)

	aliceDone := oracle.Func("alice")
	bobDone := oracle.Func("bob")

	assert.True(t, aliceDone("W-100"))
	assert.False(t, bobDone("W-100"))
}
