package state

import (
	"os"
	"path/filepath"

	"github.com/fieldops/visitwatch/internal/diff"
)

// SnapshotStore persists the current and previous schedule capture for each
// user as <dir>/<userID>/current.json and <dir>/<userID>/previous.json.
// The pair is replaced wholesale on each rotation.
type SnapshotStore struct {
	dir   string
	locks *Locks
}

// NewSnapshotStore creates a SnapshotStore rooted at dir, serializing
// rotation per user through locks.
func NewSnapshotStore(dir string, locks *Locks) *SnapshotStore {
	return &SnapshotStore{dir: dir, locks: locks}
}

func (s *SnapshotStore) currentPath(userID string) string {
	return filepath.Join(s.dir, userID, "current.json")
}

func (s *SnapshotStore) previousPath(userID string) string {
	return filepath.Join(s.dir, userID, "previous.json")
}

// Current returns the user's latest capture. A missing file is reported via
// a ReadError satisfying IsNotExist.
func (s *SnapshotStore) Current(userID string) (diff.Snapshot, error) {
	var snap diff.Snapshot
	if err := readFileJSON(s.currentPath(userID), &snap); err != nil {
		return diff.Snapshot{}, err
	}
	return snap, nil
}

// Previous returns the capture before the latest one.
func (s *SnapshotStore) Previous(userID string) (diff.Snapshot, error) {
	var snap diff.Snapshot
	if err := readFileJSON(s.previousPath(userID), &snap); err != nil {
		return diff.Snapshot{}, err
	}
	return snap, nil
}

// Rotate installs a freshly captured snapshot: the existing current capture
// becomes previous and snap becomes current. Both writes are atomic and the
// whole rotation holds the user's lock, so a detection cycle never sees a
// half-rotated pair. On the first capture there is no current file and the
// previous slot is left absent.
func (s *SnapshotStore) Rotate(userID string, snap diff.Snapshot) error {
	mu := s.locks.User(userID)
	mu.Lock()
	defer mu.Unlock()

	var current diff.Snapshot
	err := readFileJSON(s.currentPath(userID), &current)
	switch {
	case err == nil:
		if werr := writeFileAtomic(s.previousPath(userID), current); werr != nil {
			return werr
		}
	case IsNotExist(err):
		// First capture for this user.
	default:
		return err
	}

	return writeFileAtomic(s.currentPath(userID), snap)
}

// Delete removes both snapshot files for a user. Used when a monitored
// account is decommissioned.
func (s *SnapshotStore) Delete(userID string) error {
	if err := os.RemoveAll(filepath.Join(s.dir, userID)); err != nil {
		return &WriteError{Path: filepath.Join(s.dir, userID), Err: err}
	}
	return nil
}
