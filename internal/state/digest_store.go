package state

import (
	"os"
	"path/filepath"

	"github.com/fieldops/visitwatch/internal/diff"
)

// DigestStore persists each user's pending digest queue as an ordered JSON
// array of ChangeSets at <dir>/<userID>.json. The queue is created lazily on
// first append and deleted, not merely emptied, on a successful flush.
type DigestStore struct {
	dir   string
	locks *Locks
}

// NewDigestStore creates a DigestStore rooted at dir.
func NewDigestStore(dir string, locks *Locks) *DigestStore {
	return &DigestStore{dir: dir, locks: locks}
}

func (s *DigestStore) path(userID string) string {
	return filepath.Join(s.dir, userID+".json")
}

// Append adds a ChangeSet to the user's queue and persists it durably before
// returning. The read-modify-write runs under the user's lock and the
// replacement is atomic, so a crash mid-append leaves the prior queue intact.
func (s *DigestStore) Append(userID string, cs diff.ChangeSet) error {
	mu := s.locks.User(userID)
	mu.Lock()
	defer mu.Unlock()

	queue, err := s.load(userID)
	if err != nil {
		return err
	}
	queue = append(queue, cs)
	return writeFileAtomic(s.path(userID), queue)
}

// Load returns the user's queued ChangeSets in accumulation order. A user
// with no queue yields an empty slice.
func (s *DigestStore) Load(userID string) ([]diff.ChangeSet, error) {
	mu := s.locks.User(userID)
	mu.Lock()
	defer mu.Unlock()
	return s.load(userID)
}

func (s *DigestStore) load(userID string) ([]diff.ChangeSet, error) {
	var queue []diff.ChangeSet
	err := readFileJSON(s.path(userID), &queue)
	if err != nil {
		if IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return queue, nil
}

// Clear deletes the persisted queue. Callers invoke this only after the
// combined digest has been dispatched successfully; a failed dispatch leaves
// the queue byte-for-byte intact for the next opportunity.
func (s *DigestStore) Clear(userID string) error {
	mu := s.locks.User(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := os.Remove(s.path(userID)); err != nil && !os.IsNotExist(err) {
		return &WriteError{Path: s.path(userID), Err: err}
	}
	return nil
}
