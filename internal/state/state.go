// Package state owns the per-user JSON files this engine reads and writes:
// snapshot pairs, digest queues, the externally maintained completed-job
// registry, and user records. Every write goes through a temp-file plus
// atomic-rename discipline so a reader never observes a partially written
// file, and every mutation of a user's state happens under that user's lock.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
)

// ReadError wraps a failure to read persisted state. Callers are expected to
// degrade to documented defaults rather than abort the cycle.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading state file %q: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a failure to persist state. The previous on-disk content
// remains authoritative when this is returned.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing state file %q: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// writeFileAtomic marshals v to JSON and replaces path in one rename, so
// concurrent readers see either the old content or the new, never a partial
// write. The temp file lives in the target directory to keep the rename on
// one filesystem.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// readFileJSON unmarshals path into v. A missing file is reported via
// os.IsNotExist on the wrapped error.
func readFileJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // paths derive from the configured data dir
	if err != nil {
		return &ReadError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ReadError{Path: path, Err: err}
	}
	return nil
}

// IsNotExist reports whether err stems from a missing state file.
func IsNotExist(err error) bool {
	var re *ReadError
	if errors.As(err, &re) {
		return os.IsNotExist(re.Err)
	}
	return os.IsNotExist(err)
}

// Locks serializes state mutation per user. Operations for distinct users
// may run fully in parallel; two in-flight operations for the same user may
// not touch its snapshot pair or digest queue concurrently.
type Locks struct {
	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewLocks creates an empty per-user lock table.
func NewLocks() *Locks {
	return &Locks{users: make(map[string]*sync.Mutex)}
}

// User returns the mutex guarding userID's state, creating it on first use.
func (l *Locks) User(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	return m
}
