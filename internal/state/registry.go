package state

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/fieldops/visitwatch/internal/diff"
)

// registryFile mirrors the externally maintained completed-job registry:
// one JSON file per user containing the IDs of jobs that were finished and
// closed out. Read-only from this engine's perspective.
type registryFile struct {
	CompletedJobs []string `json:"completedJobs"`
}

// CompletedJobOracle answers "is job X completed for user U?" from the
// registry directory, caching each user's ID set. Because the registry is
// maintained by an external process, the oracle watches the directory with
// fsnotify and drops a user's cached set when their file changes on disk.
type CompletedJobOracle struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]map[string]struct{} // userID → canonical job IDs
}

// NewCompletedJobOracle creates an oracle reading <dir>/<userID>.json files.
func NewCompletedJobOracle(dir string, logger *slog.Logger) *CompletedJobOracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompletedJobOracle{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]map[string]struct{}),
	}
}

// IsCompleted reports whether the user's registry lists jobID. A missing or
// corrupt registry file is the safe default: nothing is completed, so a
// disappeared visit is reported as removed rather than silently dropped.
func (o *CompletedJobOracle) IsCompleted(userID, jobID string) bool {
	set := o.completedSet(userID)
	_, ok := set[diff.CanonicalJobID(jobID)]
	return ok
}

// Func returns the single-user oracle function the change detector consumes.
func (o *CompletedJobOracle) Func(userID string) func(jobID string) bool {
	return func(jobID string) bool { return o.IsCompleted(userID, jobID) }
}

func (o *CompletedJobOracle) completedSet(userID string) map[string]struct{} {
	o.mu.Lock()
	if set, ok := o.cache[userID]; ok {
		o.mu.Unlock()
		return set
	}
	o.mu.Unlock()

	var reg registryFile
	if err := readFileJSON(filepath.Join(o.dir, userID+".json"), &reg); err != nil {
		if !IsNotExist(err) {
			o.logger.Warn("completed-job registry unreadable, treating as empty",
				"user_id", userID, "error", err)
		}
		reg.CompletedJobs = nil
	}

	set := make(map[string]struct{}, len(reg.CompletedJobs))
	for _, id := range reg.CompletedJobs {
		if canonical := diff.CanonicalJobID(id); canonical != "" {
			set[canonical] = struct{}{}
		}
	}

	o.mu.Lock()
	o.cache[userID] = set
	o.mu.Unlock()
	return set
}

// Watch starts invalidating cached registry sets when the external
// maintainer rewrites a user's file. Blocks until ctx is done or the watcher
// closes. Callers typically run it in a goroutine; running without Watch is
// valid but serves cached sets until Invalidate is called.
func (o *CompletedJobOracle) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			o.logger.Warn("closing registry watcher", "error", cerr)
		}
	}()

	if err := watcher.Add(o.dir); err != nil {
		return err
	}
	o.logger.Info("watching completed-job registry", "dir", o.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			userID := strings.TrimSuffix(filepath.Base(event.Name), ".json")
			o.Invalidate(userID)
			o.logger.Debug("registry changed, cache invalidated",
				"user_id", userID, "op", event.Op.String())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("registry watcher error", "error", err)
		}
	}
}

// Invalidate drops the cached completed set for one user.
func (o *CompletedJobOracle) Invalidate(userID string) {
	o.mu.Lock()
	delete(o.cache, userID)
	o.mu.Unlock()
}
