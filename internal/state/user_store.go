package state

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fieldops/visitwatch/internal/config"
)

// UserRecord is the monitored-account record maintained by the external user
// management tooling. This engine reads identities, delivery addresses, and
// the embedded notification settings; it never writes user records.
type UserRecord struct {
	ID          string                          `json:"id"`
	Email       string                          `json:"email"`       // comma-separated recipients
	PushoverKey string                          `json:"pushoverKey"` // recipient key for the push channel
	Settings    *config.RawNotificationSettings `json:"notificationSettings,omitempty"`
}

// ResolvedSettings returns the record's notification settings with the
// default table applied.
func (u UserRecord) ResolvedSettings() config.NotificationSettings {
	return config.ResolveNotificationSettings(u.Settings)
}

// UserStore reads user records from <dir>/<userID>.json.
type UserStore struct {
	dir string
}

// NewUserStore creates a UserStore rooted at dir.
func NewUserStore(dir string) *UserStore {
	return &UserStore{dir: dir}
}

// Get loads one user record. A missing record is reported via a ReadError
// satisfying IsNotExist; callers fall back to default settings.
func (s *UserStore) Get(userID string) (UserRecord, error) {
	var rec UserRecord
	if err := readFileJSON(filepath.Join(s.dir, userID+".json"), &rec); err != nil {
		return UserRecord{}, err
	}
	if rec.ID == "" {
		rec.ID = userID
	}
	return rec, nil
}

// List returns every user record in the store, sorted by ID so scheduler
// ticks process users in a stable order.
func (s *UserStore) List() ([]UserRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &ReadError{Path: s.dir, Err: err}
	}

	var users []UserRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		rec, err := s.Get(id)
		if err != nil {
			// One corrupt record must not hide the rest.
			continue
		}
		users = append(users, rec)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}
