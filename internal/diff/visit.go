// Package diff implements snapshot comparison for scheduled work visits.
// It classifies the differences between two captures of a user's schedule
// into a ChangeSet, suppressing removals that correspond to completed jobs.
package diff

import (
	"strings"
	"time"
)

// Visit is one scheduled work order captured from the schedule. Visits are
// immutable once captured.
type Visit struct {
	ID             string         `json:"id"`
	StoreNumber    string         `json:"storeNumber"`
	StoreName      string         `json:"storeName"`
	Location       string         `json:"location"`
	ScheduledDate  string         `json:"scheduledDate"` // YYYY-MM-DD
	DispenserCount int            `json:"dispenserCount"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Snapshot is the full set of visits captured for one user at one instant.
type Snapshot struct {
	CapturedAt time.Time `json:"capturedAt"`
	Visits     []Visit   `json:"visits"`
}

// CanonicalJobID normalizes a raw job identifier for cross-snapshot matching:
// surrounding whitespace is trimmed, the ID is uppercased, and a single
// leading "W-" prefix is stripped so that "W-100", "w-100" and "100" all
// resolve to the same identity. Returns "" for IDs with no usable content.
func CanonicalJobID(raw string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	id = strings.TrimPrefix(id, "W-")
	return id
}

// dateLayout is the canonical scheduled-date format.
const dateLayout = "2006-01-02"

// parseDate parses a scheduled date, accepting the canonical YYYY-MM-DD form
// and full RFC 3339 timestamps (some captures carry the time component).
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Truncate(24 * time.Hour), true
	}
	return time.Time{}, false
}

// sameDate reports whether two scheduled dates refer to the same day.
// Unparseable dates fall back to trimmed string comparison.
func sameDate(a, b string) bool {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	if okA && okB {
		return ta.Equal(tb)
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
