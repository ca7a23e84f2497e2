package diff

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType identifies the kind of difference a ChangeRecord describes.
type ChangeType string

// The closed set of change classifications.
const (
	ChangeAdded       ChangeType = "added"
	ChangeRemoved     ChangeType = "removed"
	ChangeDateChanged ChangeType = "date_changed"
	ChangeSwapped     ChangeType = "swapped"
)

// Severity ranks how urgently a change should reach the user.
type Severity string

// Added and removed visits are critical; reschedules and rebookings are high.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
)

// ChangeRecord is one classified difference between two snapshots. Which
// optional fields are populated depends on Type: date_changed carries OldDate
// and NewDate, swapped carries OldJobID/NewJobID and both dates.
type ChangeRecord struct {
	Type           ChangeType `json:"type"`
	Severity       Severity   `json:"severity"`
	JobID          string     `json:"jobId"`
	StoreNumber    string     `json:"storeNumber"`
	StoreName      string     `json:"storeName"`
	Location       string     `json:"location"`
	DispenserCount int        `json:"dispenserCount"`
	ScheduledDate  string     `json:"scheduledDate,omitempty"`
	OldDate        string     `json:"oldDate,omitempty"`
	NewDate        string     `json:"newDate,omitempty"`
	OldJobID       string     `json:"oldJobId,omitempty"`
	NewJobID       string     `json:"newJobId,omitempty"`
}

// Summary holds per-type record counts. Date changes are counted under
// Modified, matching the persisted digest format.
type Summary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Swapped  int `json:"swapped"`
}

// Total returns the number of records the summary accounts for.
func (s Summary) Total() int {
	return s.Added + s.Removed + s.Modified + s.Swapped
}

// ChangeSet is the ordered result of one detection cycle: records in
// detection order plus per-type summary counts. A ChangeSet is never mutated
// after creation; it is either dispatched immediately or appended to exactly
// one digest queue.
type ChangeSet struct {
	ID          string         `json:"id"`
	GeneratedAt time.Time      `json:"timestamp"`
	Records     []ChangeRecord `json:"allChanges"`
	Summary     Summary        `json:"summary"`
}

// NewChangeSet assembles a ChangeSet from records, computing the summary so
// the counts always match the record list.
func NewChangeSet(records []ChangeRecord) ChangeSet {
	cs := ChangeSet{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Records:     records,
	}
	for _, r := range records {
		switch r.Type {
		case ChangeAdded:
			cs.Summary.Added++
		case ChangeRemoved:
			cs.Summary.Removed++
		case ChangeDateChanged:
			cs.Summary.Modified++
		case ChangeSwapped:
			cs.Summary.Swapped++
		}
	}
	return cs
}

// Empty reports whether the ChangeSet carries no records. Empty ChangeSets
// are a no-op for callers, never an error.
func (cs ChangeSet) Empty() bool {
	return len(cs.Records) == 0
}

// Combine merges queued ChangeSets into one: records are concatenated
// preserving relative order and summary counts are summed. The combined
// set's timestamp is the generation time of the newest input, so a digest
// reports when its latest change was detected.
func Combine(sets []ChangeSet) ChangeSet {
	combined := ChangeSet{ID: uuid.NewString()}
	for _, cs := range sets {
		combined.Records = append(combined.Records, cs.Records...)
		combined.Summary.Added += cs.Summary.Added
		combined.Summary.Removed += cs.Summary.Removed
		combined.Summary.Modified += cs.Summary.Modified
		combined.Summary.Swapped += cs.Summary.Swapped
		if cs.GeneratedAt.After(combined.GeneratedAt) {
			combined.GeneratedAt = cs.GeneratedAt
		}
	}
	return combined
}
