package diff

import (
	"log/slog"
	"time"
)

// DefaultSwapWindowDays is the date proximity within which an added/removed
// pair at the same store is treated as a rebooking rather than two separate
// critical changes.
const DefaultSwapWindowDays = 7

// Detector compares two snapshots of a user's schedule. It performs no I/O
// and never fails: malformed visits are excluded from both sides with a
// diagnostic instead of aborting the comparison.
type Detector struct {
	logger         *slog.Logger
	swapWindowDays int
}

// Option configures a Detector.
type Option func(*Detector)

// WithSwapWindow sets the rebooking proximity window in days. Zero or
// negative disables swap collapsing entirely.
func WithSwapWindow(days int) Option {
	return func(d *Detector) { d.swapWindowDays = days }
}

// NewDetector creates a Detector. A nil logger falls back to slog.Default.
func NewDetector(logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		logger:         logger,
		swapWindowDays: DefaultSwapWindowDays,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect classifies the differences between previous and current.
// isCompleted is consulted for every visit that disappeared: a completed job
// is dropped silently rather than reported as removed, distinguishing
// "finished and closed out" from "genuinely pulled from the schedule".
func (d *Detector) Detect(previous, current Snapshot, isCompleted func(jobID string) bool) ChangeSet {
	prevByID, prevOrder := d.index(previous, "previous")
	currByID, currOrder := d.index(current, "current")

	var records []ChangeRecord

	// Removals, in previous-snapshot order.
	for _, id := range prevOrder {
		if _, ok := currByID[id]; ok {
			continue
		}
		if isCompleted != nil && isCompleted(id) {
			continue
		}
		v := prevByID[id]
		records = append(records, ChangeRecord{
			Type:           ChangeRemoved,
			Severity:       SeverityCritical,
			JobID:          v.ID,
			StoreNumber:    v.StoreNumber,
			StoreName:      v.StoreName,
			Location:       v.Location,
			DispenserCount: v.DispenserCount,
			ScheduledDate:  v.ScheduledDate,
		})
	}

	// Additions and reschedules, in current-snapshot order.
	for _, id := range currOrder {
		v := currByID[id]
		prev, existed := prevByID[id]
		if !existed {
			records = append(records, ChangeRecord{
				Type:           ChangeAdded,
				Severity:       SeverityCritical,
				JobID:          v.ID,
				StoreNumber:    v.StoreNumber,
				StoreName:      v.StoreName,
				Location:       v.Location,
				DispenserCount: v.DispenserCount,
				ScheduledDate:  v.ScheduledDate,
			})
			continue
		}
		if !sameDate(prev.ScheduledDate, v.ScheduledDate) {
			records = append(records, ChangeRecord{
				Type:           ChangeDateChanged,
				Severity:       SeverityHigh,
				JobID:          v.ID,
				StoreNumber:    v.StoreNumber,
				StoreName:      v.StoreName,
				Location:       v.Location,
				DispenserCount: v.DispenserCount,
				OldDate:        prev.ScheduledDate,
				NewDate:        v.ScheduledDate,
			})
		}
		// Other field drift (store name, dispenser count) is not reportable:
		// the schedule date is the operationally significant change.
	}

	if d.swapWindowDays > 0 {
		records = d.collapseSwaps(records)
	}

	return NewChangeSet(records)
}

// index builds an identity-keyed lookup for one snapshot, preserving capture
// order. Visits without a usable identity are excluded with a diagnostic.
func (d *Detector) index(snap Snapshot, side string) (map[string]Visit, []string) {
	byID := make(map[string]Visit, len(snap.Visits))
	order := make([]string, 0, len(snap.Visits))
	for _, v := range snap.Visits {
		id := CanonicalJobID(v.ID)
		if id == "" {
			d.logger.Warn("excluding visit without usable identity",
				"side", side, "store_number", v.StoreNumber, "scheduled_date", v.ScheduledDate)
			continue
		}
		if _, dup := byID[id]; dup {
			d.logger.Warn("duplicate job identity in snapshot, keeping first",
				"side", side, "job_id", id)
			continue
		}
		byID[id] = v
		order = append(order, id)
	}
	return byID, order
}

// collapseSwaps replaces a removed/added pair at the same store with
// materially overlapping dates by one swapped record, so a visit rebooked
// under a new job ID reads as a single high-severity change instead of two
// critical ones. Each record participates in at most one pairing.
func (d *Detector) collapseSwaps(records []ChangeRecord) []ChangeRecord {
	window := time.Duration(d.swapWindowDays) * 24 * time.Hour
	consumed := make(map[int]bool)

	out := make([]ChangeRecord, 0, len(records))
	for i, rec := range records {
		if consumed[i] {
			continue
		}
		if rec.Type != ChangeRemoved {
			out = append(out, rec)
			continue
		}
		j := d.findSwapPartner(records, consumed, rec, window)
		if j < 0 {
			out = append(out, rec)
			continue
		}
		added := records[j]
		consumed[j] = true
		out = append(out, ChangeRecord{
			Type:           ChangeSwapped,
			Severity:       SeverityHigh,
			JobID:          added.JobID,
			StoreNumber:    added.StoreNumber,
			StoreName:      added.StoreName,
			Location:       added.Location,
			DispenserCount: added.DispenserCount,
			OldJobID:       rec.JobID,
			NewJobID:       added.JobID,
			OldDate:        rec.ScheduledDate,
			NewDate:        added.ScheduledDate,
		})
	}
	return out
}

// findSwapPartner locates the first unconsumed added record sharing the
// removed record's store number whose date falls within the swap window.
func (d *Detector) findSwapPartner(records []ChangeRecord, consumed map[int]bool, removed ChangeRecord, window time.Duration) int {
	remDate, ok := parseDate(removed.ScheduledDate)
	if !ok || removed.StoreNumber == "" {
		return -1
	}
	for j, cand := range records {
		if consumed[j] || cand.Type != ChangeAdded || cand.StoreNumber != removed.StoreNumber {
			continue
		}
		addDate, ok := parseDate(cand.ScheduledDate)
		if !ok {
			continue
		}
		gap := addDate.Sub(remDate)
		if gap < 0 {
			gap = -gap
		}
		if gap <= window {
			return j
		}
	}
	return -1
}
