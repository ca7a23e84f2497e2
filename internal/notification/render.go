package notification

import (
	"fmt"
	"strings"

	"github.com/fieldops/visitwatch/internal/diff"
)

// Subject builds the notification subject line for a ChangeSet. Digest
// subjects announce the accumulated report; immediate subjects lead with the
// most urgent classification present.
func Subject(cs diff.ChangeSet, digest bool) string {
	total := cs.Summary.Total()
	if digest {
		return buildSubject(fmt.Sprintf("Daily Schedule Digest (%d %s)", total, plural(total, "change", "changes")))
	}
	switch {
	case cs.Summary.Removed > 0:
		return buildSubject(fmt.Sprintf("Visit Removed From Schedule (%d %s)", total, plural(total, "change", "changes")))
	case cs.Summary.Added > 0:
		return buildSubject(fmt.Sprintf("New Visit Scheduled (%d %s)", total, plural(total, "change", "changes")))
	case cs.Summary.Swapped > 0:
		return buildSubject(fmt.Sprintf("Visit Rebooked (%d %s)", total, plural(total, "change", "changes")))
	default:
		return buildSubject(fmt.Sprintf("Visit Rescheduled (%d %s)", total, plural(total, "change", "changes")))
	}
}

// RenderText renders a ChangeSet as the plain-text report body: a summary
// line followed by one line per change in detection order.
func RenderText(cs diff.ChangeSet) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Schedule changes detected: %d added, %d removed, %d rescheduled, %d rebooked.\n\n",
		cs.Summary.Added, cs.Summary.Removed, cs.Summary.Modified, cs.Summary.Swapped)

	for _, rec := range cs.Records {
		b.WriteString(describeRecord(rec))
		b.WriteByte('\n')
	}
	return b.String()
}

// describeRecord formats one change as a single report line.
func describeRecord(rec diff.ChangeRecord) string {
	store := rec.StoreName
	if store == "" {
		store = "Store " + rec.StoreNumber
	}
	where := store
	if rec.Location != "" {
		where += ", " + rec.Location
	}

	switch rec.Type {
	case diff.ChangeAdded:
		line := fmt.Sprintf("[ADDED] %s at %s, scheduled %s", rec.JobID, where, rec.ScheduledDate)
		if rec.DispenserCount > 0 {
			line += fmt.Sprintf(" (%d %s)", rec.DispenserCount, plural(rec.DispenserCount, "dispenser", "dispensers"))
		}
		return line
	case diff.ChangeRemoved:
		return fmt.Sprintf("[REMOVED] %s at %s, was scheduled %s", rec.JobID, where, rec.ScheduledDate)
	case diff.ChangeDateChanged:
		return fmt.Sprintf("[RESCHEDULED] %s at %s, moved from %s to %s", rec.JobID, where, rec.OldDate, rec.NewDate)
	case diff.ChangeSwapped:
		return fmt.Sprintf("[REBOOKED] %s replaced by %s at %s (%s to %s)",
			rec.OldJobID, rec.NewJobID, where, rec.OldDate, rec.NewDate)
	default:
		return fmt.Sprintf("[%s] %s at %s", strings.ToUpper(string(rec.Type)), rec.JobID, where)
	}
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
