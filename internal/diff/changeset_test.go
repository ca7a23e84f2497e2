package diff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/visitwatch/internal/diff"
)

func record(typ diff.ChangeType, jobID string) diff.ChangeRecord {
	sev := diff.SeverityCritical
	if typ == diff.ChangeDateChanged || typ == diff.ChangeSwapped {
		sev = diff.SeverityHigh
	}
	return diff.ChangeRecord{Type: typ, Severity: sev, JobID: jobID}
}

func TestNewChangeSet_SummaryMatchesRecords(t *testing.T) {
	cs := diff.NewChangeSet([]diff.ChangeRecord{
		record(diff.ChangeAdded, "W-1"),
		record(diff.ChangeAdded, "W-2"),
		record(diff.ChangeRemoved, "W-3"),
		record(diff.ChangeDateChanged, "W-4"),
		record(diff.ChangeSwapped, "W-5"),
	})

	assert.Equal(t, diff.Summary{Added: 2, Removed: 1, Modified: 1, Swapped: 1}, cs.Summary)
	assert.Equal(t, len(cs.Records), cs.Summary.Total())
	assert.NotEmpty(t, cs.ID)
	assert.False(t, cs.GeneratedAt.IsZero())
}

func TestNewChangeSet_Empty(t *testing.T) {
	cs := diff.NewChangeSet(nil)
	assert.True(t, cs.Empty())
	assert.Equal(t, 0, cs.Summary.Total())
}

func TestCombine_PreservesOrderAndSumsSummaries(t *testing.T) {
	a := diff.NewChangeSet([]diff.ChangeRecord{
		record(diff.ChangeAdded, "W-1"),
		record(diff.ChangeRemoved, "W-2"),
	})
	a.GeneratedAt = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	b := diff.NewChangeSet([]diff.ChangeRecord{
		record(diff.ChangeDateChanged, "W-3"),
	})
	b.GeneratedAt = time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	combined := diff.Combine([]diff.ChangeSet{a, b})

	require.Len(t, combined.Records, 3)
	assert.Equal(t, "W-1", combined.Records[0].JobID)
	assert.Equal(t, "W-2", combined.Records[1].JobID)
	assert.Equal(t, "W-3", combined.Records[2].JobID)
	assert.Equal(t, diff.Summary{Added: 1, Removed: 1, Modified: 1}, combined.Summary)
	assert.Equal(t, b.GeneratedAt, combined.GeneratedAt)
}

func TestCombine_Associativity(t *testing.T) {
	a := diff.NewChangeSet([]diff.ChangeRecord{record(diff.ChangeAdded, "W-1")})
	b := diff.NewChangeSet([]diff.ChangeRecord{record(diff.ChangeRemoved, "W-2")})
	c := diff.NewChangeSet([]diff.ChangeRecord{record(diff.ChangeSwapped, "W-3")})

	all := diff.Combine([]diff.ChangeSet{a, b, c})
	stepwise := diff.Combine([]diff.ChangeSet{diff.Combine([]diff.ChangeSet{a, b}), c})

	assert.Equal(t, all.Records, stepwise.Records)
	assert.Equal(t, all.Summary, stepwise.Summary)
}

func TestCombine_Empty(t *testing.T) {
	combined := diff.Combine(nil)
	assert.True(t, combined.Empty())
}
