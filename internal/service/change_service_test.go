package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/notification"
	"github.com/fieldops/visitwatch/internal/service"
	"github.com/fieldops/visitwatch/internal/service/mocks"
	"github.com/fieldops/visitwatch/internal/state"
)

type changeServiceFixture struct {
	svc       service.ChangeService
	gateway   *mocks.MockGateway
	snapshots *state.SnapshotStore
	digests   *state.DigestStore
	usersDir  string
	regDir    string
}

func newChangeServiceFixture(t *testing.T) *changeServiceFixture {
	t.Helper()
	root := t.TempDir()
	usersDir := filepath.Join(root, "users")
	regDir := filepath.Join(root, "registry")
	require.NoError(t, os.MkdirAll(usersDir, 0o750))
	require.NoError(t, os.MkdirAll(regDir, 0o750))

	locks := state.NewLocks()
	snapshots := state.NewSnapshotStore(filepath.Join(root, "snapshots"), locks)
	digests := state.NewDigestStore(filepath.Join(root, "digests"), locks)
	users := state.NewUserStore(usersDir)
	oracle := state.NewCompletedJobOracle(regDir, nil)
	gateway := &mocks.MockGateway{}

	svc := service.NewChangeService(
		snapshots, digests, users, oracle,
		diff.NewDetector(nil), gateway, nil, nil,
	)
	return &changeServiceFixture{
		svc:       svc,
		gateway:   gateway,
		snapshots: snapshots,
		digests:   digests,
		usersDir:  usersDir,
		regDir:    regDir,
	}
}

func (f *changeServiceFixture) writeUser(t *testing.T, rec state.UserRecord) {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.usersDir, rec.ID+".json"), data, 0o600))
}

func (f *changeServiceFixture) writeRegistry(t *testing.T, userID string, completed ...string) {
	t.Helper()
	data, err := json.Marshal(map[string][]string{"completedJobs": completed})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(f.regDir, userID+".json"), data, 0o600))
}

func snapshotOf(visits ...diff.Visit) diff.Snapshot {
	return diff.Snapshot{CapturedAt: time.Now().UTC(), Visits: visits}
}

func visit(id, store, date string) diff.Visit {
	return diff.Visit{ID: id, StoreNumber: store, StoreName: "Store " + store, ScheduledDate: date}
}

func dailySettings() *config.RawNotificationSettings {
	raw := &config.RawNotificationSettings{}
	raw.Email.Frequency = string(config.FrequencyDaily)
	return raw
}

func TestChangeService_DetectChanges(t *testing.T) {
	ctx := context.Background()

	t.Run("reports differences between the snapshot pair", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		require.NoError(t, f.snapshots.Rotate("alice", snapshotOf(
			visit("W-1", "100", "2026-09-01"),
			visit("W-2", "200", "2026-09-02"),
		)))
		require.NoError(t, f.snapshots.Rotate("alice", snapshotOf(
			visit("W-1", "100", "2026-09-03"),
			visit("W-3", "300", "2026-09-04"),
		)))

		cs, err := f.svc.DetectChanges(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, cs.Summary.Added)
		assert.Equal(t, 1, cs.Summary.Removed)
		assert.Equal(t, 1, cs.Summary.Modified)
	})

	t.Run("first capture is a baseline with no changes", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		require.NoError(t, f.snapshots.Rotate("alice", snapshotOf(
			visit("W-1", "100", "2026-09-01"),
		)))

		cs, err := f.svc.DetectChanges(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, cs.Empty())
	})

	t.Run("unknown user yields not found", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		_, err := f.svc.DetectChanges(ctx, "ghost")
		assert.True(t, service.IsNotFound(err))
	})

	t.Run("completed jobs never surface as removals", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		f.writeRegistry(t, "alice", "w-2")
		require.NoError(t, f.snapshots.Rotate("alice", snapshotOf(
			visit("W-1", "100", "2026-09-01"),
			visit("W-2", "200", "2026-09-02"),
		)))
		require.NoError(t, f.snapshots.Rotate("alice", snapshotOf(
			visit("W-1", "100", "2026-09-01"),
		)))

		cs, err := f.svc.DetectChanges(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, cs.Empty())
	})

	t.Run("re-detection over an unrotated pair is stable", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		require.NoError(t, f.snapshots.Rotate("alice", snapshotOf(
			visit("W-1", "100", "2026-09-01"),
		)))
		require.NoError(t, f.snapshots.Rotate("alice", snapshotOf()))

		first, err := f.svc.DetectChanges(ctx, "alice")
		require.NoError(t, err)
		second, err := f.svc.DetectChanges(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, first.Summary, second.Summary)
		assert.Equal(t, first.Records, second.Records)
	})
}

func TestChangeService_IngestSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation then detection in one call", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		_, err := f.svc.IngestSnapshot(ctx, "alice", snapshotOf(
			visit("W-1", "100", "2026-09-01"),
		))
		require.NoError(t, err)

		cs, err := f.svc.IngestSnapshot(ctx, "alice", snapshotOf(
			visit("W-1", "100", "2026-09-01"),
			visit("W-2", "200", "2026-09-02"),
		))
		require.NoError(t, err)
		assert.Equal(t, 1, cs.Summary.Added)

		current, err := f.snapshots.Current("alice")
		require.NoError(t, err)
		assert.Len(t, current.Visits, 2)
	})

	t.Run("capture timestamp defaults to now", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		_, err := f.svc.IngestSnapshot(ctx, "alice", diff.Snapshot{
			Visits: []diff.Visit{visit("W-1", "100", "2026-09-01")},
		})
		require.NoError(t, err)

		current, err := f.snapshots.Current("alice")
		require.NoError(t, err)
		assert.False(t, current.CapturedAt.IsZero())
	})
}

func TestChangeService_RouteChangeSet(t *testing.T) {
	ctx := context.Background()
	cs := diff.NewChangeSet([]diff.ChangeRecord{{
		Type: diff.ChangeAdded, JobID: "1", StoreNumber: "100",
		StoreName: "Store 100", ScheduledDate: "2026-09-01", Severity: diff.SeverityCritical,
	}})

	t.Run("immediate user dispatches now", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		f.writeUser(t, state.UserRecord{ID: "alice", Email: "alice@example.com"})
		f.gateway.On("Send", mock.Anything, mock.MatchedBy(func(d notification.Dispatch) bool {
			return d.UserID == "alice" && !d.Digest && !d.PushOnly && d.EmailTo == "alice@example.com"
		})).Return(notification.Result{Attempted: []notification.ChannelResult{{Channel: "email"}}})

		decision, err := f.svc.RouteChangeSet(ctx, "alice", cs)
		require.NoError(t, err)
		assert.Equal(t, service.RouteDispatched, decision)

		queued, err := f.digests.Load("alice")
		require.NoError(t, err)
		assert.Empty(t, queued)
		f.gateway.AssertExpectations(t)
	})

	t.Run("daily user accumulates and push fires immediately", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		f.writeUser(t, state.UserRecord{
			ID: "bob", Email: "bob@example.com", PushoverKey: "key-bob",
			Settings: dailySettings(),
		})
		f.gateway.On("Send", mock.Anything, mock.MatchedBy(func(d notification.Dispatch) bool {
			return d.PushOnly && d.PushoverKey == "key-bob"
		})).Return(notification.Result{Attempted: []notification.ChannelResult{{Channel: "pushover"}}})

		decision, err := f.svc.RouteChangeSet(ctx, "bob", cs)
		require.NoError(t, err)
		assert.Equal(t, service.RouteAccumulated, decision)

		queued, err := f.digests.Load("bob")
		require.NoError(t, err)
		require.Len(t, queued, 1)
		assert.Equal(t, cs.ID, queued[0].ID)
		f.gateway.AssertExpectations(t)
	})

	t.Run("unknown frequency dispatches immediately, never accumulates", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		raw := &config.RawNotificationSettings{}
		raw.Email.Frequency = "fortnightly"
		f.writeUser(t, state.UserRecord{ID: "carol", Email: "carol@example.com", Settings: raw})
		f.gateway.On("Send", mock.Anything, mock.MatchedBy(func(d notification.Dispatch) bool {
			return !d.PushOnly && !d.Digest
		})).Return(notification.Result{Attempted: []notification.ChannelResult{{Channel: "email"}}})

		decision, err := f.svc.RouteChangeSet(ctx, "carol", cs)
		require.NoError(t, err)
		assert.Equal(t, service.RouteDispatched, decision)

		queued, err := f.digests.Load("carol")
		require.NoError(t, err)
		assert.Empty(t, queued)
	})

	t.Run("empty change set is skipped without dispatch", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		decision, err := f.svc.RouteChangeSet(ctx, "alice", diff.NewChangeSet(nil))
		require.NoError(t, err)
		assert.Equal(t, service.RouteSkipped, decision)
		f.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("missing user record routes with defaults", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		f.gateway.On("Send", mock.Anything, mock.Anything).
			Return(notification.Result{})

		decision, err := f.svc.RouteChangeSet(ctx, "nobody", cs)
		require.NoError(t, err)
		assert.Equal(t, service.RouteDispatched, decision)
	})

	t.Run("dispatch failure is reported, not requeued", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		f.writeUser(t, state.UserRecord{ID: "alice", Email: "alice@example.com"})
		f.gateway.On("Send", mock.Anything, mock.Anything).Return(notification.Result{
			Attempted: []notification.ChannelResult{{Channel: "email", Err: errors.New("smtp down")}},
		})

		decision, err := f.svc.RouteChangeSet(ctx, "alice", cs)
		assert.Equal(t, service.RouteDispatched, decision)

		var dispatchErr *notification.DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.Equal(t, "email", dispatchErr.Channel)

		queued, loadErr := f.digests.Load("alice")
		require.NoError(t, loadErr)
		assert.Empty(t, queued)
	})
}

func TestChangeService_SendTestNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("sends even when notifications are muted", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		muted := false
		f.writeUser(t, state.UserRecord{
			ID: "alice", Email: "alice@example.com",
			Settings: &config.RawNotificationSettings{Enabled: &muted},
		})
		f.gateway.On("Send", mock.Anything, mock.MatchedBy(func(d notification.Dispatch) bool {
			return d.Settings.Enabled
		})).Return(notification.Result{Attempted: []notification.ChannelResult{{Channel: "email"}}})

		require.NoError(t, f.svc.SendTestNotification(ctx, "alice"))
		f.gateway.AssertExpectations(t)
	})

	t.Run("unknown user yields not found", func(t *testing.T) {
		f := newChangeServiceFixture(t)
		err := f.svc.SendTestNotification(ctx, "ghost")
		assert.True(t, service.IsNotFound(err))
		f.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})
}
