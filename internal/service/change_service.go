package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/eventbus"
	"github.com/fieldops/visitwatch/internal/notification"
	"github.com/fieldops/visitwatch/internal/state"
)

// RouteDecision is the frequency router's verdict for one ChangeSet.
type RouteDecision string

// Router verdicts.
const (
	RouteDispatched  RouteDecision = "dispatched"
	RouteAccumulated RouteDecision = "accumulated"
	RouteSkipped     RouteDecision = "skipped"
)

// NotificationGateway is the transport fan-out the services dispatch through.
type NotificationGateway interface {
	Send(ctx context.Context, d notification.Dispatch) notification.Result
}

// ChangeService runs detection cycles and routes their results.
type ChangeService interface {
	// IngestSnapshot rotates a fresh capture into the user's snapshot pair
	// and runs a detection cycle over the result.
	IngestSnapshot(ctx context.Context, userID string, snap diff.Snapshot) (diff.ChangeSet, error)
	// DetectChanges compares the user's stored snapshot pair, consulting the
	// completed-job oracle. Invoked after each new capture. An empty
	// ChangeSet means no reportable differences, not an error.
	DetectChanges(ctx context.Context, userID string) (diff.ChangeSet, error)
	// RouteChangeSet decides between immediate dispatch and digest
	// accumulation based on the user's email frequency.
	RouteChangeSet(ctx context.Context, userID string, cs diff.ChangeSet) (RouteDecision, error)
	// SendTestNotification delivers a short test message over the user's
	// enabled channels so transport credentials can be verified.
	SendTestNotification(ctx context.Context, userID string) error
}

// changeServiceImpl implements ChangeService.
type changeServiceImpl struct {
	snapshots *state.SnapshotStore
	digests   *state.DigestStore
	users     *state.UserStore
	oracle    *state.CompletedJobOracle
	detector  *diff.Detector
	gateway   NotificationGateway
	bus       eventbus.EventBus
	logger    *slog.Logger
}

// NewChangeService creates a ChangeService. bus may be nil when no observers
// are wired (tests).
func NewChangeService(
	snapshots *state.SnapshotStore,
	digests *state.DigestStore,
	users *state.UserStore,
	oracle *state.CompletedJobOracle,
	detector *diff.Detector,
	gateway NotificationGateway,
	bus eventbus.EventBus,
	logger *slog.Logger,
) ChangeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &changeServiceImpl{
		snapshots: snapshots,
		digests:   digests,
		users:     users,
		oracle:    oracle,
		detector:  detector,
		gateway:   gateway,
		bus:       bus,
		logger:    logger,
	}
}

// IngestSnapshot rotates the capture in and detects against the displaced
// snapshot. Rotation is durable before detection starts, so a crash between
// the two loses at most one notification cycle, never the capture itself.
func (s *changeServiceImpl) IngestSnapshot(ctx context.Context, userID string, snap diff.Snapshot) (diff.ChangeSet, error) {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	if err := s.snapshots.Rotate(userID, snap); err != nil {
		return diff.ChangeSet{}, err
	}
	return s.DetectChanges(ctx, userID)
}

// DetectChanges loads the user's snapshot pair and runs the detector.
// A user whose first capture just landed has no previous snapshot yet; that
// establishes the baseline and yields an empty ChangeSet rather than
// reporting the whole schedule as added.
func (s *changeServiceImpl) DetectChanges(_ context.Context, userID string) (diff.ChangeSet, error) {
	current, err := s.snapshots.Current(userID)
	if err != nil {
		if state.IsNotExist(err) {
			return diff.ChangeSet{}, &NotFoundError{Resource: "snapshot", ID: userID}
		}
		s.publishDetectionFailed(userID, err)
		return diff.ChangeSet{}, err
	}

	previous, err := s.snapshots.Previous(userID)
	if err != nil {
		if state.IsNotExist(err) {
			s.logger.Info("no previous snapshot, treating capture as baseline", "user_id", userID)
			return diff.NewChangeSet(nil), nil
		}
		// A corrupt previous snapshot cannot be compared against. Reporting
		// every visit as added would be pure noise, so the cycle fails for
		// this user and the next rotation re-establishes a baseline.
		s.publishDetectionFailed(userID, err)
		return diff.ChangeSet{}, err
	}

	cs := s.detector.Detect(previous, current, s.oracle.Func(userID))

	s.logger.Info("detection cycle completed",
		"user_id", userID, "change_set_id", cs.ID,
		"added", cs.Summary.Added, "removed", cs.Summary.Removed,
		"rescheduled", cs.Summary.Modified, "rebooked", cs.Summary.Swapped)

	s.publish(eventbus.EventChangesDetected, map[string]string{
		"user_id":       userID,
		"change_set_id": cs.ID,
		"added":         strconv.Itoa(cs.Summary.Added),
		"removed":       strconv.Itoa(cs.Summary.Removed),
		"modified":      strconv.Itoa(cs.Summary.Modified),
		"swapped":       strconv.Itoa(cs.Summary.Swapped),
	})

	return cs, nil
}

// RouteChangeSet applies the frequency decision. Daily users have the
// ChangeSet appended to their digest queue, but pushover still fires
// immediately since only email is digest-capable. Any frequency other than
// "daily" dispatches now; an unrecognized value never silently drops a
// change.
func (s *changeServiceImpl) RouteChangeSet(ctx context.Context, userID string, cs diff.ChangeSet) (RouteDecision, error) {
	if cs.Empty() {
		return RouteSkipped, nil
	}

	rec := s.loadUser(userID)
	settings := rec.ResolvedSettings()

	if settings.Email.Frequency == config.FrequencyDaily {
		if err := s.digests.Append(userID, cs); err != nil {
			return RouteSkipped, err
		}
		s.publishRouted(userID, cs, RouteAccumulated)

		// Pushover delivery never waits for the digest window.
		result := s.gateway.Send(ctx, notification.Dispatch{
			UserID:      userID,
			ChangeSet:   cs,
			Settings:    settings,
			PushoverKey: rec.PushoverKey,
			PushOnly:    true,
		})
		s.recordDispatch(userID, "immediate", cs, result)
		return RouteAccumulated, result.Err()
	}

	if settings.Email.Frequency != config.FrequencyImmediate {
		s.logger.Warn("unrecognized email frequency, dispatching immediately",
			"user_id", userID, "frequency", string(settings.Email.Frequency))
	}

	result := s.gateway.Send(ctx, notification.Dispatch{
		UserID:      userID,
		ChangeSet:   cs,
		Settings:    settings,
		EmailTo:     rec.Email,
		PushoverKey: rec.PushoverKey,
	})
	s.publishRouted(userID, cs, RouteDispatched)
	s.recordDispatch(userID, "immediate", cs, result)

	// A failed immediate dispatch is reported, not requeued: the caller owns
	// retry policy, and the next detection cycle re-derives the same delta
	// while the snapshot pair is unrotated.
	return RouteDispatched, result.Err()
}

// SendTestNotification sends a one-line test message regardless of summary
// content so users can verify their transport configuration.
func (s *changeServiceImpl) SendTestNotification(ctx context.Context, userID string) error {
	rec, err := s.users.Get(userID)
	if err != nil {
		if state.IsNotExist(err) {
			return &NotFoundError{Resource: "user", ID: userID}
		}
		return err
	}

	settings := rec.ResolvedSettings()
	settings.Enabled = true // a test send must work even while muted

	result := s.gateway.Send(ctx, notification.Dispatch{
		UserID:      userID,
		ChangeSet:   diff.NewChangeSet(nil),
		Settings:    settings,
		EmailTo:     rec.Email,
		PushoverKey: rec.PushoverKey,
	})
	s.recordDispatch(userID, "test", diff.ChangeSet{}, result)
	return result.Err()
}

// loadUser returns the user record, degrading to defaults when the record is
// missing or unreadable so one bad file never stalls routing.
func (s *changeServiceImpl) loadUser(userID string) state.UserRecord {
	rec, err := s.users.Get(userID)
	if err != nil {
		if !state.IsNotExist(err) {
			s.logger.Warn("user record unreadable, using default settings",
				"user_id", userID, "error", err)
		}
		return state.UserRecord{ID: userID}
	}
	return rec
}

func (s *changeServiceImpl) publish(eventType string, payload map[string]string) {
	if s.bus != nil {
		s.bus.Publish(eventType, payload)
	}
}

func (s *changeServiceImpl) publishDetectionFailed(userID string, err error) {
	s.publish(eventbus.EventDetectionFailed, map[string]string{
		"user_id": userID,
		"error":   err.Error(),
	})
}

func (s *changeServiceImpl) publishRouted(userID string, cs diff.ChangeSet, decision RouteDecision) {
	s.publish(eventbus.EventChangeSetRouted, map[string]string{
		"user_id":       userID,
		"change_set_id": cs.ID,
		"decision":      string(decision),
	})
}

func (s *changeServiceImpl) recordDispatch(userID, kind string, cs diff.ChangeSet, result notification.Result) {
	publishDispatchEvents(s.bus, userID, kind, cs, result)
}
