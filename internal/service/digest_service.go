package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/eventbus"
	"github.com/fieldops/visitwatch/internal/notification"
	"github.com/fieldops/visitwatch/internal/state"
)

// DigestService owns the accumulate/flush lifecycle of per-user digest
// queues.
type DigestService interface {
	// Accumulate appends a ChangeSet to the user's digest queue, persisting
	// durably before returning.
	Accumulate(ctx context.Context, userID string, cs diff.ChangeSet) error
	// Flush combines the queued ChangeSets, dispatches the digest, and
	// deletes the queue only after dispatch succeeds. Returns
	// ErrNothingPending when the queue is empty. On dispatch failure the
	// queue is left byte-for-byte intact for the next opportunity.
	Flush(ctx context.Context, userID string) (diff.ChangeSet, error)
	// Preview returns the combined pending digest and the number of queued
	// ChangeSets without dispatching or clearing anything.
	Preview(ctx context.Context, userID string) (diff.ChangeSet, int, error)
}

// digestServiceImpl implements DigestService.
type digestServiceImpl struct {
	digests *state.DigestStore
	users   *state.UserStore
	gateway NotificationGateway
	bus     eventbus.EventBus
	logger  *slog.Logger
}

// NewDigestService creates a DigestService. bus may be nil when no observers
// are wired (tests).
func NewDigestService(
	digests *state.DigestStore,
	users *state.UserStore,
	gateway NotificationGateway,
	bus eventbus.EventBus,
	logger *slog.Logger,
) DigestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &digestServiceImpl{
		digests: digests,
		users:   users,
		gateway: gateway,
		bus:     bus,
		logger:  logger,
	}
}

// Accumulate persists the ChangeSet into the user's queue.
func (s *digestServiceImpl) Accumulate(_ context.Context, userID string, cs diff.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	return s.digests.Append(userID, cs)
}

// Flush delivers the user's combined digest with at-least-once semantics:
// the persisted queue is cleared only after the gateway confirms dispatch,
// so a crash or transport failure leaves the queue for the next due window.
func (s *digestServiceImpl) Flush(ctx context.Context, userID string) (diff.ChangeSet, error) {
	queue, err := s.digests.Load(userID)
	if err != nil {
		return diff.ChangeSet{}, err
	}
	if len(queue) == 0 {
		return diff.ChangeSet{}, ErrNothingPending
	}

	combined := diff.Combine(queue)

	rec, err := s.users.Get(userID)
	if err != nil {
		if !state.IsNotExist(err) {
			s.logger.Warn("user record unreadable, using default settings",
				"user_id", userID, "error", err)
		}
		rec = state.UserRecord{ID: userID}
	}

	result := s.gateway.Send(ctx, notification.Dispatch{
		UserID:    userID,
		ChangeSet: combined,
		Settings:  rec.ResolvedSettings(),
		EmailTo:   rec.Email,
		Digest:    true,
	})
	publishDispatchEvents(s.bus, userID, "digest", combined, result)

	if err := result.Err(); err != nil {
		s.logger.Warn("digest dispatch failed, queue retained",
			"user_id", userID, "queued_sets", len(queue), "error", err)
		return diff.ChangeSet{}, err
	}

	if err := s.digests.Clear(userID); err != nil {
		// The digest was delivered but the queue survived; the next flush
		// re-sends the same content. Duplicate delivery is the accepted
		// trade-off, losing changes is not.
		s.logger.Error("failed to clear digest queue after dispatch",
			"user_id", userID, "error", err)
		return combined, err
	}

	s.logger.Info("digest flushed",
		"user_id", userID, "queued_sets", len(queue),
		"total_changes", combined.Summary.Total())

	if s.bus != nil {
		s.bus.Publish(eventbus.EventDigestFlushed, map[string]string{
			"user_id":       userID,
			"queued_sets":   strconv.Itoa(len(queue)),
			"change_count":  strconv.Itoa(combined.Summary.Total()),
			"change_set_id": combined.ID,
		})
	}
	return combined, nil
}

// Preview combines the pending queue without side effects.
func (s *digestServiceImpl) Preview(_ context.Context, userID string) (diff.ChangeSet, int, error) {
	queue, err := s.digests.Load(userID)
	if err != nil {
		return diff.ChangeSet{}, 0, err
	}
	if len(queue) == 0 {
		return diff.ChangeSet{}, 0, ErrNothingPending
	}
	return diff.Combine(queue), len(queue), nil
}

// publishDispatchEvents emits one event per attempted channel so the
// delivery log and metrics observers see every outcome.
func publishDispatchEvents(bus eventbus.EventBus, userID, kind string, cs diff.ChangeSet, result notification.Result) {
	if bus == nil {
		return
	}
	for _, attempt := range result.Attempted {
		payload := map[string]string{
			"user_id":       userID,
			"change_set_id": cs.ID,
			"kind":          kind,
			"channel":       attempt.Channel,
			"subject":       result.Subject,
			"change_count":  strconv.Itoa(cs.Summary.Total()),
		}
		if attempt.Err != nil {
			payload["error"] = attempt.Err.Error()
			bus.Publish(eventbus.EventDispatchFailed, payload)
			continue
		}
		bus.Publish(eventbus.EventDispatchSucceeded, payload)
	}
}
