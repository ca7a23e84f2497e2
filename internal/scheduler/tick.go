package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/service"
)

// TickResult summarizes one pass over the user base.
type TickResult struct {
	Evaluated int `json:"evaluated"` // daily users whose window was checked
	Flushed   int `json:"flushed"`   // digests delivered this tick
	Failed    int `json:"failed"`    // flush attempts that errored
}

// RunDigestTick evaluates every user's delivery window against now and
// flushes the queues that are due. One user's failure never blocks the
// rest; a failed flush stays unmarked so the next tick inside the window
// retries it.
func (s *Scheduler) RunDigestTick(ctx context.Context, now time.Time) TickResult {
	var res TickResult

	users, err := s.cfg.Users.List()
	if err != nil {
		s.logger.Error("digest tick could not list users", "error", err)
		return res
	}

	for _, rec := range users {
		settings := rec.ResolvedSettings()
		if !settings.Enabled || !settings.Email.Enabled ||
			settings.Email.Frequency != config.FrequencyDaily {
			continue
		}
		res.Evaluated++

		hour, minute, err := config.ParseDeliveryTime(settings.Email.DeliveryTime)
		if err != nil {
			s.logger.Warn("user has unparseable delivery time",
				"user_id", rec.ID, "delivery_time", settings.Email.DeliveryTime,
				"error", err)
			continue
		}
		if !s.windowMatches(now, hour, minute) {
			continue
		}

		dateKey := now.Format("2006-01-02")
		if s.alreadyFired(rec.ID, dateKey) {
			continue
		}

		_, err = s.cfg.Digests.Flush(ctx, rec.ID)
		switch {
		case errors.Is(err, service.ErrNothingPending):
			// Nothing accumulated today. The window still counts as
			// served, so later ticks inside it stay quiet.
			s.markFired(rec.ID, dateKey)

		case err != nil:
			res.Failed++
			s.logger.Error("digest flush failed",
				"user_id", rec.ID, "error", err)

		default:
			res.Flushed++
			s.markFired(rec.ID, dateKey)
		}
	}

	if res.Flushed > 0 || res.Failed > 0 {
		s.logger.Info("digest tick completed",
			"evaluated", res.Evaluated, "flushed", res.Flushed, "failed", res.Failed)
	}
	return res
}

// windowMatches reports whether now falls within the tolerance span around
// today's delivery time, in now's location.
func (s *Scheduler) windowMatches(now time.Time, hour, minute int) bool {
	due := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	delta := now.Sub(due)
	if delta < 0 {
		delta = -delta
	}
	return delta <= s.cfg.WindowTolerance
}

func (s *Scheduler) alreadyFired(userID, dateKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired[userID] == dateKey
}

func (s *Scheduler) markFired(userID, dateKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[userID] = dateKey
}
