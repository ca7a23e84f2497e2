package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/fieldops/visitwatch/internal/eventbus"
	"github.com/fieldops/visitwatch/internal/metrics"
	"github.com/fieldops/visitwatch/internal/storage"
)

// NewRecorder returns an eventbus listener that turns pipeline events into
// delivery-log rows and prometheus counter increments. Either store or m may
// be nil to disable that sink.
func NewRecorder(store storage.NotificationStore, m *metrics.Metrics, logger *slog.Logger) eventbus.Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ev eventbus.Event) {
		switch ev.Type {
		case eventbus.EventChangesDetected:
			if m != nil {
				m.ChangesDetected.WithLabelValues("added").Add(payloadCount(ev, "added"))
				m.ChangesDetected.WithLabelValues("removed").Add(payloadCount(ev, "removed"))
				m.ChangesDetected.WithLabelValues("date_changed").Add(payloadCount(ev, "modified"))
				m.ChangesDetected.WithLabelValues("swapped").Add(payloadCount(ev, "swapped"))
			}

		case eventbus.EventDetectionFailed:
			if m != nil {
				m.DetectionFailures.Inc()
			}

		case eventbus.EventChangeSetRouted:
			if m != nil {
				m.ChangeSetsRouted.WithLabelValues(ev.Payload["decision"]).Inc()
			}

		case eventbus.EventDispatchSucceeded, eventbus.EventDispatchFailed:
			status := "sent"
			if ev.Type == eventbus.EventDispatchFailed {
				status = "failed"
			}
			if m != nil {
				m.DispatchesTotal.WithLabelValues(ev.Payload["channel"], status).Inc()
			}
			if store == nil {
				return
			}
			count, _ := strconv.Atoi(ev.Payload["change_count"])
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := store.LogNotification(ctx, storage.NotificationLogEntry{
				UserID:      ev.Payload["user_id"],
				ChangeSetID: ev.Payload["change_set_id"],
				Kind:        ev.Payload["kind"],
				Channel:     ev.Payload["channel"],
				Subject:     ev.Payload["subject"],
				ChangeCount: count,
				Status:      status,
				ErrorMsg:    ev.Payload["error"],
				CreatedAt:   ev.Timestamp,
			})
			if err != nil {
				logger.Error("failed to write delivery log entry",
					"user_id", ev.Payload["user_id"], "channel", ev.Payload["channel"],
					"error", err)
			}

		case eventbus.EventDigestFlushed:
			if m != nil {
				m.DigestsFlushed.Inc()
			}
		}
	}
}

func payloadCount(ev eventbus.Event, key string) float64 {
	n, err := strconv.Atoi(ev.Payload[key])
	if err != nil || n < 0 {
		return 0
	}
	return float64(n)
}
