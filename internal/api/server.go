package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/visitwatch/internal/scheduler"
	"github.com/fieldops/visitwatch/internal/service"
	"github.com/fieldops/visitwatch/internal/storage"
)

const errInvalidJSONBody = "invalid JSON body"

// TickRunner runs one delivery-window evaluation pass. Satisfied by the
// scheduler; exposed over the API for operational triggering.
type TickRunner interface {
	RunDigestTick(ctx context.Context, now time.Time) scheduler.TickResult
}

// Server holds all dependencies for the REST API handlers.
type Server struct {
	changeSvc  service.ChangeService
	digestSvc  service.DigestService
	notifStore storage.NotificationStore
	tick       TickRunner
	logger     *slog.Logger
}

// New creates a new API Server backed by the provided services. tick may be
// nil when no scheduler is running (one-shot CLI mode).
func New(changeSvc service.ChangeService, digestSvc service.DigestService, notifStore storage.NotificationStore, tick TickRunner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		changeSvc:  changeSvc,
		digestSvc:  digestSvc,
		notifStore: notifStore,
		tick:       tick,
		logger:     logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Detection and routing
	r.Post("/users/{id}/snapshot", s.handleIngestSnapshot)
	r.Post("/users/{id}/detect", s.handleDetect)
	r.Post("/users/{id}/route", s.handleRoute)

	// Digest lifecycle
	r.Get("/users/{id}/digest", s.handleDigestPreview)
	r.Post("/users/{id}/flush", s.handleFlush)
	r.Post("/digest/tick", s.handleDigestTick)

	// Transport verification and delivery log
	r.Post("/users/{id}/test-notification", s.handleTestNotification)
	r.Get("/notifications", s.handleListNotificationLog)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
