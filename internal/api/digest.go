package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/service"
)

// digestPreviewResponse is the combined pending digest without side effects.
type digestPreviewResponse struct {
	Pending   int             `json:"pending"` // queued ChangeSets
	ChangeSet *diff.ChangeSet `json:"changeSet,omitempty"`
}

// handleDigestPreview returns what the user's next digest would contain.
func (s *Server) handleDigestPreview(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	cs, pending, err := s.digestSvc.Preview(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNothingPending) {
			writeJSON(w, http.StatusOK, digestPreviewResponse{Pending: 0})
			return
		}
		s.logger.Error("digest preview failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load digest queue")
		return
	}

	writeJSON(w, http.StatusOK, digestPreviewResponse{Pending: pending, ChangeSet: &cs})
}

// handleFlush forces the user's digest out now, regardless of the delivery
// window.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	cs, err := s.digestSvc.Flush(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNothingPending) {
			writeError(w, http.StatusNotFound, "no pending digest")
			return
		}
		s.logger.Error("forced flush failed", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"changeSet": cs})
}

// handleDigestTick runs one delivery-window evaluation pass immediately.
func (s *Server) handleDigestTick(w http.ResponseWriter, r *http.Request) {
	if s.tick == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	res := s.tick.RunDigestTick(r.Context(), time.Now())
	writeJSON(w, http.StatusOK, res)
}
