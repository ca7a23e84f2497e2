package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/service"
)

// detectResponse is the result of a detect-and-route cycle.
type detectResponse struct {
	ChangeSet diff.ChangeSet        `json:"changeSet"`
	Decision  service.RouteDecision `json:"decision"`
}

// handleIngestSnapshot accepts a fresh capture, rotates it into the user's
// snapshot pair, and runs detect-and-route in one step. This is the entry
// point the scraper's caller hits after each capture.
func (s *Server) handleIngestSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var snap diff.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	cs, err := s.changeSvc.IngestSnapshot(r.Context(), userID, snap)
	if err != nil {
		s.logger.Error("snapshot ingestion failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot ingestion failed")
		return
	}

	decision, err := s.changeSvc.RouteChangeSet(r.Context(), userID, cs)
	if err != nil {
		s.logger.Error("routing failed", "user_id", userID,
			"decision", string(decision), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"changeSet": cs,
			"decision":  decision,
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, detectResponse{ChangeSet: cs, Decision: decision})
}

// handleDetect runs a detection cycle over the user's stored snapshot pair
// and routes the resulting ChangeSet in one step.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	cs, err := s.changeSvc.DetectChanges(r.Context(), userID)
	if err != nil {
		if service.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("detection cycle failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "detection failed")
		return
	}

	decision, err := s.changeSvc.RouteChangeSet(r.Context(), userID, cs)
	if err != nil {
		// The decision is still meaningful: a dispatch failure after a
		// successful accumulation must not read as a lost change.
		s.logger.Error("routing failed", "user_id", userID,
			"decision", string(decision), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"changeSet": cs,
			"decision":  decision,
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, detectResponse{ChangeSet: cs, Decision: decision})
}

// handleRoute routes a caller-supplied ChangeSet for the user. Used when
// detection ran elsewhere (bulk backfills, replays).
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var cs diff.ChangeSet
	if err := json.NewDecoder(r.Body).Decode(&cs); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	decision, err := s.changeSvc.RouteChangeSet(r.Context(), userID, cs)
	if err != nil {
		s.logger.Error("routing failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"decision": decision,
			"error":    err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"decision": decision})
}

// handleTestNotification sends a test message over the user's configured
// channels so transport credentials can be verified.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := s.changeSvc.SendTestNotification(r.Context(), userID); err != nil {
		if service.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
