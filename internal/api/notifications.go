package api

import (
	"net/http"
	"strconv"
)

// handleListNotificationLog returns recent delivery log entries, newest
// first. Accepts optional ?user=ID and ?limit=N query parameters
// (default 50).
func (s *Server) handleListNotificationLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	userID := r.URL.Query().Get("user")

	entries, err := s.notifStore.ListNotifications(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("failed to list delivery log", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notification log")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
