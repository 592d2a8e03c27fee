package handlers

import (
	"net/http"
	"strconv"

	"github.com/ghcetraro/pod-forward/internal/database"
)

// Events returns the most recent session audit records.
func Events(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = n
	}

	events, err := database.ListEvents(limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "audit store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
