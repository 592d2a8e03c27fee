package handlers

import (
	"net/http"
	"strconv"

	"github.com/ghcetraro/pod-forward/internal/logging"
)

// ServerLogs returns the tail of the server log file.
func ServerLogs(w http.ResponseWriter, r *http.Request) {
	lines := 100
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 10000 {
			writeError(w, http.StatusBadRequest, "invalid lines: "+raw)
			return
		}
		lines = n
	}

	tail, err := logging.ReadTail(lines)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot read log file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": tail})
}
