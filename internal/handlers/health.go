package handlers

import (
	"net/http"

	"github.com/ghcetraro/pod-forward/internal/database"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	active := 0
	if Broker != nil {
		active = Broker.Active()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"database":        dbStatus,
		"active_sessions": active,
	})
}
