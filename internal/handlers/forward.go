package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ghcetraro/pod-forward/internal/broker"
	"github.com/ghcetraro/pod-forward/internal/config"
	"github.com/ghcetraro/pod-forward/internal/ports"
	"github.com/ghcetraro/pod-forward/internal/supervisor"
	"github.com/go-chi/chi/v5"
)

// Broker and Profiles are wired by main at startup.
var (
	Broker   *broker.Broker
	Profiles []config.Profile
)

// Forward starts a forwarding session. The target comes either from a named
// profile (?profile=) or from explicit ?namespace=&pod=&port= parameters.
func Forward(w http.ResponseWriter, r *http.Request) {
	namespace := r.URL.Query().Get("namespace")
	pod := r.URL.Query().Get("pod")
	port := config.Cfg.DefaultPort

	if name := r.URL.Query().Get("profile"); name != "" {
		p, ok := config.FindProfile(Profiles, name)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown profile: "+name)
			return
		}
		namespace, pod, port = p.Namespace, p.Pod, p.Port
	} else if raw := r.URL.Query().Get("port"); raw != "" {
		var err error
		port, err = strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			writeError(w, http.StatusBadRequest, "invalid port: "+raw)
			return
		}
	}

	if namespace == "" {
		namespace = config.Cfg.DefaultNamespace
	}
	if pod == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter: pod")
		return
	}

	view, err := Broker.Start(r.Context(), namespace, pod, port)
	if err != nil {
		var ve *broker.ValidationError
		var le *supervisor.LaunchError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Error())
		case errors.Is(err, ports.ErrExhausted):
			writeError(w, http.StatusServiceUnavailable, "no local port available")
		case errors.As(err, &le):
			writeError(w, http.StatusBadGateway, "port-forward failed to start: "+supervisor.Excerpt(le.Output))
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// StopForward stops a session. Stopping a session that is already gone is a
// benign outcome reported as not found, never as a server error.
func StopForward(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if err := Broker.Stop(id); err != nil {
		if errors.Is(err, broker.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// Status lists active sessions, reconciled against process liveness.
func Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_forwards": Broker.List(),
	})
}

// ListProfiles returns the preset forward targets.
func ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := Profiles
	if profiles == nil {
		profiles = []config.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}
