package broker

import (
	"time"

	"github.com/ghcetraro/pod-forward/internal/supervisor"
)

// State tracks where a session is in its lifecycle. Terminal states never
// appear in the registry: a session reaching one is removed immediately.
type State string

const (
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Session is one active forwarding tunnel. Target fields and the process
// handle are immutable after creation; the handle is owned exclusively by
// this session and only the supervisor may terminate it.
type Session struct {
	ID         string
	Namespace  string
	Pod        string
	RemotePort int
	LocalPort  int
	CreatedAt  time.Time
	ExpiresAt  time.Time

	handle *supervisor.Handle

	// Mutable fields below are written only by the session's exactly-once
	// cleanup winner (and by Start before the session is published), so they
	// need no lock of their own.
	state  State
	expiry *time.Timer // armed under the registry lock, stopped by cleanup
}

// SessionView is the JSON shape reported to callers.
type SessionView struct {
	SessionID  string    `json:"session_id"`
	Namespace  string    `json:"namespace"`
	Pod        string    `json:"pod"`
	RemotePort int       `json:"pod_port"`
	LocalPort  int       `json:"local_port"`
	Pid        int       `json:"pid"`
	Active     bool      `json:"active"`
	StartedAt  time.Time `json:"started_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (s *Session) view() SessionView {
	return SessionView{
		SessionID:  s.ID,
		Namespace:  s.Namespace,
		Pod:        s.Pod,
		RemotePort: s.RemotePort,
		LocalPort:  s.LocalPort,
		Pid:        s.handle.Pid(),
		Active:     s.handle.Alive(),
		StartedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}
