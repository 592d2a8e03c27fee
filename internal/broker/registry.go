package broker

import (
	"fmt"
	"sync"
)

// registry is the authoritative table of active sessions. One mutex covers
// every mutation and every read that feeds a mutating decision, so start,
// stop and expiry for the same session id linearize here: the first caller
// to remove a session wins its cleanup, later callers see it gone.
type registry struct {
	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

// insert publishes a session. arm runs while the lock is held, so the expiry
// timer is visible before any other goroutine can observe the session.
func (r *registry) insert(s *Session, arm func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrShuttingDown
	}
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already registered", s.ID)
	}
	r.sessions[s.ID] = s
	if arm != nil {
		arm(s)
	}
	return nil
}

// remove takes the session out of the table and returns it. This is the
// exactly-once gate: of two racing cleanups only one gets ok=true.
func (r *registry) remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

// list returns a point-in-time snapshot of the table.
func (r *registry) list() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// shutdown closes the registry to new sessions and returns the remaining
// ones. A start racing with shutdown either lands in the snapshot or fails
// its insert; nothing slips in after.
func (r *registry) shutdown() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
