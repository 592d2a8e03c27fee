// Package broker composes the port allocator, the process supervisor, the
// session registry and per-session lifetime timers into the start/stop/list
// operations the HTTP layer calls.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ghcetraro/pod-forward/internal/logutil"
	"github.com/ghcetraro/pod-forward/internal/ports"
	"github.com/ghcetraro/pod-forward/internal/supervisor"
	"github.com/google/uuid"
)

// ErrNotFound is returned by Stop for an unknown session id. Stopping
// something already gone is benign; callers should not treat this as a
// failure.
var ErrNotFound = errors.New("session not found")

// ErrShuttingDown is returned by Start once StopAll has run.
var ErrShuttingDown = errors.New("broker is shutting down")

// TargetValidator checks a forwarding target before the executor is
// launched. Optional: a nil validator skips the check.
type TargetValidator interface {
	ValidateTarget(ctx context.Context, namespace, pod string) error
}

// ValidationError reports a forwarding target rejected before any port was
// allocated or executor launched. Distinct from supervisor failures: the
// request was wrong, not the launch.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid target: %v", e.Err) }

func (e *ValidationError) Unwrap() error { return e.Err }

// EventFunc records one session lifecycle event for auditing. Optional. The
// broker calls it outside the registry lock.
type EventFunc func(sessionID, namespace, pod string, remotePort, localPort int, action, detail string)

// Event actions passed to EventFunc.
const (
	EventStarted = "started"
	EventStopped = "stopped"
	EventExpired = "expired"
	EventFailed  = "failed"
)

// Config carries the broker's fixed settings.
type Config struct {
	Lifetime    time.Duration // maximum session lifetime before automatic cleanup
	GracePeriod time.Duration // SIGTERM-to-SIGKILL escalation wait
	BindAddress string        // executor listen address
}

// Broker is the façade external callers use.
type Broker struct {
	cfg   Config
	alloc *ports.Allocator
	sup   *supervisor.Supervisor
	reg   *registry

	validator TargetValidator
	record    EventFunc
}

// New wires a Broker from its collaborators.
func New(cfg Config, alloc *ports.Allocator, sup *supervisor.Supervisor) *Broker {
	return &Broker{
		cfg:   cfg,
		alloc: alloc,
		sup:   sup,
		reg:   newRegistry(),
	}
}

// SetValidator enables pre-launch target validation.
func (b *Broker) SetValidator(v TargetValidator) { b.validator = v }

// SetRecorder enables audit event recording.
func (b *Broker) SetRecorder(f EventFunc) { b.record = f }

// Start allocates a local port, launches the forwarding executor, registers
// the session and arms its lifetime timer. All-or-nothing: any failure after
// the port allocation releases the port before returning.
func (b *Broker) Start(ctx context.Context, namespace, pod string, remotePort int) (SessionView, error) {
	if b.validator != nil {
		if err := b.validator.ValidateTarget(ctx, namespace, pod); err != nil {
			return SessionView{}, &ValidationError{Err: err}
		}
	}

	localPort, err := b.alloc.Allocate()
	if err != nil {
		return SessionView{}, fmt.Errorf("allocate local port: %w", err)
	}

	handle, err := b.sup.Launch(supervisor.Command{
		Namespace:   namespace,
		Pod:         pod,
		RemotePort:  remotePort,
		LocalPort:   localPort,
		BindAddress: b.cfg.BindAddress,
	})
	if err != nil {
		b.alloc.Release(localPort)
		b.emit("", namespace, pod, remotePort, localPort, EventFailed, err.Error())
		return SessionView{}, err
	}

	now := time.Now()
	s := &Session{
		ID:         uuid.New().String(),
		Namespace:  namespace,
		Pod:        pod,
		RemotePort: remotePort,
		LocalPort:  localPort,
		CreatedAt:  now,
		ExpiresAt:  now.Add(b.cfg.Lifetime),
		handle:     handle,
		state:      StateActive,
	}

	err = b.reg.insert(s, func(s *Session) {
		id := s.ID
		s.expiry = time.AfterFunc(b.cfg.Lifetime, func() { b.expire(id) })
	})
	if err != nil {
		b.sup.Terminate(handle, b.cfg.GracePeriod)
		b.alloc.Release(localPort)
		return SessionView{}, err
	}

	log.Printf("Session %s: forwarding %s/%s:%d -> :%d (pid %d, lifetime %s)",
		s.ID, logutil.SanitizeForLog(namespace), logutil.SanitizeForLog(pod),
		remotePort, localPort, handle.Pid(), b.cfg.Lifetime)
	b.emit(s.ID, namespace, pod, remotePort, localPort, EventStarted, "")

	return s.view(), nil
}

// Stop terminates a session's executor, removes it from the registry and
// releases its port. Safe to call concurrently with the session's own expiry
// cleanup: exactly one of them wins, the other gets ErrNotFound.
func (b *Broker) Stop(id string) error {
	return b.cleanup(id, EventStopped)
}

// expire is the lifetime timer's cleanup entry point.
func (b *Broker) expire(id string) {
	if err := b.cleanup(id, EventExpired); err == nil {
		log.Printf("Session %s expired after %s", id, b.cfg.Lifetime)
	}
}

// cleanup is the single termination path both stop and expiry converge on.
// Removal from the registry (under its lock) decides the winner; everything
// after runs exactly once per session.
func (b *Broker) cleanup(id, action string) error {
	s, ok := b.reg.remove(id)
	if !ok {
		return ErrNotFound
	}

	s.state = StateStopping
	if s.expiry != nil {
		s.expiry.Stop()
	}

	diedUnexpectedly := !s.handle.Alive()
	b.sup.Terminate(s.handle, b.cfg.GracePeriod)
	b.alloc.Release(s.LocalPort)

	detail := ""
	if action == EventFailed || diedUnexpectedly {
		s.state = StateFailed
		action = EventFailed
		detail = supervisor.Excerpt(s.handle.Output())
	} else {
		s.state = StateStopped
	}

	log.Printf("Session %s: %s (%s/%s:%d, port %d released)",
		id, action, s.Namespace, s.Pod, s.RemotePort, s.LocalPort)
	b.emit(id, s.Namespace, s.Pod, s.RemotePort, s.LocalPort, action, detail)
	return nil
}

// List returns a snapshot of active sessions, reconciled against process
// reality: entries whose executor died out-of-band are reaped and excluded
// instead of being reported on stale bookkeeping.
func (b *Broker) List() []SessionView {
	views := make([]SessionView, 0)
	for _, s := range b.reg.list() {
		if !s.handle.Alive() {
			b.cleanup(s.ID, EventFailed)
			continue
		}
		views = append(views, s.view())
	}
	return views
}

// Active returns the number of registered sessions without liveness checks.
func (b *Broker) Active() int {
	return b.reg.len()
}

// StopAll closes the broker to new sessions and terminates every existing
// one. Used during shutdown; a Start still in flight either makes it into
// the cleanup snapshot or fails with ErrShuttingDown, never leaks.
func (b *Broker) StopAll() {
	sessions := b.reg.shutdown()
	for _, s := range sessions {
		b.cleanup(s.ID, EventStopped)
	}
	if len(sessions) > 0 {
		log.Printf("Stopped all forwarding sessions (%d total)", len(sessions))
	}
}

func (b *Broker) emit(sessionID, namespace, pod string, remotePort, localPort int, action, detail string) {
	if b.record != nil {
		b.record(sessionID, namespace, pod, remotePort, localPort, action, detail)
	}
}
