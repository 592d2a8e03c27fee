// Package ports hands out local listening ports for forwarding sessions from
// a fixed numeric range. Allocation is explicit allocate-and-mark: a port is
// checked against the in-use set and probed for OS-level availability before
// it is handed out, so concurrent sessions can never collide on a port.
package ports

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrExhausted is returned by Allocate when every port in the range is taken.
var ErrExhausted = errors.New("port pool exhausted")

// Allocator manages a bounded pool of local ports.
type Allocator struct {
	mu    sync.Mutex
	start int
	end   int // inclusive
	inUse map[int]bool
	next  int // scan hint so consecutive sessions spread across the range

	// probe reports whether a port is actually bindable on this host.
	// Overridable in tests to avoid touching real sockets.
	probe func(port int) bool
}

// NewAllocator creates an Allocator over the inclusive range [start, end].
func NewAllocator(start, end int) (*Allocator, error) {
	if start <= 0 || end > 65535 || start > end {
		return nil, fmt.Errorf("invalid port range %d-%d", start, end)
	}
	a := &Allocator{
		start: start,
		end:   end,
		inUse: make(map[int]bool),
		next:  start,
	}
	a.probe = bindProbe
	return a, nil
}

// Allocate returns a free port from the pool and marks it in use.
// It fails immediately with ErrExhausted when no port is available;
// it never blocks or retries.
func (a *Allocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := a.end - a.start + 1
	for i := 0; i < size; i++ {
		port := a.next
		a.next++
		if a.next > a.end {
			a.next = a.start
		}

		if a.inUse[port] {
			continue
		}
		if !a.probe(port) {
			continue
		}
		a.inUse[port] = true
		return port, nil
	}

	return 0, fmt.Errorf("no free port in %d-%d: %w", a.start, a.end, ErrExhausted)
}

// Release returns a port to the pool. Releasing a port that is not held is a
// no-op, so cleanup paths that race stay safe.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	delete(a.inUse, port)
	a.mu.Unlock()
}

// InUse returns the number of currently allocated ports.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}

// bindProbe checks OS-level availability by binding and immediately closing a
// listener. Another process may hold a port from our range; the in-use map
// alone cannot see that. It binds the wildcard address, matching how the
// executor listens, so a port held on any single interface fails the probe.
func bindProbe(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}
