package ports

import (
	"errors"
	"net"
	"sync"
	"testing"
)

// newTestAllocator returns an allocator whose probe never touches real sockets.
func newTestAllocator(t *testing.T, start, end int) *Allocator {
	t.Helper()
	a, err := NewAllocator(start, end)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	a.probe = func(int) bool { return true }
	return a
}

func TestNewAllocatorInvalidRange(t *testing.T) {
	cases := []struct{ start, end int }{
		{0, 100},
		{9000, 8000},
		{9000, 70000},
	}
	for _, c := range cases {
		if _, err := NewAllocator(c.start, c.end); err == nil {
			t.Errorf("NewAllocator(%d, %d): expected error", c.start, c.end)
		}
	}
}

func TestAllocateUniqueUntilExhausted(t *testing.T) {
	a := newTestAllocator(t, 9000, 9001)

	seen := make(map[int]bool)
	for i := 0; i < 2; i++ {
		port, err := a.Allocate()
		if err != nil {
			t.Fatalf("Allocate %d: %v", i, err)
		}
		if port < 9000 || port > 9001 {
			t.Errorf("port %d out of range", port)
		}
		if seen[port] {
			t.Errorf("port %d allocated twice", port)
		}
		seen[port] = true
	}

	if _, err := a.Allocate(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestReleaseMakesPortReusable(t *testing.T) {
	a := newTestAllocator(t, 9100, 9100)

	port, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Release(port)

	again, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate after release: %v", err)
	}
	if again != port {
		t.Errorf("expected %d, got %d", port, again)
	}
}

func TestReleaseUnheldPortIsNoop(t *testing.T) {
	a := newTestAllocator(t, 9000, 9001)
	a.Release(9000)
	a.Release(12345)
	if n := a.InUse(); n != 0 {
		t.Errorf("expected 0 in use, got %d", n)
	}
}

func TestProbeFailureSkipsPort(t *testing.T) {
	a, err := NewAllocator(9000, 9001)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	a.probe = func(port int) bool { return port != 9000 }

	port, err := a.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if port != 9001 {
		t.Errorf("expected 9001 (9000 unbindable), got %d", port)
	}

	if _, err := a.Allocate(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestConcurrentAllocateNoDuplicates(t *testing.T) {
	const n = 50
	a := newTestAllocator(t, 9000, 9000+n-1)

	var wg sync.WaitGroup
	results := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			port, err := a.Allocate()
			if err != nil {
				t.Errorf("Allocate: %v", err)
				return
			}
			results <- port
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for port := range results {
		if seen[port] {
			t.Errorf("port %d allocated to two sessions", port)
		}
		seen[port] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct ports, got %d", n, len(seen))
	}

	if _, err := a.Allocate(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted after pool drained, got %v", err)
	}
}

func TestBindProbeSeesPortHeldOnOneInterface(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	if bindProbe(port) {
		t.Errorf("probe reported port %d free while held on loopback", port)
	}
}
