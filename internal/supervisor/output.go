package supervisor

import (
	"strings"
	"sync"
)

// maxOutputBytes bounds how much executor output a session retains. kubectl
// port-forward is quiet in steady state; the tail is what matters on failure.
const maxOutputBytes = 8 * 1024

// outputBuffer is a concurrency-safe writer that keeps only the most recent
// bytes written to it. It doubles as cmd.Stdout and cmd.Stderr.
type outputBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newOutputBuffer(max int) *outputBuffer {
	return &outputBuffer{max: max}
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
