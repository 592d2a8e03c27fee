package broker

import (
	"context"
	"log"
	"time"
)

// StartReconciler starts a background goroutine that periodically reconciles
// the registry with process reality, reaping sessions whose executor died
// out-of-band. Stops when ctx is cancelled.
func (b *Broker) StartReconciler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			b.reconcile()
		}
	}()

	log.Printf("Session reconciler started (interval: %s)", interval)
}

// reconcile removes sessions whose backing process is no longer running.
func (b *Broker) reconcile() {
	reaped := 0
	for _, s := range b.reg.list() {
		if s.handle.Alive() {
			continue
		}
		if err := b.cleanup(s.ID, EventFailed); err == nil {
			reaped++
		}
	}
	if reaped > 0 {
		log.Printf("Reconcile: reaped %d dead sessions (%d remaining)", reaped, b.reg.len())
	}
}
