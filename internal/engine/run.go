package engine

import (
	"context"
	"log"
	"time"
)

// Run ticks the engine at the configured cadence until ctx is
// cancelled. Tick failures are logged and the loop continues; a single
// bad tick must never take the monitor down.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("engine: monitoring started for room %s (interval %s)", e.roomID, e.tickInterval)

	if err := e.Tick(ctx); err != nil {
		log.Printf("engine: tick failed: %v", err)
	}

	timer := time.NewTimer(e.tickInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("engine: monitoring stopped for room %s", e.roomID)
			return
		case <-timer.C:
			if err := e.Tick(ctx); err != nil {
				log.Printf("engine: tick failed: %v", err)
			}
			timer.Reset(e.tickInterval)
		}
	}
}
