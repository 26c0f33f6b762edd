package occupancy

import (
	"context"
	"sync"
	"time"
)

// Dummy is a settable occupancy source used in tests and in deployments
// without a camera. The debug API flips it at runtime.
type Dummy struct {
	mu       sync.RWMutex
	occupied bool
}

// NewDummy creates a dummy provider with the given initial reading.
func NewDummy(initial bool) *Dummy {
	return &Dummy{occupied: initial}
}

// SetOccupied overrides the reading returned by subsequent calls.
func (d *Dummy) SetOccupied(occupied bool) {
	d.mu.Lock()
	d.occupied = occupied
	d.mu.Unlock()
}

// GetIsOccupied returns the last value set; it never fails.
func (d *Dummy) GetIsOccupied(ctx context.Context, at time.Time) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.occupied, nil
}
