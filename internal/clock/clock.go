// Package clock provides the process-wide time source. Every component
// that needs "now" reads it from here instead of time.Now, which is what
// makes the whole engine runnable on accelerated or fixed simulated time.
package clock

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrInvalidScale is returned when a simulated clock is configured with a
// non-positive scale factor.
var ErrInvalidScale = errors.New("clock: scale must be positive")

// clockState is the immutable configuration read on every Now call.
// Swapping modes replaces the whole struct through a single atomic
// pointer store, so readers never observe a half-applied anchor/scale.
type clockState struct {
	simulated  bool
	anchorReal time.Time // real instant at which the simulation was anchored
	anchorSim  time.Time // simulated instant reported at anchorReal
	scale      float64   // simulated seconds per real second
}

// Clock is the injectable time source. The zero value is not usable;
// construct with New.
type Clock struct {
	state atomic.Pointer[clockState]
}

// New returns a clock in real-time mode.
func New() *Clock {
	c := &Clock{}
	c.state.Store(&clockState{})
	return c
}

// Now returns the current instant. In real mode this is wall time; in
// simulated mode it is anchorSim + scale * (real elapsed since anchoring).
func (c *Clock) Now() time.Time {
	s := c.state.Load()
	if !s.simulated {
		return time.Now()
	}
	elapsed := time.Since(s.anchorReal)
	simElapsed := time.Duration(float64(elapsed) * s.scale)
	return s.anchorSim.Add(simElapsed)
}

// SetSimulated switches the clock to simulated mode, anchored so that Now
// reports approximately simNow at the moment of the call and advances at
// scale simulated seconds per real second.
func (c *Clock) SetSimulated(simNow time.Time, scale float64) error {
	if scale <= 0 {
		return ErrInvalidScale
	}
	c.state.Store(&clockState{
		simulated:  true,
		anchorReal: time.Now(),
		anchorSim:  simNow,
		scale:      scale,
	})
	return nil
}

// ClearSimulated reverts the clock to real time.
func (c *Clock) ClearSimulated() {
	c.state.Store(&clockState{})
}

// Status describes the current clock configuration for introspection.
type Status struct {
	Mode   string     `json:"mode"` // "real" or "simulated"
	Scale  float64    `json:"scale,omitempty"`
	Anchor *time.Time `json:"anchor,omitempty"`
	Now    time.Time  `json:"now"`
}

// Status reports the current mode, scale and anchor along with the
// instant the clock would report right now.
func (c *Clock) Status() Status {
	s := c.state.Load()
	st := Status{Mode: "real", Now: c.Now()}
	if s.simulated {
		st.Mode = "simulated"
		st.Scale = s.scale
		anchor := s.anchorSim
		st.Anchor = &anchor
	}
	return st
}
