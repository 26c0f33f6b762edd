// Package occupancy abstracts the physical occupancy signal. The engine
// depends only on the Provider interface; a settable dummy and an HTTP
// camera-backed provider are selected once at construction.
package occupancy

import (
	"context"
	"errors"
	"log"
	"time"

	"roomwatch-backend/config"
)

// ErrUnavailable means the occupancy source could not produce a reading.
// The engine treats it as "unknown occupancy": the tick is skipped and
// the previous snapshot stays in place.
var ErrUnavailable = errors.New("occupancy: source unavailable")

// Provider yields whether the monitored room is physically occupied at a
// point in time.
type Provider interface {
	GetIsOccupied(ctx context.Context, at time.Time) (bool, error)
}

// New selects a provider from configuration. Unknown modes fall back to
// the dummy provider so a misconfigured deployment still comes up.
func New(cfg *config.OccupancyConfig) Provider {
	switch cfg.Mode {
	case "camera":
		log.Println("occupancy: using camera provider")
		return NewCamera(cfg.Camera)
	case "dummy", "":
		log.Println("occupancy: using dummy provider")
		return NewDummy(false)
	default:
		log.Printf("occupancy: unknown mode %q, falling back to dummy", cfg.Mode)
		return NewDummy(false)
	}
}
