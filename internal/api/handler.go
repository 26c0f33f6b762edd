package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"roomwatch-backend/config"
	"roomwatch-backend/internal/clock"
	"roomwatch-backend/internal/engine"
	"roomwatch-backend/internal/occupancy"
	"roomwatch-backend/internal/penalty"
	"roomwatch-backend/internal/store"
)

// Handler holds shared dependencies for API handlers. Everything is
// injected at construction; handlers never reach for globals.
type Handler struct {
	roomID    string
	store     store.Store
	penalties *penalty.Service
	engine    *engine.Engine
	clock     *clock.Clock
	provider  occupancy.Provider
	policy    config.ReservationConfig
	webpush   *webpush.Options
}

// Deps bundles the dependencies of a new Handler.
type Deps struct {
	RoomID    string
	Store     store.Store
	Penalties *penalty.Service
	Engine    *engine.Engine
	Clock     *clock.Clock
	Provider  occupancy.Provider
	Policy    config.ReservationConfig
	WebPush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		roomID:    d.RoomID,
		store:     d.Store,
		penalties: d.Penalties,
		engine:    d.Engine,
		clock:     d.Clock,
		provider:  d.Provider,
		policy:    d.Policy,
		webpush:   d.WebPush,
	}
}
