// Package engine implements the room occupancy reconciliation engine:
// a periodic state machine that reads the occupancy signal and the
// virtual clock, binds the active reservation, detects no-shows and
// overstays, and publishes a status snapshot for the API layer.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"roomwatch-backend/internal/clock"
	"roomwatch-backend/internal/model"
	"roomwatch-backend/internal/occupancy"
	"roomwatch-backend/internal/penalty"
	"roomwatch-backend/internal/store"
)

// RoomState enumerates the tracked states of the monitored room.
type RoomState string

const (
	StateIdle            RoomState = "IDLE"
	StateAwaitingArrival RoomState = "AWAITING_ARRIVAL"
	StateInUse           RoomState = "IN_USE"
	StateOverstay        RoomState = "OVERSTAY"
	StateNoShow          RoomState = "NO_SHOW"
)

// AlertKind classifies operator alerts.
type AlertKind string

const (
	AlertNoShow   AlertKind = "no_show"
	AlertOverstay AlertKind = "overstay"
)

// Alert is a structured operator alert attached to a snapshot and
// dispatched to the notification layer.
type Alert struct {
	Kind          AlertKind `json:"kind"`
	Message       string    `json:"message"`
	ReservationID string    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
}

// Snapshot is the latest published room status.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	RoomID        string    `json:"room_id"`
	State         RoomState `json:"room_state"`
	ReservationID *string   `json:"reservation_id"`
	Alert         *Alert    `json:"alert"`
	PeopleCount   int       `json:"people_count"`
	IsUsed        bool      `json:"is_used"`
}

// Params are the runtime-tunable timing knobs of the state machine.
type Params struct {
	GracePeriodSec         int `json:"grace_period_sec"`
	ArrivalWindowBeforeSec int `json:"arrival_window_before_sec"`
	ArrivalWindowAfterSec  int `json:"arrival_window_after_sec"`
	CleanupMarginSec       int `json:"cleanup_margin_sec"`
}

// Notifier receives alerts for out-of-band delivery (web push).
type Notifier interface {
	Dispatch(alert Alert)
}

// Engine drives the per-tick reconciliation for one room. All
// dependencies are injected; the engine never reads wall-clock time
// directly.
type Engine struct {
	roomID           string
	reservations     store.ReservationStore
	penalties        *penalty.Service
	clock            *clock.Clock
	provider         occupancy.Provider
	notifier         Notifier
	pointsPerNoShow  int
	tickInterval     time.Duration
	occupancyTimeout time.Duration

	mu              sync.Mutex
	params          Params
	arrivalSeen     map[string]bool // reservation id -> occupancy observed during its window
	overstayAlerted map[string]bool // reservation id -> overstay alert already dispatched

	snapMu sync.RWMutex
	latest Snapshot
}

// Options configures a new Engine.
type Options struct {
	RoomID           string
	Reservations     store.ReservationStore
	Penalties        *penalty.Service
	Clock            *clock.Clock
	Provider         occupancy.Provider
	Notifier         Notifier // optional
	Params           Params
	PointsPerNoShow  int
	TickInterval     time.Duration
	OccupancyTimeout time.Duration
}

// New creates an engine for one room. The initial snapshot is Idle.
func New(opts Options) *Engine {
	if opts.PointsPerNoShow <= 0 {
		opts.PointsPerNoShow = 1
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 5 * time.Second
	}
	if opts.OccupancyTimeout <= 0 {
		opts.OccupancyTimeout = 3 * time.Second
	}
	e := &Engine{
		roomID:           opts.RoomID,
		reservations:     opts.Reservations,
		penalties:        opts.Penalties,
		clock:            opts.Clock,
		provider:         opts.Provider,
		notifier:         opts.Notifier,
		pointsPerNoShow:  opts.PointsPerNoShow,
		tickInterval:     opts.TickInterval,
		occupancyTimeout: opts.OccupancyTimeout,
		params:           opts.Params,
		arrivalSeen:      make(map[string]bool),
		overstayAlerted:  make(map[string]bool),
	}
	e.latest = Snapshot{
		Timestamp: opts.Clock.Now(),
		RoomID:    opts.RoomID,
		State:     StateIdle,
	}
	return e
}

// Params returns a copy of the current timing parameters.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// SetParams replaces the timing parameters. Callers doing partial
// updates read Params first and overwrite only the fields they change.
func (e *Engine) SetParams(p Params) {
	e.mu.Lock()
	e.params = p
	e.mu.Unlock()
}

// Snapshot returns the latest published status.
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.latest
}

func (e *Engine) publish(s Snapshot) {
	e.snapMu.Lock()
	e.latest = s
	e.snapMu.Unlock()
}

// Tick performs one reconciliation step: read occupancy, evaluate the
// state machine, publish the snapshot. A failed occupancy read or store
// error leaves the previous snapshot in place and is returned for
// logging; it never terminates the loop.
func (e *Engine) Tick(ctx context.Context) error {
	now := e.clock.Now()

	occCtx, cancel := context.WithTimeout(ctx, e.occupancyTimeout)
	occupied, err := e.provider.GetIsOccupied(occCtx, now)
	cancel()
	if err != nil {
		return fmt.Errorf("occupancy read failed, keeping previous snapshot: %w", err)
	}

	snap, err := e.evaluate(ctx, occupied, now)
	if err != nil {
		return err
	}
	e.publish(snap)
	return nil
}

// evaluate runs the state machine for one observation.
func (e *Engine) evaluate(ctx context.Context, occupied bool, now time.Time) (Snapshot, error) {
	e.mu.Lock()
	params := e.params
	e.mu.Unlock()

	before := time.Duration(params.ArrivalWindowBeforeSec) * time.Second
	after := time.Duration(params.ArrivalWindowAfterSec) * time.Second
	grace := time.Duration(params.GracePeriodSec) * time.Second
	cleanup := time.Duration(params.CleanupMarginSec) * time.Second

	// The binding must outlive every settlement deadline, whatever the
	// parameter mix: a cleanup margin or grace period longer than the
	// arrival window would otherwise drop the reservation before its
	// completion or no-show transition can run, stranding it Confirmed.
	settle := after
	if grace > settle {
		settle = grace
	}
	if cleanup > settle {
		settle = cleanup
	}

	snap := Snapshot{
		Timestamp:   now,
		RoomID:      e.roomID,
		State:       StateIdle,
		PeopleCount: peopleCount(occupied),
		IsUsed:      occupied,
	}

	if err := e.settleExpired(ctx, now, settle); err != nil {
		return Snapshot{}, err
	}

	res, err := e.reservations.FindActiveReservation(ctx, e.roomID, now, before, settle)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reservation lookup failed: %w", err)
	}

	if res == nil {
		// Unbooked use is observed but not policed.
		e.resetTracking()
		return snap, nil
	}

	id := res.ID
	snap.ReservationID = &id

	if occupied {
		e.markArrival(id)
		if !now.After(res.EndTime) {
			snap.State = StateInUse
			return snap, nil
		}
		snap.State = StateOverstay
		if now.After(res.EndTime.Add(cleanup)) {
			alert := Alert{
				Kind:          AlertOverstay,
				Message:       fmt.Sprintf("room %s still occupied after reservation end, please vacate", e.roomID),
				ReservationID: id,
				UserID:        res.UserID,
			}
			snap.Alert = &alert
			e.dispatchOnce(id, alert)
		}
		return snap, nil
	}

	if !e.hasArrived(id) {
		if now.Before(res.StartTime.Add(grace)) {
			snap.State = StateAwaitingArrival
			return snap, nil
		}
		// Grace expired with no arrival ever observed: one-shot no-show.
		won, err := e.reservations.TransitionStatus(ctx, id, model.StatusConfirmed, model.StatusNoShow)
		if err != nil {
			return Snapshot{}, fmt.Errorf("no-show transition failed: %w", err)
		}
		if !won {
			// A concurrent cancel (or an earlier tick) already resolved
			// this reservation; nothing to report.
			e.forget(id)
			snap.ReservationID = nil
			return snap, nil
		}
		alert := Alert{
			Kind:          AlertNoShow,
			Message:       fmt.Sprintf("reservation %s was not honored, penalty applied", id),
			ReservationID: id,
			UserID:        res.UserID,
		}
		snap.State = StateNoShow
		snap.Alert = &alert
		if err := e.penalties.Accrue(ctx, res.UserID, now, e.pointsPerNoShow); err != nil {
			log.Printf("engine: penalty accrual for user %s failed: %v", res.UserID, err)
		}
		if e.notifier != nil {
			e.notifier.Dispatch(alert)
		}
		e.forget(id)
		return snap, nil
	}

	// Arrival was observed earlier; the room is currently empty.
	if now.After(res.EndTime.Add(cleanup)) {
		// The window elapsed without incident.
		if _, err := e.reservations.TransitionStatus(ctx, id, model.StatusConfirmed, model.StatusCompleted); err != nil {
			return Snapshot{}, fmt.Errorf("completion transition failed: %w", err)
		}
		e.forget(id)
		snap.ReservationID = nil
		snap.State = StateIdle
		return snap, nil
	}

	// Temporary absence mid-reservation keeps the binding alive.
	snap.State = StateInUse
	return snap, nil
}

// settleExpired finalizes reservations that dropped out of the binding
// window while still Confirmed. No later tick can observe them, so the
// outcome is already decided: a seen arrival completes, anything else is
// a no-show. Normally the list is empty; it catches up after large
// simulated-clock jumps and after ticks missed while the process was
// down.
func (e *Engine) settleExpired(ctx context.Context, now time.Time, settle time.Duration) error {
	expired, err := e.reservations.ListExpiredReservations(ctx, e.roomID, now.Add(-settle))
	if err != nil {
		return fmt.Errorf("expired reservation lookup failed: %w", err)
	}
	for _, res := range expired {
		if e.hasArrived(res.ID) {
			if _, err := e.reservations.TransitionStatus(ctx, res.ID, model.StatusConfirmed, model.StatusCompleted); err != nil {
				return fmt.Errorf("completion transition failed: %w", err)
			}
			e.forget(res.ID)
			continue
		}
		won, err := e.reservations.TransitionStatus(ctx, res.ID, model.StatusConfirmed, model.StatusNoShow)
		if err != nil {
			return fmt.Errorf("no-show transition failed: %w", err)
		}
		if won {
			if err := e.penalties.Accrue(ctx, res.UserID, now, e.pointsPerNoShow); err != nil {
				log.Printf("engine: penalty accrual for user %s failed: %v", res.UserID, err)
			}
			if e.notifier != nil {
				e.notifier.Dispatch(Alert{
					Kind:          AlertNoShow,
					Message:       fmt.Sprintf("reservation %s was not honored, penalty applied", res.ID),
					ReservationID: res.ID,
					UserID:        res.UserID,
				})
			}
		}
		e.forget(res.ID)
	}
	return nil
}

func (e *Engine) markArrival(id string) {
	e.mu.Lock()
	e.arrivalSeen[id] = true
	e.mu.Unlock()
}

func (e *Engine) hasArrived(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arrivalSeen[id]
}

func (e *Engine) dispatchOnce(id string, alert Alert) {
	e.mu.Lock()
	already := e.overstayAlerted[id]
	if !already {
		e.overstayAlerted[id] = true
	}
	e.mu.Unlock()
	if !already && e.notifier != nil {
		e.notifier.Dispatch(alert)
	}
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.arrivalSeen, id)
	delete(e.overstayAlerted, id)
	e.mu.Unlock()
}

// resetTracking drops per-reservation tracking once no reservation is
// bound. One engine watches one room, so anything left here is stale.
func (e *Engine) resetTracking() {
	e.mu.Lock()
	if len(e.arrivalSeen) > 0 {
		e.arrivalSeen = make(map[string]bool)
	}
	if len(e.overstayAlerted) > 0 {
		e.overstayAlerted = make(map[string]bool)
	}
	e.mu.Unlock()
}

func peopleCount(occupied bool) int {
	// Stub proxy for a real headcount: 1 when occupied, 0 otherwise.
	if occupied {
		return 1
	}
	return 0
}
