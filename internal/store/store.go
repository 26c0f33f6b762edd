// Package store holds the persistence layer behind the reservation
// conflict engine, the penalty ledger and push subscriptions. Two
// backends implement the same contracts: an in-memory one and a
// GORM-backed one (sqlite or postgres), selected by configuration.
package store

import (
	"context"
	"time"

	"roomwatch-backend/internal/model"
)

// DefaultBuffer is the turnover gap enforced between two bookings of the
// same room when no buffer is configured.
const DefaultBuffer = 5 * time.Minute

// ReservationStore is the conflict engine: it owns reservations and is
// the only place their status may change.
type ReservationStore interface {
	// CreateReservation stores a new Confirmed reservation. It fails with
	// ErrInvalidRange when end <= start and with ErrOverlap when any
	// existing Confirmed reservation for the room, expanded by the buffer
	// on each side, intersects [start, end].
	CreateReservation(ctx context.Context, roomID, userID string, start, end time.Time) (*model.Reservation, error)

	// ListReservations returns all reservations for a room ordered by
	// start time ascending.
	ListReservations(ctx context.Context, roomID string) ([]model.Reservation, error)

	// CancelReservation sets the status to Cancelled unless the
	// reservation is unknown or already Cancelled/Completed. The boolean
	// reports whether a change occurred; an unknown id is not an error.
	CancelReservation(ctx context.Context, id string) (bool, error)

	// FindActiveReservation returns the Confirmed reservation whose
	// window, widened by the given margins, contains at. When widened
	// windows overlap, the one starting earliest wins; nil means none.
	FindActiveReservation(ctx context.Context, roomID string, at time.Time, before, after time.Duration) (*model.Reservation, error)

	// ListExpiredReservations returns the Confirmed reservations whose end
	// time lies before cutoff, oldest end first. These are past every
	// observation window and await a terminal status.
	ListExpiredReservations(ctx context.Context, roomID string, cutoff time.Time) ([]model.Reservation, error)

	// TransitionStatus atomically moves a reservation from one status to
	// another. It reports whether the swap happened; two concurrent
	// callers cannot both win the same transition.
	TransitionStatus(ctx context.Context, id string, from, to model.ReservationStatus) (bool, error)
}

// PenaltyStore is the append-only point ledger.
type PenaltyStore interface {
	AppendPenalty(ctx context.Context, userID string, points int, at time.Time) error

	// ListPenaltiesSince returns the user's point records with
	// occurred_at >= since, oldest first.
	ListPenaltiesSince(ctx context.Context, userID string, since time.Time) ([]model.PenaltyPoint, error)

	// ResetPenalties discards all point records for the user.
	ResetPenalties(ctx context.Context, userID string) error
}

// SubscriptionStore persists web push subscriptions for alert delivery.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

// Store bundles the three contracts so a single backend instance can be
// wired through the application.
type Store interface {
	ReservationStore
	PenaltyStore
	SubscriptionStore
}

// conflicts reports whether [start, end] intersects the existing
// reservation's window expanded by buffer on each side. Touching
// endpoints do not conflict: a booking may begin exactly where the
// previous buffer ends.
func conflicts(start, end time.Time, existing *model.Reservation, buffer time.Duration) bool {
	return start.Before(existing.EndTime.Add(buffer)) && end.After(existing.StartTime.Add(-buffer))
}

// windowContains reports whether at falls inside [start-before, end+after].
func windowContains(r *model.Reservation, at time.Time, before, after time.Duration) bool {
	return !at.Before(r.StartTime.Add(-before)) && !at.After(r.EndTime.Add(after))
}
