package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
	StatusNoShow    ReservationStatus = "no_show"
)

// Reservation represents a single booking of a room. The time range is
// immutable once created; only the status changes afterwards, and only
// through store operations.
type Reservation struct {
	ID        string            `gorm:"primaryKey;size:36" json:"reservation_id"`
	RoomID    string            `gorm:"index;size:64;not null" json:"room_id"`
	UserID    string            `gorm:"index;size:64;not null" json:"user_id"`
	StartTime time.Time         `gorm:"not null" json:"start_time"`
	EndTime   time.Time         `gorm:"not null" json:"end_time"`
	Status    ReservationStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time         `json:"-"`
	UpdatedAt time.Time         `json:"-"`
}
