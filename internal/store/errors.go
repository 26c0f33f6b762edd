package store

import "errors"

var (
	// ErrInvalidRange means the reservation's end is not after its start.
	ErrInvalidRange = errors.New("store: end time must be after start time")

	// ErrOverlap means the requested range, once the turnover buffer is
	// applied, collides with an existing Confirmed reservation.
	ErrOverlap = errors.New("store: reservation overlaps an existing booking")
)
