package model

import "time"

// PenaltyPoint is a single append-only ledger entry. A user's standing is
// always derived by aggregating entries inside a rolling window, never by
// mutating a stored counter, so bans expire on their own as entries age out.
type PenaltyPoint struct {
	ID         int64     `gorm:"autoIncrement;primaryKey"`
	UserID     string    `gorm:"index;size:64;not null"`
	Points     int       `gorm:"not null"`
	OccurredAt time.Time `gorm:"index;not null"`
}
