// Package penalty implements the no-show penalty ledger. Points are
// appended as timestamped records and aggregated inside a rolling window
// on every read, so a ban expires on its own once old records fall out
// of the window.
package penalty

import (
	"context"
	"fmt"
	"time"

	"roomwatch-backend/internal/store"
)

// Summary is a user's current standing derived from the ledger.
type Summary struct {
	UserID     string     `json:"user_id"`
	Points     int        `json:"points"`
	Threshold  int        `json:"threshold"`
	IsBanned   bool       `json:"is_banned"`
	BanUntil   *time.Time `json:"ban_until"`
	WindowDays int        `json:"window_days"`
}

// Service aggregates penalty records over a rolling window.
type Service struct {
	store      store.PenaltyStore
	windowDays int
	threshold  int
}

// NewService creates a ledger service. Non-positive windowDays/threshold
// fall back to 30 days and 3 points.
func NewService(s store.PenaltyStore, windowDays, threshold int) *Service {
	if windowDays <= 0 {
		windowDays = 30
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &Service{store: s, windowDays: windowDays, threshold: threshold}
}

// Accrue appends a point record for the user. Idempotency is the
// caller's responsibility; the engine's one-shot no-show transition
// guarantees a single accrual per reservation.
func (s *Service) Accrue(ctx context.Context, userID string, at time.Time, points int) error {
	if points <= 0 {
		points = 1
	}
	if err := s.store.AppendPenalty(ctx, userID, points, at); err != nil {
		return fmt.Errorf("penalty accrual failed: %w", err)
	}
	return nil
}

// Summary computes the user's standing at now. BanUntil is the instant
// the oldest in-window record ages out, i.e. when the ban would lift if
// no further points accrue; it is nil while the user is not banned.
func (s *Service) Summary(ctx context.Context, userID string, now time.Time) (Summary, error) {
	windowStart := now.AddDate(0, 0, -s.windowDays)
	records, err := s.store.ListPenaltiesSince(ctx, userID, windowStart)
	if err != nil {
		return Summary{}, fmt.Errorf("penalty summary failed: %w", err)
	}

	total := 0
	for _, r := range records {
		total += r.Points
	}

	summary := Summary{
		UserID:     userID,
		Points:     total,
		Threshold:  s.threshold,
		IsBanned:   total >= s.threshold,
		WindowDays: s.windowDays,
	}
	if summary.IsBanned && len(records) > 0 {
		until := records[0].OccurredAt.AddDate(0, 0, s.windowDays)
		summary.BanUntil = &until
	}
	return summary, nil
}

// Reset discards all of the user's penalty records. Administrative
// override only.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if err := s.store.ResetPenalties(ctx, userID); err != nil {
		return fmt.Errorf("penalty reset failed: %w", err)
	}
	return nil
}
