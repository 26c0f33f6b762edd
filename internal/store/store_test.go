package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"roomwatch-backend/internal/model"
)

const testRoom = "Room-A"

// backends runs a subtest against both store implementations so the
// memory and GORM backends stay behaviorally identical.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	backendsAt(t, nil, fn)
}

// backendsAt is backends with an injected clock for tests that assert on
// audit timestamps.
func backendsAt(t *testing.T, now func() time.Time, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(5*time.Minute, now))
	})
	t.Run("gorm", func(t *testing.T) {
		db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store_test.db")), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err)
		require.NoError(t, db.AutoMigrate(&model.Reservation{}, &model.PenaltyPoint{}, &model.PushSubscription{}))
		fn(t, NewGormStore(db, 5*time.Minute, now))
	})
}

func TestCreateReservationRejectsInvalidRange(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		at := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

		_, err := s.CreateReservation(ctx, testRoom, "user-1", at, at)
		assert.ErrorIs(t, err, ErrInvalidRange)

		_, err = s.CreateReservation(ctx, testRoom, "user-1", at, at.Add(-time.Minute))
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestCreateReservationEnforcesBuffer(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

		_, err := s.CreateReservation(ctx, testRoom, "user-1", base, base.Add(30*time.Minute))
		require.NoError(t, err)

		// Direct overlap.
		_, err = s.CreateReservation(ctx, testRoom, "user-2", base.Add(15*time.Minute), base.Add(45*time.Minute))
		assert.ErrorIs(t, err, ErrOverlap)

		// Inside the 5 minute buffer after the existing booking.
		_, err = s.CreateReservation(ctx, testRoom, "user-2", base.Add(33*time.Minute), base.Add(50*time.Minute))
		assert.ErrorIs(t, err, ErrOverlap)

		// Exactly at the buffer boundary is allowed.
		_, err = s.CreateReservation(ctx, testRoom, "user-2", base.Add(35*time.Minute), base.Add(50*time.Minute))
		assert.NoError(t, err)

		// A different room is unaffected.
		_, err = s.CreateReservation(ctx, "Room-B", "user-2", base, base.Add(30*time.Minute))
		assert.NoError(t, err)
	})
}

func TestCancelledReservationDoesNotBlockCreation(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

		res, err := s.CreateReservation(ctx, testRoom, "user-1", base, base.Add(30*time.Minute))
		require.NoError(t, err)

		changed, err := s.CancelReservation(ctx, res.ID)
		require.NoError(t, err)
		require.True(t, changed)

		_, err = s.CreateReservation(ctx, testRoom, "user-2", base, base.Add(30*time.Minute))
		assert.NoError(t, err)
	})
}

func TestCancelReservationTwice(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

		res, err := s.CreateReservation(ctx, testRoom, "user-1", base, base.Add(30*time.Minute))
		require.NoError(t, err)

		changed, err := s.CancelReservation(ctx, res.ID)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = s.CancelReservation(ctx, res.ID)
		require.NoError(t, err)
		assert.False(t, changed)

		changed, err = s.CancelReservation(ctx, "no-such-id")
		require.NoError(t, err)
		assert.False(t, changed)
	})
}

func TestListReservationsOrderedByStart(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

		// Created out of order on purpose.
		_, err := s.CreateReservation(ctx, testRoom, "user-1", base.Add(2*time.Hour), base.Add(3*time.Hour))
		require.NoError(t, err)
		_, err = s.CreateReservation(ctx, testRoom, "user-2", base, base.Add(30*time.Minute))
		require.NoError(t, err)

		list, err := s.ListReservations(ctx, testRoom)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.True(t, list[0].StartTime.Before(list[1].StartTime))
		assert.Equal(t, "user-2", list[0].UserID)
	})
}

func TestFindActiveReservationHonorsArrivalWindows(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		start := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)
		end := start.Add(30 * time.Minute)

		res, err := s.CreateReservation(ctx, testRoom, "user-1", start, end)
		require.NoError(t, err)

		before, after := 10*time.Minute, 10*time.Minute

		found, err := s.FindActiveReservation(ctx, testRoom, start.Add(-5*time.Minute), before, after)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, res.ID, found.ID)

		found, err = s.FindActiveReservation(ctx, testRoom, end.Add(5*time.Minute), before, after)
		require.NoError(t, err)
		require.NotNil(t, found)

		found, err = s.FindActiveReservation(ctx, testRoom, start.Add(-15*time.Minute), before, after)
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = s.FindActiveReservation(ctx, "Room-B", start, before, after)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestTransitionStatusIsOneShot(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

		res, err := s.CreateReservation(ctx, testRoom, "user-1", base, base.Add(30*time.Minute))
		require.NoError(t, err)

		won, err := s.TransitionStatus(ctx, res.ID, model.StatusConfirmed, model.StatusNoShow)
		require.NoError(t, err)
		assert.True(t, won)

		// A second attempt (or a concurrent loser) must not win again.
		won, err = s.TransitionStatus(ctx, res.ID, model.StatusConfirmed, model.StatusNoShow)
		require.NoError(t, err)
		assert.False(t, won)

		// A no-show reservation is no longer active.
		found, err := s.FindActiveReservation(ctx, testRoom, base.Add(10*time.Minute), 0, 0)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestListExpiredReservations(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

		old, err := s.CreateReservation(ctx, testRoom, "user-1", base, base.Add(30*time.Minute))
		require.NoError(t, err)
		recent, err := s.CreateReservation(ctx, testRoom, "user-2", base.Add(time.Hour), base.Add(90*time.Minute))
		require.NoError(t, err)
		cancelled, err := s.CreateReservation(ctx, testRoom, "user-3", base.Add(-2*time.Hour), base.Add(-90*time.Minute))
		require.NoError(t, err)
		_, err = s.CancelReservation(ctx, cancelled.ID)
		require.NoError(t, err)
		_, err = s.CreateReservation(ctx, "Room-B", "user-4", base, base.Add(30*time.Minute))
		require.NoError(t, err)

		// Cutoff past the first booking's end but not the second's:
		// only the still-Confirmed overdue one comes back.
		expired, err := s.ListExpiredReservations(ctx, testRoom, base.Add(40*time.Minute))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, old.ID, expired[0].ID)

		// Once settled it stops showing up.
		won, err := s.TransitionStatus(ctx, old.ID, model.StatusConfirmed, model.StatusCompleted)
		require.NoError(t, err)
		require.True(t, won)
		expired, err = s.ListExpiredReservations(ctx, testRoom, base.Add(40*time.Minute))
		require.NoError(t, err)
		assert.Empty(t, expired)

		// A wide cutoff keeps oldest end first.
		_, err = s.CreateReservation(ctx, testRoom, "user-5", base.Add(-4*time.Hour), base.Add(-210*time.Minute))
		require.NoError(t, err)
		expired, err = s.ListExpiredReservations(ctx, testRoom, base.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, expired, 2)
		assert.Equal(t, "user-5", expired[0].UserID)
		assert.Equal(t, recent.ID, expired[1].ID)
	})
}

func TestAuditTimestampsFollowInjectedClock(t *testing.T) {
	stamp := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)
	backendsAt(t, func() time.Time { return stamp }, func(t *testing.T, s Store) {
		ctx := context.Background()

		res, err := s.CreateReservation(ctx, testRoom, "user-1", stamp.Add(time.Hour), stamp.Add(2*time.Hour))
		require.NoError(t, err)
		assert.True(t, res.CreatedAt.Equal(stamp))
		assert.True(t, res.UpdatedAt.Equal(stamp))

		changed, err := s.CancelReservation(ctx, res.ID)
		require.NoError(t, err)
		require.True(t, changed)

		list, err := s.ListReservations(ctx, testRoom)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].CreatedAt.Equal(stamp))
		assert.True(t, list[0].UpdatedAt.Equal(stamp))
	})
}

func TestPenaltyLedgerAppendListReset(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		now := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

		require.NoError(t, s.AppendPenalty(ctx, "user-1", 1, now.AddDate(0, 0, -40)))
		require.NoError(t, s.AppendPenalty(ctx, "user-1", 1, now.AddDate(0, 0, -10)))
		require.NoError(t, s.AppendPenalty(ctx, "user-1", 1, now.AddDate(0, 0, -1)))
		require.NoError(t, s.AppendPenalty(ctx, "user-2", 1, now))

		recent, err := s.ListPenaltiesSince(ctx, "user-1", now.AddDate(0, 0, -30))
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.True(t, recent[0].OccurredAt.Before(recent[1].OccurredAt))

		require.NoError(t, s.ResetPenalties(ctx, "user-1"))

		recent, err = s.ListPenaltiesSince(ctx, "user-1", now.AddDate(0, 0, -365))
		require.NoError(t, err)
		assert.Empty(t, recent)

		// Other users are untouched by a reset.
		others, err := s.ListPenaltiesSince(ctx, "user-2", now.AddDate(0, 0, -1))
		require.NoError(t, err)
		assert.Len(t, others, 1)
	})
}

func TestSubscriptionRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		sub := model.PushSubscription{Endpoint: "https://push.example/abc", P256DH: "key", Auth: "auth"}
		require.NoError(t, s.UpsertSubscription(ctx, sub))

		// Upsert with new keys replaces, not duplicates.
		sub.P256DH = "key2"
		require.NoError(t, s.UpsertSubscription(ctx, sub))

		got, err := s.GetSubscription(ctx, sub.Endpoint)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "key2", got.P256DH)

		all, err := s.ListSubscriptions(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		require.NoError(t, s.DeleteSubscription(ctx, sub.Endpoint))
		got, err = s.GetSubscription(ctx, sub.Endpoint)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
