package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roomwatch-backend/internal/model"
)

// gormStore is the durable backend. The overlap check and the insert run
// inside one transaction so two concurrent creates cannot both pass
// validation against the same room.
type gormStore struct {
	db     *gorm.DB
	buffer time.Duration
	now    func() time.Time
}

// NewGormStore creates a GORM-backed store (sqlite or postgres, depending
// on how the *gorm.DB was opened) enforcing the given turnover buffer.
// Audit timestamps are read from now, so a simulated clock stamps records
// consistently with the domain instants; a nil now falls back to wall
// time.
func NewGormStore(db *gorm.DB, buffer time.Duration, now func() time.Time) Store {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if now == nil {
		now = time.Now
	}
	return &gormStore{db: db, buffer: buffer, now: now}
}

func (s *gormStore) CreateReservation(ctx context.Context, roomID, userID string, start, end time.Time) (*model.Reservation, error) {
	if !end.After(start) {
		return nil, ErrInvalidRange
	}

	now := s.now()
	res := &model.Reservation{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		StartTime: start,
		EndTime:   end,
		Status:    model.StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Reservation{}).
			Where("room_id = ? AND status = ?", roomID, model.StatusConfirmed).
			Where("start_time < ? AND end_time > ?", end.Add(s.buffer), start.Add(-s.buffer)).
			Count(&count).Error; err != nil {
			return fmt.Errorf("overlap check failed: %w", err)
		}
		if count > 0 {
			return ErrOverlap
		}
		if err := tx.Create(res).Error; err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *gormStore) ListReservations(ctx context.Context, roomID string) ([]model.Reservation, error) {
	var out []model.Reservation
	if err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("start_time ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return out, nil
}

func (s *gormStore) CancelReservation(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status NOT IN ?", id, []model.ReservationStatus{model.StatusCancelled, model.StatusCompleted}).
		Updates(map[string]interface{}{"status": model.StatusCancelled, "updated_at": s.now()})
	if result.Error != nil {
		return false, fmt.Errorf("failed to cancel reservation %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *gormStore) FindActiveReservation(ctx context.Context, roomID string, at time.Time, before, after time.Duration) (*model.Reservation, error) {
	var res model.Reservation
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, model.StatusConfirmed).
		Where("start_time <= ? AND end_time >= ?", at.Add(before), at.Add(-after)).
		Order("start_time ASC").
		First(&res).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active reservation: %w", err)
	}
	return &res, nil
}

func (s *gormStore) ListExpiredReservations(ctx context.Context, roomID string, cutoff time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	if err := s.db.WithContext(ctx).
		Where("room_id = ? AND status = ? AND end_time < ?", roomID, model.StatusConfirmed, cutoff).
		Order("end_time ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}
	return out, nil
}

func (s *gormStore) TransitionStatus(ctx context.Context, id string, from, to model.ReservationStatus) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": s.now()})
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition reservation %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *gormStore) AppendPenalty(ctx context.Context, userID string, points int, at time.Time) error {
	record := model.PenaltyPoint{UserID: userID, Points: points, OccurredAt: at}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to append penalty for %s: %w", userID, err)
	}
	return nil
}

func (s *gormStore) ListPenaltiesSince(ctx context.Context, userID string, since time.Time) ([]model.PenaltyPoint, error) {
	var out []model.PenaltyPoint
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ?", userID, since).
		Order("occurred_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list penalties for %s: %w", userID, err)
	}
	return out, nil
}

func (s *gormStore) ResetPenalties(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.PenaltyPoint{}).Error; err != nil {
		return fmt.Errorf("failed to reset penalties for %s: %w", userID, err)
	}
	return nil
}

func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(&sub).Error; err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return out, nil
}
