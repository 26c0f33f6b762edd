package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"roomwatch-backend/internal/model"
)

// memoryStore is the volatile backend. All state lives behind one mutex;
// every method copies records out so callers never share memory with the
// store.
type memoryStore struct {
	mu            sync.RWMutex
	buffer        time.Duration
	now           func() time.Time
	reservations  map[string]*model.Reservation
	penalties     []model.PenaltyPoint
	subscriptions map[string]model.PushSubscription
	nextPenaltyID int64
}

// NewMemoryStore creates an in-memory store enforcing the given turnover
// buffer between bookings. A non-positive buffer falls back to
// DefaultBuffer. Audit timestamps are read from now, so a simulated
// clock stamps records consistently with the domain instants; a nil now
// falls back to wall time.
func NewMemoryStore(buffer time.Duration, now func() time.Time) Store {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if now == nil {
		now = time.Now
	}
	return &memoryStore{
		buffer:        buffer,
		now:           now,
		reservations:  make(map[string]*model.Reservation),
		subscriptions: make(map[string]model.PushSubscription),
	}
}

func (s *memoryStore) CreateReservation(ctx context.Context, roomID, userID string, start, end time.Time) (*model.Reservation, error) {
	if !end.After(start) {
		return nil, ErrInvalidRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reservations {
		if existing.RoomID != roomID || existing.Status != model.StatusConfirmed {
			continue
		}
		if conflicts(start, end, existing, s.buffer) {
			return nil, ErrOverlap
		}
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
	s.reservations[res.ID] = res

	out := *res
	return &out, nil
}

func (s *memoryStore) ListReservations(ctx context.Context, roomID string) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Reservation
	for _, r := range s.reservations {
		if r.RoomID == roomID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memoryStore) CancelReservation(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok || r.Status == model.StatusCancelled || r.Status == model.StatusCompleted {
		return false, nil
	}
	r.Status = model.StatusCancelled
	r.UpdatedAt = s.now()
	return true, nil
}

func (s *memoryStore) FindActiveReservation(ctx context.Context, roomID string, at time.Time, before, after time.Duration) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *model.Reservation
	for _, r := range s.reservations {
		if r.RoomID != roomID || r.Status != model.StatusConfirmed {
			continue
		}
		if !windowContains(r, at, before, after) {
			continue
		}
		// The overlap invariant makes ties impossible for disjoint
		// windows; if widened windows overlap, prefer the earlier start.
		if best == nil || r.StartTime.Before(best.StartTime) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *memoryStore) ListExpiredReservations(ctx context.Context, roomID string, cutoff time.Time) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Reservation
	for _, r := range s.reservations {
		if r.RoomID != roomID || r.Status != model.StatusConfirmed {
			continue
		}
		if r.EndTime.Before(cutoff) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (s *memoryStore) TransitionStatus(ctx context.Context, id string, from, to model.ReservationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = s.now()
	return true, nil
}

func (s *memoryStore) AppendPenalty(ctx context.Context, userID string, points int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPenaltyID++
	s.penalties = append(s.penalties, model.PenaltyPoint{
		ID:         s.nextPenaltyID,
		UserID:     userID,
		Points:     points,
		OccurredAt: at,
	})
	return nil
}

func (s *memoryStore) ListPenaltiesSince(ctx context.Context, userID string, since time.Time) ([]model.PenaltyPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PenaltyPoint
	for _, p := range s.penalties {
		if p.UserID == userID && !p.OccurredAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *memoryStore) ResetPenalties(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.penalties[:0]
	for _, p := range s.penalties {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	s.penalties = kept
	return nil
}

func (s *memoryStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.subscriptions[sub.Endpoint]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	s.subscriptions[sub.Endpoint] = sub
	return nil
}

func (s *memoryStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[endpoint]
	if !ok {
		return nil, nil
	}
	out := sub
	return &out, nil
}

func (s *memoryStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscriptions, endpoint)
	return nil
}

func (s *memoryStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PushSubscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		out = append(out, sub)
	}
	return out, nil
}
