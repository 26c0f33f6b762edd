package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomwatch-backend/internal/clock"
	"roomwatch-backend/internal/model"
	"roomwatch-backend/internal/occupancy"
	"roomwatch-backend/internal/penalty"
	"roomwatch-backend/internal/store"
)

const testRoom = "Room-A"

// failingProvider simulates a camera outage.
type failingProvider struct{}

func (failingProvider) GetIsOccupied(ctx context.Context, at time.Time) (bool, error) {
	return false, errors.New("camera offline")
}

// recordingNotifier captures dispatched alerts.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (n *recordingNotifier) Dispatch(alert Alert) {
	n.mu.Lock()
	n.alerts = append(n.alerts, alert)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type fixture struct {
	store    store.Store
	penalty  *penalty.Service
	engine   *Engine
	notifier *recordingNotifier
	clock    *clock.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore(5*time.Minute, nil)
	svc := penalty.NewService(s, 30, 3)
	n := &recordingNotifier{}
	c := clock.New()
	e := New(Options{
		RoomID:       testRoom,
		Reservations: s,
		Penalties:    svc,
		Clock:        c,
		Provider:     occupancy.NewDummy(false),
		Notifier:     n,
		Params: Params{
			GracePeriodSec:         300,
			ArrivalWindowBeforeSec: 600,
			ArrivalWindowAfterSec:  600,
			CleanupMarginSec:       300,
		},
	})
	return &fixture{store: s, penalty: svc, engine: e, notifier: n, clock: c}
}

func (f *fixture) reserve(t *testing.T, user string, start, end time.Time) *model.Reservation {
	t.Helper()
	res, err := f.store.CreateReservation(context.Background(), testRoom, user, start, end)
	require.NoError(t, err)
	return res
}

func (f *fixture) eval(t *testing.T, occupied bool, now time.Time) Snapshot {
	t.Helper()
	snap, err := f.engine.evaluate(context.Background(), occupied, now)
	require.NoError(t, err)
	return snap
}

func (f *fixture) points(t *testing.T, user string, now time.Time) int {
	t.Helper()
	sum, err := f.penalty.Summary(context.Background(), user, now)
	require.NoError(t, err)
	return sum.Points
}

var resStart = time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC)

func TestIdleWithoutReservation(t *testing.T) {
	f := newFixture(t)

	// Unbooked occupancy is observed but not policed.
	snap := f.eval(t, true, resStart)
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.ReservationID)
	assert.Nil(t, snap.Alert)
	assert.Equal(t, 1, snap.PeopleCount)
	assert.True(t, snap.IsUsed)
}

func TestNoShowAfterGraceAccruesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	res := f.reserve(t, "user-1", resStart, resStart.Add(30*time.Minute))

	// One second before the grace deadline the user still has time.
	snap := f.eval(t, false, resStart.Add(4*time.Minute+59*time.Second))
	assert.Equal(t, StateAwaitingArrival, snap.State)
	assert.Nil(t, snap.Alert)
	require.NotNil(t, snap.ReservationID)
	assert.Equal(t, res.ID, *snap.ReservationID)

	// At the deadline the reservation becomes a no-show.
	noShowAt := resStart.Add(5 * time.Minute)
	snap = f.eval(t, false, noShowAt)
	assert.Equal(t, StateNoShow, snap.State)
	require.NotNil(t, snap.Alert)
	assert.Equal(t, AlertNoShow, snap.Alert.Kind)
	assert.Equal(t, 1, f.points(t, "user-1", noShowAt))
	assert.Equal(t, 1, f.notifier.count())

	list, err := f.store.ListReservations(context.Background(), testRoom)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusNoShow, list[0].Status)

	// Repeated ticks must not re-accrue.
	snap = f.eval(t, false, noShowAt.Add(5*time.Second))
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Alert)
	assert.Equal(t, 1, f.points(t, "user-1", noShowAt.Add(time.Minute)))
	assert.Equal(t, 1, f.notifier.count())
}

func TestLateArrivalWithinGraceAvoidsPenalty(t *testing.T) {
	f := newFixture(t)
	f.reserve(t, "user-1", resStart, resStart.Add(30*time.Minute))

	// Absent for the first two minutes.
	snap := f.eval(t, false, resStart.Add(time.Minute))
	assert.Equal(t, StateAwaitingArrival, snap.State)

	// Arrives at 10:02.
	snap = f.eval(t, true, resStart.Add(2*time.Minute))
	assert.Equal(t, StateInUse, snap.State)

	// Even if the room later reads empty past the grace deadline, no
	// no-show fires: arrival was observed during the window.
	snap = f.eval(t, false, resStart.Add(10*time.Minute))
	assert.Equal(t, StateInUse, snap.State)
	assert.Nil(t, snap.Alert)
	assert.Equal(t, 0, f.points(t, "user-1", resStart.Add(time.Hour)))
}

func TestOverstayAlertAfterCleanupMargin(t *testing.T) {
	f := newFixture(t)
	end := resStart.Add(30 * time.Minute)
	res := f.reserve(t, "user-1", resStart, end)

	snap := f.eval(t, true, resStart.Add(10*time.Minute))
	assert.Equal(t, StateInUse, snap.State)

	// Past the end but inside the cleanup margin: overstay, no alert yet.
	snap = f.eval(t, true, end.Add(2*time.Minute))
	assert.Equal(t, StateOverstay, snap.State)
	assert.Nil(t, snap.Alert)

	// Past end + cleanup margin: alert raised, dispatched once.
	snap = f.eval(t, true, end.Add(6*time.Minute))
	assert.Equal(t, StateOverstay, snap.State)
	require.NotNil(t, snap.Alert)
	assert.Equal(t, AlertOverstay, snap.Alert.Kind)
	assert.Equal(t, res.ID, snap.Alert.ReservationID)
	assert.Equal(t, 1, f.notifier.count())

	// The alert stays in the snapshot while the condition holds, but is
	// not re-dispatched.
	snap = f.eval(t, true, end.Add(7*time.Minute))
	require.NotNil(t, snap.Alert)
	assert.Equal(t, 1, f.notifier.count())
}

func TestCompletionAfterVacatedWindow(t *testing.T) {
	f := newFixture(t)
	end := resStart.Add(30 * time.Minute)
	f.reserve(t, "user-1", resStart, end)

	f.eval(t, true, resStart.Add(5*time.Minute))
	f.eval(t, false, end.Add(time.Minute)) // vacated, inside cleanup margin

	snap := f.eval(t, false, end.Add(6*time.Minute))
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.ReservationID)

	list, err := f.store.ListReservations(context.Background(), testRoom)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusCompleted, list[0].Status)
	assert.Equal(t, 0, f.points(t, "user-1", end.Add(time.Hour)))
}

func TestCompletionWithCleanupMarginBeyondArrivalWindow(t *testing.T) {
	f := newFixture(t)
	p := f.engine.Params()
	p.ArrivalWindowAfterSec = 60
	p.CleanupMarginSec = 600
	f.engine.SetParams(p)

	end := resStart.Add(30 * time.Minute)
	f.reserve(t, "user-1", resStart, end)

	f.eval(t, true, resStart.Add(10*time.Minute))
	// Vacated past the short arrival window but inside the cleanup
	// margin: still bound, the reservation must not fall out early.
	snap := f.eval(t, false, end.Add(time.Minute))
	assert.Equal(t, StateInUse, snap.State)

	// Well past every margin the reservation settles as completed even
	// though the cleanup margin outlived the arrival window.
	snap = f.eval(t, false, end.Add(15*time.Minute))
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.ReservationID)

	list, err := f.store.ListReservations(context.Background(), testRoom)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.StatusCompleted, list[0].Status)
	assert.Equal(t, 0, f.points(t, "user-1", end.Add(time.Hour)))
}

func TestNoShowWithGraceBeyondReservationEnd(t *testing.T) {
	f := newFixture(t)
	p := f.engine.Params()
	p.GracePeriodSec = 3600
	p.ArrivalWindowAfterSec = 60
	f.engine.SetParams(p)

	end := resStart.Add(30 * time.Minute)
	res := f.reserve(t, "user-1", resStart, end)

	// The grace deadline lies past the reservation end; the binding has
	// to hold until it is decided.
	snap := f.eval(t, false, end.Add(15*time.Minute))
	assert.Equal(t, StateAwaitingArrival, snap.State)
	require.NotNil(t, snap.ReservationID)
	assert.Equal(t, res.ID, *snap.ReservationID)

	snap = f.eval(t, false, resStart.Add(time.Hour))
	assert.Equal(t, StateNoShow, snap.State)
	assert.Equal(t, 1, f.points(t, "user-1", resStart.Add(2*time.Hour)))
	assert.Equal(t, 1, f.notifier.count())
}

func TestExpiredReservationsSettleAfterClockJump(t *testing.T) {
	f := newFixture(t)
	missed := f.reserve(t, "user-1", resStart, resStart.Add(30*time.Minute))
	honored := f.reserve(t, "user-2", resStart.Add(time.Hour), resStart.Add(90*time.Minute))

	f.eval(t, true, resStart.Add(65*time.Minute)) // user-2 arrives

	// Jumps far past a window, as a fast simulated clock produces, must
	// still leave every reservation with a terminal status: the
	// unobserved one as a no-show with a penalty, the arrived one as
	// completed.
	snap := f.eval(t, false, resStart.Add(5*time.Hour))
	assert.Equal(t, StateIdle, snap.State)

	list, err := f.store.ListReservations(context.Background(), testRoom)
	require.NoError(t, err)
	require.Len(t, list, 2)
	byID := map[string]model.ReservationStatus{}
	for _, r := range list {
		byID[r.ID] = r.Status
	}
	assert.Equal(t, model.StatusNoShow, byID[missed.ID])
	assert.Equal(t, model.StatusCompleted, byID[honored.ID])
	assert.Equal(t, 1, f.points(t, "user-1", resStart.Add(6*time.Hour)))
	assert.Equal(t, 0, f.points(t, "user-2", resStart.Add(6*time.Hour)))
	assert.Equal(t, 1, f.notifier.count())
}

func TestCancelledReservationIsNotPenalized(t *testing.T) {
	f := newFixture(t)
	res := f.reserve(t, "user-1", resStart, resStart.Add(30*time.Minute))

	changed, err := f.store.CancelReservation(context.Background(), res.ID)
	require.NoError(t, err)
	require.True(t, changed)

	snap := f.eval(t, false, resStart.Add(10*time.Minute))
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 0, f.points(t, "user-1", resStart.Add(time.Hour)))
}

func TestEarlyArrivalWithinWindowBindsReservation(t *testing.T) {
	f := newFixture(t)
	res := f.reserve(t, "user-1", resStart, resStart.Add(30*time.Minute))

	// Five minutes early, inside the 10 minute arrival window.
	snap := f.eval(t, true, resStart.Add(-5*time.Minute))
	assert.Equal(t, StateInUse, snap.State)
	require.NotNil(t, snap.ReservationID)
	assert.Equal(t, res.ID, *snap.ReservationID)
}

func TestTickKeepsPreviousSnapshotOnOccupancyFailure(t *testing.T) {
	f := newFixture(t)

	// Publish a healthy snapshot first.
	require.NoError(t, f.engine.Tick(context.Background()))
	previous := f.engine.Snapshot()

	f.engine.provider = failingProvider{}

	err := f.engine.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, previous, f.engine.Snapshot())
}

func TestSetParamsTakesEffect(t *testing.T) {
	f := newFixture(t)
	f.reserve(t, "user-1", resStart, resStart.Add(30*time.Minute))

	p := f.engine.Params()
	p.GracePeriodSec = 60
	f.engine.SetParams(p)

	// With a one minute grace the no-show fires much earlier.
	snap := f.eval(t, false, resStart.Add(90*time.Second))
	assert.Equal(t, StateNoShow, snap.State)
}
