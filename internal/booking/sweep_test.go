package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-booking-backend/internal/model"
)

func TestSweep_RemindThenExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := at(12, 30)
	r := f.book(t, f.alice.ID, start)

	report, err := f.manager.Sweep(ctx, start.Add(-45*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report, "too early for a reminder")

	report, err = f.manager.Sweep(ctx, start.Add(-40*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Reminded: 1}, report)
	assert.Equal(t, model.ReservationAwaitingConfirmation, f.status(t, r.ID))
	assert.Equal(t, []int64{r.ID}, f.notifier.confirmations)
	assert.Zero(t, f.flushes, "a reminder keeps the slot taken")

	report, err = f.manager.Sweep(ctx, start.Add(-35*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report, "grace period still running")

	report, err = f.manager.Sweep(ctx, start.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Expired: 1}, report)
	assert.Equal(t, model.ReservationExpired, f.status(t, r.ID))
	assert.Equal(t, []int64{r.ID}, f.notifier.cancelled)
	assert.Equal(t, []freedCall{{ReservationID: r.ID, Exclude: f.alice.ID}}, f.notifier.freed)
	assert.Equal(t, 1, f.flushes)

	report, err = f.manager.Sweep(ctx, start.Add(-29*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Len(t, f.notifier.confirmations, 1)
	assert.Len(t, f.notifier.cancelled, 1)
	assert.Len(t, f.notifier.freed, 1)

	assert.Equal(t, []string{EventCreated, EventExpired}, f.events.keys())
}

func TestSweep_ConfirmedReservationSurvives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := at(12, 30)
	r := f.book(t, f.alice.ID, start)

	_, err := f.manager.Sweep(ctx, start.Add(-40*time.Minute))
	require.NoError(t, err)

	f.now = start.Add(-38 * time.Minute)
	_, err = f.manager.ConfirmOwned(ctx, r.ID, f.alice.ID)
	require.NoError(t, err)

	report, err := f.manager.Sweep(ctx, start.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Equal(t, model.ReservationConfirmed, f.status(t, r.ID))
	assert.Empty(t, f.notifier.cancelled)
	assert.Empty(t, f.notifier.freed)
}

func TestSweep_LateSweepExpiresWithoutAnnouncingStartedWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := at(12, 30)
	r := f.book(t, f.alice.ID, start)

	_, err := f.manager.Sweep(ctx, start.Add(-20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.ReservationAwaitingConfirmation, f.status(t, r.ID))

	// A late reminder still gets its full grace period.
	report, err := f.manager.Sweep(ctx, start.Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)

	report, err = f.manager.Sweep(ctx, start.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Expired: 1}, report)
	assert.Equal(t, []int64{r.ID}, f.notifier.cancelled)
	assert.Empty(t, f.notifier.freed)
}

func TestSweep_IgnoresClosedReservations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.book(t, f.bob.ID, at(11, 0))
	ok, err := f.manager.CancelReservation(ctx, cancelled.ID, f.bob.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, f.flushes)

	report, err := f.manager.Sweep(ctx, at(10, 40))
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Equal(t, model.ReservationCancelled, f.status(t, cancelled.ID))
	assert.Equal(t, 1, f.flushes)
}

// A reservation that reaches its start without ever being asked to confirm
// (booked after the last tick, or the sweeper was down) is kept.
func TestSweep_UnremindedReservationIsKeptOnceStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	started := f.book(t, f.alice.ID, at(9, 30))

	for _, now := range []time.Time{at(9, 31), at(10, 0), at(10, 59)} {
		report, err := f.manager.Sweep(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, SweepReport{}, report)
	}
	assert.Equal(t, model.ReservationActive, f.status(t, started.ID))
	assert.Empty(t, f.notifier.confirmations)
	assert.Empty(t, f.notifier.cancelled)
}

func TestSweep_ConcurrentRunsExpireOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := at(12, 30)
	r := f.book(t, f.alice.ID, start)

	_, err := f.manager.Sweep(ctx, start.Add(-40*time.Minute))
	require.NoError(t, err)

	reports := make(chan SweepReport, 2)
	for i := 0; i < 2; i++ {
		go func() {
			report, err := f.manager.Sweep(ctx, start.Add(-30*time.Minute))
			assert.NoError(t, err)
			reports <- report
		}()
	}
	total := (<-reports).Expired + (<-reports).Expired

	assert.Equal(t, 1, total)
	assert.Equal(t, model.ReservationExpired, f.status(t, r.ID))
	assert.Len(t, f.notifier.cancelled, 1)
	assert.Len(t, f.notifier.freed, 1)
}
