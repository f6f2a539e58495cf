package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"laundry-booking-backend/internal/db"
	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/schedule"
	"laundry-booking-backend/internal/store"
)

var day = time.Date(2030, time.March, 14, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type freedCall struct {
	ReservationID int64
	Exclude       int64
}

// recordingNotifier remembers what the manager asked to send.
type recordingNotifier struct {
	mu            sync.Mutex
	confirmations []int64
	cancelled     []int64
	freed         []freedCall
}

func (n *recordingNotifier) ConfirmationRequested(_ context.Context, r model.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, r.ID)
	return nil
}

func (n *recordingNotifier) AutoCancelled(_ context.Context, r model.Reservation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, r.ID)
	return nil
}

func (n *recordingNotifier) SlotFreed(_ context.Context, r model.Reservation, exclude int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.freed = append(n.freed, freedCall{ReservationID: r.ID, Exclude: exclude})
	return nil
}

type capturedEvent struct {
	Key   string
	Event reservationEvent
}

type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *capturePublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{Key: key, Event: v.(reservationEvent)})
	return nil
}

func (p *capturePublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Key)
	}
	return out
}

type fixture struct {
	store    store.Store
	manager  *Manager
	notifier *recordingNotifier
	events   *capturePublisher
	flushes  int
	now      time.Time
	washer   model.Machine
	broken   model.Machine
	alice    model.Resident
	bob      model.Resident
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    store.NewGormStore(db.NewTestDB(t)),
		notifier: &recordingNotifier{},
		events:   &capturePublisher{},
		now:      at(7, 0),
	}

	f.washer = model.Machine{Number: 1, Category: model.CategoryWash, Status: model.MachineInService}
	require.NoError(t, f.store.UpsertMachine(ctx, &f.washer))
	f.broken = model.Machine{Number: 2, Category: model.CategoryWash, Status: model.MachineOutOfService}
	require.NoError(t, f.store.UpsertMachine(ctx, &f.broken))

	f.alice = model.Resident{RoomID: 101, IDCard: "A-1", LastName: "Ivanova", FirstName: "Alisa", Patronymic: "Petrovna"}
	require.NoError(t, f.store.CreateResident(ctx, &f.alice))
	f.bob = model.Resident{RoomID: 202, IDCard: "B-2", LastName: "Borisov", FirstName: "Boris", Patronymic: "Ivanovich"}
	require.NoError(t, f.store.CreateResident(ctx, &f.bob))

	f.manager = NewManager(f.store, schedule.DefaultPolicy(), f.notifier,
		Thresholds{Reminder: 40 * time.Minute, Expiry: 30 * time.Minute}, zap.NewNop()).
		WithEvents(f.events).
		WithClock(func() time.Time { return f.now }).
		OnSlotFreed(func() { f.flushes++ })
	return f
}

func (f *fixture) book(t *testing.T, residentID int64, start time.Time) *model.Reservation {
	t.Helper()
	r, err := f.manager.CreateReservation(context.Background(), residentID, f.washer.ID, start)
	require.NoError(t, err)
	return r
}

func (f *fixture) status(t *testing.T, id int64) model.ReservationStatus {
	t.Helper()
	r, err := f.store.GetReservation(context.Background(), id)
	require.NoError(t, err)
	return r.Status
}
