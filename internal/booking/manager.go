package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"laundry-booking-backend/config"
	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/schedule"
	"laundry-booking-backend/internal/store"
)

// Store is the part of the store the lifecycle manager mutates.
type Store interface {
	GetMachine(ctx context.Context, id int64) (*model.Machine, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	ListReservations(ctx context.Context, filter store.ReservationFilter) ([]model.Reservation, error)
	TransitionReservation(ctx context.Context, t store.Transition) (*model.Reservation, error)
}

// Notifier receives the lifecycle events that residents are told about. The
// calls only queue work; an error means the work could not be queued.
type Notifier interface {
	ConfirmationRequested(ctx context.Context, r model.Reservation) error
	AutoCancelled(ctx context.Context, r model.Reservation) error
	SlotFreed(ctx context.Context, r model.Reservation, excludeResidentID int64) error
}

// Thresholds are the sweep's distances from a reservation's start.
type Thresholds struct {
	Reminder time.Duration
	Expiry   time.Duration
}

// ThresholdsFromConfig reads the finalized sweep section.
func ThresholdsFromConfig(cfg *config.SweepConfig) Thresholds {
	return Thresholds{Reminder: cfg.Reminder, Expiry: cfg.Expiry}
}

// Manager creates reservations and drives their status transitions.
type Manager struct {
	store      Store
	policy     schedule.Policy
	notifier   Notifier
	events     EventPublisher
	thresholds Thresholds
	freed      []func()
	now        func() time.Time
	log        *zap.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(s Store, policy schedule.Policy, n Notifier, th Thresholds, log *zap.Logger) *Manager {
	return &Manager{
		store:      s,
		policy:     policy,
		notifier:   n,
		events:     nopPublisher{},
		thresholds: th,
		now:        time.Now,
		log:        log,
	}
}

// WithEvents publishes lifecycle events to p.
func (m *Manager) WithEvents(p EventPublisher) *Manager {
	m.events = p
	return m
}

// OnSlotFreed registers fn to run whenever a reservation is cancelled or
// expired, so cached availability can be dropped.
func (m *Manager) OnSlotFreed(fn func()) *Manager {
	m.freed = append(m.freed, fn)
	return m
}

func (m *Manager) slotFreed() {
	for _, fn := range m.freed {
		fn()
	}
}

// WithClock replaces the manager's clock. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CreateReservation books machineID for the slot starting at start. The
// overlap check and the insert run in one transaction; a lost race returns
// ErrSlotConflict.
func (m *Manager) CreateReservation(ctx context.Context, residentID, machineID int64, start time.Time) (*model.Reservation, error) {
	machine, err := m.store.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if !m.policy.Within(start, machine.Category) {
		return nil, model.ErrInvalidSlot
	}
	if !m.policy.Bookable(start, m.now()) {
		return nil, model.ErrSlotClosed
	}

	r := &model.Reservation{
		MachineID:  machine.ID,
		ResidentID: residentID,
		StartAt:    start,
		EndAt:      start.Add(m.policy.SlotFor(machine.Category)),
		Status:     model.ReservationActive,
	}
	if err := m.store.CreateReservation(ctx, r); err != nil {
		return nil, err
	}

	m.log.Info("reservation created",
		zap.Int64("reservation_id", r.ID),
		zap.Int64("machine_id", r.MachineID),
		zap.Int64("resident_id", r.ResidentID),
		zap.Time("start", r.StartAt),
	)
	m.publish(ctx, EventCreated, *r)
	return r, nil
}

// CancelReservation cancels a live reservation owned by residentID. It returns
// false, without error, when the reservation does not exist, belongs to
// somebody else or is already closed. A freed future window is announced to
// the other residents.
func (m *Manager) CancelReservation(ctx context.Context, reservationID, residentID int64) (bool, error) {
	now := m.now()
	r, err := m.store.TransitionReservation(ctx, store.Transition{
		ID:         reservationID,
		From:       model.LiveStatuses,
		To:         model.ReservationCancelled,
		ResidentID: residentID,
		At:         now,
	})
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrAlreadyFinalized):
		return false, nil
	case err != nil:
		return false, err
	}

	m.log.Info("reservation cancelled", zap.Int64("reservation_id", r.ID), zap.Int64("resident_id", residentID))
	m.slotFreed()
	m.publish(ctx, EventCancelled, *r)
	if r.StartAt.After(now) {
		if err := m.notifier.SlotFreed(ctx, *r, residentID); err != nil {
			m.log.Error("failed to queue freed slot fan-out", zap.Int64("reservation_id", r.ID), zap.Error(err))
		}
	}
	return true, nil
}

// MarkAwaitingConfirmation moves an ACTIVE reservation to AWAITING_CONFIRMATION.
// Any other state yields the current row with ErrAlreadyFinalized.
func (m *Manager) MarkAwaitingConfirmation(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	return m.store.TransitionReservation(ctx, store.Transition{
		ID:   reservationID,
		From: []model.ReservationStatus{model.ReservationActive},
		To:   model.ReservationAwaitingConfirmation,
		At:   m.now(),
	})
}

// MarkConfirmed confirms an ACTIVE or AWAITING_CONFIRMATION reservation.
// Confirming a CONFIRMED, CANCELLED or EXPIRED one is a no-op reported as
// ErrAlreadyFinalized.
func (m *Manager) MarkConfirmed(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	return m.confirm(ctx, reservationID, 0)
}

// ConfirmOwned is MarkConfirmed restricted to the owner's reservations.
func (m *Manager) ConfirmOwned(ctx context.Context, reservationID, residentID int64) (*model.Reservation, error) {
	return m.confirm(ctx, reservationID, residentID)
}

func (m *Manager) confirm(ctx context.Context, reservationID, residentID int64) (*model.Reservation, error) {
	r, err := m.store.TransitionReservation(ctx, store.Transition{
		ID:         reservationID,
		From:       []model.ReservationStatus{model.ReservationActive, model.ReservationAwaitingConfirmation},
		To:         model.ReservationConfirmed,
		ResidentID: residentID,
		At:         m.now(),
	})
	if err != nil {
		return r, err
	}
	m.log.Info("reservation confirmed", zap.Int64("reservation_id", r.ID))
	m.publish(ctx, EventConfirmed, *r)
	return r, nil
}

// ListResidentReservations is the "my bookings" view. upcomingOnly keeps the
// live reservations that have not ended yet.
func (m *Manager) ListResidentReservations(ctx context.Context, residentID int64, upcomingOnly bool) ([]model.Reservation, error) {
	filter := store.ReservationFilter{ResidentID: residentID, PreloadMachine: true}
	if upcomingOnly {
		filter.Statuses = model.LiveStatuses
		filter.EndAfter = m.now()
	}
	return m.store.ListReservations(ctx, filter)
}

// GetReservation returns the reservation if residentID owns it.
func (m *Manager) GetReservation(ctx context.Context, reservationID, residentID int64) (*model.Reservation, error) {
	r, err := m.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.ResidentID != residentID {
		return nil, fmt.Errorf("reservation %d: %w", reservationID, model.ErrNotFound)
	}
	return r, nil
}
