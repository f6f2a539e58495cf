package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"laundry-booking-backend/internal/model"
	"laundry-booking-backend/internal/store"
)

// SweepReport summarises one sweep run.
type SweepReport struct {
	Reminded int `json:"reminded"`
	Expired  int `json:"expired"`
	Errors   int `json:"errors"`
}

// Sweep advances reservations by wall-clock time.
//
//  1. ACTIVE reservations starting in (now, now+Reminder] move to
//     AWAITING_CONFIRMATION and their owners are asked to confirm.
//  2. AWAITING_CONFIRMATION reservations starting by now+Expiry whose reminder
//     went out at least Reminder-Expiry ago move to EXPIRED; the owner is told
//     and a window that has not started yet is announced to everybody else.
//
// An ACTIVE reservation whose start passes before any run reminded it stays
// ACTIVE: its owner was never asked to confirm.
//
// Deadlines come from stored columns only, so a restart loses nothing. Each
// item fails on its own; only a failed selection aborts the run.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport

	due, err := m.store.ListReservations(ctx, store.ReservationFilter{
		Statuses:       []model.ReservationStatus{model.ReservationActive},
		StartAfter:     now,
		StartUntil:     now.Add(m.thresholds.Reminder),
		PreloadMachine: true,
	})
	if err != nil {
		return report, fmt.Errorf("select reservations to remind: %w", err)
	}
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if m.remind(ctx, r, now, &report) {
			report.Reminded++
		}
	}

	grace := m.thresholds.Reminder - m.thresholds.Expiry
	expiring, err := m.store.ListReservations(ctx, store.ReservationFilter{
		Statuses:       []model.ReservationStatus{model.ReservationAwaitingConfirmation},
		StartUntil:     now.Add(m.thresholds.Expiry),
		RemindedUntil:  now.Add(-grace),
		PreloadMachine: true,
	})
	if err != nil {
		return report, fmt.Errorf("select reservations to expire: %w", err)
	}
	for _, r := range expiring {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if m.expire(ctx, r, now, &report) {
			report.Expired++
		}
	}

	return report, nil
}

func (m *Manager) remind(ctx context.Context, r model.Reservation, now time.Time, report *SweepReport) bool {
	updated, err := m.store.TransitionReservation(ctx, store.Transition{
		ID:   r.ID,
		From: []model.ReservationStatus{model.ReservationActive},
		To:   model.ReservationAwaitingConfirmation,
		At:   now,
	})
	if errors.Is(err, model.ErrAlreadyFinalized) {
		return false
	}
	if err != nil {
		report.Errors++
		m.log.Error("failed to mark reservation awaiting confirmation", zap.Int64("reservation_id", r.ID), zap.Error(err))
		return false
	}

	if err := m.notifier.ConfirmationRequested(ctx, *updated); err != nil {
		report.Errors++
		m.log.Error("failed to queue confirmation request", zap.Int64("reservation_id", r.ID), zap.Error(err))
	}
	return true
}

func (m *Manager) expire(ctx context.Context, r model.Reservation, now time.Time, report *SweepReport) bool {
	updated, err := m.store.TransitionReservation(ctx, store.Transition{
		ID:   r.ID,
		From: []model.ReservationStatus{model.ReservationAwaitingConfirmation},
		To:   model.ReservationExpired,
		At:   now,
	})
	if errors.Is(err, model.ErrAlreadyFinalized) {
		return false
	}
	if err != nil {
		report.Errors++
		m.log.Error("failed to expire reservation", zap.Int64("reservation_id", r.ID), zap.Error(err))
		return false
	}

	m.log.Info("reservation expired", zap.Int64("reservation_id", updated.ID), zap.Int64("resident_id", updated.ResidentID))
	m.slotFreed()
	m.publish(ctx, EventExpired, *updated)

	if err := m.notifier.AutoCancelled(ctx, *updated); err != nil {
		report.Errors++
		m.log.Error("failed to queue auto-cancel notice", zap.Int64("reservation_id", r.ID), zap.Error(err))
	}
	if updated.StartAt.After(now) {
		if err := m.notifier.SlotFreed(ctx, *updated, updated.ResidentID); err != nil {
			report.Errors++
			m.log.Error("failed to queue freed slot fan-out", zap.Int64("reservation_id", r.ID), zap.Error(err))
		}
	}
	return true
}
