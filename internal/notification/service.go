package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"laundry-booking-backend/internal/model"
)

// Residents resolves reservation owners.
type Residents interface {
	GetResident(ctx context.Context, id int64) (*model.Resident, error)
}

// Service turns lifecycle events into background delivery jobs.
type Service struct {
	pool      *WorkerPool
	notifier  *Notifier
	residents Residents
	log       *zap.Logger
}

func NewService(pool *WorkerPool, notifier *Notifier, residents Residents, log *zap.Logger) *Service {
	return &Service{pool: pool, notifier: notifier, residents: residents, log: log}
}

// ConfirmationRequested queues a confirmation request to the owner.
func (s *Service) ConfirmationRequested(ctx context.Context, r model.Reservation) error {
	return s.pool.Dispatch(ctx, NewJob(string(KindConfirmationRequest), func(ctx context.Context) error {
		return s.toOwner(ctx, r, s.notifier.Catalog().ConfirmationRequest)
	}))
}

// AutoCancelled queues the expiry notice to the owner.
func (s *Service) AutoCancelled(ctx context.Context, r model.Reservation) error {
	return s.pool.Dispatch(ctx, NewJob(string(KindAutoCancelled), func(ctx context.Context) error {
		return s.toOwner(ctx, r, s.notifier.Catalog().AutoCancelled)
	}))
}

// SlotFreed queues the fan-out of r's window to everybody but excludeResidentID.
func (s *Service) SlotFreed(ctx context.Context, r model.Reservation, excludeResidentID int64) error {
	slot := FreedSlot{Machine: r.Machine, Start: r.StartAt, End: r.EndAt}
	return s.pool.Dispatch(ctx, NewJob(string(KindSlotFreed), func(ctx context.Context) error {
		report, err := s.notifier.NotifyFreedSlot(ctx, slot, excludeResidentID)
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d freed slot deliveries failed", report.Failed, report.Recipients)
		}
		return nil
	}))
}

func (s *Service) toOwner(ctx context.Context, r model.Reservation, render func(model.Language, model.Reservation) Message) error {
	owner, err := s.residents.GetResident(ctx, r.ResidentID)
	if err != nil {
		return fmt.Errorf("load owner of reservation %d: %w", r.ID, err)
	}
	if owner.ChannelID == nil {
		s.log.Info("owner has no channel, skipping", zap.Int64("reservation_id", r.ID))
		return nil
	}

	err = s.notifier.Deliver(ctx, *owner.ChannelID, render(owner.Language, r))
	if errors.Is(err, ErrPermanentlyBlocked) {
		s.log.Info("owner is unreachable", zap.Int64("reservation_id", r.ID))
		return nil
	}
	return err
}
