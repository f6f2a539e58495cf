package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"laundry-booking-backend/internal/model"
)

// Routing keys of lifecycle events.
const (
	EventCreated   = "reservation.created"
	EventConfirmed = "reservation.confirmed"
	EventCancelled = "reservation.cancelled"
	EventExpired   = "reservation.expired"
)

// EventPublisher publishes a JSON document under a routing key.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type nopPublisher struct{}

func (nopPublisher) PublishJSON(context.Context, string, any) error { return nil }

type reservationEvent struct {
	ReservationID int64                   `json:"reservation_id"`
	MachineID     int64                   `json:"machine_id"`
	ResidentID    int64                   `json:"resident_id"`
	Status        model.ReservationStatus `json:"status"`
	Start         int64                   `json:"start"`
	End           int64                   `json:"end"`
	At            time.Time               `json:"at"`
}

// publish never fails the operation; the database is the source of truth.
func (m *Manager) publish(ctx context.Context, key string, r model.Reservation) {
	err := m.events.PublishJSON(ctx, key, reservationEvent{
		ReservationID: r.ID,
		MachineID:     r.MachineID,
		ResidentID:    r.ResidentID,
		Status:        r.Status,
		Start:         r.StartAt.Unix(),
		End:           r.EndAt.Unix(),
		At:            m.now().UTC(),
	})
	if err != nil {
		m.log.Warn("failed to publish event", zap.String("key", key), zap.Int64("reservation_id", r.ID), zap.Error(err))
	}
}
