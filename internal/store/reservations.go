package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"laundry-booking-backend/internal/model"
)

// ReservationFilter narrows ListReservations. Zero values are ignored.
type ReservationFilter struct {
	ResidentID int64
	MachineIDs []int64
	Category   model.Category
	Statuses   []model.ReservationStatus

	StartFrom   time.Time // start_at >= StartFrom
	StartBefore time.Time // start_at <  StartBefore
	StartAfter  time.Time // start_at >  StartAfter
	StartUntil  time.Time // start_at <= StartUntil
	EndAfter    time.Time // end_at   >  EndAfter

	// OverlapFrom and OverlapTo select reservations intersecting [from, to).
	OverlapFrom time.Time
	OverlapTo   time.Time

	RemindedUntil time.Time // reminded_at <= RemindedUntil

	PreloadMachine bool
}

// Transition describes a conditional status change.
type Transition struct {
	ID         int64
	From       []model.ReservationStatus
	To         model.ReservationStatus
	ResidentID int64 // when set, only the owner's reservation matches
	At         time.Time
}

// Reservations is the durable record of bookings.
type Reservations interface {
	CreateReservation(ctx context.Context, r *model.Reservation) error
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]model.Reservation, error)
	TransitionReservation(ctx context.Context, t Transition) (*model.Reservation, error)
	ReservationStarts(ctx context.Context, from, to time.Time, category model.Category) ([]time.Time, error)
}

// CreateReservation inserts r unless a live reservation of the same machine
// overlaps it. Bumping booking_seq takes the machine's row lock, so concurrent
// bookings of one machine run the overlap check one after another.
func (s *gormStore) CreateReservation(ctx context.Context, r *model.Reservation) error {
	r.StartAt = r.StartAt.UTC()
	r.EndAt = r.EndAt.UTC()
	if r.Status == "" {
		r.Status = model.ReservationActive
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Machine{}).
			Where("id = ?", r.MachineID).
			UpdateColumn("booking_seq", gorm.Expr("booking_seq + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to lock machine %d: %w", r.MachineID, res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrNotFound
		}

		var machine model.Machine
		if err := tx.First(&machine, r.MachineID).Error; err != nil {
			return err
		}
		if machine.Status != model.MachineInService {
			return model.ErrResourceUnavailable
		}

		var overlapping int64
		if err := tx.Model(&model.Reservation{}).
			Where("machine_id = ? AND status IN ?", r.MachineID, model.LiveStatuses).
			Where("start_at < ? AND end_at > ?", r.EndAt, r.StartAt).
			Count(&overlapping).Error; err != nil {
			return fmt.Errorf("overlap check failed: %w", err)
		}
		if overlapping > 0 {
			return model.ErrSlotConflict
		}

		if err := tx.Omit(clause.Associations).Create(r).Error; err != nil {
			return err
		}
		r.Machine = machine
		return nil
	})
	return translate(err)
}

func (s *gormStore) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	var r model.Reservation
	if err := s.db.WithContext(ctx).Preload("Machine").First(&r, id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *gormStore) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	q := s.db.WithContext(ctx).Model(&model.Reservation{})
	if f.Category != "" {
		q = q.Joins("JOIN machines ON machines.id = reservations.machine_id").
			Where("machines.category = ?", f.Category)
	}
	if f.ResidentID != 0 {
		q = q.Where("reservations.resident_id = ?", f.ResidentID)
	}
	if len(f.MachineIDs) > 0 {
		q = q.Where("reservations.machine_id IN ?", f.MachineIDs)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("reservations.status IN ?", f.Statuses)
	}
	if !f.StartFrom.IsZero() {
		q = q.Where("reservations.start_at >= ?", f.StartFrom.UTC())
	}
	if !f.StartBefore.IsZero() {
		q = q.Where("reservations.start_at < ?", f.StartBefore.UTC())
	}
	if !f.StartAfter.IsZero() {
		q = q.Where("reservations.start_at > ?", f.StartAfter.UTC())
	}
	if !f.StartUntil.IsZero() {
		q = q.Where("reservations.start_at <= ?", f.StartUntil.UTC())
	}
	if !f.EndAfter.IsZero() {
		q = q.Where("reservations.end_at > ?", f.EndAfter.UTC())
	}
	if !f.OverlapFrom.IsZero() && !f.OverlapTo.IsZero() {
		q = q.Where("reservations.start_at < ? AND reservations.end_at > ?", f.OverlapTo.UTC(), f.OverlapFrom.UTC())
	}
	if !f.RemindedUntil.IsZero() {
		q = q.Where("reservations.reminded_at <= ?", f.RemindedUntil.UTC())
	}
	if f.PreloadMachine {
		q = q.Preload("Machine")
	}

	var out []model.Reservation
	if err := q.Order("reservations.start_at").Order("reservations.id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return out, nil
}

// TransitionReservation moves a reservation from one of t.From to t.To in a
// single conditional UPDATE. Exactly one concurrent caller wins; the others get
// the current row with ErrAlreadyFinalized.
func (s *gormStore) TransitionReservation(ctx context.Context, t Transition) (*model.Reservation, error) {
	at := t.At.UTC()
	updates := map[string]interface{}{"status": t.To}
	switch t.To {
	case model.ReservationAwaitingConfirmation:
		updates["reminded_at"] = at
	case model.ReservationConfirmed:
		updates["confirmed_at"] = at
	case model.ReservationCancelled, model.ReservationExpired:
		updates["closed_at"] = at
	}

	q := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("id = ? AND status IN ?", t.ID, t.From)
	if t.ResidentID != 0 {
		q = q.Where("resident_id = ?", t.ResidentID)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to move reservation %d to %s: %w", t.ID, t.To, res.Error)
	}

	current, err := s.loadOwned(ctx, t.ID, t.ResidentID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return current, model.ErrAlreadyFinalized
	}
	return current, nil
}

// loadOwned hides reservations of other residents behind ErrNotFound.
func (s *gormStore) loadOwned(ctx context.Context, id, residentID int64) (*model.Reservation, error) {
	q := s.db.WithContext(ctx).Preload("Machine").Where("id = ?", id)
	if residentID != 0 {
		q = q.Where("resident_id = ?", residentID)
	}
	var r model.Reservation
	if err := q.First(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

// ReservationStarts returns the start times of live reservations starting in
// [from, to), optionally limited to one machine category.
func (s *gormStore) ReservationStarts(ctx context.Context, from, to time.Time, category model.Category) ([]time.Time, error) {
	q := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("reservations.status IN ?", model.LiveStatuses).
		Where("reservations.start_at >= ? AND reservations.start_at < ?", from.UTC(), to.UTC())
	if category != "" {
		q = q.Joins("JOIN machines ON machines.id = reservations.machine_id").
			Where("machines.category = ?", category)
	}

	var starts []time.Time
	if err := q.Pluck("reservations.start_at", &starts).Error; err != nil {
		return nil, fmt.Errorf("failed to load reservation starts: %w", err)
	}
	return starts, nil
}
