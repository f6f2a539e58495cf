package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"laundry-booking-backend/internal/model"
)

// ResourceFilter narrows ListResources. Zero values match everything.
type ResourceFilter struct {
	Category model.Category
	Status   model.MachineStatus
}

// Registry is the read side of the machine pool plus its admin helpers.
type Registry interface {
	ListResources(ctx context.Context, filter ResourceFilter) ([]model.Machine, error)
	GetMachine(ctx context.Context, id int64) (*model.Machine, error)
	UpsertMachine(ctx context.Context, m *model.Machine) error
	SetMachineStatus(ctx context.Context, id int64, status model.MachineStatus) (*model.Machine, error)
}

func (s *gormStore) ListResources(ctx context.Context, filter ResourceFilter) ([]model.Machine, error) {
	q := s.db.WithContext(ctx).Model(&model.Machine{})
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var machines []model.Machine
	if err := q.Order("category").Order("number").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

func (s *gormStore) GetMachine(ctx context.Context, id int64) (*model.Machine, error) {
	var m model.Machine
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// UpsertMachine inserts a machine or refreshes the status of the one with the
// same category and number.
func (s *gormStore) UpsertMachine(ctx context.Context, m *model.Machine) error {
	if m.Status == "" {
		m.Status = model.MachineInService
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "number"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("upsert machine %s/%d failed: %w", m.Category, m.Number, err)
	}
	return nil
}

func (s *gormStore) SetMachineStatus(ctx context.Context, id int64, status model.MachineStatus) (*model.Machine, error) {
	res := s.db.WithContext(ctx).Model(&model.Machine{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update machine %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, model.ErrNotFound
	}
	return s.GetMachine(ctx, id)
}
