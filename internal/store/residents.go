package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"laundry-booking-backend/internal/model"
)

// Residents resolves and binds requester identities.
type Residents interface {
	CreateResident(ctx context.Context, r *model.Resident) error
	GetResident(ctx context.Context, id int64) (*model.Resident, error)
	ResidentByChannel(ctx context.Context, channelID string) (*model.Resident, error)
	FindResidentsByName(ctx context.Context, lastName, firstName, patronymic string) ([]model.Resident, error)
	FindResidentsByIDCard(ctx context.Context, idCard string) ([]model.Resident, error)
	BindChannel(ctx context.Context, residentID int64, channelID string) (*model.Resident, error)
	SetLanguage(ctx context.Context, residentID int64, lang model.Language) error
	ListResidentsWithChannel(ctx context.Context) ([]model.Resident, error)
}

func (s *gormStore) CreateResident(ctx context.Context, r *model.Resident) error {
	if r.Language == "" {
		r.Language = model.LanguageRU
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create resident: %w", err)
	}
	return nil
}

func (s *gormStore) GetResident(ctx context.Context, id int64) (*model.Resident, error) {
	var r model.Resident
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

// ResidentByChannel returns ErrNotFound when no resident is bound to channelID.
func (s *gormStore) ResidentByChannel(ctx context.Context, channelID string) (*model.Resident, error) {
	var r model.Resident
	if err := s.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&r).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

// FindResidentsByName matches case-insensitively. An empty patronymic matches
// any patronymic.
func (s *gormStore) FindResidentsByName(ctx context.Context, lastName, firstName, patronymic string) ([]model.Resident, error) {
	var out []model.Resident
	q := s.db.WithContext(ctx).
		Where("LOWER(last_name) = LOWER(?) AND LOWER(first_name) = LOWER(?)", lastName, firstName)
	if patronymic != "" {
		q = q.Where("LOWER(patronymic) = LOWER(?)", patronymic)
	}
	err := q.Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find residents by name: %w", err)
	}
	return out, nil
}

func (s *gormStore) FindResidentsByIDCard(ctx context.Context, idCard string) ([]model.Resident, error) {
	var out []model.Resident
	if err := s.db.WithContext(ctx).Where("id_card = ?", idCard).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to find residents by id card: %w", err)
	}
	return out, nil
}

// BindChannel attaches channelID to the resident. A channel previously bound to
// somebody else moves over; a resident already bound to a different channel
// yields ErrChannelBound.
func (s *gormStore) BindChannel(ctx context.Context, residentID int64, channelID string) (*model.Resident, error) {
	var bound model.Resident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&bound, residentID).Error; err != nil {
			return err
		}
		if bound.ChannelID != nil {
			if *bound.ChannelID == channelID {
				return nil
			}
			return ErrChannelBound
		}

		if err := tx.Model(&model.Resident{}).
			Where("channel_id = ? AND id <> ?", channelID, residentID).
			Update("channel_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&bound).Update("channel_id", channelID).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrChannelBound
			}
			return err
		}
		bound.ChannelID = &channelID
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &bound, nil
}

func (s *gormStore) SetLanguage(ctx context.Context, residentID int64, lang model.Language) error {
	res := s.db.WithContext(ctx).Model(&model.Resident{}).Where("id = ?", residentID).Update("language", lang)
	if res.Error != nil {
		return fmt.Errorf("failed to set language: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListResidentsWithChannel is the notification directory snapshot.
func (s *gormStore) ListResidentsWithChannel(ctx context.Context) ([]model.Resident, error) {
	var out []model.Resident
	if err := s.db.WithContext(ctx).Where("channel_id IS NOT NULL").Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list residents with channel: %w", err)
	}
	return out, nil
}
