package store

import (
	"context"
	"fmt"

	"laundry-booking-backend/internal/model"
)

// Reports stores resident problem reports.
type Reports interface {
	CreateProblemReport(ctx context.Context, report *model.ProblemReport) error
}

func (s *gormStore) CreateProblemReport(ctx context.Context, report *model.ProblemReport) error {
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create problem report: %w", err)
	}
	return nil
}
