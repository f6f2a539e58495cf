package model

import "time"

// ProblemReport is a free-text problem report filed by a resident.
type ProblemReport struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	ResidentID    int64     `gorm:"not null;index" json:"resident_id"`
	ReservationID *int64    `gorm:"index" json:"reservation_id,omitempty"`
	Description   string    `gorm:"size:2000;not null" json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}
