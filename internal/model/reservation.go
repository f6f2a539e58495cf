package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationActive               ReservationStatus = "ACTIVE"
	ReservationAwaitingConfirmation ReservationStatus = "AWAITING_CONFIRMATION"
	ReservationConfirmed            ReservationStatus = "CONFIRMED"
	ReservationCancelled            ReservationStatus = "CANCELLED"
	ReservationExpired              ReservationStatus = "EXPIRED"
)

// LiveStatuses hold capacity. CANCELLED and EXPIRED do not.
var LiveStatuses = []ReservationStatus{
	ReservationActive,
	ReservationAwaitingConfirmation,
	ReservationConfirmed,
}

// Live reports whether the status still occupies its machine.
func (s ReservationStatus) Live() bool {
	for _, l := range LiveStatuses {
		if s == l {
			return true
		}
	}
	return false
}

// Reservation books one machine for one slot.
type Reservation struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	MachineID   int64             `gorm:"not null;index:idx_reservation_machine_window" json:"machine_id"`
	ResidentID  int64             `gorm:"not null;index" json:"resident_id"`
	StartAt     time.Time         `gorm:"not null;index;index:idx_reservation_machine_window" json:"start_at"`
	EndAt       time.Time         `gorm:"not null;index:idx_reservation_machine_window" json:"end_at"`
	Status      ReservationStatus `gorm:"size:32;not null;index" json:"status"`
	RemindedAt  *time.Time        `json:"reminded_at,omitempty"`
	ConfirmedAt *time.Time        `json:"confirmed_at,omitempty"`
	ClosedAt    *time.Time        `json:"closed_at,omitempty"` // set on CANCELLED or EXPIRED
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"-"`

	// Associations
	Machine  Machine  `gorm:"constraint:OnDelete:RESTRICT" json:"machine"`
	Resident Resident `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}
