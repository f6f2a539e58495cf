package model

import "time"

// Category is the class of machine a reservation targets.
type Category string

const (
	CategoryWash Category = "WASH"
	CategoryDry  Category = "DRY"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryWash || c == CategoryDry
}

// MachineStatus is the operational status of a machine.
type MachineStatus string

const (
	MachineInService    MachineStatus = "IN_SERVICE"
	MachineOutOfService MachineStatus = "OUT_OF_SERVICE"
)

// Valid reports whether s is a known status.
func (s MachineStatus) Valid() bool {
	return s == MachineInService || s == MachineOutOfService
}

// Machine represents a bookable washing or drying machine.
type Machine struct {
	ID         int64         `gorm:"primaryKey" json:"id"`
	Number     int           `gorm:"not null;uniqueIndex:idx_machine_category_number" json:"number"`
	Category   Category      `gorm:"size:16;not null;index;uniqueIndex:idx_machine_category_number" json:"category"`
	Status     MachineStatus `gorm:"size:16;not null;default:'IN_SERVICE'" json:"status"`
	BookingSeq int64         `gorm:"not null;default:0" json:"-"` // bumped by every booking transaction
	CreatedAt  time.Time     `json:"-"`
	UpdatedAt  time.Time     `json:"-"`
}
