package model

import "errors"

var (
	// ErrSlotConflict means an overlapping live reservation already holds the machine.
	ErrSlotConflict = errors.New("slot conflict")
	// ErrNotFound means the reservation, machine or resident does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyFinalized reports an idempotent no-op transition.
	ErrAlreadyFinalized = errors.New("already finalized")
	// ErrCapacityUnavailable means no machine of the category is in service.
	ErrCapacityUnavailable = errors.New("capacity unavailable")
	// ErrResourceUnavailable means the chosen machine is out of service.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrInvalidSlot means the slot's window falls outside operating hours.
	ErrInvalidSlot = errors.New("invalid slot")
	// ErrSlotClosed means the slot is in the past or excluded by the booking policy.
	ErrSlotClosed = errors.New("slot closed for booking")
)
