package errors

import "errors"

var (
	ErrNotFound = errors.New("availability not found")

	// ErrDuplicate means the (doctor, day) key already exists.
	ErrDuplicate = errors.New("availability already exists for this day")

	ErrInvalidDay = errors.New("invalid day of week")

	ErrInvalidSlot = errors.New("slot end time must be after start time")
)
