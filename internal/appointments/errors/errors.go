package errors

import "errors"

var (
	ErrNotFound = errors.New("appointment not found")

	ErrInvalidID = errors.New("invalid appointment ID format")

	// ErrSlotTaken is raised by the unique active-slot index.
	ErrSlotTaken = errors.New("time slot already booked")

	// ErrStateChanged means a conditional update matched nothing because the
	// appointment moved on since it was read.
	ErrStateChanged = errors.New("appointment state changed concurrently")
)
