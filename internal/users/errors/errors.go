package errors

import "errors"

var (
	ErrNotFound = errors.New("user not found")

	ErrNotDoctor = errors.New("user is not a doctor")

	ErrNotDriver = errors.New("user is not a driver")

	// ErrCorrupt marks a stored user whose profile blocks do not match its role.
	ErrCorrupt = errors.New("user record does not match its role")
)
