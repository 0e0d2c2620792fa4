package errors

import "errors"

var (
	ErrNotFound = errors.New("emergency request not found")

	// ErrStateChanged means a conditional update matched nothing because the
	// request moved on since it was read.
	ErrStateChanged = errors.New("emergency request state changed concurrently")
)
