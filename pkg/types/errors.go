package types

import "errors"

// Error kinds shared across components. Packages wrap these with
// operation-specific sentinels; adapters map them to transport status
// codes with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrAlreadyJoined   = errors.New("already joined")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnavailable     = errors.New("temporarily unavailable")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
)
