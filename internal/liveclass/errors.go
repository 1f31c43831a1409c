package liveclass

import (
	"fmt"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Operation errors, each wrapping the error kind adapters map to
// transport status codes.
var (
	ErrClassroomNotFound = fmt.Errorf("classroom not found: %w", types.ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("user not found: %w", types.ErrNotFound)
	ErrNoActiveSession   = fmt.Errorf("no active session found: %w", types.ErrNotFound)
	ErrNotInClass        = fmt.Errorf("user is not available in the class: %w", types.ErrNotFound)
	ErrAlreadyLive       = fmt.Errorf("classroom is already live: %w", types.ErrInvalidState)
	ErrClassNotLive      = fmt.Errorf("class is not started: %w", types.ErrInvalidState)
	ErrAlreadyJoined     = fmt.Errorf("user already joined class: %w", types.ErrAlreadyJoined)
	ErrNotClassTeacher   = fmt.Errorf("only the assigned teacher can start the class: %w", types.ErrForbidden)
	ErrInvalidName       = fmt.Errorf("classroom name must be 1-200 characters: %w", types.ErrValidation)
)
