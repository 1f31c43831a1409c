package interfaces

import (
	"context"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// ClassroomService is the externally callable surface of the session
// core. Transport adapters (HTTP, websocket) call only this.
type ClassroomService interface {
	// CreateClassroom creates a classroom owned by teacherID. The
	// classroom starts out not live.
	CreateClassroom(ctx context.Context, name, teacherID string) (*types.Classroom, error)

	// StartClass opens a new session and returns its ID. Fails if the
	// classroom is already live or requester is not a teacher member.
	StartClass(ctx context.Context, classroomID, requesterID string) (string, error)

	// EndClass closes the open session, returning its ID. Every still
	// open participant log of the session is closed with it.
	EndClass(ctx context.Context, classroomID, requesterID string) (string, error)

	// JoinClassroom records presence of the caller in the open session
	// and returns a confirmation message.
	JoinClassroom(ctx context.Context, classroomID string, identity types.Identity) (string, error)

	// LeaveClassroom closes the caller's open participant log and
	// returns a confirmation message.
	LeaveClassroom(ctx context.Context, classroomID string, identity types.Identity) (string, error)

	// GetHistory returns all sessions of a classroom, most recent
	// first, with their full participant logs. Pure read.
	GetHistory(ctx context.Context, classroomID string) ([]*types.SessionHistory, error)
}
