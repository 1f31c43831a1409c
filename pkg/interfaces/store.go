package interfaces

import (
	"context"
	"time"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Store is the durable record of classrooms, sessions and attendance.
// Mutations happen inside ExecTx units; plain reads run concurrently.
type Store interface {
	// ExecTx runs fn inside a single database transaction. The
	// transaction commits iff fn returns nil; any error rolls it back
	// and is returned unchanged. Write transactions are serialized, so
	// two units touching the same classroom never interleave.
	ExecTx(ctx context.Context, fn func(tx Tx) error) error

	// GetClassroom retrieves a classroom by ID outside a transaction.
	GetClassroom(ctx context.Context, classroomID string) (*types.Classroom, error)

	// ListSessions returns every session of a classroom, most recent
	// first, each with its full participant logs.
	ListSessions(ctx context.Context, classroomID string) ([]*types.SessionHistory, error)

	// User lookups for the identity boundary.
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, userID string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

	// HealthCheck verifies connectivity and basic reads.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and releases the connection.
	Close() error
}

// Tx exposes the check+mutate primitives available inside one ExecTx
// unit. Every method sees the transaction's snapshot, so a state check
// and the write it guards cannot be split by a concurrent session end.
type Tx interface {
	GetClassroom(classroomID string) (*types.Classroom, error)
	InsertClassroom(classroom *types.Classroom) error
	SetClassroomLive(classroomID string, live bool) error

	// OpenSession returns the classroom's session with a null ended_at,
	// or types.ErrNotFound if none is open.
	OpenSession(classroomID string) (*types.Session, error)
	InsertSession(session *types.Session) error
	CloseSession(sessionID string, endedAt time.Time) error

	// OpenLog returns the open participant log for (session, user), or
	// types.ErrNotFound if the user is not currently present.
	OpenLog(sessionID, userID string) (*types.ParticipantLog, error)
	InsertLog(log *types.ParticipantLog) error
	CloseLog(logID string, leftAt time.Time) error
	// CloseOpenLogs closes every open log of a session and returns how
	// many were closed.
	CloseOpenLogs(sessionID string, leftAt time.Time) (int, error)

	// UpsertMembership records classroom membership idempotently.
	UpsertMembership(m *types.Membership) error
	IsTeacher(classroomID, userID string) (bool, error)

	InsertUser(user *types.User) error
	UserExists(userID string) (bool, error)
}
