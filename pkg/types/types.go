package types

import (
	"time"
)

// Role identifies what a user is allowed to do in a classroom.
type Role string

const (
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// Broadcast event names delivered on a classroom channel.
const (
	EventClassStarted = "class_started"
	EventClassEnded   = "class_ended"
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
	EventError        = "error"
)

// User is an account known to the identity provider.
// PasswordHash never leaves the store and auth packages.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Identity is the verified caller attached to each request.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
}

// Classroom is the unit of scheduling. IsLive is true iff the classroom
// has exactly one session with a null ended_at.
type Classroom struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IsLive    bool      `json:"is_live" db:"is_live"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Membership records that a user belongs to a classroom.
// Unique per (classroom, user); rejoining upserts rather than duplicating.
type Membership struct {
	ClassroomID string    `json:"classroom_id" db:"classroom_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Role        Role      `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Session is one live run of a classroom. EndedAt == nil means open.
type Session struct {
	ID          string     `json:"id" db:"id"`
	ClassroomID string     `json:"classroom_id" db:"classroom_id"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

// ParticipantLog is one attendance window of a user within a session.
// LeftAt == nil means the user is currently present; a (session, user)
// pair has at most one open log at a time.
type ParticipantLog struct {
	ID        string     `json:"id" db:"id"`
	SessionID string     `json:"session_id" db:"session_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	UserName  string     `json:"user_name,omitempty" db:"user_name"`
	Role      Role       `json:"role" db:"role"`
	JoinedAt  time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty" db:"left_at"`
}

// SessionHistory is one session together with its full attendance record.
type SessionHistory struct {
	Session
	Logs []*ParticipantLog `json:"logs"`
}

// Event is the envelope delivered to every subscriber of a classroom
// channel. Payload carries the event-specific fields.
type Event struct {
	Event       string         `json:"event"`
	ClassroomID string         `json:"classroom_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// IsValidRole reports whether r is one of the three known roles.
func IsValidRole(r Role) bool {
	switch r {
	case RoleTeacher, RoleStudent, RoleAdmin:
		return true
	}
	return false
}
