package liveclass

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Manager is the per-classroom session state machine. A classroom is
// IDLE (no open session) or LIVE (exactly one open session); Start and
// End are the only legal transitions and each runs inside one store
// transaction, so concurrent transitions on the same classroom
// serialize and exactly one wins.
type Manager struct {
	store interfaces.Store
	now   func() time.Time
}

// NewManager creates a session state machine over the given store.
func NewManager(store interfaces.Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Start transitions classroomID from IDLE to LIVE: sets the live flag,
// opens a new session and opens the requesting teacher's attendance
// log, all atomically. Returns the new session ID.
func (m *Manager) Start(ctx context.Context, classroomID, requesterID string) (string, error) {
	var sessionID string

	err := m.store.ExecTx(ctx, func(tx interfaces.Tx) error {
		classroom, err := tx.GetClassroom(classroomID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return ErrClassroomNotFound
			}
			return err
		}
		if classroom.IsLive {
			return ErrAlreadyLive
		}

		teacher, err := tx.IsTeacher(classroomID, requesterID)
		if err != nil {
			return err
		}
		if !teacher {
			return ErrNotClassTeacher
		}

		now := m.now()
		if err := tx.SetClassroomLive(classroomID, true); err != nil {
			return err
		}

		session := &types.Session{
			ID:          uuid.New().String(),
			ClassroomID: classroomID,
			StartedAt:   now,
		}
		if err := tx.InsertSession(session); err != nil {
			return err
		}

		entry := &types.ParticipantLog{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			UserID:    requesterID,
			Role:      types.RoleTeacher,
			JoinedAt:  now,
		}
		if err := tx.InsertLog(entry); err != nil {
			return err
		}

		sessionID = session.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("Class started: classroom=%s session=%s teacher=%s", classroomID, sessionID, requesterID)
	return sessionID, nil
}

// End transitions classroomID from LIVE to IDLE: closes the open
// session, clears the live flag and closes every attendance log still
// open, all atomically. Returns the closed session ID.
func (m *Manager) End(ctx context.Context, classroomID string) (string, error) {
	var sessionID string
	var closed int

	err := m.store.ExecTx(ctx, func(tx interfaces.Tx) error {
		session, err := tx.OpenSession(classroomID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return ErrNoActiveSession
			}
			return err
		}

		now := m.now()
		if err := tx.CloseSession(session.ID, now); err != nil {
			return err
		}
		if err := tx.SetClassroomLive(classroomID, false); err != nil {
			return err
		}

		closed, err = tx.CloseOpenLogs(session.ID, now)
		if err != nil {
			return fmt.Errorf("failed to close attendance logs: %w", err)
		}

		sessionID = session.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("Class ended: classroom=%s session=%s logs_closed=%d", classroomID, sessionID, closed)
	return sessionID, nil
}
