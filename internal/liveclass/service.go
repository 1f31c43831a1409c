package liveclass

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dilshad08/virtual-classroom/internal/metrics"
	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// historyRetries bounds how often the idempotent history read is
// retried on transient store failures. Mutations are never retried: a
// resubmitted join could double-log, so the caller decides.
const historyRetries = 2

// Service composes the state machine, the membership coordinator and
// the presence broadcaster into the externally callable operations.
type Service struct {
	store       interfaces.Store
	manager     *Manager
	members     *Coordinator
	broadcaster interfaces.Broadcaster
	now         func() time.Time
}

// NewService wires the session core together.
func NewService(store interfaces.Store, broadcaster interfaces.Broadcaster, policy JoinPolicy) *Service {
	return &Service{
		store:       store,
		manager:     NewManager(store),
		members:     NewCoordinator(store, policy),
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// CreateClassroom creates a classroom owned by teacherID. The teacher
// membership is recorded in the same unit as the classroom row.
func (s *Service) CreateClassroom(ctx context.Context, name, teacherID string) (*types.Classroom, error) {
	if !types.IsValidClassroomName(name) {
		return nil, ErrInvalidName
	}

	classroom := &types.Classroom{
		ID:        uuid.New().String(),
		Name:      name,
		IsLive:    false,
		CreatedAt: s.now(),
	}

	err := s.store.ExecTx(ctx, func(tx interfaces.Tx) error {
		if err := tx.InsertClassroom(classroom); err != nil {
			return err
		}
		return tx.UpsertMembership(&types.Membership{
			ClassroomID: classroom.ID,
			UserID:      teacherID,
			Role:        types.RoleTeacher,
			CreatedAt:   classroom.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Classroom created: id=%s name=%q teacher=%s", classroom.ID, classroom.Name, teacherID)
	return classroom, nil
}

// StartClass opens a new session and notifies the classroom channel.
func (s *Service) StartClass(ctx context.Context, classroomID, requesterID string) (string, error) {
	sessionID, err := s.manager.Start(ctx, classroomID, requesterID)
	if err != nil {
		s.publishError(classroomID, err)
		return "", err
	}

	metrics.SessionsStarted.Inc()
	s.broadcaster.Publish(classroomID, types.EventClassStarted, map[string]any{
		"classroomId": classroomID,
		"sessionId":   sessionID,
	})
	return sessionID, nil
}

// EndClass closes the open session and notifies the classroom channel.
func (s *Service) EndClass(ctx context.Context, classroomID, requesterID string) (string, error) {
	sessionID, err := s.manager.End(ctx, classroomID)
	if err != nil {
		s.publishError(classroomID, err)
		return "", err
	}

	metrics.SessionsEnded.Inc()
	s.broadcaster.Publish(classroomID, types.EventClassEnded, map[string]any{
		"classroomId": classroomID,
		"sessionId":   sessionID,
	})
	return sessionID, nil
}

// JoinClassroom records presence of the caller and notifies the
// classroom channel.
func (s *Service) JoinClassroom(ctx context.Context, classroomID string, identity types.Identity) (string, error) {
	if err := s.members.Join(ctx, classroomID, identity); err != nil {
		s.publishError(classroomID, err)
		return "", err
	}

	metrics.ParticipantsJoined.Inc()
	s.broadcaster.Publish(classroomID, types.EventUserJoined, map[string]any{
		"userId": identity.UserID,
		"role":   identity.Role,
	})
	return fmt.Sprintf("%s joined the classroom", identity.Name), nil
}

// LeaveClassroom closes the caller's attendance log and notifies the
// classroom channel.
func (s *Service) LeaveClassroom(ctx context.Context, classroomID string, identity types.Identity) (string, error) {
	if err := s.members.Leave(ctx, classroomID, identity); err != nil {
		s.publishError(classroomID, err)
		return "", err
	}

	metrics.ParticipantsLeft.Inc()
	s.broadcaster.Publish(classroomID, types.EventUserLeft, map[string]any{
		"userId": identity.UserID,
	})
	return fmt.Sprintf("%s left the class", identity.Name), nil
}

// GetHistory returns every session of a classroom with its attendance
// logs, most recent first. The read is idempotent, so transient store
// failures are retried a bounded number of times.
func (s *Service) GetHistory(ctx context.Context, classroomID string) ([]*types.SessionHistory, error) {
	if _, err := s.store.GetClassroom(ctx, classroomID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, ErrClassroomNotFound
		}
		return nil, err
	}

	var history []*types.SessionHistory
	var err error
	for attempt := 0; attempt <= historyRetries; attempt++ {
		history, err = s.store.ListSessions(ctx, classroomID)
		if err == nil {
			return history, nil
		}
		if !retryableRead(err) {
			return nil, err
		}
		log.Printf("History read failed, retrying: classroom=%s attempt=%d err=%v", classroomID, attempt+1, err)
	}
	return nil, err
}

// publishError keeps the room informed when an operation in a
// live-session context fails. Best-effort only; the triggering caller
// already has the structured error.
func (s *Service) publishError(classroomID string, opErr error) {
	s.broadcaster.Publish(classroomID, types.EventError, map[string]any{
		"message": opErr.Error(),
	})
}

// retryableRead reports whether a read failure may be transient. Domain
// errors are final; everything else gets another chance.
func retryableRead(err error) bool {
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidState),
		errors.Is(err, types.ErrForbidden),
		errors.Is(err, types.ErrValidation):
		return false
	}
	return true
}
