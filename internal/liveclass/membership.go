package liveclass

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Coordinator enforces the per-user join/leave invariants of a
// session. Finding the current open session and mutating the log
// happen in the same transaction: if the session ends between the two,
// the whole unit rolls back instead of writing against a closed
// session.
type Coordinator struct {
	store  interfaces.Store
	policy JoinPolicy
	now    func() time.Time
}

// NewCoordinator creates a membership coordinator with the given join
// policy.
func NewCoordinator(store interfaces.Store, policy JoinPolicy) *Coordinator {
	return &Coordinator{store: store, policy: policy, now: time.Now}
}

// Join records presence of the caller in the classroom's open session.
// Membership is upserted, never duplicated; a user who left earlier
// gets a fresh log entry. Roles exempt under the join policy may join
// an idle classroom, which records membership only.
func (c *Coordinator) Join(ctx context.Context, classroomID string, identity types.Identity) error {
	err := c.store.ExecTx(ctx, func(tx interfaces.Tx) error {
		classroom, err := tx.GetClassroom(classroomID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return ErrClassroomNotFound
			}
			return err
		}

		exists, err := tx.UserExists(identity.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}

		now := c.now()
		membership := &types.Membership{
			ClassroomID: classroomID,
			UserID:      identity.UserID,
			Role:        identity.Role,
			CreatedAt:   now,
		}

		if !classroom.IsLive {
			if !c.policy.Exempt(identity.Role) {
				return ErrClassNotLive
			}
			// No open session to attend; remember the membership only.
			return tx.UpsertMembership(membership)
		}

		session, err := tx.OpenSession(classroomID)
		if err != nil {
			// Live flag without an open session means the session ended
			// after our state check began; the join is no longer legal.
			if errors.Is(err, types.ErrNotFound) {
				return ErrClassNotLive
			}
			return err
		}

		if _, err := tx.OpenLog(session.ID, identity.UserID); err == nil {
			return ErrAlreadyJoined
		} else if !errors.Is(err, types.ErrNotFound) {
			return err
		}

		if err := tx.UpsertMembership(membership); err != nil {
			return err
		}
		return tx.InsertLog(&types.ParticipantLog{
			ID:        uuid.New().String(),
			SessionID: session.ID,
			UserID:    identity.UserID,
			Role:      identity.Role,
			JoinedAt:  now,
		})
	})
	if err != nil {
		return err
	}

	log.Printf("User joined: classroom=%s user=%s role=%s", classroomID, identity.UserID, identity.Role)
	return nil
}

// Leave closes the caller's open attendance log in the classroom's
// open session.
func (c *Coordinator) Leave(ctx context.Context, classroomID string, identity types.Identity) error {
	err := c.store.ExecTx(ctx, func(tx interfaces.Tx) error {
		if _, err := tx.GetClassroom(classroomID); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return ErrClassroomNotFound
			}
			return err
		}

		session, err := tx.OpenSession(classroomID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return ErrNoActiveSession
			}
			return err
		}

		entry, err := tx.OpenLog(session.ID, identity.UserID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return ErrNotInClass
			}
			return err
		}

		return tx.CloseLog(entry.ID, c.now())
	})
	if err != nil {
		return err
	}

	log.Printf("User left: classroom=%s user=%s", classroomID, identity.UserID)
	return nil
}
