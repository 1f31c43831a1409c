package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// storeTx implements interfaces.Tx over one *sql.Tx. Instances only
// exist for the duration of an ExecTx callback on the writer goroutine.
type storeTx struct {
	tx  *sql.Tx
	ctx context.Context
}

func (t *storeTx) GetClassroom(classroomID string) (*types.Classroom, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT id, name, is_live, created_at FROM classrooms WHERE id = ?`, classroomID)
	return scanClassroom(row)
}

func (t *storeTx) InsertClassroom(classroom *types.Classroom) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO classrooms (id, name, is_live, created_at) VALUES (?, ?, ?, ?)`,
		classroom.ID, classroom.Name, classroom.IsLive, classroom.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert classroom: %w", err)
	}
	return nil
}

func (t *storeTx) SetClassroomLive(classroomID string, live bool) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE classrooms SET is_live = ? WHERE id = ?`, live, classroomID)
	if err != nil {
		return fmt.Errorf("failed to update classroom: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("classroom %s: %w", classroomID, types.ErrNotFound)
	}
	return nil
}

func (t *storeTx) OpenSession(classroomID string) (*types.Session, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT id, classroom_id, started_at, ended_at
		 FROM sessions WHERE classroom_id = ? AND ended_at IS NULL
		 ORDER BY started_at DESC LIMIT 1`, classroomID)

	var sess types.Session
	var endedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.ClassroomID, &sess.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("open session for classroom %s: %w", classroomID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query open session: %w", err)
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return &sess, nil
}

func (t *storeTx) InsertSession(session *types.Session) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO sessions (id, classroom_id, started_at, ended_at) VALUES (?, ?, ?, NULL)`,
		session.ID, session.ClassroomID, session.StartedAt)
	if err != nil {
		// The partial unique index rejects a second open session per
		// classroom; report it as an illegal transition, not a raw
		// constraint failure.
		if isUniqueViolation(err) {
			return fmt.Errorf("classroom %s already has an open session: %w",
				session.ClassroomID, types.ErrInvalidState)
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (t *storeTx) CloseSession(sessionID string, endedAt time.Time) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, endedAt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("open session %s: %w", sessionID, types.ErrNotFound)
	}
	return nil
}

func (t *storeTx) OpenLog(sessionID, userID string) (*types.ParticipantLog, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT id, session_id, user_id, '' AS user_name, role, joined_at, left_at
		 FROM participant_logs
		 WHERE session_id = ? AND user_id = ? AND left_at IS NULL`, sessionID, userID)

	entry, err := scanLog(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("open log for user %s in session %s: %w",
				userID, sessionID, types.ErrNotFound)
		}
		return nil, err
	}
	return entry, nil
}

func (t *storeTx) InsertLog(log *types.ParticipantLog) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO participant_logs (id, session_id, user_id, role, joined_at, left_at)
		 VALUES (?, ?, ?, ?, ?, NULL)`,
		log.ID, log.SessionID, log.UserID, log.Role, log.JoinedAt)
	if err != nil {
		// The partial unique index means the user already has an open
		// log in this session.
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s in session %s: %w",
				log.UserID, log.SessionID, types.ErrAlreadyJoined)
		}
		return fmt.Errorf("failed to insert participant log: %w", err)
	}
	return nil
}

func (t *storeTx) CloseLog(logID string, leftAt time.Time) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE participant_logs SET left_at = ? WHERE id = ? AND left_at IS NULL`, leftAt, logID)
	if err != nil {
		return fmt.Errorf("failed to close participant log: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("open participant log %s: %w", logID, types.ErrNotFound)
	}
	return nil
}

func (t *storeTx) CloseOpenLogs(sessionID string, leftAt time.Time) (int, error) {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE participant_logs SET left_at = ? WHERE session_id = ? AND left_at IS NULL`,
		leftAt, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to close open logs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

func (t *storeTx) UpsertMembership(m *types.Membership) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO classroom_users (classroom_id, user_id, role, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (classroom_id, user_id) DO UPDATE SET role = excluded.role`,
		m.ClassroomID, m.UserID, m.Role, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}
	return nil
}

func (t *storeTx) IsTeacher(classroomID, userID string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT COUNT(*) FROM classroom_users
		 WHERE classroom_id = ? AND user_id = ? AND role = ?`,
		classroomID, userID, types.RoleTeacher).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query membership: %w", err)
	}
	return n > 0, nil
}

func (t *storeTx) InsertUser(user *types.User) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO users (id, email, name, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, types.ErrConflict)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (t *storeTx) UserExists(userID string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query user: %w", err)
	}
	return n > 0, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClassroom(row scanner) (*types.Classroom, error) {
	var c types.Classroom
	err := row.Scan(&c.ID, &c.Name, &c.IsLive, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("classroom: %w", types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan classroom: %w", err)
	}
	return &c, nil
}

func scanUser(row scanner) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func scanLog(row scanner) (*types.ParticipantLog, error) {
	var l types.ParticipantLog
	var leftAt sql.NullTime
	err := row.Scan(&l.ID, &l.SessionID, &l.UserID, &l.UserName, &l.Role, &l.JoinedAt, &leftAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan participant log: %w", err)
	}
	if leftAt.Valid {
		l.LeftAt = &leftAt.Time
	}
	return &l, nil
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
