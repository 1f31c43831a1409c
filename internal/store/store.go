package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Config controls the SQLite connection and write coordination.
type Config struct {
	Path            string
	MaxConnections  int
	ConnMaxLifetime time.Duration
	WriteTimeout    time.Duration
}

// Store implements interfaces.Store on SQLite.
//
// All mutating transactions funnel through a single writer goroutine.
// SQLite allows one writer at a time anyway; the queue turns that
// limitation into the serialization guarantee the session core needs:
// two units touching the same classroom can never interleave their
// check and write steps.
type Store struct {
	db       *sql.DB
	config   *Config
	writeCh  chan txRequest
	shutdown chan struct{}
	wg       sync.WaitGroup
	closed   bool
	mu       sync.RWMutex
}

type txRequest struct {
	ctx    context.Context
	fn     func(tx interfaces.Tx) error
	result chan error
}

// New opens the database, applies pragmas and migrations, and starts
// the writer goroutine.
func New(cfg *Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &Store{
		db:       db,
		config:   cfg,
		writeCh:  make(chan txRequest, 100),
		shutdown: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop processes every mutating transaction in order. Failed units
// are not retried here: a blindly retried join or start could apply
// twice, so the error goes straight back to the caller.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case req := <-s.writeCh:
			req.result <- s.runTx(req.ctx, req.fn)
		case <-s.shutdown:
			log.Println("store write loop shutting down")
			return
		}
	}
}

func (s *Store) runTx(ctx context.Context, fn func(tx interfaces.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&storeTx{tx: sqlTx, ctx: ctx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecTx implements interfaces.Store. A unit that cannot be queued or
// finished within the write timeout surfaces types.ErrUnavailable so
// the caller can resubmit instead of hanging the connection.
func (s *Store) ExecTx(ctx context.Context, fn func(tx interfaces.Tx) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store is closed: %w", types.ErrUnavailable)
	}
	s.mu.RUnlock()

	timeout := s.config.WriteTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	result := make(chan error, 1)

	select {
	case s.writeCh <- txRequest{ctx: ctx, fn: fn, result: result}:
	case <-timer.C:
		return fmt.Errorf("write queue timeout: %w", types.ErrUnavailable)
	case <-ctx.Done():
		return fmt.Errorf("request cancelled: %w", types.ErrUnavailable)
	case <-s.shutdown:
		return fmt.Errorf("store is shutting down: %w", types.ErrUnavailable)
	}

	select {
	case err := <-result:
		return err
	case <-timer.C:
		return fmt.Errorf("write timeout: %w", types.ErrUnavailable)
	}
}

// GetClassroom retrieves a classroom by ID.
func (s *Store) GetClassroom(ctx context.Context, classroomID string) (*types.Classroom, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_live, created_at FROM classrooms WHERE id = ?`, classroomID)
	return scanClassroom(row)
}

// ListSessions returns every session of a classroom, most recent first,
// each with its full participant logs joined to user names.
func (s *Store) ListSessions(ctx context.Context, classroomID string) ([]*types.SessionHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, classroom_id, started_at, ended_at
		 FROM sessions WHERE classroom_id = ? ORDER BY started_at DESC`, classroomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []*types.SessionHistory
	for rows.Next() {
		var sess types.Session
		var endedAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.ClassroomID, &sess.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if endedAt.Valid {
			sess.EndedAt = &endedAt.Time
		}
		history = append(history, &types.SessionHistory{Session: sess})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	for _, h := range history {
		logs, err := s.listLogs(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		h.Logs = logs
	}
	return history, nil
}

func (s *Store) listLogs(ctx context.Context, sessionID string) ([]*types.ParticipantLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.id, l.session_id, l.user_id, COALESCE(u.name, ''), l.role, l.joined_at, l.left_at
		 FROM participant_logs l
		 LEFT JOIN users u ON u.id = l.user_id
		 WHERE l.session_id = ?
		 ORDER BY l.joined_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participant logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*types.ParticipantLog
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}
	return logs, nil
}

// CreateUser inserts a new account. Duplicate emails surface
// types.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	return s.ExecTx(ctx, func(tx interfaces.Tx) error {
		return tx.InsertUser(user)
	})
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, created_at FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// HealthCheck validates connectivity and a basic read.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM classrooms").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close drains the writer goroutine and closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}
