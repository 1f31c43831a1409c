package liveclass

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Mock store for testing. ExecTx serializes on a mutex and restores a
// snapshot when the unit returns an error, matching the commit/rollback
// contract of the real store.
type fakeStore struct {
	mu          sync.Mutex
	classrooms  map[string]*types.Classroom
	memberships map[string]*types.Membership
	sessions    map[string]*types.Session
	logs        map[string]*types.ParticipantLog
	users       map[string]*types.User

	// Control behavior for testing
	failTx            error
	failInsertSession error
	failInsertLog     error
	failListFirstN    int
	listCalls         int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		classrooms:  make(map[string]*types.Classroom),
		memberships: make(map[string]*types.Membership),
		sessions:    make(map[string]*types.Session),
		logs:        make(map[string]*types.ParticipantLog),
		users:       make(map[string]*types.User),
	}
}

func (s *fakeStore) addUser(id, name string, role types.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &types.User{ID: id, Email: id + "@test.local", Name: name, Role: role, CreatedAt: time.Now()}
}

// addClassroom seeds a classroom together with its teacher membership.
func (s *fakeStore) addClassroom(id, name, teacherID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classrooms[id] = &types.Classroom{ID: id, Name: name, CreatedAt: time.Now()}
	s.memberships[id+"|"+teacherID] = &types.Membership{
		ClassroomID: id, UserID: teacherID, Role: types.RoleTeacher, CreatedAt: time.Now(),
	}
}

func (s *fakeStore) openSessionFor(classroomID string) *types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ClassroomID == classroomID && sess.EndedAt == nil {
			copied := *sess
			return &copied
		}
	}
	return nil
}

func (s *fakeStore) logsFor(sessionID string) []*types.ParticipantLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.ParticipantLog
	for _, l := range s.logs {
		if l.SessionID == sessionID {
			copied := *l
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func (s *fakeStore) membershipCount(classroomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.memberships {
		if m.ClassroomID == classroomID {
			n++
		}
	}
	return n
}

type storeState struct {
	classrooms  map[string]*types.Classroom
	memberships map[string]*types.Membership
	sessions    map[string]*types.Session
	logs        map[string]*types.ParticipantLog
	users       map[string]*types.User
}

func (s *fakeStore) snapshot() storeState {
	st := storeState{
		classrooms:  make(map[string]*types.Classroom, len(s.classrooms)),
		memberships: make(map[string]*types.Membership, len(s.memberships)),
		sessions:    make(map[string]*types.Session, len(s.sessions)),
		logs:        make(map[string]*types.ParticipantLog, len(s.logs)),
		users:       make(map[string]*types.User, len(s.users)),
	}
	for k, v := range s.classrooms {
		copied := *v
		st.classrooms[k] = &copied
	}
	for k, v := range s.memberships {
		copied := *v
		st.memberships[k] = &copied
	}
	for k, v := range s.sessions {
		copied := *v
		st.sessions[k] = &copied
	}
	for k, v := range s.logs {
		copied := *v
		st.logs[k] = &copied
	}
	for k, v := range s.users {
		copied := *v
		st.users[k] = &copied
	}
	return st
}

func (s *fakeStore) restore(st storeState) {
	s.classrooms = st.classrooms
	s.memberships = st.memberships
	s.sessions = st.sessions
	s.logs = st.logs
	s.users = st.users
}

func (s *fakeStore) ExecTx(ctx context.Context, fn func(tx interfaces.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTx != nil {
		return s.failTx
	}
	snap := s.snapshot()
	if err := fn(&fakeTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *fakeStore) GetClassroom(ctx context.Context, classroomID string) (*types.Classroom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getClassroomLocked(classroomID)
}

func (s *fakeStore) getClassroomLocked(classroomID string) (*types.Classroom, error) {
	c, ok := s.classrooms[classroomID]
	if !ok {
		return nil, fmt.Errorf("classroom %s: %w", classroomID, types.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (s *fakeStore) ListSessions(ctx context.Context, classroomID string) ([]*types.SessionHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listCalls++
	if s.listCalls <= s.failListFirstN {
		return nil, fmt.Errorf("simulated transient read failure %d", s.listCalls)
	}

	var history []*types.SessionHistory
	for _, sess := range s.sessions {
		if sess.ClassroomID != classroomID {
			continue
		}
		entry := &types.SessionHistory{Session: *sess}
		for _, l := range s.logs {
			if l.SessionID != sess.ID {
				continue
			}
			copied := *l
			if u, ok := s.users[l.UserID]; ok {
				copied.UserName = u.Name
			}
			entry.Logs = append(entry.Logs, &copied)
		}
		sort.Slice(entry.Logs, func(i, j int) bool { return entry.Logs[i].JoinedAt.Before(entry.Logs[j].JoinedAt) })
		history = append(history, entry)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].StartedAt.After(history[j].StartedAt) })
	return history, nil
}

func (s *fakeStore) CreateUser(ctx context.Context, user *types.User) error {
	return s.ExecTx(ctx, func(tx interfaces.Tx) error {
		return tx.InsertUser(user)
	})
}

func (s *fakeStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, types.ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, types.ErrNotFound)
}

func (s *fakeStore) HealthCheck(ctx context.Context) error { return nil }

func (s *fakeStore) Close() error { return nil }

// fakeTx mutates the store maps in place; ExecTx restores the snapshot
// if the unit fails.
type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) GetClassroom(classroomID string) (*types.Classroom, error) {
	return t.s.getClassroomLocked(classroomID)
}

func (t *fakeTx) InsertClassroom(classroom *types.Classroom) error {
	copied := *classroom
	t.s.classrooms[classroom.ID] = &copied
	return nil
}

func (t *fakeTx) SetClassroomLive(classroomID string, live bool) error {
	c, ok := t.s.classrooms[classroomID]
	if !ok {
		return fmt.Errorf("classroom %s: %w", classroomID, types.ErrNotFound)
	}
	c.IsLive = live
	return nil
}

func (t *fakeTx) OpenSession(classroomID string) (*types.Session, error) {
	for _, sess := range t.s.sessions {
		if sess.ClassroomID == classroomID && sess.EndedAt == nil {
			copied := *sess
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("open session for %s: %w", classroomID, types.ErrNotFound)
}

func (t *fakeTx) InsertSession(session *types.Session) error {
	if t.s.failInsertSession != nil {
		return t.s.failInsertSession
	}
	for _, sess := range t.s.sessions {
		if sess.ClassroomID == session.ClassroomID && sess.EndedAt == nil {
			return fmt.Errorf("classroom already has an open session: %w", types.ErrInvalidState)
		}
	}
	copied := *session
	t.s.sessions[session.ID] = &copied
	return nil
}

func (t *fakeTx) CloseSession(sessionID string, endedAt time.Time) error {
	sess, ok := t.s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, types.ErrNotFound)
	}
	ended := endedAt
	sess.EndedAt = &ended
	return nil
}

func (t *fakeTx) OpenLog(sessionID, userID string) (*types.ParticipantLog, error) {
	for _, l := range t.s.logs {
		if l.SessionID == sessionID && l.UserID == userID && l.LeftAt == nil {
			copied := *l
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("open log for %s/%s: %w", sessionID, userID, types.ErrNotFound)
}

func (t *fakeTx) InsertLog(log *types.ParticipantLog) error {
	if t.s.failInsertLog != nil {
		return t.s.failInsertLog
	}
	for _, l := range t.s.logs {
		if l.SessionID == log.SessionID && l.UserID == log.UserID && l.LeftAt == nil {
			return fmt.Errorf("open log already exists: %w", types.ErrAlreadyJoined)
		}
	}
	copied := *log
	t.s.logs[log.ID] = &copied
	return nil
}

func (t *fakeTx) CloseLog(logID string, leftAt time.Time) error {
	l, ok := t.s.logs[logID]
	if !ok {
		return fmt.Errorf("log %s: %w", logID, types.ErrNotFound)
	}
	left := leftAt
	l.LeftAt = &left
	return nil
}

func (t *fakeTx) CloseOpenLogs(sessionID string, leftAt time.Time) (int, error) {
	closed := 0
	for _, l := range t.s.logs {
		if l.SessionID == sessionID && l.LeftAt == nil {
			left := leftAt
			l.LeftAt = &left
			closed++
		}
	}
	return closed, nil
}

func (t *fakeTx) UpsertMembership(m *types.Membership) error {
	copied := *m
	t.s.memberships[m.ClassroomID+"|"+m.UserID] = &copied
	return nil
}

func (t *fakeTx) IsTeacher(classroomID, userID string) (bool, error) {
	m, ok := t.s.memberships[classroomID+"|"+userID]
	return ok && m.Role == types.RoleTeacher, nil
}

func (t *fakeTx) InsertUser(user *types.User) error {
	for _, u := range t.s.users {
		if u.ID == user.ID || u.Email == user.Email {
			return fmt.Errorf("user already exists: %w", types.ErrConflict)
		}
	}
	copied := *user
	t.s.users[user.ID] = &copied
	return nil
}

func (t *fakeTx) UserExists(userID string) (bool, error) {
	_, ok := t.s.users[userID]
	return ok, nil
}

// Mock broadcaster that records every published event in order.
type recordedEvent struct {
	classroomID string
	event       string
	payload     map[string]any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{}
}

func (b *recordingBroadcaster) Subscribe(classroomID string, sub interfaces.Subscriber) {}

func (b *recordingBroadcaster) Unsubscribe(classroomID string, sub interfaces.Subscriber) {}

func (b *recordingBroadcaster) UnsubscribeAll(sub interfaces.Subscriber) {}

func (b *recordingBroadcaster) Publish(classroomID, event string, payload map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{classroomID: classroomID, event: event, payload: payload})
}

func (b *recordingBroadcaster) eventNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.events))
	for i, e := range b.events {
		names[i] = e.event
	}
	return names
}

func (b *recordingBroadcaster) lastEvent() (recordedEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return recordedEvent{}, false
	}
	return b.events[len(b.events)-1], true
}
