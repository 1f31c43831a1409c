package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Mock classroom service for testing
type mockService struct {
	failWith error
}

func (m *mockService) CreateClassroom(ctx context.Context, name, teacherID string) (*types.Classroom, error) {
	return &types.Classroom{ID: "class-1", Name: name}, nil
}

func (m *mockService) StartClass(ctx context.Context, classroomID, requesterID string) (string, error) {
	if m.failWith != nil {
		return "", m.failWith
	}
	return "sess-1", nil
}

func (m *mockService) EndClass(ctx context.Context, classroomID, requesterID string) (string, error) {
	if m.failWith != nil {
		return "", m.failWith
	}
	return "sess-1", nil
}

func (m *mockService) JoinClassroom(ctx context.Context, classroomID string, identity types.Identity) (string, error) {
	if m.failWith != nil {
		return "", m.failWith
	}
	return fmt.Sprintf("%s joined the classroom", identity.Name), nil
}

func (m *mockService) LeaveClassroom(ctx context.Context, classroomID string, identity types.Identity) (string, error) {
	if m.failWith != nil {
		return "", m.failWith
	}
	return fmt.Sprintf("%s left the class", identity.Name), nil
}

func (m *mockService) GetHistory(ctx context.Context, classroomID string) ([]*types.SessionHistory, error) {
	return nil, nil
}

type mockIdentity struct {
	identities map[string]types.Identity
}

func (m *mockIdentity) Register(ctx context.Context, email, password, name string, role types.Role) (*types.User, error) {
	return nil, nil
}

func (m *mockIdentity) Login(ctx context.Context, email, password string) (string, error) {
	return "", nil
}

func (m *mockIdentity) Verify(token string) (types.Identity, error) {
	identity, ok := m.identities[token]
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid token: %w", types.ErrUnauthenticated)
	}
	return identity, nil
}

type mockAuthz struct{}

func (mockAuthz) Require(role types.Role, required ...types.Role) error {
	if len(required) == 0 {
		return nil
	}
	for _, r := range required {
		if role == r {
			return nil
		}
	}
	return fmt.Errorf("role %s is not allowed: %w", role, types.ErrForbidden)
}

// Mock broadcaster that records subscription changes.
type mockBroadcaster struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
	cleanedUp    int
}

func (b *mockBroadcaster) Subscribe(classroomID string, sub interfaces.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = append(b.subscribed, classroomID)
}

func (b *mockBroadcaster) Unsubscribe(classroomID string, sub interfaces.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribed = append(b.unsubscribed, classroomID)
}

func (b *mockBroadcaster) UnsubscribeAll(sub interfaces.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanedUp++
}

func (b *mockBroadcaster) Publish(classroomID, event string, payload map[string]any) {}

func (b *mockBroadcaster) subscriptions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.subscribed))
	copy(out, b.subscribed)
	return out
}

type wsFixture struct {
	server      *httptest.Server
	service     *mockService
	broadcaster *mockBroadcaster
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	service := &mockService{}
	broadcaster := &mockBroadcaster{}
	identity := &mockIdentity{identities: map[string]types.Identity{
		"teacher-token": {UserID: "teacher-1", Role: types.RoleTeacher, Name: "Ms. Roy"},
		"student-token": {UserID: "student-1", Role: types.RoleStudent, Name: "Sam"},
	}}

	handler := NewHandler(service, identity, mockAuthz{}, broadcaster)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	return &wsFixture{server: server, service: service, broadcaster: broadcaster}
}

func (f *wsFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req request) response {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("failed to send request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	return resp
}

func TestHandler_RejectsMissingToken(t *testing.T) {
	f := newWSFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 handshake response, got %+v", resp)
	}
}

func TestHandler_RejectsInvalidToken(t *testing.T) {
	f := newWSFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=bogus"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial with bad token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 handshake response, got %+v", resp)
	}
}

func TestHandler_JoinSubscribesConnection(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "student-token")

	resp := roundTrip(t, conn, request{Action: ActionJoin, ClassroomID: "class-1"})
	if !resp.OK {
		t.Fatalf("join should succeed, got error %q", resp.Error)
	}
	if resp.Message != "Sam joined the classroom" {
		t.Errorf("message = %q", resp.Message)
	}
	subs := f.broadcaster.subscriptions()
	if len(subs) != 1 || subs[0] != "class-1" {
		t.Errorf("join should subscribe to class-1, got %v", subs)
	}
}

func TestHandler_JoinFailureDoesNotSubscribe(t *testing.T) {
	f := newWSFixture(t)
	f.service.failWith = fmt.Errorf("class is not started: %w", types.ErrInvalidState)
	conn := f.dial(t, "student-token")

	resp := roundTrip(t, conn, request{Action: ActionJoin, ClassroomID: "class-1"})
	if resp.OK {
		t.Fatal("join should fail")
	}
	if resp.Error == "" {
		t.Error("error reply should carry a message")
	}
	if len(f.broadcaster.subscriptions()) != 0 {
		t.Error("failed join must not subscribe the connection")
	}
}

func TestHandler_StartRequiresTeacherRole(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "student-token")

	resp := roundTrip(t, conn, request{Action: ActionStart, ClassroomID: "class-1"})
	if resp.OK {
		t.Fatal("student start_class should be rejected")
	}
}

func TestHandler_TeacherStartReturnsSession(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "teacher-token")

	resp := roundTrip(t, conn, request{Action: ActionStart, ClassroomID: "class-1"})
	if !resp.OK {
		t.Fatalf("teacher start_class should succeed, got %q", resp.Error)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("session_id = %q, want sess-1", resp.SessionID)
	}
}

func TestHandler_UnknownAction(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "student-token")

	resp := roundTrip(t, conn, request{Action: "dance", ClassroomID: "class-1"})
	if resp.OK {
		t.Fatal("unknown action should be rejected")
	}
}

func TestHandler_MissingClassroomID(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "student-token")

	resp := roundTrip(t, conn, request{Action: ActionSubscribe})
	if resp.OK {
		t.Fatal("missing classroom_id should be rejected")
	}
}

func TestHandler_DisconnectCleansSubscriptions(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "student-token")

	resp := roundTrip(t, conn, request{Action: ActionSubscribe, ClassroomID: "class-1"})
	if !resp.OK {
		t.Fatalf("subscribe failed: %q", resp.Error)
	}

	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.broadcaster.mu.Lock()
		cleaned := f.broadcaster.cleanedUp
		f.broadcaster.mu.Unlock()
		if cleaned == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("disconnect should unsubscribe the connection from every channel")
}

func TestConnection_WriteAfterClose(t *testing.T) {
	conn := NewConnection(nil, types.Identity{UserID: "u-1"})
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"k": "v"}); err != ErrConnectionClosed {
		t.Errorf("write after close = %v, want ErrConnectionClosed", err)
	}
	// Close is idempotent.
	if err := conn.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}
