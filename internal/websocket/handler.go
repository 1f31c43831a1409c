package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Inbound actions a client may send on the socket.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionJoin        = "join_classroom"
	ActionLeave       = "leave_classroom"
	ActionStart       = "start_class"
	ActionEnd         = "end_class"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Deployments front this with their own origin policy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// request is one inbound frame.
type request struct {
	Action      string `json:"action"`
	ClassroomID string `json:"classroom_id"`
}

// response is the reply to the frame that triggered it. Broadcast
// events arrive separately as types.Event envelopes.
type response struct {
	Action      string `json:"action"`
	ClassroomID string `json:"classroom_id,omitempty"`
	OK          bool   `json:"ok"`
	Message     string `json:"message,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Handler owns the websocket endpoint: it authenticates the upgrade,
// dispatches inbound actions to the orchestrator and keeps channel
// subscriptions in step with join/leave.
type Handler struct {
	service     interfaces.ClassroomService
	identity    interfaces.IdentityProvider
	authz       interfaces.Authorizer
	broadcaster interfaces.Broadcaster

	// Per-connection inbound action budget.
	actionRate  rate.Limit
	actionBurst int
}

// NewHandler creates the websocket handler.
func NewHandler(service interfaces.ClassroomService, identity interfaces.IdentityProvider,
	authz interfaces.Authorizer, broadcaster interfaces.Broadcaster) *Handler {
	return &Handler{
		service:     service,
		identity:    identity,
		authz:       authz,
		broadcaster: broadcaster,
		actionRate:  rate.Limit(10),
		actionBurst: 20,
	}
}

// HandleWebSocket upgrades /ws requests. The token travels as a query
// parameter because browsers cannot set headers on websocket dials.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	identity, err := h.identity.Verify(token)
	if err != nil {
		http.Error(w, "Invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, identity)
	log.Printf("Client connected: user=%s role=%s conn=%s", identity.UserID, identity.Role, wsConn.ID())

	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump with heartbeat monitoring and
// cleans up every subscription on the way out.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.broadcaster.UnsubscribeAll(conn)
		_ = conn.Close()
		log.Printf("Client disconnected: user=%s conn=%s", conn.Identity().UserID, conn.ID())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	limiter := rate.NewLimiter(h.actionRate, h.actionBurst)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: user=%s err=%v", conn.Identity().UserID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			h.reply(conn, response{Action: "error", OK: false, Error: "invalid JSON payload"})
			continue
		}

		if !limiter.Allow() {
			h.reply(conn, errorResponse(req, ErrRateLimited))
			continue
		}

		h.dispatch(conn, req)
	}
}

// dispatch executes one inbound action against the orchestrator.
func (h *Handler) dispatch(conn *Connection, req request) {
	if req.ClassroomID == "" {
		h.reply(conn, response{Action: req.Action, OK: false, Error: "classroom_id is required"})
		return
	}

	identity := conn.Identity()
	ctx := conn.ctx

	switch req.Action {
	case ActionSubscribe:
		h.broadcaster.Subscribe(req.ClassroomID, conn)
		h.reply(conn, okResponse(req, "subscribed"))

	case ActionUnsubscribe:
		h.broadcaster.Unsubscribe(req.ClassroomID, conn)
		h.reply(conn, okResponse(req, "unsubscribed"))

	case ActionJoin:
		message, err := h.service.JoinClassroom(ctx, req.ClassroomID, identity)
		if err != nil {
			h.reply(conn, errorResponse(req, err))
			return
		}
		// Joined participants follow the room's events until they
		// leave or disconnect.
		h.broadcaster.Subscribe(req.ClassroomID, conn)
		h.reply(conn, okResponse(req, message))

	case ActionLeave:
		message, err := h.service.LeaveClassroom(ctx, req.ClassroomID, identity)
		if err != nil {
			h.reply(conn, errorResponse(req, err))
			return
		}
		h.broadcaster.Unsubscribe(req.ClassroomID, conn)
		h.reply(conn, okResponse(req, message))

	case ActionStart:
		if err := h.authz.Require(identity.Role, types.RoleTeacher); err != nil {
			h.reply(conn, errorResponse(req, err))
			return
		}
		sessionID, err := h.service.StartClass(ctx, req.ClassroomID, identity.UserID)
		if err != nil {
			h.reply(conn, errorResponse(req, err))
			return
		}
		h.broadcaster.Subscribe(req.ClassroomID, conn)
		h.reply(conn, response{Action: req.Action, ClassroomID: req.ClassroomID, OK: true,
			Message: "Class started successfully", SessionID: sessionID})

	case ActionEnd:
		if err := h.authz.Require(identity.Role, types.RoleTeacher); err != nil {
			h.reply(conn, errorResponse(req, err))
			return
		}
		sessionID, err := h.service.EndClass(ctx, req.ClassroomID, identity.UserID)
		if err != nil {
			h.reply(conn, errorResponse(req, err))
			return
		}
		h.reply(conn, response{Action: req.Action, ClassroomID: req.ClassroomID, OK: true,
			Message: "Class ended successfully", SessionID: sessionID})

	default:
		h.reply(conn, errorResponse(req, ErrUnknownAction))
	}
}

func (h *Handler) reply(conn *Connection, resp response) {
	if err := conn.WriteJSON(resp); err != nil && !errors.Is(err, ErrConnectionClosed) {
		log.Printf("Failed to send reply: user=%s err=%v", conn.Identity().UserID, err)
	}
}

func okResponse(req request, message string) response {
	return response{Action: req.Action, ClassroomID: req.ClassroomID, OK: true, Message: message}
}

func errorResponse(req request, err error) response {
	return response{Action: req.Action, ClassroomID: req.ClassroomID, OK: false, Error: err.Error()}
}
