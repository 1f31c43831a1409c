package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dilshad08/virtual-classroom/pkg/types"
)

// Connection wraps one websocket with a single writer goroutine, so
// broadcaster fan-out and request replies never race on the socket.
// Implements interfaces.Subscriber.
type Connection struct {
	id        string
	conn      *websocket.Conn
	identity  types.Identity
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded websocket for the given verified
// identity and starts its writer goroutine.
func NewConnection(conn *websocket.Conn, identity types.Identity) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:       uuid.New().String(),
		conn:     conn,
		identity: identity,
		writeCh:  make(chan []byte, 100),
		ctx:      ctx,
		cancel:   cancel,
	}

	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// ID distinguishes this connection from any other, including other
// connections of the same user.
func (c *Connection) ID() string {
	return c.id
}

// Identity returns the verified caller bound to this connection.
func (c *Connection) Identity() types.Identity {
	return c.identity
}

// WriteJSON queues one message for delivery. Fails fast when the
// connection is closed or its write buffer has been full for 5s.
func (c *Connection) WriteJSON(v any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts the writer goroutine down and closes the socket. Safe to
// call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
