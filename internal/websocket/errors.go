package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrInvalidJSON      = errors.New("failed to marshal JSON")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrUnknownAction    = errors.New("unknown action")
	ErrRateLimited      = errors.New("too many requests")
)
