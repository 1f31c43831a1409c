package interfaces

// Subscriber is one logical recipient of classroom events, typically a
// wrapped websocket connection. Delivery failures are the subscriber's
// problem; the broadcaster only reports them.
type Subscriber interface {
	// ID distinguishes subscribers within a channel. Two connections of
	// the same user have different IDs.
	ID() string

	// WriteJSON delivers one event. It must not block indefinitely.
	WriteJSON(v any) error
}

// Broadcaster fans classroom-scoped events out to the channel's current
// subscribers. Delivery is best-effort and fire-and-forget, FIFO per
// classroom relative to the order Publish was called.
type Broadcaster interface {
	Subscribe(classroomID string, sub Subscriber)
	Unsubscribe(classroomID string, sub Subscriber)
	// UnsubscribeAll removes sub from every channel, used on
	// connection teardown.
	UnsubscribeAll(sub Subscriber)
	Publish(classroomID, event string, payload map[string]any)
}
