// Package broadcast fans classroom-scoped events out to the dynamic
// set of subscribers of each classroom channel.
package broadcast

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dilshad08/virtual-classroom/internal/metrics"
	"github.com/dilshad08/virtual-classroom/pkg/interfaces"
	"github.com/dilshad08/virtual-classroom/pkg/types"
)

var (
	ErrAlreadyRunning = errors.New("broadcaster is already running")
	ErrNotRunning     = errors.New("broadcaster is not running")
)

// Broadcaster implements interfaces.Broadcaster with an in-process
// fan-out. A single goroutine drains the publish queue, which makes
// delivery FIFO per classroom relative to Publish order. Delivery is
// best-effort: a slow or dead subscriber loses its event, the rest of
// the room is unaffected.
type Broadcaster struct {
	mu       sync.RWMutex
	channels map[string]map[string]interfaces.Subscriber

	publishCh  chan types.Event
	shutdownCh chan struct{}
	running    bool
	runMu      sync.Mutex
}

// New creates a broadcaster with the given publish queue depth.
func New(queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Broadcaster{
		channels:   make(map[string]map[string]interfaces.Subscriber),
		publishCh:  make(chan types.Event, queueSize),
		shutdownCh: make(chan struct{}),
	}
}

// Start begins the fan-out goroutine.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.running {
		return ErrAlreadyRunning
	}
	b.running = true

	go b.run(ctx)
	return nil
}

// Stop shuts the fan-out goroutine down. Queued events are dropped.
func (b *Broadcaster) Stop() error {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if !b.running {
		return ErrNotRunning
	}
	b.running = false

	select {
	case <-b.shutdownCh:
	default:
		close(b.shutdownCh)
	}
	return nil
}

// Subscribe adds sub to the classroom's channel, replacing a previous
// subscription with the same ID.
func (b *Broadcaster) Subscribe(classroomID string, sub interfaces.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.channels[classroomID]
	if !ok {
		subs = make(map[string]interfaces.Subscriber)
		b.channels[classroomID] = subs
	}
	if _, replaced := subs[sub.ID()]; !replaced {
		metrics.Subscribers.Inc()
	}
	subs[sub.ID()] = sub
}

// Unsubscribe removes sub from the classroom's channel. Idempotent.
func (b *Broadcaster) Unsubscribe(classroomID string, sub interfaces.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(classroomID, sub.ID())
}

// UnsubscribeAll removes sub from every channel it is subscribed to.
func (b *Broadcaster) UnsubscribeAll(sub interfaces.Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for classroomID := range b.channels {
		b.removeLocked(classroomID, sub.ID())
	}
}

// removeLocked deletes one subscription and cleans up empty channels.
// Caller holds b.mu.
func (b *Broadcaster) removeLocked(classroomID, subID string) {
	subs, ok := b.channels[classroomID]
	if !ok {
		return
	}
	if _, ok := subs[subID]; !ok {
		return
	}
	delete(subs, subID)
	metrics.Subscribers.Dec()
	if len(subs) == 0 {
		delete(b.channels, classroomID)
	}
}

// Publish queues an event for delivery to every current subscriber of
// the classroom channel. Fire-and-forget: when the queue is full the
// event is dropped rather than blocking the caller.
func (b *Broadcaster) Publish(classroomID, event string, payload map[string]any) {
	evt := types.Event{
		Event:       event,
		ClassroomID: classroomID,
		Payload:     payload,
		Timestamp:   time.Now(),
	}

	select {
	case b.publishCh <- evt:
		metrics.EventsPublished.WithLabelValues(event).Inc()
	default:
		log.Printf("Publish queue full, dropping event: classroom=%s event=%s", classroomID, event)
	}
}

// SubscriberCount returns the number of current subscribers of a
// classroom channel.
func (b *Broadcaster) SubscriberCount(classroomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.channels[classroomID])
}

// Stats returns channel statistics for health reporting.
func (b *Broadcaster) Stats() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, subs := range b.channels {
		total += len(subs)
	}
	return map[string]int{
		"channels":    len(b.channels),
		"subscribers": total,
	}
}

func (b *Broadcaster) run(ctx context.Context) {
	defer log.Println("Broadcaster fan-out stopped")

	for {
		select {
		case evt := <-b.publishCh:
			b.deliver(evt)
		case <-b.shutdownCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// deliver writes one event to a snapshot of the channel's subscribers.
// Individual failures are counted and logged, never propagated.
func (b *Broadcaster) deliver(evt types.Event) {
	b.mu.RLock()
	subs := make([]interfaces.Subscriber, 0, len(b.channels[evt.ClassroomID]))
	for _, sub := range b.channels[evt.ClassroomID] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.WriteJSON(evt); err != nil {
			metrics.DeliveryFailures.Inc()
			log.Printf("Event delivery failed: classroom=%s event=%s subscriber=%s err=%v",
				evt.ClassroomID, evt.Event, sub.ID(), err)
		}
	}
}
