// Package broadcast fans out domain mutation events to connected observers.
//
// Delivery is at-least-once per connected subscriber and strictly ordered per
// entity type, provided publishers emit events for one entity type in
// sequence order (the record store does this under its commit lock). A slow
// subscriber never blocks publication: each subscriber has a bounded queue
// and deliveries to a saturated queue are dropped and logged. There is no
// replay; a new subscriber must pull current state before relying on the
// stream.
package broadcast

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
	"github.com/couchcryptid/disaster-signal-hub/internal/observability"
)

var (
	// ErrClosed is returned when operations are attempted on a closed broadcaster.
	ErrClosed = errors.New("broadcaster is closed")

	// ErrUnknownSubscriber is returned when unsubscribing an id that is not registered.
	ErrUnknownSubscriber = errors.New("unknown subscriber")
)

// Subscription is one observer's handle on the event stream. Events arrives
// on Events until Unsubscribe (or Close) closes the channel.
type Subscription struct {
	ID     string
	Events <-chan domain.MutationEvent

	ch chan domain.MutationEvent
}

// Broadcaster distributes mutation events to subscribers with a
// non-blocking drop policy.
type Broadcaster struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	buffer  int

	mu          sync.RWMutex
	subscribers map[string]*Subscription
	closed      bool
}

// New creates a Broadcaster whose subscribers each get a queue of the given
// buffer size (minimum 1).
func New(buffer int, logger *slog.Logger, metrics *observability.Metrics) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		logger:      logger,
		metrics:     metrics,
		buffer:      buffer,
		subscribers: make(map[string]*Subscription),
	}
}

// Subscribe registers a new observer and returns its subscription handle.
func (b *Broadcaster) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	ch := make(chan domain.MutationEvent, b.buffer)
	sub := &Subscription{
		ID:     uuid.NewString(),
		Events: ch,
		ch:     ch,
	}
	b.subscribers[sub.ID] = sub
	b.metrics.Subscribers.Set(float64(len(b.subscribers)))
	b.logger.Debug("subscriber connected", "subscriber_id", sub.ID)
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its event channel.
func (b *Broadcaster) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[id]
	if !ok {
		return ErrUnknownSubscriber
	}
	delete(b.subscribers, id)
	close(sub.ch)
	b.metrics.Subscribers.Set(float64(len(b.subscribers)))
	b.logger.Debug("subscriber disconnected", "subscriber_id", id)
	return nil
}

// Publish delivers the event to every current subscriber without blocking.
// Deliveries to subscribers whose queue is full are dropped and logged.
// Publishing on a closed broadcaster is a no-op.
func (b *Broadcaster) Publish(event domain.MutationEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.metrics.EventsPublished.Inc()

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- event:
			b.metrics.EventsDelivered.Inc()
		default:
			b.metrics.EventsDropped.Inc()
			b.logger.Warn("subscriber queue saturated, dropping event",
				"subscriber_id", id,
				"entity_type", event.EntityType,
				"sequence", event.Sequence,
			)
		}
	}
}

// Close disconnects all subscribers and rejects further subscriptions.
// Close is idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
	b.metrics.Subscribers.Set(0)
}
