// Package kafka publishes mutation events to a Kafka topic for consumers
// outside this process.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/disaster-signal-hub/internal/broadcast"
	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
	"github.com/couchcryptid/disaster-signal-hub/internal/observability"
)

// EventPublisher drains a broadcaster subscription into a Kafka topic.
// It is a regular subscriber: a slow or unreachable broker sheds events by
// the same drop-on-saturation policy as any other subscriber rather than
// stalling in-process delivery.
type EventPublisher struct {
	writer  *kafkago.Writer
	bus     *broadcast.Broadcaster
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEventPublisher creates a producer for the given brokers and topic.
func NewEventPublisher(brokers []string, topic string, bus *broadcast.Broadcaster, logger *slog.Logger, metrics *observability.Metrics) *EventPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &EventPublisher{writer: w, bus: bus, logger: logger, metrics: metrics}
}

// Run subscribes to the broadcaster and forwards events until ctx is
// canceled or the broadcaster closes. Write failures are logged and the
// event is dropped; ordering of what does get through is preserved.
func (p *EventPublisher) Run(ctx context.Context) error {
	sub, err := p.bus.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() {
		if err := p.bus.Unsubscribe(sub.ID); err != nil && !errors.Is(err, broadcast.ErrUnknownSubscriber) {
			p.logger.Warn("unsubscribe failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.Events:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, event); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Error("kafka publish failed",
					"entity_type", event.EntityType,
					"entity_id", event.EntityID,
					"sequence", event.Sequence,
					"error", err)
			}
		}
	}
}

func (p *EventPublisher) publish(ctx context.Context, event domain.MutationEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	p.metrics.EventsPublishedKafka.Inc()
	return nil
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a MutationEvent into a Kafka message. The key
// is entityType/entityID so per-entity ordering survives partitioning.
func serializeToMessage(event domain.MutationEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize mutation event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(string(event.EntityType) + "/" + event.EntityID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(event.Kind)},
			{Key: "sequence", Value: []byte(strconv.FormatInt(event.Sequence, 10))},
		},
	}, nil
}
