//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/disaster-signal-hub/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-signal-hub/internal/broadcast"
	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
	"github.com/couchcryptid/disaster-signal-hub/internal/observability"
	"github.com/couchcryptid/disaster-signal-hub/internal/recordstore"
)

const testEventsTopic = "test-mutations"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type receivedEvent struct {
	Event   domain.MutationEvent
	Key     string
	Headers map[string]string
}

func readEvent(ctx context.Context, t *testing.T, consumer *kafkago.Reader) receivedEvent {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from events topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.MutationEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal event")

	return receivedEvent{Event: event, Key: string(msg.Key), Headers: headers}
}

// TestKafkaEventEgress verifies that record mutations flow through the
// broadcaster and the Kafka publisher onto a real broker, in sequence order,
// with routing keys and headers intact.
func TestKafkaEventEgress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	bus := broadcast.New(16, logger, metrics)
	t.Cleanup(bus.Close)
	records := recordstore.New(bus, domain.NewClassifier(nil), clockwork.NewRealClock(), logger)

	publisher := kafkaadapter.NewEventPublisher([]string{broker}, testEventsTopic, bus, logger, metrics)
	t.Cleanup(func() { _ = publisher.Close() })

	pubCtx, pubCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- publisher.Run(pubCtx) }()

	// Wait for the publisher to subscribe before mutating.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Subscribers) == 1
	}, 10*time.Second, 50*time.Millisecond)

	disaster, err := records.CreateDisaster(ctx, domain.Disaster{
		Title: "Coastal Flooding",
		Tags:  []string{"flood"},
	})
	require.NoError(t, err)

	_, err = records.UpdateDisaster(ctx, disaster.ID, recordstore.DisasterPatch{
		Title: ptr("Coastal Flooding (Major)"),
	})
	require.NoError(t, err)

	require.NoError(t, records.DeleteDisaster(ctx, disaster.ID))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	wantKey := "disaster/" + disaster.ID
	kinds := []domain.MutationKind{domain.MutationCreated, domain.MutationUpdated, domain.MutationDeleted}
	for i, wantKind := range kinds {
		got := readEvent(ctx, t, consumer)
		assert.Equal(t, wantKey, got.Key)
		assert.Equal(t, wantKind, got.Event.Kind)
		assert.Equal(t, domain.EntityDisaster, got.Event.EntityType)
		assert.Equal(t, int64(i+1), got.Event.Sequence)
		assert.Equal(t, string(wantKind), got.Headers["kind"])
		assert.Equal(t, strconv.FormatInt(int64(i+1), 10), got.Headers["sequence"])
	}

	pubCancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func ptr[T any](v T) *T { return &v }
