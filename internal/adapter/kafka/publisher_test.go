package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-signal-hub/internal/broadcast"
	"github.com/couchcryptid/disaster-signal-hub/internal/domain"
	"github.com/couchcryptid/disaster-signal-hub/internal/observability"
)

func TestSerializeToMessage(t *testing.T) {
	event := domain.MutationEvent{
		Kind:       domain.MutationCreated,
		EntityType: domain.EntityDisaster,
		EntityID:   "d-123",
		Payload:    json.RawMessage(`{"title":"Flood"}`),
		Sequence:   7,
		OccurredAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("disaster/d-123"), msg.Key)

	var decoded domain.MutationEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.Kind, decoded.Kind)
	assert.Equal(t, event.Sequence, decoded.Sequence)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "created", headers["kind"])
	assert.Equal(t, "7", headers["sequence"])
}

func TestEventPublisher_RunStopsWhenBroadcasterCloses(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	bus := broadcast.New(4, logger, metrics)

	p := &EventPublisher{bus: bus, logger: logger, metrics: metrics}

	done := make(chan error, 1)
	go func() {
		done <- p.Run(context.Background())
	}()

	// Wait for Run to subscribe before closing the broadcaster.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Subscribers) == 1
	}, time.Second, 10*time.Millisecond)
	bus.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after broadcaster close")
	}
}

func TestEventPublisher_RunStopsOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	bus := broadcast.New(4, logger, metrics)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := &EventPublisher{bus: bus, logger: logger, metrics: metrics}

	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
