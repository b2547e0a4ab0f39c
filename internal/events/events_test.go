package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chat-realtime/internal/config"
	"chat-realtime/internal/events"
	"chat-realtime/internal/mocks"
)

func TestEmitterStampsEnvelopeAndHeaders(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := events.NewEmitter(publisher, "chat-realtime", "test", zap.NewNop())

	traceID := trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(events.WithRequestID(context.Background(), "req-1"), sc)

	publisher.On("Publish", mock.Anything, "chat_events.message_sent", mock.MatchedBy(func(env events.Envelope) bool {
		return env.EventType == events.MessageSent &&
			env.Service == "chat-realtime" &&
			env.Environment == "test" &&
			env.RequestID == "req-1" &&
			env.TraceID == traceID.String() &&
			env.UserID == 7 &&
			env.SchemaVersion == 1
	}), map[string]string{"x-request-id": "req-1", "trace_id": traceID.String()}).Return(nil).Once()

	emitter.Emit(ctx, events.MessageSent, 7, map[string]any{"message_id": 1})

	publisher.AssertExpectations(t)
}

func TestEmitterSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := events.NewEmitter(publisher, "chat-realtime", "test", zap.NewNop())

	publisher.On("Publish", mock.Anything, "ws_events.chats", mock.Anything, map[string]string{}).Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), events.WSConnect, 1, nil)
	})
	publisher.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *events.Emitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), events.PresenceChanged, 1, nil)
	})
}

func TestBreakerFailsFastWhenOpen(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	publisher.On("Publish", mock.Anything, "k", mock.Anything, mock.Anything).Return(errors.New("broker down")).Times(3)

	p := events.WithBreaker(publisher, "test", 3, time.Minute, zap.NewNop())
	for i := 0; i < 3; i++ {
		require.Error(t, p.Publish(context.Background(), "k", "e", nil))
	}

	err := p.Publish(context.Background(), "k", "e", nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	publisher.AssertNumberOfCalls(t, "Publish", 3)
}

func TestNewPublisherDegradesToNoop(t *testing.T) {
	cases := map[string]config.EventsConfig{
		"disabled":         {Driver: "none"},
		"empty amqp url":   {Driver: "amqp"},
		"no kafka brokers": {Driver: "kafka", KafkaTopic: "chat.events"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			p := events.NewPublisher(cfg, zap.NewNop())
			assert.Equal(t, "noop", events.Mode(p))
			assert.NotEmpty(t, events.NoopReason(p))
			assert.NoError(t, p.Publish(context.Background(), "k", events.Envelope{EventType: "x"}, nil))
			assert.NoError(t, p.Close())
		})
	}
}

func TestKafkaPublisherIsWrappedInBreaker(t *testing.T) {
	p := events.NewPublisher(config.EventsConfig{Driver: "kafka", KafkaBrokers: []string{"127.0.0.1:1"}, KafkaTopic: "chat.events"}, zap.NewNop())
	assert.Equal(t, "kafka", events.Mode(p))
	assert.NoError(t, p.Close())
}
