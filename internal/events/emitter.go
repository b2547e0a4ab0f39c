package events

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chat-realtime/internal/observability"
)

const (
	headerRequestID = "x-request-id"
	headerTraceID   = "trace_id"

	publishTimeout = 3 * time.Second
)

// Event names.
const (
	WSConnect       = "ws_connect"
	WSDisconnect    = "ws_disconnect"
	WSError         = "ws_error"
	MessageSent     = "message_sent"
	MessageDeleted  = "message_deleted"
	MessageRead     = "message_read"
	ReactionToggled = "reaction_toggled"
	PresenceChanged = "presence_changed"
)

// Envelope is the body of every published event.
type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	RequestID     string `json:"request_id,omitempty"`
	TraceID       string `json:"trace_id,omitempty"`
	UserID        int64  `json:"user_id,omitempty"`
	Payload       any    `json:"payload"`
}

// Emitter stamps events with service metadata and hands them to a Publisher.
// A nil *Emitter drops everything.
type Emitter struct {
	publisher   Publisher
	mode        string
	service     string
	environment string
	logger      *zap.Logger
}

func NewEmitter(publisher Publisher, service, environment string, logger *zap.Logger) *Emitter {
	return &Emitter{
		publisher:   publisher,
		mode:        Mode(publisher),
		service:     service,
		environment: environment,
		logger:      logger.Named("events"),
	}
}

// Emit publishes name with payload. Failures are logged and counted, never returned.
func (e *Emitter) Emit(ctx context.Context, name string, userID int64, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	requestID := RequestIDFrom(ctx)
	traceID := traceIDFrom(ctx)
	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     name,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		TraceID:       traceID,
		UserID:        userID,
		Payload:       payload,
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, RoutingKey(name), envelope, BuildHeaders(requestID, traceID)); err != nil {
		observability.IncEventPublishError(e.mode)
		e.logger.Warn("event publish failed", zap.String("event", name), zap.String("request_id", requestID), zap.Error(err))
	}
}

// RoutingKey groups connection events apart from chat domain events.
func RoutingKey(name string) string {
	switch name {
	case WSConnect, WSDisconnect, WSError:
		return "ws_events.chats"
	default:
		return "chat_events." + name
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers[headerRequestID] = requestID
	}
	if traceID != "" {
		headers[headerTraceID] = traceID
	}
	return headers
}

type requestIDKey struct{}

// WithRequestID attaches the request id that Emit copies into envelopes and headers.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func traceIDFrom(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
