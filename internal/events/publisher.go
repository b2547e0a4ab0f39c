// Package events publishes connection and domain events to the configured broker.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chat-realtime/internal/config"
)

// Publisher publishes JSON events under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

const (
	breakerMaxFailures = 5
	breakerOpenTimeout = 30 * time.Second
)

// NewPublisher builds the broker publisher named by cfg.Driver. A broker that
// cannot be reached at startup degrades to a noop publisher instead of failing.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) Publisher {
	var p Publisher
	switch cfg.Driver {
	case "amqp":
		p = newAMQPPublisher(cfg.AMQPURL, cfg.Exchange, logger)
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			logger.Warn("events disabled, using noop", zap.String("reason", "no kafka brokers"))
			return noopPublisher{reason: "no kafka brokers", logger: logger}
		}
		p = NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("kafka publisher ready", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	default:
		return noopPublisher{reason: "events driver disabled", logger: logger}
	}
	if _, ok := p.(noopPublisher); ok {
		return p
	}
	return WithBreaker(p, "events-"+cfg.Driver, breakerMaxFailures, breakerOpenTimeout, logger)
}

type noopPublisher struct {
	reason string
	logger *zap.Logger
}

func (p noopPublisher) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	if p.logger == nil {
		return nil
	}
	fields := []zap.Field{zap.String("routing_key", routingKey), zap.String("request_id", headers[headerRequestID])}
	if env, ok := event.(Envelope); ok {
		fields = append(fields, zap.String("event_type", env.EventType))
	}
	p.logger.Debug("noop publish", fields...)
	return nil
}

func (noopPublisher) Close() error { return nil }

// Mode reports the publisher kind for startup logs and metric labels.
func Mode(p Publisher) string {
	switch pub := p.(type) {
	case *amqpPublisher:
		return "amqp"
	case *KafkaPublisher:
		return "kafka"
	case *breakerPublisher:
		return Mode(pub.next)
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// NoopReason explains why events are not being delivered, if they are not.
func NoopReason(p Publisher) string {
	if pub, ok := p.(noopPublisher); ok {
		return pub.reason
	}
	return ""
}
