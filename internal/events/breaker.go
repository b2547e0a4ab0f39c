package events

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type breakerPublisher struct {
	next Publisher
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker stops calling next after maxFailures consecutive errors and
// probes it again once openTimeout has passed. While open, Publish fails fast
// with gobreaker.ErrOpenState.
func WithBreaker(next Publisher, name string, maxFailures uint32, openTimeout time.Duration, logger *zap.Logger) Publisher {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &breakerPublisher{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (p *breakerPublisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.next.Publish(ctx, routingKey, event, headers)
	})
	return err
}

func (p *breakerPublisher) Close() error {
	return p.next.Close()
}
