// Package resilience guards calls to external dependencies with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"

	"github.com/abgdnv/warehouse/internal/platform/config"
	"github.com/abgdnv/warehouse/internal/platform/messaging"
	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreaker creates a breaker that opens after cfg.ConsecutiveFailures consecutive failures,
// or when the failure rate exceeds cfg.ErrorRatePercent once that many requests have been seen.
// Context cancellation by the caller is not counted as a failure.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.Requests > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.Requests)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return gobreaker.NewCircuitBreaker[struct{}](st)
}

// BreakingPublisher wraps a publisher so that a failing broker is skipped quickly
// instead of delaying every mutation by the publish timeout.
type BreakingPublisher struct {
	next    messaging.Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
}

var _ messaging.Publisher = (*BreakingPublisher)(nil)

func NewBreakingPublisher(next messaging.Publisher, breaker *gobreaker.CircuitBreaker[struct{}]) *BreakingPublisher {
	return &BreakingPublisher{next: next, breaker: breaker}
}

// Publish forwards the event while the breaker is closed or half-open.
// Returns gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests when the call is rejected.
func (p *BreakingPublisher) Publish(ctx context.Context, event messaging.Event) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, event)
	})
	return err
}
