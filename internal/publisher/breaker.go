package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/handicapper/pkg/models"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerSettings controls when a failing target is cut off
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Breaker stops calling a target that keeps failing so evaluation does not
// wait on a dead stream. While open, publishes fail fast with
// gobreaker.ErrOpenState.
type Breaker struct {
	next contracts.Publisher
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next in a circuit breaker
func NewBreaker(next contracts.Publisher, settings BreakerSettings, log zerolog.Logger) *Breaker {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	threshold := settings.ConsecutiveFailures

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from_state", from.String()).
				Str("to_state", to.String()).
				Msg("publisher circuit breaker state changed")
		},
	})

	return &Breaker{next: next, cb: cb}
}

// State returns the breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// PublishEdge implements contracts.Publisher
func (b *Breaker) PublishEdge(ctx context.Context, edge models.Edge) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.PublishEdge(ctx, edge)
	})
	if err != nil {
		return fmt.Errorf("publish edge: %w", err)
	}
	return nil
}

// PublishRecommendation implements contracts.Publisher
func (b *Breaker) PublishRecommendation(ctx context.Context, rec models.BetRecommendation) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.PublishRecommendation(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("publish recommendation: %w", err)
	}
	return nil
}
