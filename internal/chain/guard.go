package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrNotFound is returned by guarded calls when the ledger has no such object.
// It never trips the breaker.
var ErrNotFound = errors.New("not found on ledger")

// GuardSettings configures the circuit breaker around a chain's RPC endpoint.
type GuardSettings struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

// Guard wraps RPC calls to one network in a circuit breaker and classifies
// infrastructure failures as ErrTransient.
type Guard struct {
	cb *gobreaker.CircuitBreaker
}

// NewGuard creates a Guard for network.
func NewGuard(network Network, s GuardSettings) *Guard {
	maxFailures := s.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := s.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "chain-rpc-" + network.String(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, ErrMalformedAddress)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("chain rpc circuit breaker state change")
		},
	}
	return &Guard{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker. ErrNotFound, ErrMalformedAddress and context
// cancellation pass through unchanged; everything else is wrapped with ErrTransient.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g == nil {
		return classify(op, fn(ctx))
	}
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return classify(op, err)
}

func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrMalformedAddress),
		errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
}
