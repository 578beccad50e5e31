package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/listing-payment-gate/internal/chain"
	"github.com/fairyhunter13/listing-payment-gate/internal/payment"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 15
)

var errStillPending = errors.New("payment still pending")

// CheckFunc performs one verification attempt.
type CheckFunc func(ctx context.Context) (payment.Outcome, error)

// Poller repeats a verification at a fixed interval until it confirms,
// mismatches, fails permanently, runs out of attempts or ctx ends.
type Poller struct {
	interval time.Duration
	attempts uint64
}

// NewPoller creates a Poller. Zero values fall back to 2s and 15 attempts.
func NewPoller(interval time.Duration, attempts uint64) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if attempts == 0 {
		attempts = defaultPollAttempts
	}
	return &Poller{interval: interval, attempts: attempts}
}

// Await runs check until it reports a confirmation.
//
// Returns:
//   - the confirming outcome
//   - ErrPaymentMismatch with the mismatching outcome, without further attempts
//   - ErrPaymentOtherPurpose when the payment fits another purpose's price
//   - ErrPaymentNotConfirmed when every attempt stayed pending
//   - chain.ErrTransient if the last attempt hit an infrastructure fault
//   - ctx.Err() on cancellation, even if a confirmation raced it
//
// Transient faults are retried within the attempt budget; any other error stops polling.
func (p *Poller) Await(ctx context.Context, check CheckFunc) (payment.Outcome, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), p.attempts-1),
		ctx,
	)

	var (
		out     payment.Outcome
		attempt int
	)
	op := func() error {
		attempt++
		o, err := check(ctx)
		if err != nil {
			if errors.Is(err, chain.ErrTransient) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = o
		switch o.Status {
		case payment.StatusConfirmed:
			return nil
		case payment.StatusMismatch:
			return backoff.Permanent(ErrPaymentMismatch)
		case payment.StatusOtherPurpose:
			return backoff.Permanent(ErrPaymentOtherPurpose)
		default:
			return errStillPending
		}
	}
	notify := func(err error, next time.Duration) {
		if errors.Is(err, errStillPending) {
			return
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("next_retry_in", next).
			Msg("payment check failed, retrying")
	}

	err := backoff.RetryNotify(op, policy, notify)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// a confirmation that lands after cancellation is not acted on
		return payment.Outcome{}, ctxErr
	}
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, errStillPending):
		return out, ErrPaymentNotConfirmed
	case errors.Is(err, ErrPaymentMismatch), errors.Is(err, ErrPaymentOtherPurpose):
		return out, err
	default:
		return payment.Outcome{}, err
	}
}
