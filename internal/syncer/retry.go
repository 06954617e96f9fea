package syncer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/julianstephens/habitat/internal/constants"
	"github.com/julianstephens/habitat/internal/logger"
	"github.com/julianstephens/habitat/internal/remote"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy controls how transient remote failures are retried. Attempt n
// waits BaseDelay*2^(n-1), capped at MaxDelay, then spread by ±Jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: constants.DefaultSyncMaxAttempts,
		BaseDelay:   constants.DefaultSyncBaseDelay,
		MaxDelay:    constants.DefaultSyncMaxDelay,
		Jitter:      constants.DefaultSyncJitter,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	return max(d, 0)
}

// do runs fn until it succeeds, fails permanently or runs out of attempts.
// onAttempt is told the number of each attempt before it starts.
func (p RetryPolicy) do(ctx context.Context, what string, fn func(context.Context) error, onAttempt func(int)) error {
	maxAttempts := max(p.MaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		if onAttempt != nil {
			onAttempt(attempt)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !remote.IsTransient(err) {
			return err
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("%s: %w after %d attempts: %w", what, ErrRetriesExhausted, attempt, err)
		}

		delay := p.Delay(attempt)
		logger.Debug("Retrying remote call", "call", what, "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
