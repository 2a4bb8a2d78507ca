package util

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// BackoffConfig parameterizes full-jitter exponential backoff (base, cap,
// multiplier), the pattern required for ingest reconnects (base 250ms,
// cap 10s) and bundle submission retries (base 100ms, cap 2s).
type BackoffConfig struct {
	Base       time.Duration
	Cap        time.Duration
	Multiplier float64
	MaxAttempts int
}

// Delay returns the full-jitter delay for the given zero-based attempt
// index: a uniform random value in [0, min(cap, base*multiplier^attempt)].
// Full jitter (as opposed to equal/decorrelated jitter) avoids thundering
// herds among many reconnecting ingest adapters.
func (c BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	backoff := float64(c.Base)
	for i := 0; i < attempt; i++ {
		backoff *= c.Multiplier
	}
	if cap := float64(c.Cap); backoff > cap {
		backoff = cap
	}
	if backoff <= 0 {
		return 0
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return time.Duration(rng.Int63n(int64(backoff) + 1))
}

// Retry runs fn up to config.MaxAttempts times, sleeping a full-jitter
// backoff between attempts, stopping early if ctx is cancelled or if a
// supplied stopIf predicate matches fn's error (a terminal, non-retryable
// failure that would only waste the remaining attempts and their sleeps).
func Retry[T any](ctx context.Context, config BackoffConfig, rng *rand.Rand, fn func(attempt int) (T, error), stopIf ...func(error) bool) (T, error) {
	var result T
	var err error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err = fn(attempt)
		if err == nil {
			return result, nil
		}
		for _, stop := range stopIf {
			if stop(err) {
				return result, err
			}
		}
		if attempt == config.MaxAttempts-1 {
			break
		}
		delay := config.Delay(attempt, rng)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
	return result, fmt.Errorf("after %d attempts: %w", config.MaxAttempts, err)
}
