package util

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdDevKnownValues(t *testing.T) {
	// population stddev of [2,4,4,4,5,5,7,9] is 2
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.0, StdDev(values), 1e-9)
}

func TestClampFloat(t *testing.T) {
	assert.Equal(t, 0.5, ClampFloat(0.5, 0, 1))
	assert.Equal(t, 0.0, ClampFloat(-1, 0, 1))
	assert.Equal(t, 1.0, ClampFloat(2, 0, 1))
}

func TestBackoffDelayRespectsCapAndJitter(t *testing.T) {
	cfg := BackoffConfig{Base: 250 * time.Millisecond, Cap: 10 * time.Second, Multiplier: 2}
	rng := rand.New(rand.NewSource(42))
	for attempt := 0; attempt < 10; attempt++ {
		d := cfg.Delay(attempt, rng)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, cfg.Cap)
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	cfg := BackoffConfig{Base: time.Millisecond, Cap: 5 * time.Millisecond, Multiplier: 2, MaxAttempts: 5}
	calls := 0
	result, err := Retry(context.Background(), cfg, rand.New(rand.NewSource(1)), func(attempt int) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	cfg := BackoffConfig{Base: time.Millisecond, Cap: time.Millisecond, Multiplier: 1, MaxAttempts: 3}
	calls := 0
	_, err := Retry(context.Background(), cfg, rand.New(rand.NewSource(1)), func(attempt int) (int, error) {
		calls++
		return 0, errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestGenerateIDPrefix(t *testing.T) {
	id := GenerateID("opp")
	assert.Contains(t, id, "opp_")
}
