package scorer

import (
	"context"
	"time"
)

// NeutralResult is what ScoreWithTimeout substitutes on timeout: a
// scorer must never block the pipeline, and a neutral result must never
// grant a signal on its own (spec §4.3).
type NeutralResult struct {
	Value      float64
	Confidence float64
}

// ScoreWithTimeout runs fn with a bounded deadline, grounded on teacher
// workers.Pool.executeTask's context.WithTimeout + done-channel idiom.
// On timeout or error it returns a zero-confidence neutral result instead
// of propagating the failure, per spec §4.3's failure contract.
func ScoreWithTimeout(ctx context.Context, budget time.Duration, fn func(ctx context.Context) (float64, float64, error)) NeutralResult {
	if budget <= 0 {
		budget = 50 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan NeutralResult, 1)
	go func() {
		value, confidence, err := fn(ctx)
		if err != nil {
			done <- NeutralResult{}
			return
		}
		done <- NeutralResult{Value: value, Confidence: confidence}
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return NeutralResult{}
	}
}
