package bundle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kineticshield/core/internal/scorer"
	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
)

type fixedSlot uint64

func (s fixedSlot) CurrentSlot() uint64 { return uint64(s) }

type stubSubmitter struct {
	status types.BundleStatus
	err    error
	calls  int
}

func (s *stubSubmitter) Submit(_ context.Context, _ *types.Bundle) (types.BundleStatus, error) {
	s.calls++
	return s.status, s.err
}

type flakySubmitter struct {
	failUntil int
	calls     int
}

func (s *flakySubmitter) Submit(_ context.Context, _ *types.Bundle) (types.BundleStatus, error) {
	s.calls++
	if s.calls <= s.failUntil {
		return types.BundleFailed, errors.New("temporary network error")
	}
	return types.BundleSubmitted, nil
}

func testBundleConfig() config.BundleConfig {
	return config.BundleConfig{
		DecoyCount:        4,
		ExpirySlots:        2,
		ProtectionLevel:    5,
		MaxTipLamports:     1_000_000,
		SubmitRetryBase:    time.Millisecond,
		SubmitRetryCap:     5 * time.Millisecond,
		SubmitMaxAttempts:  3,
	}
}

func testSignal(profit uint64) *types.ApprovedSignal {
	return &types.ApprovedSignal{
		Opportunity: &types.Opportunity{
			ID:              "opp_1",
			EstimatedProfit: profit,
			ExpiryTS:        time.Now().Add(time.Minute),
		},
		ApprovedQuantity: profit,
		ShieldStatus:     types.ShieldActive,
		ApprovedAt:       time.Now(),
	}
}

func TestBuildAndSubmitProducesExactDecoyCountAndOneReal(t *testing.T) {
	sub := &stubSubmitter{status: types.BundleSubmitted}
	b := NewBuilder(zap.NewNop(), testBundleConfig(), sub, fixedSlot(100))

	bun, err := b.BuildAndSubmit(context.Background(), testSignal(500_000))
	require.NoError(t, err)

	assert.Equal(t, 4, bun.DecoyCount())
	real, ok := bun.RealTransaction()
	require.True(t, ok)
	assert.Equal(t, uint8(10), real.Priority)
	assert.Equal(t, types.BundleSubmitted, bun.Status)
}

func TestBuildAndSubmitZeroDecoysIsNoOpShuffle(t *testing.T) {
	cfg := testBundleConfig()
	cfg.DecoyCount = 0
	sub := &stubSubmitter{status: types.BundleSubmitted}
	b := NewBuilder(zap.NewNop(), cfg, sub, fixedSlot(100))

	bun, err := b.BuildAndSubmit(context.Background(), testSignal(500_000))
	require.NoError(t, err)
	assert.Len(t, bun.Transactions, 1)
	assert.Equal(t, types.TxTagReal, bun.Transactions[0].Tag)
}

func TestShuffleIsDeterministicForSameBundleIDAndSlot(t *testing.T) {
	base := []types.BundleTransaction{
		{Tag: types.TxTagReal, Priority: 10},
		{Tag: types.TxTagDecoy, Priority: 1},
		{Tag: types.TxTagDecoy, Priority: 2},
		{Tag: types.TxTagDecoy, Priority: 3},
	}

	a := append([]types.BundleTransaction(nil), base...)
	b := append([]types.BundleTransaction(nil), base...)

	shuffle(a, "bundle_abc", 42)
	shuffle(b, "bundle_abc", 42)

	assert.Equal(t, a, b)
}

func TestShuffleDiffersAcrossBundleIDs(t *testing.T) {
	base := []types.BundleTransaction{
		{Tag: types.TxTagReal, Priority: 10},
		{Tag: types.TxTagDecoy, Priority: 1},
		{Tag: types.TxTagDecoy, Priority: 2},
		{Tag: types.TxTagDecoy, Priority: 3},
		{Tag: types.TxTagDecoy, Priority: 4},
	}

	a := append([]types.BundleTransaction(nil), base...)
	b := append([]types.BundleTransaction(nil), base...)

	shuffle(a, "bundle_abc", 42)
	shuffle(b, "bundle_xyz", 42)

	assert.NotEqual(t, a, b)
}

func TestComputeTipIsMonotoneInProfit(t *testing.T) {
	low := computeTip(10_000, 1_000_000, 0)
	high := computeTip(1_000_000, 1_000_000, 0)
	assert.Less(t, low, high)
}

func TestComputeTipCapsAtMaxTip(t *testing.T) {
	tip := computeTip(1_000_000_000, 50_000, 0)
	assert.Equal(t, uint64(50_000), tip)
}

func TestComputeTipIsMonotoneInRejectionRate(t *testing.T) {
	calm := computeTip(500_000, 1_000_000, 0)
	contested := computeTip(500_000, 1_000_000, 1.0)
	assert.Greater(t, contested, calm)
}

func TestDecoyFactoryRotatesStrategiesModFive(t *testing.T) {
	f := NewDecoyFactory()
	assert.Equal(t, DecoyRandomNoise, f.StrategyFor(0))
	assert.Equal(t, DecoyVolumeMimicking, f.StrategyFor(1))
	assert.Equal(t, DecoyMultiLayer, f.StrategyFor(4))
	assert.Equal(t, DecoyRandomNoise, f.StrategyFor(5))
}

func TestBuildAndSubmitRetriesOnTransientFailure(t *testing.T) {
	sub := &flakySubmitter{failUntil: 2}
	cfg := testBundleConfig()
	b := NewBuilder(zap.NewNop(), cfg, sub, fixedSlot(1))

	bun, err := b.BuildAndSubmit(context.Background(), testSignal(100_000))
	require.NoError(t, err)
	assert.Equal(t, types.BundleSubmitted, bun.Status)
	assert.Equal(t, 3, sub.calls)
}

func TestBuildAndSubmitFailsAfterExhaustingRetries(t *testing.T) {
	sub := &flakySubmitter{failUntil: 10}
	cfg := testBundleConfig()
	b := NewBuilder(zap.NewNop(), cfg, sub, fixedSlot(1))

	bun, err := b.BuildAndSubmit(context.Background(), testSignal(100_000))
	assert.Error(t, err)
	assert.Equal(t, types.BundleFailed, bun.Status)
	assert.Equal(t, cfg.SubmitMaxAttempts, sub.calls)
}

func TestBuildAndSubmitTerminatesImmediatelyOnNonRetryableRejection(t *testing.T) {
	sub := &stubSubmitter{status: types.BundleFailed, err: ErrNonRetryable}
	cfg := testBundleConfig()
	b := NewBuilder(zap.NewNop(), cfg, sub, fixedSlot(1))

	bun, err := b.BuildAndSubmit(context.Background(), testSignal(100_000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonRetryable))
	assert.Equal(t, types.BundleFailed, bun.Status)
	assert.Equal(t, 1, sub.calls, "non-retryable rejection must not be retried")
}

type trackingAttestor struct {
	called bool
}

func (a *trackingAttestor) Attest(_ context.Context, inputHash, outputHash, modelMeta string) (scorer.Proof, error) {
	a.called = true
	return scorer.Proof{InputHash: inputHash, OutputHash: outputHash, ModelMeta: modelMeta, Valid: true}, nil
}

func (a *trackingAttestor) Verify(_ context.Context, p scorer.Proof) (bool, error) {
	return p.Valid, nil
}

func TestBuildAndSubmitInvokesAttestationHookWhenConfigured(t *testing.T) {
	sub := &stubSubmitter{status: types.BundleSubmitted}
	attestor := &trackingAttestor{}
	b := NewBuilder(zap.NewNop(), testBundleConfig(), sub, fixedSlot(1), WithAttestor(attestor))

	_, err := b.BuildAndSubmit(context.Background(), testSignal(100_000))
	require.NoError(t, err)
	assert.True(t, attestor.called)
}
