package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
)

func testCfg() config.StateConfig {
	c := config.Default().State
	c.WhaleRingCapacity = 50
	c.TokenRingCapacity = 50
	c.PreDumpMinTxs = 3
	c.PreDumpWindow = time.Minute
	c.PreDumpStdDevMax = 0.5
	return c
}

func TestIngestDropsMalformedTx(t *testing.T) {
	s := NewStore(zap.NewNop(), testCfg())
	_, ok := s.Ingest(nil)
	assert.False(t, ok)
	_, ok = s.Ingest(&types.EnrichedTransaction{})
	assert.False(t, ok)
	assert.Equal(t, int64(2), s.MalformedCount())
}

func TestClassifyBehaviorThresholds(t *testing.T) {
	mk := func(n, accum int) []types.WhaleRingEntry {
		var ring []types.WhaleRingEntry
		for i := 0; i < n; i++ {
			ring = append(ring, types.WhaleRingEntry{Accumulation: i < accum})
		}
		return ring
	}
	assert.Equal(t, types.BehaviorUnknown, classifyBehavior(mk(4, 4)))
	assert.Equal(t, types.BehaviorAccumulator, classifyBehavior(mk(10, 9)))
	assert.Equal(t, types.BehaviorDumper, classifyBehavior(mk(10, 1)))
	assert.Equal(t, types.BehaviorSwing, classifyBehavior(mk(10, 5)))
	assert.Equal(t, types.BehaviorHodler, classifyBehavior(mk(10, 7)))
}

func TestIngestWhaleBuildsProfile(t *testing.T) {
	s := NewStore(zap.NewNop(), testCfg())
	tx := &types.EnrichedTransaction{
		Signature: "sig1",
		Type:      types.TxWhale,
		Accounts:  []string{"walletA", "tokenX"},
		Deltas:    []types.AccountDelta{{Account: "walletA", Delta: 5_000_000}},
	}
	upd, ok := s.Ingest(tx)
	require.True(t, ok)
	require.NotNil(t, upd.Whale)
	assert.Equal(t, "walletA", upd.Whale.WalletID)
	assert.Equal(t, "tokenX", upd.Whale.TokenID)

	snap := s.WhaleSnapshot("walletA", "tokenX")
	require.NotNil(t, snap)
	assert.Equal(t, 1, len(snap.Ring))
}

func TestLiquidityAnomalyTriggersOnBigDeltaAndVelocity(t *testing.T) {
	m := newTokenMarket(50, 0)
	for i := 0; i < 10; i++ {
		m.liquidity.Push(types.RingEntry{Timestamp: time.Now(), Value: 10})
	}
	m.liquidity.Push(types.RingEntry{Timestamp: time.Now(), Value: 1000})
	res := evaluateLiquidityAnomaly(m, 1000, 100, 2)
	assert.True(t, res.Triggered)
}

func TestPanicSellRequiresBothThresholds(t *testing.T) {
	m := newTokenMarket(50, 1000)
	now := time.Now()
	m.sellVolume.Push(types.RingEntry{Timestamp: now, Value: 600})
	m.price.Push(types.RingEntry{Timestamp: now.Add(-time.Minute), Value: 100})
	m.price.Push(types.RingEntry{Timestamp: now, Value: 50})
	res := evaluatePanicSell(m, now, 2*time.Minute, 0.05, 0.1)
	assert.True(t, res.Triggered)
}

func TestJanitorEvictsIdleWhales(t *testing.T) {
	cfg := testCfg()
	cfg.WhaleIdleTTL = 10 * time.Millisecond
	cfg.JanitorInterval = 5 * time.Millisecond
	s := NewStore(zap.NewNop(), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	_, _ = s.Ingest(&types.EnrichedTransaction{
		Type: types.TxWhale, Accounts: []string{"w", "t"},
	})
	require.NotNil(t, s.WhaleSnapshot("w", "t"))

	assert.Eventually(t, func() bool {
		return s.WhaleSnapshot("w", "t") == nil
	}, time.Second, 5*time.Millisecond)
}

func TestJanitorEvictsIdlePools(t *testing.T) {
	cfg := testCfg()
	cfg.PoolIdleTTL = 10 * time.Millisecond
	cfg.JanitorInterval = 5 * time.Millisecond
	s := NewStore(zap.NewNop(), cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	_, _ = s.Ingest(&types.EnrichedTransaction{
		Type: types.TxLiquidityAdd, Accounts: []string{"w"}, Programs: []string{"poolA"},
	})
	require.NotNil(t, s.PoolSnapshot("poolA"))

	assert.Eventually(t, func() bool {
		return s.PoolSnapshot("poolA") == nil
	}, time.Second, 5*time.Millisecond)
}

func TestPoolSnapshotIsCopyOnRead(t *testing.T) {
	s := NewStore(zap.NewNop(), testCfg())
	_, ok := s.Ingest(&types.EnrichedTransaction{
		Type:     types.TxLiquidityAdd,
		Accounts: []string{"w"},
		Programs: []string{"poolA"},
		Deltas:   []types.AccountDelta{{Account: "w", Delta: 100}},
	})
	require.True(t, ok)

	snap := s.PoolSnapshot("poolA")
	require.NotNil(t, snap)
	snap.SetFlag(types.FlagRugPullRisk)

	fresh := s.PoolSnapshot("poolA")
	assert.False(t, fresh.HasFlag(types.FlagRugPullRisk))
}
