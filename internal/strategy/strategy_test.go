package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kineticshield/core/internal/state"
	"github.com/kineticshield/core/internal/workers"
	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
)

func TestArbitrageStrategyTriggersOnMultiVenueSwap(t *testing.T) {
	s := NewArbitrageStrategy(5 * time.Second)
	tx := &types.EnrichedTransaction{
		Type:     types.TxSwap,
		Accounts: []string{"a", "b"},
		Programs: []string{"raydium", "orca"},
		Deltas:   []types.AccountDelta{{Account: "a", Delta: 100_000}},
	}
	opp := s.OnTx(&state.Update{Tx: tx})
	require.NotNil(t, opp)
	assert.Equal(t, types.VariantArbitrage, opp.Variant.Kind)
	assert.Equal(t, uint64(1000), opp.EstimatedProfit)
}

func TestArbitrageStrategyIgnoresSingleVenue(t *testing.T) {
	s := NewArbitrageStrategy(5 * time.Second)
	tx := &types.EnrichedTransaction{Type: types.TxSwap, Accounts: []string{"a", "b"}, Programs: []string{"raydium"}}
	assert.Nil(t, s.OnTx(&state.Update{Tx: tx}))
}

func TestFrontRunStrategyThreshold(t *testing.T) {
	s := NewFrontRunStrategy()
	below := &types.EnrichedTransaction{Hints: types.Hints{HasHint: true, EstimatedMEVLamports: 50_000_000}}
	assert.Nil(t, s.OnTx(&state.Update{Tx: below}))

	above := &types.EnrichedTransaction{Hints: types.Hints{HasHint: true, EstimatedMEVLamports: 200_000_000}}
	opp := s.OnTx(&state.Update{Tx: above})
	require.NotNil(t, opp)
	assert.Equal(t, uint64(20_000_000), opp.EstimatedProfit)
	assert.Equal(t, 2*time.Second, opp.ExpiryTS.Sub(opp.DetectionTS))
}

func TestLiquiditySnipeRequiresNewPool(t *testing.T) {
	s := NewLiquiditySnipeStrategy(1_000_000)
	notNew := &types.EnrichedTransaction{Type: types.TxLiquidityAdd, NewPool: false}
	assert.Nil(t, s.OnTx(&state.Update{Tx: notNew}))

	isNew := &types.EnrichedTransaction{Type: types.TxLiquidityAdd, NewPool: true, Programs: []string{"raydium"}}
	opp := s.OnTx(&state.Update{Tx: isNew})
	require.NotNil(t, opp)
	assert.Equal(t, types.VariantLiquiditySnipe, opp.Variant.Kind)
}

func TestWhaleShadowingRequiresWhaleShare(t *testing.T) {
	s := NewWhaleShadowingStrategy(0.10)
	tx := &types.EnrichedTransaction{Accounts: []string{"w", "t"}}
	tooSmall := &types.WhaleProfile{WalletID: "w", TokenID: "t", HoldingsShare: 0.05, Behavior: types.BehaviorAccumulator}
	assert.Nil(t, s.OnTx(&state.Update{Tx: tx, Whale: tooSmall}))

	accumulator := &types.WhaleProfile{WalletID: "w", TokenID: "t", HoldingsShare: 0.2, Behavior: types.BehaviorAccumulator}
	opp := s.OnTx(&state.Update{Tx: tx, Whale: accumulator})
	require.NotNil(t, opp)
	assert.Equal(t, types.SideBuy, opp.Side)
}

func TestDeathSpiralInterceptRequiresPanicSell(t *testing.T) {
	s := NewDeathSpiralInterceptStrategy()
	tx := &types.EnrichedTransaction{Accounts: []string{"w", "t"}, Deltas: []types.AccountDelta{{Account: "w", Delta: -100}}}
	assert.Nil(t, s.OnTx(&state.Update{Tx: tx, PanicSell: state.PanicSellResult{Triggered: false}}))

	opp := s.OnTx(&state.Update{Tx: tx, PanicSell: state.PanicSellResult{Triggered: true, SellVolumePct: 0.1, PriceDropPct: 0.2}})
	require.NotNil(t, opp)
	assert.Equal(t, types.RiskCritical, opp.RiskLevel)
	assert.Equal(t, types.SideBuy, opp.Side, "enters at the capitulation minimum, exits later via OnTick")
}

func TestDeathSpiralInterceptOnTickForcesExitAfterHoldCap(t *testing.T) {
	s := NewDeathSpiralInterceptStrategy()
	tx := &types.EnrichedTransaction{Signature: "sig-1", Accounts: []string{"w", "t"}, Deltas: []types.AccountDelta{{Account: "w", Delta: -100}}}
	entry := s.OnTx(&state.Update{Tx: tx, PanicSell: state.PanicSellResult{Triggered: true, SellVolumePct: 0.1, PriceDropPct: 0.2}})
	require.NotNil(t, entry)

	now := time.Now()
	assert.Nil(t, s.OnTick(now.Add(10*time.Second)), "hold cap not yet reached")

	exits := s.OnTick(now.Add(deathSpiralMaxHoldTime + time.Second))
	require.Len(t, exits, 1)
	assert.Equal(t, types.SideSell, exits[0].Side)
	assert.Equal(t, "sig-1", exits[0].SourceTxSignature)

	assert.Nil(t, s.OnTick(now.Add(2*deathSpiralMaxHoldTime)), "position already closed")
}

func TestSocialFissionRequiresAllThreeGates(t *testing.T) {
	s := NewSocialFissionStrategy()
	tx := &types.EnrichedTransaction{Accounts: []string{"w", "t"}, Deltas: []types.AccountDelta{{Account: "w", Delta: 2_000_000_000_000}}}

	assert.Nil(t, s.OnTx(&state.Update{Tx: tx}))

	now := time.Now()
	for i := 0; i < 4; i++ {
		s.RecordMention(95, now)
	}
	opp := s.OnTx(&state.Update{Tx: tx})
	require.NotNil(t, opp)
}

func TestMicroLightningRequiresFreshSmallPool(t *testing.T) {
	cfg := config.Default().Strategy.MicroLightning
	cfg.MinHolders = 4
	s := NewMicroLightningStrategy(cfg)

	tooOld := &state.Update{
		Tx:   &types.EnrichedTransaction{Type: types.TxLiquidityAdd, NewPool: true, Accounts: []string{"a", "b", "c"}},
		Pool: &types.PoolAnalytics{CreatedAt: time.Now().Add(-time.Hour), CumulativeVol: float64(cfg.MinLiquidityLamports)},
	}
	assert.Nil(t, s.OnTx(tooOld))

	fresh := &state.Update{
		Tx:   &types.EnrichedTransaction{Type: types.TxLiquidityAdd, NewPool: true, Accounts: []string{"a", "b", "c"}, Programs: []string{"raydium"}},
		Pool: &types.PoolAnalytics{CreatedAt: time.Now(), CumulativeVol: float64(cfg.MinLiquidityLamports)},
	}
	opp := s.OnTx(fresh)
	require.NotNil(t, opp)
	assert.Equal(t, cfg.HardCapHoldTime, opp.ExpiryTS.Sub(opp.DetectionTS))
}

func TestMicroLightningOnTickForcesExitAtHardCap(t *testing.T) {
	cfg := config.Default().Strategy.MicroLightning
	cfg.MinHolders = 4
	cfg.HardCapHoldTime = time.Minute
	s := NewMicroLightningStrategy(cfg)

	fresh := &state.Update{
		Tx:   &types.EnrichedTransaction{Signature: "sig-2", Type: types.TxLiquidityAdd, NewPool: true, Accounts: []string{"a", "b", "c"}, Programs: []string{"raydium"}},
		Pool: &types.PoolAnalytics{CreatedAt: time.Now(), CumulativeVol: float64(cfg.MinLiquidityLamports)},
	}
	require.NotNil(t, s.OnTx(fresh))

	now := time.Now()
	assert.Nil(t, s.OnTick(now.Add(10*time.Second)))

	exits := s.OnTick(now.Add(cfg.HardCapHoldTime + time.Second))
	require.Len(t, exits, 1)
	assert.Equal(t, types.SideSell, exits[0].Side)
	assert.Equal(t, "sig-2", exits[0].SourceTxSignature)
}

func TestOrchestratorMergesAndTieBreaks(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), workers.DefaultPoolConfig("test"))
	pool.Start()
	defer pool.Stop()

	registry := NewRegistry()
	registry.Register(NewArbitrageStrategy(5 * time.Second))
	registry.Register(NewFrontRunStrategy())

	orch := NewOrchestrator(zap.NewNop(), registry, pool, 10*time.Second)
	tx := &types.EnrichedTransaction{
		Type:     types.TxSwap,
		Accounts: []string{"a", "b"},
		Programs: []string{"raydium", "orca"},
		Deltas:   []types.AccountDelta{{Account: "a", Delta: 100_000}},
		Hints:    types.Hints{HasHint: true, EstimatedMEVLamports: 500_000_000},
	}
	opps := orch.Dispatch(&state.Update{Tx: tx})
	require.Len(t, opps, 2)
	// front_run is RiskHigh, arbitrage is RiskMedium: medium sorts first.
	assert.Equal(t, types.RiskMedium, opps[0].RiskLevel)
}

func TestOrchestratorDropsExpiredOpportunities(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), workers.DefaultPoolConfig("test"))
	pool.Start()
	defer pool.Stop()

	registry := NewRegistry()
	registry.Register(NewArbitrageStrategy(5 * time.Second))

	orch := NewOrchestrator(zap.NewNop(), registry, pool, 1*time.Nanosecond)
	tx := &types.EnrichedTransaction{
		Type:     types.TxSwap,
		Accounts: []string{"a", "b"},
		Programs: []string{"raydium", "orca"},
	}
	time.Sleep(time.Millisecond)
	opps := orch.Dispatch(&state.Update{Tx: tx})
	assert.Empty(t, opps)
}
