package wallet

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
)

func newTestWallet(id string, role types.WalletRole, balance uint64, alloc float64) *types.Wallet {
	return &types.Wallet{
		ID:                 id,
		Role:               role,
		Status:             types.WalletActive,
		BalanceLamports:    balance,
		MaxExposurePct:     decimal.NewFromFloat(0.2),
		StrategyAllocation: map[string]decimal.Decimal{"arbitrage": decimal.NewFromFloat(alloc)},
	}
}

func TestSelectPicksHighestScoringEligibleWallet(t *testing.T) {
	weak := newTestWallet("w1", types.RoleConservative, 100_000, 10)
	strong := newTestWallet("w2", types.RoleHFT, 100_000, 80)
	r := NewRouter(zap.NewNop(), config.WalletConfig{}, []*types.Wallet{weak, strong})

	sel, err := r.Select(Criteria{Strategy: "arbitrage"})
	require.NoError(t, err)
	assert.Equal(t, "w2", sel.Wallet.ID)
}

func TestSelectExcludesInactiveAndExcluded(t *testing.T) {
	inactive := newTestWallet("w1", types.RoleHFT, 100_000, 80)
	inactive.Status = types.WalletInactive
	active := newTestWallet("w2", types.RoleConservative, 100_000, 10)
	r := NewRouter(zap.NewNop(), config.WalletConfig{}, []*types.Wallet{inactive, active})

	sel, err := r.Select(Criteria{Strategy: "arbitrage"})
	require.NoError(t, err)
	assert.Equal(t, "w2", sel.Wallet.ID)
}

func TestSelectReturnsErrWhenNoneEligible(t *testing.T) {
	w := newTestWallet("w1", types.RoleHFT, 100, 80)
	r := NewRouter(zap.NewNop(), config.WalletConfig{}, []*types.Wallet{w})

	_, err := r.Select(Criteria{Strategy: "arbitrage", MinBalanceLamports: 1_000_000})
	assert.ErrorIs(t, err, ErrNoEligibleWallet)
}

func TestSelectTieBreaksByRolePriorityThenOpenPositions(t *testing.T) {
	a := newTestWallet("w1", types.RoleHFT, 100_000, 80)
	a.OpenPositionCount = 3
	b := newTestWallet("w2", types.RoleHFT, 100_000, 80)
	b.OpenPositionCount = 1
	r := NewRouter(zap.NewNop(), config.WalletConfig{}, []*types.Wallet{a, b})

	sel, err := r.Select(Criteria{Strategy: "arbitrage"})
	require.NoError(t, err)
	assert.Equal(t, "w2", sel.Wallet.ID)
}

func TestRecordExposureChangeUpdatesTransactionally(t *testing.T) {
	w := newTestWallet("w1", types.RoleHFT, 100_000, 80)
	r := NewRouter(zap.NewNop(), config.WalletConfig{}, []*types.Wallet{w})

	require.NoError(t, r.RecordExposureChange("w1", 1000, 1))
	require.NoError(t, r.RecordExposureChange("w1", -400, -1))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, uint64(600), snap[0].OpenExposure)
	assert.Equal(t, 0, snap[0].OpenPositionCount)
}

func TestRecordExposureChangeOnUnknownWalletErrors(t *testing.T) {
	r := NewRouter(zap.NewNop(), config.WalletConfig{}, nil)
	err := r.RecordExposureChange("ghost", 100, 1)
	assert.ErrorIs(t, err, ErrNoEligibleWallet)
}

func TestRotateDueRetiresAndMintsFreshWallet(t *testing.T) {
	now := time.Now()
	w := newTestWallet("w1", types.RoleHFT, 100_000, 80)
	w.NextRotation = now.Add(-time.Minute)
	r := NewRouter(zap.NewNop(), config.WalletConfig{RotationInterval: time.Hour}, []*types.Wallet{w})

	r.rotateDue(now)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.NotEqual(t, "w1", snap[0].ID)
	assert.Equal(t, types.RoleHFT, snap[0].Role)
}

func TestMicroLightningSetAllocatesFixedRatios(t *testing.T) {
	set := NewMicroLightningSet(1_000_000, time.Now(), time.Hour)
	assert.Equal(t, uint64(200_000), set.Wallets[slotLightning].BalanceLamports)
	assert.Equal(t, uint64(175_000), set.Wallets[slotReentry].BalanceLamports)
	assert.Equal(t, uint64(225_000), set.Wallets[slotTacticalExit].BalanceLamports)
	assert.Equal(t, uint64(200_000), set.Wallets[slotPsychology].BalanceLamports)
	assert.Equal(t, uint64(200_000), set.Wallets[slotEmergencyGas].BalanceLamports)
}

func TestApplyPsychologyTaxMovesTenPercentOfGain(t *testing.T) {
	set := NewMicroLightningSet(1_000_000, time.Now(), time.Hour)
	lightningBefore := set.Lightning().BalanceLamports
	psychBefore := set.Wallets[slotPsychology].BalanceLamports

	set.ApplyPsychologyTax(1000)

	assert.Equal(t, lightningBefore-100, set.Lightning().BalanceLamports)
	assert.Equal(t, psychBefore+100, set.Wallets[slotPsychology].BalanceLamports)
}
