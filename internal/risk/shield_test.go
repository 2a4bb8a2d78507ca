package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		DailyDrawdownLimitPct:  7.5,
		HourlyLossStreakLimit:  5,
		ExposureCapPerTokenPct: 12,
		MaxVolatility:          0.5,
		ConfidenceFloor:        0.7,
		HoneypotCooldown:       30 * time.Minute,
		MassiveDumpCooldown:    15 * time.Minute,
		DefaultCooldown:        5 * time.Minute,
	}
}

func arbOpportunity(profit uint64, confidence float64) *types.Opportunity {
	now := time.Now()
	return &types.Opportunity{
		ID:                "opp-1",
		Strategy:           "arbitrage",
		Variant:            types.Variant{Kind: types.VariantArbitrage, Pair: "SOL/USDC"},
		EstimatedProfit:    profit,
		Confidence:         confidence,
		DetectionTS:        now,
		ExpiryTS:           now.Add(time.Minute),
		RiskLevel:          types.RiskMedium,
	}
}

func TestApproveRejectsInLockdown(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1_000_000)
	s.TriggerLockdown(TriggerMassiveDump)
	opp := arbOpportunity(1000, 0.9)
	assert.Nil(t, s.Approve(opp, 0.1, BattlefieldConditions{}))
}

func TestApproveClampsExposureToHeadroom(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1000) // 12% cap = 120 lamports
	opp := arbOpportunity(500, 0.9)
	signal := s.Approve(opp, 0.1, BattlefieldConditions{})
	require.NotNil(t, signal)
	assert.Equal(t, types.ShieldExposureLimited, signal.ShieldStatus)
	assert.LessOrEqual(t, signal.ApprovedQuantity, uint64(120))
}

func TestApproveRejectsWhenHeadroomExhausted(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1000)
	first := arbOpportunity(200, 0.9) // consumes full 120 headroom
	require.NotNil(t, s.Approve(first, 0.1, BattlefieldConditions{}))

	second := arbOpportunity(50, 0.9)
	assert.Nil(t, s.Approve(second, 0.1, BattlefieldConditions{}))
}

func TestApproveScalesForHighVolatility(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1_000_000)
	opp := arbOpportunity(1000, 0.9)
	signal := s.Approve(opp, 1.0, BattlefieldConditions{}) // volatility 1.0 > max 0.5
	require.NotNil(t, signal)
	assert.Equal(t, types.ShieldVolatilityScaled, signal.ShieldStatus)
	assert.Less(t, signal.ApprovedQuantity, uint64(1000))
	assert.Equal(t, StateVolatilityProtection, s.State())
}

func TestApproveEntersExposureProtectionOnHeadroomExhausted(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1000)
	first := arbOpportunity(200, 0.9) // consumes full 120 headroom
	require.NotNil(t, s.Approve(first, 0.1, BattlefieldConditions{}))
	assert.Equal(t, StateExposureProtection, s.State(), "a clamp fills the token's cap, which counts as reaching it")

	second := arbOpportunity(50, 0.9)
	assert.Nil(t, s.Approve(second, 0.1, BattlefieldConditions{}))
	assert.Equal(t, StateExposureProtection, s.State())
}

func TestApproveRecoversToNormalOnceConditionClears(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1_000_000)
	hot := arbOpportunity(1000, 0.9)
	signal := s.Approve(hot, 1.0, BattlefieldConditions{})
	require.NotNil(t, signal)
	require.Equal(t, StateVolatilityProtection, s.State())

	calm := arbOpportunity(1000, 0.9)
	calm.Variant = types.Variant{Kind: types.VariantArbitrage, Pair: "SOL/BONK"}
	signal = s.Approve(calm, 0.1, BattlefieldConditions{})
	require.NotNil(t, signal)
	assert.Equal(t, StateNormal, s.State())
}

func TestApproveLockdownStatePersistsOverProtectionConditions(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1_000_000)
	s.TriggerLockdown(TriggerHoneypot)
	// A volatility breach must not downgrade Lockdown to VolatilityProtection.
	opp := arbOpportunity(1000, 0.9)
	assert.Nil(t, s.Approve(opp, 1.0, BattlefieldConditions{}))
	assert.Equal(t, StateLockdown, s.State())
}

func TestApproveTreatsUnknownVolatilityAsWorstCase(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1_000_000)
	opp := arbOpportunity(1000, 0.9)
	signal := s.Approve(opp, unknownVolatility, BattlefieldConditions{})
	require.NotNil(t, signal)
	assert.Equal(t, types.ShieldVolatilityScaled, signal.ShieldStatus)
}

func TestApproveRejectsBelowConfidenceFloor(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1_000_000)
	opp := arbOpportunity(1000, 0.5)
	assert.Nil(t, s.Approve(opp, 0.1, BattlefieldConditions{}))
}

func TestRecordTradeTriggersLockdownOnDrawdown(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1000)
	s.RecordTrade(-80) // 8% drawdown > 7.5% limit
	assert.Equal(t, StateLockdown, s.State())
}

func TestLockdownAutoRecoversAfterCooldown(t *testing.T) {
	cfg := testRiskConfig()
	cfg.DefaultCooldown = time.Millisecond
	s := NewShield(zap.NewNop(), cfg, 1_000_000)
	s.TriggerLockdown(TriggerNone)
	assert.Eventually(t, func() bool {
		return s.State() == StateNormal
	}, 100*time.Millisecond, 2*time.Millisecond)
}

func TestMicroLightningCommandmentsGateRepeatEntry(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1_000_000_000)
	opp := arbOpportunity(1000, 0.9)
	opp.Strategy = "micro_lightning"
	opp.Variant = types.Variant{Kind: types.VariantMemecoin, Token: "meme1"}

	battlefield := BattlefieldConditions{LiquidityLamports: 10, Holders: 10, MinLiquidity: 5, MinHolders: 5}
	first := s.Approve(opp, 0.1, battlefield)
	require.NotNil(t, first)

	// Same token, same instant: the cool-down commandment blocks the second
	// entry before the conflicting-op check is reached.
	opp2 := arbOpportunity(1000, 0.9)
	opp2.Strategy = "micro_lightning"
	opp2.Variant = types.Variant{Kind: types.VariantMemecoin, Token: "meme1"}
	assert.Nil(t, s.Approve(opp2, 0.1, battlefield))
}

func TestMicroLightningCommandmentsRejectsWeakBattlefield(t *testing.T) {
	s := NewShield(zap.NewNop(), testRiskConfig(), 1_000_000_000)
	opp := arbOpportunity(1000, 0.9)
	opp.Strategy = "micro_lightning"
	opp.Variant = types.Variant{Kind: types.VariantMemecoin, Token: "meme2"}

	weak := BattlefieldConditions{LiquidityLamports: 1, Holders: 1, MinLiquidity: 5, MinHolders: 5}
	assert.Nil(t, s.Approve(opp, 0.1, weak))
}
