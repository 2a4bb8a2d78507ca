package strategy

import (
	"time"

	"github.com/kineticshield/core/internal/state"
	"github.com/kineticshield/core/pkg/types"
)

const (
	frontRunMinHintLamports = 100_000_000 // 0.1 SOL
	backRunMinHintLamports  = 50_000_000  // 0.05 SOL
)

// ArbitrageStrategy fires on a swap touching ≥2 accounts and ≥2 programs
// — a proxy for "price divergence across venues" since real cross-venue
// price feeds are out of scope (spec §1: external RPC plumbing).
type ArbitrageStrategy struct {
	expiry time.Duration
}

func NewArbitrageStrategy(expiry time.Duration) *ArbitrageStrategy {
	return &ArbitrageStrategy{expiry: expiry}
}

func (s *ArbitrageStrategy) Name() string { return "arbitrage" }

func (s *ArbitrageStrategy) OnTx(u *state.Update) *types.Opportunity {
	tx := u.Tx
	if tx.Type != types.TxSwap || len(tx.Accounts) < 2 || len(tx.Programs) < 2 {
		return nil
	}
	opp := newOpportunity(s.Name(), tx, time.Now(), s.expiry)
	opp.Variant = types.Variant{Kind: types.VariantArbitrage, Pair: tx.Accounts[0] + "/" + tx.Accounts[1], SrcVenue: tx.Programs[0], DstVenue: tx.Programs[1]}
	opp.EstimatedProfit = uint64(float64(tx.AbsDeltaSum()) * 0.01)
	opp.Confidence = types.ClampConfidence(0.6)
	opp.RiskLevel = types.RiskMedium
	opp.Hints = types.ExecutionHints{Priority: types.PriorityFast}
	return opp
}

func (s *ArbitrageStrategy) OnTick(time.Time) []*types.Opportunity { return nil }

// FrontRunStrategy fires when the upstream hint carries an estimated MEV
// value above the 0.1 SOL threshold (spec §4.4 table).
type FrontRunStrategy struct{}

func NewFrontRunStrategy() *FrontRunStrategy { return &FrontRunStrategy{} }

func (s *FrontRunStrategy) Name() string { return "front_run" }

func (s *FrontRunStrategy) OnTx(u *state.Update) *types.Opportunity {
	tx := u.Tx
	if !tx.Hints.HasHint || tx.Hints.EstimatedMEVLamports <= frontRunMinHintLamports {
		return nil
	}
	opp := newOpportunity(s.Name(), tx, time.Now(), 2*time.Second)
	opp.Variant = types.Variant{Kind: types.VariantFrontRun, Target: tx.Signature, Impact: tx.Hints.WashTradeProbability}
	opp.EstimatedProfit = uint64(float64(tx.Hints.EstimatedMEVLamports) * 0.10)
	opp.Confidence = types.ClampConfidence(0.5)
	opp.RiskLevel = types.RiskHigh
	opp.Hints = types.ExecutionHints{Priority: types.PriorityFlash}
	return opp
}

func (s *FrontRunStrategy) OnTick(time.Time) []*types.Opportunity { return nil }

// BackRunStrategy fires after a large whale swap whose hint clears the
// 0.05 SOL threshold.
type BackRunStrategy struct{}

func NewBackRunStrategy() *BackRunStrategy { return &BackRunStrategy{} }

func (s *BackRunStrategy) Name() string { return "back_run" }

func (s *BackRunStrategy) OnTx(u *state.Update) *types.Opportunity {
	tx := u.Tx
	if tx.Type != types.TxWhale || !tx.Hints.HasHint || tx.Hints.EstimatedMEVLamports < backRunMinHintLamports {
		return nil
	}
	opp := newOpportunity(s.Name(), tx, time.Now(), 5*time.Second)
	opp.Variant = types.Variant{Kind: types.VariantBackRun, Path: tx.Accounts}
	opp.EstimatedProfit = uint64(float64(tx.Hints.EstimatedMEVLamports) * 0.05)
	opp.Confidence = types.ClampConfidence(0.55)
	opp.RiskLevel = types.RiskMedium
	opp.Hints = types.ExecutionHints{Priority: types.PriorityFast}
	return opp
}

func (s *BackRunStrategy) OnTick(time.Time) []*types.Opportunity { return nil }

// LiquiditySnipeStrategy fires on a freshly-initialized AMM pool.
type LiquiditySnipeStrategy struct {
	fixedPriorLamports uint64
}

func NewLiquiditySnipeStrategy(fixedPriorLamports uint64) *LiquiditySnipeStrategy {
	return &LiquiditySnipeStrategy{fixedPriorLamports: fixedPriorLamports}
}

func (s *LiquiditySnipeStrategy) Name() string { return "liquidity_snipe" }

func (s *LiquiditySnipeStrategy) OnTx(u *state.Update) *types.Opportunity {
	tx := u.Tx
	if tx.Type != types.TxLiquidityAdd || !tx.NewPool {
		return nil
	}
	var initialLiq float64
	if u.Pool != nil {
		initialLiq = u.Pool.CumulativeVol
	}
	opp := newOpportunity(s.Name(), tx, time.Now(), time.Second)
	var pool string
	if len(tx.Programs) > 0 {
		pool = tx.Programs[0]
	}
	opp.Variant = types.Variant{Kind: types.VariantLiquiditySnipe, Pool: pool, InitialLiq: initialLiq}
	opp.EstimatedProfit = s.fixedPriorLamports + uint64(initialLiq*0.02)
	opp.Confidence = types.ClampConfidence(0.4)
	opp.RiskLevel = types.RiskHigh
	opp.Hints = types.ExecutionHints{Priority: types.PriorityFlash}
	return opp
}

func (s *LiquiditySnipeStrategy) OnTick(time.Time) []*types.Opportunity { return nil }

// LiquidationStrategy fires on a MEV hint carrying a protocol-reported
// liquidation bonus. A real LTV oracle feed is out of scope (spec §1:
// "HTTP/RPC client plumbing to external venues"); the hint's estimated
// MEV value stands in for the bonus signal.
type LiquidationStrategy struct {
	bonusPct float64
}

func NewLiquidationStrategy(bonusPct float64) *LiquidationStrategy {
	return &LiquidationStrategy{bonusPct: bonusPct}
}

func (s *LiquidationStrategy) Name() string { return "liquidation" }

func (s *LiquidationStrategy) OnTx(u *state.Update) *types.Opportunity {
	tx := u.Tx
	if tx.Type != types.TxMEVHint || !tx.Hints.HasHint || tx.Hints.EstimatedMEVLamports == 0 {
		return nil
	}
	opp := newOpportunity(s.Name(), tx, time.Now(), 4*time.Minute)
	var protocol string
	if len(tx.Programs) > 0 {
		protocol = tx.Programs[0]
	}
	opp.Variant = types.Variant{Kind: types.VariantLiquidation, Protocol: protocol, BonusPct: s.bonusPct}
	collateral := tx.AbsDeltaSum()
	opp.EstimatedProfit = uint64(float64(collateral) * s.bonusPct)
	opp.Confidence = types.ClampConfidence(0.5)
	opp.RiskLevel = types.RiskMedium
	opp.Hints = types.ExecutionHints{Priority: types.PriorityNormal}
	return opp
}

func (s *LiquidationStrategy) OnTick(time.Time) []*types.Opportunity { return nil }
