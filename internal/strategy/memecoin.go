package strategy

import (
	"sync"
	"time"

	"github.com/kineticshield/core/internal/state"
	"github.com/kineticshield/core/pkg/types"
	"github.com/kineticshield/core/pkg/util"
)

// LiquidityTsunamiStrategy fires on C2's liquidity-anomaly signal.
type LiquidityTsunamiStrategy struct{}

func NewLiquidityTsunamiStrategy() *LiquidityTsunamiStrategy { return &LiquidityTsunamiStrategy{} }

func (s *LiquidityTsunamiStrategy) Name() string { return "liquidity_tsunami" }

func (s *LiquidityTsunamiStrategy) OnTx(u *state.Update) *types.Opportunity {
	if !u.Liquidity.Triggered {
		return nil
	}
	tx := u.Tx
	opp := newOpportunity(s.Name(), tx, time.Now(), 120*time.Millisecond)
	var token string
	if len(tx.Accounts) > 1 {
		token = tx.Accounts[1]
	}
	opp.Variant = types.Variant{Kind: types.VariantMemecoin, Token: token}
	volatility := u.Liquidity.Velocity
	opp.EstimatedProfit = uint64(u.Liquidity.Delta * volatility * 0.05)
	opp.Confidence = types.ClampConfidence(0.4 + 0.1*volatility)
	opp.RiskLevel = types.RiskHigh
	opp.Hints = types.ExecutionHints{Priority: types.PriorityFlash}
	return opp
}

func (s *LiquidityTsunamiStrategy) OnTick(time.Time) []*types.Opportunity { return nil }

// SocialFissionStrategy fires on a burst of bullish mentions with high
// volume, per spec §4.4 ("≥3 mentions/5s AND sentiment > 85 AND volume
// > 1000 SOL"). Mentions/sentiment arrive via C3's TextScorer, fed in
// through RecordMention since C2 carries no social ring of its own in
// this pipeline's scope.
type SocialFissionStrategy struct {
	mu       sync.Mutex
	mentions *types.Ring
}

func NewSocialFissionStrategy() *SocialFissionStrategy {
	return &SocialFissionStrategy{mentions: types.NewRing(200)}
}

func (s *SocialFissionStrategy) Name() string { return "social_fission" }

// RecordMention feeds one scored social mention into the 5s window.
func (s *SocialFissionStrategy) RecordMention(sentiment0to100 float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mentions.Push(types.RingEntry{Timestamp: now, Value: sentiment0to100})
}

func (s *SocialFissionStrategy) OnTx(u *state.Update) *types.Opportunity {
	tx := u.Tx
	now := time.Now()
	s.mu.Lock()
	count := s.mentions.CountWindow(now, 5*time.Second)
	var avgSentiment float64
	if count > 0 {
		avgSentiment = s.mentions.RollingAverage(count)
	}
	s.mu.Unlock()

	volumeLamports := float64(tx.AbsDeltaSum())
	const solLamports = 1_000_000_000
	if count < 3 || avgSentiment <= 85 || volumeLamports <= 1000*solLamports {
		return nil
	}

	opp := newOpportunity(s.Name(), tx, now, 30*time.Second)
	var token string
	if len(tx.Accounts) > 1 {
		token = tx.Accounts[1]
	}
	hypeScore := types.ClampConfidence(avgSentiment / 100)
	opp.Variant = types.Variant{Kind: types.VariantMemecoin, Token: token}
	opp.EstimatedProfit = uint64(volumeLamports * hypeScore * 0.03)
	opp.Confidence = hypeScore
	opp.RiskLevel = types.RiskHigh
	opp.Hints = types.ExecutionHints{Priority: types.PriorityNormal}
	return opp
}

func (s *SocialFissionStrategy) OnTick(time.Time) []*types.Opportunity { return nil }

// WhaleShadowingStrategy fires when a ≥10%-holdings whale shows
// Accumulator behavior or the pre-dump pattern.
type WhaleShadowingStrategy struct {
	shareThreshold float64
}

func NewWhaleShadowingStrategy(shareThreshold float64) *WhaleShadowingStrategy {
	return &WhaleShadowingStrategy{shareThreshold: shareThreshold}
}

func (s *WhaleShadowingStrategy) Name() string { return "whale_shadowing" }

func (s *WhaleShadowingStrategy) OnTx(u *state.Update) *types.Opportunity {
	w := u.Whale
	if w == nil || !w.IsWhale(s.shareThreshold) {
		return nil
	}
	preDump := w.RiskScore >= 1.0
	if w.Behavior != types.BehaviorAccumulator && !preDump {
		return nil
	}
	tx := u.Tx
	opp := newOpportunity(s.Name(), tx, time.Now(), 90*time.Second)
	opp.Variant = types.Variant{Kind: types.VariantMemecoin, Token: w.TokenID}
	opp.Side = types.SideBuy
	if preDump {
		opp.Side = types.SideSell
	}
	opp.EstimatedProfit = uint64(w.HoldingsShare * float64(tx.AbsDeltaSum()) * 0.1)
	opp.Confidence = types.ClampConfidence(w.HoldingsShare * 2)
	opp.RiskLevel = types.RiskMedium
	opp.Hints = types.ExecutionHints{Priority: types.PriorityFast}
	return opp
}

func (s *WhaleShadowingStrategy) OnTick(time.Time) []*types.Opportunity { return nil }

// deathSpiralMaxHoldTime is the original strategy's hard exit timer:
// enter at the panic-sell minimum, exit within 90s regardless of price
// (original_source/.../death_spiral_intercept.rs's `max_hold_time`).
const deathSpiralMaxHoldTime = 90 * time.Second

// deathSpiralPosition tracks one open entry awaiting its time-based exit.
type deathSpiralPosition struct {
	token             string
	entryTime         time.Time
	sourceTxSignature string
}

// DeathSpiralInterceptStrategy fires on C2's panic-sell signal, entering
// at the capitulation minimum (Buy) and tracking the position for a
// forced exit (Sell) once deathSpiralMaxHoldTime elapses, ground in
// original_source's entry/exit pair (`TradeAction::Buy` on
// generate_entry_signal, `TradeAction::Sell` from check_exit_conditions'
// max-hold-time branch).
type DeathSpiralInterceptStrategy struct {
	mu        sync.Mutex
	positions map[string]*deathSpiralPosition
}

func NewDeathSpiralInterceptStrategy() *DeathSpiralInterceptStrategy {
	return &DeathSpiralInterceptStrategy{positions: make(map[string]*deathSpiralPosition)}
}

func (s *DeathSpiralInterceptStrategy) Name() string { return "death_spiral_intercept" }

func (s *DeathSpiralInterceptStrategy) OnTx(u *state.Update) *types.Opportunity {
	if !u.PanicSell.Triggered {
		return nil
	}
	tx := u.Tx
	now := time.Now()
	opp := newOpportunity(s.Name(), tx, now, deathSpiralMaxHoldTime)
	var token string
	if len(tx.Accounts) > 1 {
		token = tx.Accounts[1]
	}
	opp.Variant = types.Variant{Kind: types.VariantMemecoin, Token: token}
	opp.Side = types.SideBuy
	opp.EstimatedProfit = uint64(u.PanicSell.SellVolumePct * float64(tx.AbsDeltaSum()) * 0.08)
	opp.Confidence = types.ClampConfidence(u.PanicSell.PriceDropPct)
	opp.RiskLevel = types.RiskCritical
	opp.Hints = types.ExecutionHints{Priority: types.PriorityFlash}

	s.mu.Lock()
	s.positions[token] = &deathSpiralPosition{token: token, entryTime: now, sourceTxSignature: tx.Signature}
	s.mu.Unlock()
	return opp
}

// OnTick closes out any position that has reached deathSpiralMaxHoldTime,
// emitting the forced-exit Sell opportunity regardless of price.
func (s *DeathSpiralInterceptStrategy) OnTick(now time.Time) []*types.Opportunity {
	s.mu.Lock()
	var due []*deathSpiralPosition
	for token, pos := range s.positions {
		if now.Sub(pos.entryTime) >= deathSpiralMaxHoldTime {
			due = append(due, pos)
			delete(s.positions, token)
		}
	}
	s.mu.Unlock()
	if len(due) == 0 {
		return nil
	}

	const exitWindow = 5 * time.Second
	out := make([]*types.Opportunity, 0, len(due))
	for _, pos := range due {
		out = append(out, &types.Opportunity{
			ID:                util.GenerateID("opp"),
			SourceTxSignature: pos.sourceTxSignature,
			Variant:           types.Variant{Kind: types.VariantMemecoin, Token: pos.token},
			Side:              types.SideSell,
			DetectionTS:       now,
			OptimalWindow:     types.Window{Start: now, End: now.Add(exitWindow)},
			ExpiryTS:          now.Add(exitWindow),
			Confidence:        0.9,
			RiskLevel:         types.RiskCritical,
			Hints:             types.ExecutionHints{Priority: types.PriorityFlash},
			Status:            types.OpportunityOpen,
			Strategy:          s.Name(),
		})
	}
	return out
}

// narrativePhaseAllocation is the phase-dependent capital allocation
// fraction from spec §4.4's table (25/40/15/20/0%).
var narrativePhaseAllocation = map[types.NarrativePhase]float64{
	types.PhaseAccumulation: 0.25,
	types.PhaseViral:        0.40,
	types.PhaseDump:         0.15,
	types.PhaseRebound:      0.20,
	types.PhaseDormant:      0.0,
}

// MemeVirusStrategy tracks a per-token narrative phase and allocates
// capital according to the phase table, re-evaluating on every matching
// tx. OnTick is a no-op: phases do not age with time.
type MemeVirusStrategy struct {
	mu     sync.Mutex
	phases map[string]types.NarrativePhase
}

func NewMemeVirusStrategy() *MemeVirusStrategy {
	return &MemeVirusStrategy{phases: make(map[string]types.NarrativePhase)}
}

func (s *MemeVirusStrategy) Name() string { return "meme_virus" }

// SetPhase lets an upstream narrative detector (C3 TextScorer-driven)
// push a phase transition for a token.
func (s *MemeVirusStrategy) SetPhase(token string, phase types.NarrativePhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[token] = phase
}

func (s *MemeVirusStrategy) OnTx(u *state.Update) *types.Opportunity {
	tx := u.Tx
	var token string
	if len(tx.Accounts) > 1 {
		token = tx.Accounts[1]
	}
	s.mu.Lock()
	phase, ok := s.phases[token]
	s.mu.Unlock()
	if !ok || phase == types.PhaseDormant {
		return nil
	}
	allocation := narrativePhaseAllocation[phase]
	if allocation <= 0 {
		return nil
	}

	opp := newOpportunity(s.Name(), tx, time.Now(), phaseExpiry(phase))
	opp.Variant = types.Variant{Kind: types.VariantMemecoin, Token: token, Phase: string(phase)}
	opp.EstimatedProfit = uint64(allocation * float64(tx.AbsDeltaSum()))
	opp.Confidence = types.ClampConfidence(allocation)
	opp.RiskLevel = types.RiskHigh
	opp.Hints = types.ExecutionHints{Priority: types.PriorityNormal}
	return opp
}

func phaseExpiry(phase types.NarrativePhase) time.Duration {
	switch phase {
	case types.PhaseAccumulation:
		return 10 * time.Minute
	case types.PhaseViral:
		return time.Minute
	case types.PhaseDump:
		return 30 * time.Second
	case types.PhaseRebound:
		return 2 * time.Minute
	default:
		return 0
	}
}

func (s *MemeVirusStrategy) OnTick(time.Time) []*types.Opportunity { return nil }
