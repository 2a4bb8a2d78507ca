package strategy

import (
	"sync"
	"time"

	"github.com/kineticshield/core/internal/state"
	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
	"github.com/kineticshield/core/pkg/util"
)

// microLightningPosition tracks one open entry awaiting its hard-cap
// forced exit.
type microLightningPosition struct {
	pool              string
	entryTime         time.Time
	sourceTxSignature string
}

// MicroLightningStrategy fires on a freshly-initialized pool that passes
// the entry filters: age below MaxPoolAgeForEntry, liquidity above
// MinLiquidityLamports, and an account-count proxy for holder count
// (spec §4.4: "New pool passing entry filters (age < 15 min, holders,
// liq)"). The 5-Commandments gate lives in C5 (risk.Shield), not here —
// this strategy only emits the candidate opportunity, plus an OnTick
// hard cap forcing an exit once HardCapHoldTime (55 minutes) elapses,
// per spec §4.4's MicroLightning table.
type MicroLightningStrategy struct {
	cfg config.MicroLightningConfig

	mu        sync.Mutex
	positions map[string]*microLightningPosition
}

func NewMicroLightningStrategy(cfg config.MicroLightningConfig) *MicroLightningStrategy {
	return &MicroLightningStrategy{cfg: cfg, positions: make(map[string]*microLightningPosition)}
}

func (s *MicroLightningStrategy) Name() string { return "micro_lightning" }

func (s *MicroLightningStrategy) OnTx(u *state.Update) *types.Opportunity {
	tx := u.Tx
	if tx.Type != types.TxLiquidityAdd || !tx.NewPool || u.Pool == nil {
		return nil
	}
	age := time.Since(u.Pool.CreatedAt)
	if age > s.cfg.MaxPoolAgeForEntry {
		return nil
	}
	if u.Pool.CumulativeVol < float64(s.cfg.MinLiquidityLamports) {
		return nil
	}
	if len(tx.Accounts) < s.cfg.MinHolders/2 {
		// account-count is a coarse proxy; real holder count is an
		// external RPC lookup out of scope for this pipeline.
		return nil
	}

	now := time.Now()
	opp := newOpportunity(s.Name(), tx, now, s.cfg.HardCapHoldTime)
	var pool string
	if len(tx.Programs) > 0 {
		pool = tx.Programs[0]
	}
	opp.Variant = types.Variant{Kind: types.VariantMemecoin, Token: pool, Phase: string(types.PhaseAccumulation)}
	opp.EstimatedProfit = s.cfg.CapitalAllocationLamports / 5 // bracketed: one-fifth as a conservative take
	opp.Confidence = types.ClampConfidence(0.3)
	opp.RiskLevel = types.RiskCritical
	opp.Hints = types.ExecutionHints{Priority: types.PriorityFast}

	s.mu.Lock()
	s.positions[pool] = &microLightningPosition{pool: pool, entryTime: now, sourceTxSignature: tx.Signature}
	s.mu.Unlock()
	return opp
}

// OnTick forces an exit once a position has been held for
// HardCapHoldTime, regardless of profitability (spec §4.4's
// MicroLightning hard cap).
func (s *MicroLightningStrategy) OnTick(now time.Time) []*types.Opportunity {
	hardCap := s.cfg.HardCapHoldTime
	if hardCap <= 0 {
		return nil
	}
	s.mu.Lock()
	var due []*microLightningPosition
	for pool, pos := range s.positions {
		if now.Sub(pos.entryTime) >= hardCap {
			due = append(due, pos)
			delete(s.positions, pool)
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
			Variant:           types.Variant{Kind: types.VariantMemecoin, Token: pos.pool, Phase: string(types.PhaseDormant)},
			Side:              types.SideSell,
			DetectionTS:       now,
			OptimalWindow:     types.Window{Start: now, End: now.Add(exitWindow)},
			ExpiryTS:          now.Add(exitWindow),
			Confidence:        0.9,
			RiskLevel:         types.RiskCritical,
			Hints:             types.ExecutionHints{Priority: types.PriorityFast},
			Status:            types.OpportunityOpen,
			Strategy:          s.Name(),
		})
	}
	return out
}
