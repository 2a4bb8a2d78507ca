package types

import "time"

// RiskFlag is an element of a pool's risk-flag set. The state store only
// adds flags and never removes one, so a flag stays set until the janitor
// drops the pool's whole analytics entry after PoolIdleTTL of inactivity.
type RiskFlag string

const (
	FlagNewToken           RiskFlag = "new_token"
	FlagLowLiquidity       RiskFlag = "low_liquidity"
	FlagSuspiciousActivity RiskFlag = "suspicious_activity"
	FlagHighConcentration  RiskFlag = "high_concentration"
	FlagHighVolatility     RiskFlag = "high_volatility"
	FlagRugPullRisk        RiskFlag = "rug_pull_risk"
)

// PoolAnalytics tracks per-pool derived state.
type PoolAnalytics struct {
	PoolID         string               `json:"poolId"`
	CreatedAt      time.Time            `json:"createdAt"`
	LastActivity   time.Time            `json:"lastActivity"`
	CumulativeVol  float64              `json:"cumulativeVolumeLamports"`
	LiquiditySnaps *Ring                `json:"-"`
	Flags          map[RiskFlag]struct{} `json:"-"`
}

// NewPoolAnalytics constructs analytics state for a freshly observed pool.
func NewPoolAnalytics(poolID string, createdAt time.Time, snapshotCapacity int) *PoolAnalytics {
	return &PoolAnalytics{
		PoolID:         poolID,
		CreatedAt:      createdAt,
		LastActivity:   createdAt,
		LiquiditySnaps: NewRing(snapshotCapacity),
		Flags:          make(map[RiskFlag]struct{}),
	}
}

// SetFlag marks flag present.
func (p *PoolAnalytics) SetFlag(f RiskFlag) {
	p.Flags[f] = struct{}{}
}

// ClearFlag removes a flag. The state store does not call it.
func (p *PoolAnalytics) ClearFlag(f RiskFlag) {
	delete(p.Flags, f)
}

// HasFlag reports whether f is currently set.
func (p *PoolAnalytics) HasFlag(f RiskFlag) bool {
	_, ok := p.Flags[f]
	return ok
}

// FlagList returns the currently-set flags in a stable order, for
// serialization and logging.
func (p *PoolAnalytics) FlagList() []RiskFlag {
	order := []RiskFlag{FlagNewToken, FlagLowLiquidity, FlagSuspiciousActivity, FlagHighConcentration, FlagHighVolatility, FlagRugPullRisk}
	out := make([]RiskFlag, 0, len(p.Flags))
	for _, f := range order {
		if p.HasFlag(f) {
			out = append(out, f)
		}
	}
	return out
}
