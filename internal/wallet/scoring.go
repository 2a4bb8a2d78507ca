package wallet

import "github.com/kineticshield/core/pkg/types"

// roleBaseScore seeds each role's starting score (spec §4.6: "base score
// by role (table)"). Spec.md names the table but not its numbers; these
// values are a documented design decision (recorded in DESIGN.md),
// favoring general-purpose/high-frequency roles over the narrow
// micro-lightning support roles, and ranking Emergency/Experimental
// lowest so they're never picked over a purpose-built wallet.
var roleBaseScore = map[types.WalletRole]float64{
	types.RolePrimary:           0.8,
	types.RoleHFT:               0.9,
	types.RoleArbitrage:         0.85,
	types.RoleMEVProtection:     0.85,
	types.RoleConservative:      0.5,
	types.RoleMicroLightning:    0.7,
	types.RoleMicroReentry:      0.6,
	types.RoleMicroTacticalExit: 0.6,
	types.RoleMicroPsychology:   0.3,
	types.RoleMicroEmergencyGas: 0.2,
	types.RoleExperimental:      0.1,
	types.RoleEmergency:         0.05,
}

// rolePriority breaks a score tie; lower value wins (spec §4.6: "tie-
// break by role priority, then by lowest current open-position count").
// Mirrors roleBaseScore's ordering.
var rolePriority = map[types.WalletRole]int{
	types.RoleHFT:               0,
	types.RoleArbitrage:         1,
	types.RoleMEVProtection:     2,
	types.RolePrimary:           3,
	types.RoleMicroLightning:    4,
	types.RoleMicroReentry:      5,
	types.RoleMicroTacticalExit: 6,
	types.RoleConservative:      7,
	types.RoleMicroPsychology:   8,
	types.RoleMicroEmergencyGas: 9,
	types.RoleExperimental:      10,
	types.RoleEmergency:         11,
}

const riskUtilizationBonusCap = 0.3

// score implements spec §4.6's scoring formula: base score by role, plus
// the strategy-allocation percentage (÷10), plus a sufficient-balance
// bonus, plus the performance score, plus a capped risk-utilization
// inverse bonus.
func score(w *types.Wallet, criteria Criteria) float64 {
	s := roleBaseScore[w.Role]

	if alloc, ok := w.StrategyAllocation[criteria.Strategy]; ok {
		allocPct, _ := alloc.Float64()
		s += allocPct / 10
	}

	if w.BalanceLamports >= criteria.MinBalanceLamports {
		s += 0.2
	}

	s += w.PerformanceScore

	inverse := 1 - w.RiskUtilization()
	if inverse > riskUtilizationBonusCap {
		inverse = riskUtilizationBonusCap
	}
	s += inverse

	return s
}

// eligible reports whether w may be considered for criteria at all:
// active, supports the strategy (non-zero allocation), meets the
// minimum balance, and isn't excluded.
func eligible(w *types.Wallet, criteria Criteria) bool {
	if w.Status != types.WalletActive {
		return false
	}
	if _, excluded := criteria.Exclusions[w.ID]; excluded {
		return false
	}
	if alloc, ok := w.StrategyAllocation[criteria.Strategy]; !ok || !alloc.IsPositive() {
		return false
	}
	if w.BalanceLamports < criteria.MinBalanceLamports {
		return false
	}
	if criteria.RiskTolerance > 0 && w.RiskUtilization() > criteria.RiskTolerance {
		return false
	}
	if criteria.PreferredRole != "" && w.Role != criteria.PreferredRole {
		return false
	}
	return true
}

// Select runs the filter-score-tiebreak algorithm of spec §4.6 over the
// active wallet pool.
func (r *Router) Select(criteria Criteria) (*Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *types.Wallet
	var bestScore float64
	for _, w := range r.active {
		if !eligible(w, criteria) {
			continue
		}
		s := score(w, criteria)
		if best == nil || s > bestScore ||
			(s == bestScore && tieBreakWins(w, best)) {
			best = w
			bestScore = s
		}
	}
	if best == nil {
		return nil, ErrNoEligibleWallet
	}
	return &Selection{Wallet: best, Score: bestScore}, nil
}

func tieBreakWins(candidate, current *types.Wallet) bool {
	cp, okC := rolePriority[candidate.Role]
	bp, okB := rolePriority[current.Role]
	if !okC {
		cp = len(rolePriority)
	}
	if !okB {
		bp = len(rolePriority)
	}
	if cp != bp {
		return cp < bp
	}
	return candidate.OpenPositionCount < current.OpenPositionCount
}
