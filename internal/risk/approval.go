package risk

import (
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/types"
)

// unknownVolatility is the sentinel a caller passes when no volatility
// reading exists for the opportunity's token. Per spec §4.5's
// "Failures" clause, a missing metric is treated as worst case (max
// scaling is applied as though volatility == MaxVolatility).
const unknownVolatility = -1

// Approve runs the seven-step approval algorithm of spec §4.5 against a
// single opportunity and returns the resulting ApprovedSignal, or nil if
// the opportunity is rejected outright. The gate never errors: every
// failure mode is expressed as either a nil return or a ShieldStatus tag.
func (s *Shield) Approve(opp *types.Opportunity, volatility float64, micro BattlefieldConditions) *types.ApprovedSignal {
	// Step 1: circuit breaker.
	if s.State() == StateLockdown {
		s.recordViolation("breaker_tripped", opp.Strategy)
		return nil
	}

	token := tokenFromOpportunity(opp)
	// EstimatedProfit doubles as the requested position-sizing quantity:
	// Opportunity carries no separate size field, and scaling the profit
	// estimate down is equivalent to scaling the execution size down.
	requested := float64(opp.EstimatedProfit)
	status := types.ShieldActive

	// Step 2: exposure cap. Reaching the per-token cap is a system-wide
	// condition, not just a per-signal adjustment: spec §4.5's "Any ->
	// ExposureProtection when any token exposure reaches its cap" names
	// the Shield's state, not the signal's tag.
	approvedQty, exposureLimited, headroomExhausted := s.applyExposureCap(token, requested)
	if headroomExhausted {
		s.transitionIfNotLockdown(StateExposureProtection)
		s.recordViolation("exposure_exhausted", token)
		return nil
	}
	if exposureLimited {
		status = types.ShieldExposureLimited
		s.transitionIfNotLockdown(StateExposureProtection)
	}

	// Step 3: volatility scaling. A breach is likewise a system-wide
	// condition (spec §4.5's "Normal -> VolatilityProtection when
	// volatility exceeds threshold"); it takes precedence over an
	// exposure-only condition observed in this same call since it is
	// evaluated after exposure and reflects the more current reading.
	unknown := volatility == unknownVolatility
	if unknown {
		volatility = s.cfg.MaxVolatility
	}
	volatilityScaled := unknown || volatility > s.cfg.MaxVolatility
	if volatilityScaled {
		scale := 1 - math.Min(volatility/s.cfg.MaxVolatility, 0.5)
		approvedQty *= scale
		if status == types.ShieldActive {
			status = types.ShieldVolatilityScaled
		}
		s.transitionIfNotLockdown(StateVolatilityProtection)
	} else if !exposureLimited {
		// Neither protective condition held this call: let the system
		// state recover to Normal (Lockdown is untouched by
		// transitionIfNotLockdown, per its own cool-down).
		s.transitionIfNotLockdown(StateNormal)
	}

	// Step 4: per-strategy risk weight.
	riskScore := riskWeightFor(opp.Strategy)

	// Step 5: confidence floor.
	if opp.Confidence < s.cfg.ConfidenceFloor {
		s.recordViolation("confidence_floor", opp.Strategy)
		return nil
	}

	// Step 6: MicroLightning five commandments.
	if opp.Strategy == "micro_lightning" {
		failure := s.commandments.Reserve(token, s.cfg.DefaultCooldown, microLightningDailyCap, micro, opp.DetectionTS)
		if failure != FailNone {
			s.recordViolation(string(failure), token)
			return nil
		}
	}

	// Step 7: emit.
	s.logger.Debug("opportunity approved",
		zap.String("strategy", opp.Strategy),
		zap.String("status", string(status)),
		zap.Float64("approvedQuantity", approvedQty))

	return &types.ApprovedSignal{
		Opportunity:      opp,
		ApprovedQuantity: uint64(approvedQty),
		RiskScore:        riskScore,
		ShieldStatus:     status,
		ApprovedAt:       opp.DetectionTS,
	}
}

// microLightningDailyCap is the per-day MicroLightning operation cap
// (spec §4.5 step 6: "ops today < cap"); kept local since spec.md names
// no specific number and config carries none either.
const microLightningDailyCap = 20

// applyExposureCap clamps requested to the remaining headroom under
// ExposureCapPerTokenPct of capital, committing the (possibly clamped)
// amount to the running exposure total. Returns the approved quantity,
// whether it was clamped, and whether headroom was already exhausted.
// The cap itself is capital-fraction bookkeeping (capital * pct/100),
// kept as decimal.Decimal the way the teacher's risk_manager.go keeps
// MaxSymbolExposure/totalExposure as decimals rather than float64;
// lamport-denominated inputs/outputs still cross the float64 boundary
// since Opportunity.EstimatedProfit is never itself a decimal quantity.
func (s *Shield) applyExposureCap(token string, requested float64) (approved float64, limited bool, exhausted bool) {
	s.exposureMu.Lock()
	defer s.exposureMu.Unlock()

	capital := decimal.NewFromFloat(s.losses.capitalLamports)
	pct := decimal.NewFromFloat(s.cfg.ExposureCapPerTokenPct).Div(decimal.NewFromInt(100))
	maxExposure := capital.Mul(pct)
	current := s.exposure[token]
	headroom := maxExposure.Sub(current)
	if headroom.Sign() <= 0 {
		return 0, true, true
	}
	req := decimal.NewFromFloat(requested)
	if req.GreaterThan(headroom) {
		s.exposure[token] = maxExposure
		h, _ := headroom.Float64()
		return h, true, false
	}
	s.exposure[token] = current.Add(req)
	return requested, false, false
}

// ReleaseExposure frees a token's committed exposure once a position
// closes.
func (s *Shield) ReleaseExposure(token string, amount float64) {
	s.exposureMu.Lock()
	defer s.exposureMu.Unlock()
	remaining := s.exposure[token].Sub(decimal.NewFromFloat(amount))
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	s.exposure[token] = remaining
}

// ReleaseMicroLightningOp clears a MicroLightning token's open-position
// marker once the 55-minute hard cap or an early exit closes it.
func (s *Shield) ReleaseMicroLightningOp(token string) {
	s.commandments.Release(token)
}

// SetEmergency flips the global MicroLightning emergency flag (commandment
// four: "no active emergency").
func (s *Shield) SetEmergency(active bool) {
	s.commandments.SetEmergency(active)
}
