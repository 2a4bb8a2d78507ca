// Package risk implements the Kinetic Shield: the layered approval gate
// between C4's strategy orchestrator and C7's bundle builder.
package risk

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
)

// SystemState is the Shield's top-level state machine.
type SystemState int32

const (
	StateNormal SystemState = iota
	StateVolatilityProtection
	StateExposureProtection
	StateLockdown
)

func (s SystemState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateVolatilityProtection:
		return "volatility_protection"
	case StateExposureProtection:
		return "exposure_protection"
	case StateLockdown:
		return "lockdown"
	default:
		return "unknown"
	}
}

// LockdownTrigger identifies what forced a Lockdown transition, used to
// pick the trigger's specific cool-down per spec §4.5.
type LockdownTrigger string

const (
	TriggerNone             LockdownTrigger = ""
	TriggerHoneypot         LockdownTrigger = "honeypot_detected"
	TriggerMassiveDump      LockdownTrigger = "massive_dump"
	TriggerCreatorSell      LockdownTrigger = "creator_sell_detected"
	TriggerDrawdown         LockdownTrigger = "daily_drawdown"
	TriggerLossStreak       LockdownTrigger = "hourly_loss_streak"
)

// lossStats mirrors the source's LossStats: daily drawdown, hourly loss
// streak (reset after 1h of no losses), and a consecutive-loss counter
// (reset on any win). Generalized from teacher
// `execution.RiskManager`'s dailyPnL/consecutiveLosses fields.
type lossStats struct {
	mu                sync.Mutex
	dailyLossLamports float64
	capitalLamports   float64
	consecutiveLosses int
	hourlyLossStreak  int
	lastLossAt        time.Time
}

func (l *lossStats) drawdownPct() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.capitalLamports <= 0 {
		return 0
	}
	return (l.dailyLossLamports / l.capitalLamports) * 100
}

// recordTrade updates loss accounting per spec §4.5's "Loss accounting"
// paragraph: a win resets consecutive losses; drawdown only grows here
// and is reset by an explicit daily rollover (ResetDaily).
func (l *lossStats) recordTrade(pnlLamports float64, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pnlLamports < 0 {
		l.dailyLossLamports += -pnlLamports
		if now.Sub(l.lastLossAt) >= time.Hour {
			l.hourlyLossStreak = 1
		} else {
			l.hourlyLossStreak++
		}
		l.lastLossAt = now
		l.consecutiveLosses++
		return
	}
	l.consecutiveLosses = 0
}

func (l *lossStats) resetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyLossLamports = 0
}

// Shield is the Kinetic Shield: circuit breaker, exposure caps, and
// volatility scaling over a stream of strategy-produced opportunities.
// Generalized from teacher `execution.RiskManager` (config struct +
// mutex-guarded loss counters + violation tracking, with the system state
// held in atomics), re-targeted at
// spec §4.5's state machine and 7-step approval algorithm.
type Shield struct {
	logger *zap.Logger
	cfg    config.RiskConfig

	state       atomic.Int32 // SystemState
	lockedUntil atomic.Int64 // unix nanos; zero means not locked

	losses *lossStats

	exposureMu sync.Mutex
	exposure   map[string]decimal.Decimal // token -> lamports committed

	commandments *commandmentTracker

	violations   []Violation
	violationsMu sync.Mutex
}

// Violation records a single rejected or adjusted approval decision for
// observability.
type Violation struct {
	Rule      string
	Message   string
	Timestamp time.Time
}

// NewShield constructs a Shield with the given capital base (used for
// exposure-cap and drawdown-pct denominators).
func NewShield(logger *zap.Logger, cfg config.RiskConfig, capitalLamports float64) *Shield {
	s := &Shield{
		logger:       logger.Named("kinetic-shield"),
		cfg:          cfg,
		losses:       &lossStats{capitalLamports: capitalLamports},
		exposure:     make(map[string]decimal.Decimal),
		commandments: newCommandmentTracker(),
	}
	s.state.Store(int32(StateNormal))
	return s
}

// State returns the current system state, auto-recovering from Lockdown
// once its cool-down has elapsed (spec §4.5: "Lockdown -> Normal only
// after operator reset or a cool-down timer per trigger").
func (s *Shield) State() SystemState {
	state := SystemState(s.state.Load())
	if state != StateLockdown {
		return state
	}
	until := s.lockedUntil.Load()
	if until != 0 && time.Now().UnixNano() >= until {
		s.state.CompareAndSwap(int32(StateLockdown), int32(StateNormal))
		s.lockedUntil.Store(0)
		return StateNormal
	}
	return state
}

// TriggerLockdown forces the Lockdown state with the cool-down
// appropriate to trigger (spec §4.5's cool-down table: 30 min honeypot,
// 15 min massive dump, 5 min default).
func (s *Shield) TriggerLockdown(trigger LockdownTrigger) {
	s.state.Store(int32(StateLockdown))
	s.lockedUntil.Store(time.Now().Add(s.cooldownFor(trigger)).UnixNano())
	s.recordViolation("lockdown", string(trigger))
	s.logger.Warn("kinetic shield entered lockdown", zap.String("trigger", string(trigger)))
}

func (s *Shield) cooldownFor(trigger LockdownTrigger) time.Duration {
	switch trigger {
	case TriggerHoneypot:
		return s.cfg.HoneypotCooldown
	case TriggerMassiveDump:
		return s.cfg.MassiveDumpCooldown
	default:
		return s.cfg.DefaultCooldown
	}
}

// transitionIfNotLockdown moves the system state to next unless a
// Lockdown is already in effect, per spec §4.5: Lockdown only clears via
// ManualReset or its own cool-down timer, never by a volatility/exposure
// condition alone ("Any -> X" never includes Lockdown as a source).
func (s *Shield) transitionIfNotLockdown(next SystemState) {
	for {
		cur := SystemState(s.state.Load())
		if cur == StateLockdown || cur == next {
			return
		}
		if s.state.CompareAndSwap(int32(cur), int32(next)) {
			return
		}
	}
}

// ManualReset lets an operator clear Lockdown immediately.
func (s *Shield) ManualReset() {
	s.state.CompareAndSwap(int32(StateLockdown), int32(StateNormal))
	s.lockedUntil.Store(0)
}

// RecordTrade feeds a completed trade's PnL into loss accounting and
// evaluates the circuit breaker (daily drawdown >= 7.5% OR hourly loss
// streak > limit forces Lockdown).
func (s *Shield) RecordTrade(pnlLamports float64) {
	now := time.Now()
	s.losses.recordTrade(pnlLamports, now)
	if s.losses.drawdownPct() >= s.cfg.DailyDrawdownLimitPct {
		s.TriggerLockdown(TriggerDrawdown)
		return
	}
	s.losses.mu.Lock()
	streak := s.losses.hourlyLossStreak
	s.losses.mu.Unlock()
	if streak > s.cfg.HourlyLossStreakLimit {
		s.TriggerLockdown(TriggerLossStreak)
	}
}

// ResetDaily rolls over the daily drawdown counter (spec: "drawdown is
// only reduced by an explicit daily rollover").
func (s *Shield) ResetDaily() { s.losses.resetDaily() }

func (s *Shield) recordViolation(rule, message string) {
	s.violationsMu.Lock()
	defer s.violationsMu.Unlock()
	s.violations = append(s.violations, Violation{Rule: rule, Message: message, Timestamp: time.Now()})
}

// Violations returns a snapshot of recorded violations for /debug/state.
func (s *Shield) Violations() []Violation {
	s.violationsMu.Lock()
	defer s.violationsMu.Unlock()
	out := make([]Violation, len(s.violations))
	copy(out, s.violations)
	return out
}

// tokenFromOpportunity extracts the token the exposure cap applies to.
// Only the Memecoin variant carries a dedicated token field; other
// variants use the pair/pool identifier as their exposure key so every
// opportunity still participates in the cap.
func tokenFromOpportunity(opp *types.Opportunity) string {
	switch opp.Variant.Kind {
	case types.VariantMemecoin:
		return opp.Variant.Token
	case types.VariantLiquiditySnipe:
		return opp.Variant.Pool
	case types.VariantArbitrage:
		return opp.Variant.Pair
	default:
		return opp.SourceTxSignature
	}
}
