package risk

import (
	"sync"
	"time"
)

// commandmentTracker enforces the MicroLightning "5 Commandments" gate
// (spec §4.5 step 6): cool-down since last op, a per-day operation cap,
// no open conflicting op on the same token, no active emergency, and a
// battlefield (liquidity/holders) validation supplied by the caller —
// grounded on original_source/micro_lightning's five-gate description
// (the concrete OperationControl source file isn't in the retrieved
// pack; the gate names and semantics come straight from spec §4.5).
type commandmentTracker struct {
	mu              sync.Mutex
	lastOpAt        time.Time
	opsToday        int
	opsDay          time.Time
	openTokens      map[string]struct{}
	emergencyActive bool
}

func newCommandmentTracker() *commandmentTracker {
	return &commandmentTracker{openTokens: make(map[string]struct{})}
}

// CommandmentFailure names which of the five gates rejected an
// operation.
type CommandmentFailure string

const (
	FailNone            CommandmentFailure = ""
	FailCooldown        CommandmentFailure = "cooldown_not_elapsed"
	FailDailyCap        CommandmentFailure = "daily_ops_cap_reached"
	FailConflictingOp   CommandmentFailure = "conflicting_open_op"
	FailActiveEmergency CommandmentFailure = "active_emergency"
	FailBattlefield     CommandmentFailure = "battlefield_validation_failed"
)

// BattlefieldConditions carries the entry-filter facts the caller
// already computed (pool liquidity, holder proxy) so the tracker itself
// stays free of state-package dependencies.
type BattlefieldConditions struct {
	LiquidityLamports float64
	Holders           int
	MinLiquidity      float64
	MinHolders        int
}

func (b BattlefieldConditions) valid() bool {
	return b.LiquidityLamports >= b.MinLiquidity && b.Holders >= b.MinHolders
}

// Check evaluates all five commandments for token without reserving an
// open slot; callers that intend to execute should call Reserve instead.
func (t *commandmentTracker) Check(token string, cooldown time.Duration, dailyCap int, battlefield BattlefieldConditions, now time.Time) CommandmentFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLocked(token, cooldown, dailyCap, battlefield, now)
}

func (t *commandmentTracker) checkLocked(token string, cooldown time.Duration, dailyCap int, battlefield BattlefieldConditions, now time.Time) CommandmentFailure {
	if t.emergencyActive {
		return FailActiveEmergency
	}
	if !t.lastOpAt.IsZero() && now.Sub(t.lastOpAt) < cooldown {
		return FailCooldown
	}
	if sameDay(t.opsDay, now) && t.opsToday >= dailyCap {
		return FailDailyCap
	}
	if _, open := t.openTokens[token]; open {
		return FailConflictingOp
	}
	if !battlefield.valid() {
		return FailBattlefield
	}
	return FailNone
}

// Reserve atomically checks and, on success, records the operation
// (bumps the daily counter, marks token open, stamps lastOpAt).
func (t *commandmentTracker) Reserve(token string, cooldown time.Duration, dailyCap int, battlefield BattlefieldConditions, now time.Time) CommandmentFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f := t.checkLocked(token, cooldown, dailyCap, battlefield, now); f != FailNone {
		return f
	}
	if !sameDay(t.opsDay, now) {
		t.opsDay = now
		t.opsToday = 0
	}
	t.opsToday++
	t.lastOpAt = now
	t.openTokens[token] = struct{}{}
	return FailNone
}

// Release clears a token's open-position marker once the operation
// closes (hard-cap exit, take-profit, or emergency panic-exit).
func (t *commandmentTracker) Release(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.openTokens, token)
}

// SetEmergency flips the global emergency flag, blocking every future
// commandment check until cleared.
func (t *commandmentTracker) SetEmergency(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emergencyActive = active
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
