// Package wallet implements the wallet router (C6): scoring-based
// selection, exposure bookkeeping, and scheduled rotation of execution
// wallets.
package wallet

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
)

// ErrNoEligibleWallet is returned when no active wallet satisfies Criteria.
var ErrNoEligibleWallet = errors.New("wallet: no eligible wallet for criteria")

// ErrRetiredWalletSelected signals the invariant violation of spec §7:
// "retired wallets never receive new work" — a crash-stop condition, not
// a normal rejection.
var ErrRetiredWalletSelected = errors.New("wallet: selected wallet is retired")

// Criteria narrows the candidate pool for Select, per spec §4.6.
type Criteria struct {
	Strategy          string
	MinBalanceLamports uint64
	RiskTolerance      float64 // max acceptable RiskUtilization, [0,1]
	PreferredRole      types.WalletRole
	Exclusions         map[string]struct{}
}

// Selection is the router's output for one approved signal.
type Selection struct {
	Wallet *types.Wallet
	Score  float64
}

// Router holds the live wallet pool and a retired pool, grounded on
// teacher `execution.OrderManager`'s map+mutex shape and
// `execution.RiskManager`'s per-entity exposure bookkeeping.
type Router struct {
	logger *zap.Logger
	cfg    config.WalletConfig

	mu      sync.RWMutex
	active  map[string]*types.Wallet
	retired map[string]*types.Wallet

	walletMus map[string]*sync.Mutex // per-wallet exposure lock, spec §5

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRouter constructs a Router seeded with an initial wallet pool.
func NewRouter(logger *zap.Logger, cfg config.WalletConfig, seed []*types.Wallet) *Router {
	r := &Router{
		logger:    logger.Named("wallet-router"),
		cfg:       cfg,
		active:    make(map[string]*types.Wallet),
		retired:   make(map[string]*types.Wallet),
		walletMus: make(map[string]*sync.Mutex),
	}
	for _, w := range seed {
		r.active[w.ID] = w
		r.walletMus[w.ID] = &sync.Mutex{}
	}
	return r
}

// Start launches the ticker-driven rotation goroutine (grounded on
// teacher `workers.Pool`'s start/stop/wg goroutine lifecycle).
func (r *Router) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	interval := r.cfg.RotationInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	r.wg.Add(1)
	go r.rotationLoop(ctx, interval)
}

// Stop halts the rotation goroutine.
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Router) rotationLoop(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.rotateDue(now)
		}
	}
}

// rotateDue retires every wallet whose NextRotation has elapsed and mints
// a fresh one in the same role (spec §4.6's "Rotation" paragraph). Key
// generation is a stub: real signing keys live in operator-provided
// environment variables per spec §6, out of this pipeline's scope.
func (r *Router) rotateDue(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*types.Wallet
	for _, w := range r.active {
		if !w.NextRotation.IsZero() && !now.Before(w.NextRotation) {
			due = append(due, w)
		}
	}
	for _, w := range due {
		delete(r.active, w.ID)
		delete(r.walletMus, w.ID)
		w.Status = types.WalletInactive
		r.retired[w.ID] = w

		fresh := &types.Wallet{
			ID:                 stubID(),
			PubKey:             stubPubKey(),
			Role:               w.Role,
			Status:             types.WalletActive,
			StrategyAllocation: w.StrategyAllocation,
			BalanceLamports:    0,
			MaxExposurePct:     w.MaxExposurePct,
			CreatedAt:          now,
			NextRotation:       now.Add(r.cfg.RotationInterval),
		}
		r.active[fresh.ID] = fresh
		r.walletMus[fresh.ID] = &sync.Mutex{}
		r.logger.Info("wallet rotated", zap.String("retired", w.ID), zap.String("fresh", fresh.ID), zap.String("role", string(w.Role)))
	}
}

func stubID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "w_" + base58.Encode(buf)
}

func stubPubKey() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base58.Encode(buf)
}

// RecordExposureChange updates a wallet's open exposure and position
// count transactionally with position open/close, per spec §4.6's
// invariant. delta may be negative on close.
func (r *Router) RecordExposureChange(walletID string, deltaLamports int64, positionDelta int) error {
	r.mu.RLock()
	w, ok := r.active[walletID]
	mu := r.walletMus[walletID]
	r.mu.RUnlock()
	if !ok {
		if _, retired := r.retired[walletID]; retired {
			return ErrRetiredWalletSelected
		}
		return ErrNoEligibleWallet
	}

	mu.Lock()
	defer mu.Unlock()
	if deltaLamports < 0 {
		reduce := uint64(-deltaLamports)
		if reduce > w.OpenExposure {
			w.OpenExposure = 0
		} else {
			w.OpenExposure -= reduce
		}
	} else {
		if uint64(deltaLamports) > w.ExposureHeadroomLamports() {
			return errors.New("wallet: exposure change exceeds the wallet's max-exposure cap")
		}
		w.OpenExposure += uint64(deltaLamports)
	}
	w.OpenPositionCount += positionDelta
	if w.OpenPositionCount < 0 {
		w.OpenPositionCount = 0
	}
	return nil
}

// Snapshot returns a copy of the active wallet list for /debug/state.
func (r *Router) Snapshot() []*types.Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Wallet, 0, len(r.active))
	for _, w := range r.active {
		cp := *w
		out = append(out, &cp)
	}
	return out
}
