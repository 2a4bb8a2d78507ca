// Package state implements C2: the ingest-side behavioral state store.
// One writer per key is enforced by sharding (see shard.go); reads are
// always copy-on-read snapshots, so callers never observe a torn ring.
package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
)

// Update is everything C2 derived from ingesting one transaction: the
// behavioral snapshot(s) strategies may want to read alongside the raw tx.
type Update struct {
	Tx        *types.EnrichedTransaction
	Whale     *types.WhaleProfile
	Pool      *types.PoolAnalytics
	PanicSell PanicSellResult
	Liquidity LiquidityAnomaly
}

// Store holds whale profiles, per-token markets, and per-pool analytics
// behind sharded locks, plus a janitor that evicts fully-idle entries.
type Store struct {
	logger *zap.Logger
	cfg    config.StateConfig

	whales  *shardedMap[*types.WhaleProfile]
	markets *shardedMap[*tokenMarket]
	pools   *shardedMap[*types.PoolAnalytics]

	malformedCount int64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	pressureMu     sync.Mutex
	ringScaleFactor float64
}

// NewStore constructs an empty state store; Start launches its janitor.
func NewStore(logger *zap.Logger, cfg config.StateConfig) *Store {
	return &Store{
		logger:          logger,
		cfg:             cfg,
		whales:          newShardedMap[*types.WhaleProfile](),
		markets:         newShardedMap[*tokenMarket](),
		pools:           newShardedMap[*types.PoolAnalytics](),
		ringScaleFactor: 1.0,
	}
}

// Start launches the background janitor goroutine.
func (s *Store) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.janitorLoop(ctx)
}

// Stop halts the janitor.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Ingest updates every ring and profile a transaction touches and returns
// the derived signals for C4. A malformed transaction (no accounts) is
// dropped with a counter increment and mutates no state (spec §4.2
// failure contract).
func (s *Store) Ingest(tx *types.EnrichedTransaction) (Update, bool) {
	if tx == nil || len(tx.Accounts) == 0 {
		atomic.AddInt64(&s.malformedCount, 1)
		return Update{}, false
	}

	now := time.Now()
	wallet := tx.Accounts[0]
	token := wallet
	if len(tx.Accounts) > 1 {
		token = tx.Accounts[1]
	}
	var poolID string
	if len(tx.Programs) > 0 {
		poolID = tx.Programs[0]
	}

	upd := Update{Tx: tx}

	if tx.Type == types.TxWhale || tx.Type == types.TxSwap {
		accumulation := tx.AbsDeltaSum() > 0 && netDelta(tx, wallet) >= 0
		upd.Whale = s.ingestWhale(wallet, token, accumulation, tx.AbsDeltaSum(), 0, now, tx.Signature)
	}

	m := s.marketFor(token)
	var sellVol float64
	if netDelta(tx, wallet) < 0 {
		sellVol = float64(-netDelta(tx, wallet))
	}
	m.sellVolume.Push(types.RingEntry{Timestamp: now, Value: sellVol})
	// Price discovery is out of scope (spec §1); AbsDeltaSum stands in as
	// the per-tx price-impact proxy the panic-sell drop ratio is computed over.
	m.price.Push(types.RingEntry{Timestamp: now, Value: float64(tx.AbsDeltaSum())})
	upd.PanicSell = evaluatePanicSell(m, now, s.cfg.PanicSellWindow, s.cfg.PanicSellSupplyPct, s.cfg.PanicSellPriceDropPct)

	if poolID != "" {
		pool := s.poolFor(poolID, now)
		pool.LastActivity = now
		delta := float64(tx.AbsDeltaSum())
		pool.LiquiditySnaps.Push(types.RingEntry{Timestamp: now, Value: delta})
		pool.CumulativeVol += delta
		m.liquidity.Push(types.RingEntry{Timestamp: now, Value: delta})
		upd.Liquidity = evaluateLiquidityAnomaly(m, delta, s.cfg.LiquidityDeltaThresh, s.cfg.LiquidityVelocityThresh)
		if upd.Liquidity.Triggered {
			pool.SetFlag(types.FlagHighVolatility)
		}
		if tx.NewPool {
			pool.SetFlag(types.FlagNewToken)
		}
		upd.Pool = pool
	}

	s.applyMemoryPressureIfNeeded()
	return upd, true
}

func netDelta(tx *types.EnrichedTransaction, account string) int64 {
	for _, d := range tx.Deltas {
		if d.Account == account {
			return d.Delta
		}
	}
	return 0
}

func (s *Store) marketFor(token string) *tokenMarket {
	return s.markets.withLock(token,
		func() *tokenMarket { return newTokenMarket(s.cfg.TokenRingCapacity, 0) },
		func(m *tokenMarket) *tokenMarket { return m },
	)
}

func (s *Store) poolFor(poolID string, now time.Time) *types.PoolAnalytics {
	return s.pools.withLock(poolID,
		func() *types.PoolAnalytics {
			return types.NewPoolAnalytics(poolID, now, s.cfg.TokenRingCapacity)
		},
		func(p *types.PoolAnalytics) *types.PoolAnalytics { return p },
	)
}

// PoolSnapshot returns a copy-on-read handle, or nil if unseen.
func (s *Store) PoolSnapshot(poolID string) *types.PoolAnalytics {
	p, ok := s.pools.get(poolID)
	if !ok {
		return nil
	}
	cp := *p
	cp.LiquiditySnaps = types.NewRing(p.LiquiditySnaps.Cap())
	for _, e := range p.LiquiditySnaps.Snapshot() {
		cp.LiquiditySnaps.Push(e)
	}
	cp.Flags = make(map[types.RiskFlag]struct{}, len(p.Flags))
	for f := range p.Flags {
		cp.Flags[f] = struct{}{}
	}
	return &cp
}

// MalformedCount returns the number of dropped malformed transactions.
func (s *Store) MalformedCount() int64 {
	return atomic.LoadInt64(&s.malformedCount)
}

// janitorLoop drops fully-expired per-pool analytics and idle whale
// profiles every configured interval, bounding the working set (spec
// §4.2's "separate janitor" requirement).
func (s *Store) janitorLoop(ctx context.Context) {
	defer s.wg.Done()
	interval := s.cfg.JanitorInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdleWhales()
			s.sweepIdlePools()
		}
	}
}

func (s *Store) sweepIdleWhales() {
	ttl := s.cfg.WhaleIdleTTL
	if ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-ttl)
	var stale []string
	s.whales.forEach(func(key string, p *types.WhaleProfile) {
		if p.LastActivity.Before(cutoff) {
			stale = append(stale, key)
		}
	})
	for _, key := range stale {
		s.whales.delete(key)
	}
	if len(stale) > 0 {
		s.logger.Debug("evicted idle whale profiles", zap.Int("count", len(stale)))
	}
}

// sweepIdlePools drops per-pool analytics that have received no activity
// within PoolIdleTTL, bounding pool-keyed memory the same way
// sweepIdleWhales bounds whale-keyed memory (spec §4.2's janitor
// requirement covers both).
func (s *Store) sweepIdlePools() {
	ttl := s.cfg.PoolIdleTTL
	if ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-ttl)
	var stale []string
	s.pools.forEach(func(key string, p *types.PoolAnalytics) {
		if p.LastActivity.Before(cutoff) {
			stale = append(stale, key)
		}
	})
	for _, key := range stale {
		s.pools.delete(key)
	}
	if len(stale) > 0 {
		s.logger.Debug("evicted expired pool analytics", zap.Int("count", len(stale)))
	}
}

// applyMemoryPressureIfNeeded shrinks ring capacities proportionally when
// the working set exceeds the configured entry budget, rather than
// failing (spec §4.2: "reduce ring capacities proportionally, never
// fail").
func (s *Store) applyMemoryPressureIfNeeded() {
	if s.cfg.MemoryBudgetEntries <= 0 {
		return
	}
	total := s.whales.len() + s.markets.len() + s.pools.len()
	if total <= s.cfg.MemoryBudgetEntries {
		return
	}

	s.pressureMu.Lock()
	defer s.pressureMu.Unlock()
	if s.ringScaleFactor <= 0.1 {
		return
	}
	s.ringScaleFactor *= 0.9
	newCap := maxInt(1, int(float64(s.cfg.TokenRingCapacity)*s.ringScaleFactor))
	s.markets.forEach(func(_ string, m *tokenMarket) {
		m.sellVolume.SetCapacity(newCap)
		m.price.SetCapacity(newCap)
		m.liquidity.SetCapacity(newCap)
	})
	s.pools.forEach(func(_ string, p *types.PoolAnalytics) {
		p.LiquiditySnaps.SetCapacity(newCap)
	})
	s.logger.Warn("memory pressure: shrinking ring capacities", zap.Int("newCapacity", newCap))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
