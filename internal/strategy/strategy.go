// Package strategy implements C4: the strategy set that turns enriched
// transactions (plus C2's behavioral snapshots) into Opportunities, and
// the orchestrator that fans a transaction out to every active strategy
// in parallel and merges the results.
package strategy

import (
	"sort"
	"sync"
	"time"

	"github.com/kineticshield/core/internal/state"
	"github.com/kineticshield/core/pkg/types"
	"github.com/kineticshield/core/pkg/util"
)

// Strategy is the contract every detector implements (spec §4.4):
// on_tx for transaction-triggered opportunities, on_tick for time-based
// exits/phase-transitions. Strategies read only the immutable snapshot
// handed to them; they never mutate each other or shared state directly.
type Strategy interface {
	Name() string
	OnTx(update *state.Update) *types.Opportunity
	OnTick(now time.Time) []*types.Opportunity
}

// Registry maps strategy names to live instances, grounded on teacher
// `strategy.StrategyRegistry`'s name→factory map generalized to name→
// instance since C4's strategies are long-lived stateful detectors, not
// per-backtest-run factories.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds s under its own Name(). A later Register with the same
// name replaces the earlier instance.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get returns the named strategy, if registered.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// List returns every registered strategy in a stable order (by name).
func (r *Registry) List() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// newOpportunity builds the common envelope shared by every strategy's
// detection rule, leaving Variant/EstimatedProfit/RiskLevel/Hints to the
// caller.
func newOpportunity(strategyName string, tx *types.EnrichedTransaction, now time.Time, expiry time.Duration) *types.Opportunity {
	return &types.Opportunity{
		ID:                util.GenerateID("opp"),
		SourceTxSignature: tx.Signature,
		DetectionTS:       now,
		OptimalWindow:     types.Window{Start: now, End: now.Add(expiry)},
		ExpiryTS:          now.Add(expiry),
		Status:            types.OpportunityOpen,
		Strategy:          strategyName,
	}
}
