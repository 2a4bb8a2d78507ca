package strategy

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kineticshield/core/internal/state"
	"github.com/kineticshield/core/internal/workers"
	"github.com/kineticshield/core/pkg/types"
)

// Orchestrator fans each enriched transaction out to every registered
// strategy in parallel via the shared worker pool and merges the results
// (spec §4.4: "An orchestrator dispatches each enriched transaction to
// all active strategies in parallel and merges results"). Grounded on
// teacher `orchestrator.TradingOrchestrator.evaluateStrategies`'s
// iterate-and-submit-to-pool shape.
type Orchestrator struct {
	logger             *zap.Logger
	registry           *Registry
	pool               *workers.Pool
	opportunityTimeout time.Duration
}

// NewOrchestrator wires a registry onto a worker pool.
func NewOrchestrator(logger *zap.Logger, registry *Registry, pool *workers.Pool, opportunityTimeout time.Duration) *Orchestrator {
	return &Orchestrator{logger: logger, registry: registry, pool: pool, opportunityTimeout: opportunityTimeout}
}

// Dispatch submits update to every registered strategy concurrently and
// returns the merged, tie-broken, non-expired opportunities. Two
// strategies firing on the same tx both produce opportunities (spec
// §4.4's explicit edge-case policy); Dispatch does not deduplicate by
// tx, only drops anything already expired by the time results are
// collected.
func (o *Orchestrator) Dispatch(update *state.Update) []*types.Opportunity {
	strategies := o.registry.List()
	if len(strategies) == 0 {
		return nil
	}

	var mu sync.Mutex
	var results []*types.Opportunity
	var wg sync.WaitGroup

	for _, s := range strategies {
		s := s
		wg.Add(1)
		err := o.pool.SubmitFunc(func() error {
			defer wg.Done()
			opp := s.OnTx(update)
			if opp == nil {
				return nil
			}
			mu.Lock()
			results = append(results, opp)
			mu.Unlock()
			return nil
		})
		if err != nil {
			wg.Done()
			o.logger.Warn("strategy dispatch dropped: pool saturated", zap.String("strategy", s.Name()), zap.Error(err))
		}
	}

	wg.Wait()
	return o.mergeAndFilter(results)
}

// Tick collects time-based opportunities (exits, phase transitions) from
// every strategy.
func (o *Orchestrator) Tick(now time.Time) []*types.Opportunity {
	var all []*types.Opportunity
	for _, s := range o.registry.List() {
		all = append(all, s.OnTick(now)...)
	}
	return o.mergeAndFilter(all)
}

// mergeAndFilter drops opportunities older than detection + timeout and
// orders survivors by the tie-break rule: lower risk level wins; then
// earlier expiry (shorter horizon) wins (spec §4.4).
func (o *Orchestrator) mergeAndFilter(opps []*types.Opportunity) []*types.Opportunity {
	now := time.Now()
	out := make([]*types.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if opp == nil {
			continue
		}
		if o.opportunityTimeout > 0 && now.Sub(opp.DetectionTS) > o.opportunityTimeout {
			continue
		}
		if opp.IsExpired(now) {
			continue
		}
		out = append(out, opp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RiskLevel != b.RiskLevel {
			return a.RiskLevel < b.RiskLevel
		}
		return a.ExpiryTS.Before(b.ExpiryTS)
	})
	return out
}
