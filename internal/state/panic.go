package state

import (
	"time"

	"github.com/kineticshield/core/pkg/types"
)

// tokenMarket holds the per-token rings needed for panic-sell aggregation
// and liquidity-anomaly detection. One instance per token, guarded by the
// shardedMap's per-shard lock.
type tokenMarket struct {
	sellVolume *types.Ring
	price      *types.Ring
	liquidity  *types.Ring
	circSupply float64
}

func newTokenMarket(ringCapacity int, circSupply float64) *tokenMarket {
	return &tokenMarket{
		sellVolume: types.NewRing(ringCapacity),
		price:      types.NewRing(ringCapacity),
		liquidity:  types.NewRing(ringCapacity),
		circSupply: circSupply,
	}
}

// PanicSellResult reports whether the panic-sell predicate held at the
// observation instant, and the measurements behind the decision.
type PanicSellResult struct {
	Triggered     bool
	SellVolumePct float64
	PriceDropPct  float64
}

// evaluatePanicSell implements spec §4.2: a panic-sell event exists for
// token T at time t iff total sell volume in [t-2min, t] is ≥ a configured
// percentage of circulating supply AND the price drop from the window's
// max is ≥ a configured percentage.
func evaluatePanicSell(m *tokenMarket, now time.Time, window time.Duration, supplyPct, priceDropPct float64) PanicSellResult {
	sellSum := m.sellVolume.SumWindow(now, window)
	var sellPct float64
	if m.circSupply > 0 {
		sellPct = sellSum / m.circSupply
	}

	maxPrice, ok := m.price.MaxWindow(now, window)
	var drop float64
	if ok && maxPrice > 0 {
		lastPrice := m.price.RollingAverage(1)
		drop = (maxPrice - lastPrice) / maxPrice
	}

	return PanicSellResult{
		Triggered:     sellPct >= supplyPct && drop >= priceDropPct,
		SellVolumePct: sellPct,
		PriceDropPct:  drop,
	}
}
