package state

// LiquidityAnomaly reports a detected LiquidityTsunami trigger (spec
// §4.2): Δ exceeds threshold₁ AND velocity (ratio of the latest delta to
// its 10-event rolling average) exceeds threshold₂.
type LiquidityAnomaly struct {
	Triggered bool
	Delta     float64
	Velocity  float64
}

// evaluateLiquidityAnomaly must be called after the new delta has already
// been pushed onto m.liquidity, so RollingAverage(10) includes it.
func evaluateLiquidityAnomaly(m *tokenMarket, delta float64, deltaThresh, velocityThresh float64) LiquidityAnomaly {
	avg := m.liquidity.RollingAverage(10)
	var velocity float64
	if avg != 0 {
		velocity = delta / avg
	}
	return LiquidityAnomaly{
		Triggered: delta > deltaThresh && velocity > velocityThresh,
		Delta:     delta,
		Velocity:  velocity,
	}
}
