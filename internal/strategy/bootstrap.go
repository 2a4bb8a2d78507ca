package strategy

import (
	"time"

	"github.com/kineticshield/core/pkg/config"
)

// NewDefaultRegistry constructs and registers all eleven strategies of
// spec §4.4 against cfg.
func NewDefaultRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()
	arbitrageExpiry := time.Duration(cfg.Strategy.OpportunityTimeoutMs) * time.Millisecond
	if arbitrageExpiry <= 0 {
		arbitrageExpiry = 5 * time.Second
	}

	r.Register(NewArbitrageStrategy(arbitrageExpiry))
	r.Register(NewFrontRunStrategy())
	r.Register(NewBackRunStrategy())
	r.Register(NewLiquiditySnipeStrategy(cfg.Strategy.MinMEVValueLamports))
	r.Register(NewLiquidationStrategy(0.05))
	r.Register(NewLiquidityTsunamiStrategy())
	r.Register(NewSocialFissionStrategy())
	r.Register(NewWhaleShadowingStrategy(cfg.State.WhaleShareThreshold))
	r.Register(NewDeathSpiralInterceptStrategy())
	r.Register(NewMemeVirusStrategy())
	r.Register(NewMicroLightningStrategy(cfg.Strategy.MicroLightning))
	return r
}
