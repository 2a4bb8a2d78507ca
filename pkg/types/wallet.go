package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletRole enumerates a wallet's purpose, which gates which strategies
// may route to it and seeds the wallet router's base score.
type WalletRole string

const (
	RolePrimary           WalletRole = "primary"
	RoleHFT               WalletRole = "hft"
	RoleConservative      WalletRole = "conservative"
	RoleArbitrage         WalletRole = "arbitrage"
	RoleMEVProtection     WalletRole = "mev_protection"
	RoleMicroLightning    WalletRole = "micro_lightning"
	RoleMicroEmergencyGas WalletRole = "micro_emergency_gas"
	RoleMicroReentry      WalletRole = "micro_reentry"
	RoleMicroPsychology   WalletRole = "micro_psychology"
	RoleMicroTacticalExit WalletRole = "micro_tactical_exit"
	RoleEmergency         WalletRole = "emergency"
	RoleExperimental      WalletRole = "experimental"
)

// WalletStatus is the wallet's lifecycle state.
type WalletStatus string

const (
	WalletActive      WalletStatus = "active"
	WalletInactive    WalletStatus = "inactive"
	WalletSuspended   WalletStatus = "suspended"
	WalletEmergency   WalletStatus = "emergency"
	WalletMaintenance WalletStatus = "maintenance"
)

// Wallet tracks routing eligibility, exposure, and rotation schedule. The
// invariant is enforced by internal/wallet: open exposure never exceeds
// MaxExposurePct of Balance.
type Wallet struct {
	ID                 string                     `json:"id"`
	PubKey             string                     `json:"pubKey"`
	Role               WalletRole                 `json:"role"`
	Status             WalletStatus               `json:"status"`
	StrategyAllocation map[string]decimal.Decimal `json:"strategyAllocation"`
	BalanceLamports    uint64                     `json:"balanceLamports"`
	OpenExposure       uint64                     `json:"openExposureLamports"`
	MaxExposurePct     decimal.Decimal            `json:"maxExposurePct"`
	OpenPositionCount  int                        `json:"openPositionCount"`
	PerformanceScore   float64                    `json:"performanceScore"`
	CreatedAt          time.Time                  `json:"createdAt"`
	NextRotation       time.Time                  `json:"nextRotation"`
}

// ExposureHeadroomLamports returns how much more exposure the wallet can
// take on before hitting MaxExposurePct of its balance; never negative.
// MaxExposurePct is a capital-fraction quantity, kept as decimal.Decimal
// the way the teacher keeps MaxPositionSize/MaxSymbolExposure as decimals
// rather than float64, converted to float64 only at the lamport boundary.
func (w *Wallet) ExposureHeadroomLamports() uint64 {
	cap := uint64(decimal.NewFromInt(int64(w.BalanceLamports)).Mul(w.MaxExposurePct).IntPart())
	if w.OpenExposure >= cap {
		return 0
	}
	return cap - w.OpenExposure
}

// RiskUtilization returns the fraction of the wallet's exposure cap
// currently in use, in [0,1].
func (w *Wallet) RiskUtilization() float64 {
	cap, _ := decimal.NewFromInt(int64(w.BalanceLamports)).Mul(w.MaxExposurePct).Float64()
	if cap <= 0 {
		return 1
	}
	u := float64(w.OpenExposure) / cap
	if u > 1 {
		return 1
	}
	return u
}
