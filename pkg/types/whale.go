package types

import "time"

// BehaviorLabel is a pure function of a whale's transaction ring contents.
type BehaviorLabel string

const (
	BehaviorAccumulator BehaviorLabel = "accumulator"
	BehaviorDumper      BehaviorLabel = "dumper"
	BehaviorSwing       BehaviorLabel = "swing"
	BehaviorHodler      BehaviorLabel = "hodler"
	BehaviorUnknown     BehaviorLabel = "unknown"
)

// WhaleRingEntry is one observation feeding a whale's behavior ring.
// Accumulation is true when the tx increased the wallet's holdings.
type WhaleRingEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Signature    string    `json:"signature"`
	Accumulation bool      `json:"accumulation"`
	VolumeLamports uint64  `json:"volumeLamports"`
}

// WhaleProfile is keyed by (wallet ID, token ID). Mutated only by C2 when
// processing a transaction that touches this wallet/token pair.
type WhaleProfile struct {
	WalletID        string           `json:"walletId"`
	TokenID         string           `json:"tokenId"`
	HoldingsShare   float64          `json:"holdingsShare"`
	Ring            []WhaleRingEntry `json:"ring"`
	Behavior        BehaviorLabel    `json:"behavior"`
	LastActivity    time.Time        `json:"lastActivity"`
	RiskScore       float64          `json:"riskScore"`
}

// IsWhale reports whether the holdings share meets the configurable whale
// threshold (default 10%, see pkg/config).
func (p *WhaleProfile) IsWhale(thresholdShare float64) bool {
	return p.HoldingsShare >= thresholdShare
}
