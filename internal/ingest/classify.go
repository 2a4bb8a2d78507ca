package ingest

import (
	"strings"

	"github.com/kineticshield/core/pkg/types"
)

// knownSwapPrograms and knownAMMPrograms are placeholder sets for the
// recognized-program classification rule; real deployments supply their
// own program ID allowlist via config.
var (
	knownSwapPrograms = map[string]struct{}{
		"raydium-amm": {}, "orca-whirlpool": {}, "jupiter-agg": {},
	}
	knownAMMInitPrograms = map[string]struct{}{
		"raydium-amm": {}, "orca-whirlpool": {},
	}
)

// RawTx is the adapter-normalized shape fed into Classify: instruction
// names/program IDs already decoded from wire bytes, before the type tag
// is assigned. Framing and transport are adapter-defined per spec §6; the
// core only ever sees this normalized record.
type RawTx struct {
	Signature    string
	Slot         uint64
	Accounts     []string
	Programs     []string
	Instructions []string
	Deltas       []types.AccountDelta
	FeeLamports  uint64
	ComputeUnits uint64
	Payload      []byte
	Hints        types.Hints
	IsNewPool    bool
}

// ClassifyConfig carries WhaleDeltaLamports, the threshold that gates the
// Whale classification rule.
type ClassifyConfig struct {
	WhaleDeltaLamports uint64
}

// Classify assigns a TxType from a RawTx's instruction set. It is a pure
// function of the normalized form per the spec's classification-rules
// contract.
func Classify(raw RawTx, cfg ClassifyConfig) types.TxType {
	for _, ins := range raw.Instructions {
		lower := strings.ToLower(ins)
		if containsProgram(raw.Programs, knownSwapPrograms) && strings.Contains(lower, "swap") {
			return types.TxSwap
		}
		if containsProgram(raw.Programs, knownAMMInitPrograms) && strings.Contains(lower, "initialize") {
			return types.TxLiquidityAdd
		}
		if strings.Contains(lower, "withdraw") {
			return types.TxLiquidityRemove
		}
	}
	if maxAbsDelta(raw.Deltas) >= raw.FeeLamports && maxAbsDelta(raw.Deltas) >= cfg.WhaleDeltaLamports {
		return types.TxWhale
	}
	if raw.Hints.HasHint {
		return types.TxMEVHint
	}
	return types.TxOther
}

func containsProgram(programs []string, known map[string]struct{}) bool {
	for _, p := range programs {
		if _, ok := known[p]; ok {
			return true
		}
	}
	return false
}

func maxAbsDelta(deltas []types.AccountDelta) uint64 {
	var max int64
	for _, d := range deltas {
		v := d.Delta
		if v < 0 {
			v = -v
		}
		if v > max {
			max = v
		}
	}
	if max < 0 {
		return 0
	}
	return uint64(max)
}

// Enrich builds an EnrichedTransaction from a RawTx, assigning the
// monotonic receipt timestamp and classified type. This is the single
// normalization stage both the mempool and confirmed sources feed.
func Enrich(raw RawTx, receiptNanos int64, cfg ClassifyConfig) *types.EnrichedTransaction {
	return &types.EnrichedTransaction{
		Signature:    raw.Signature,
		Slot:         raw.Slot,
		ReceiptNanos: receiptNanos,
		Type:         Classify(raw, cfg),
		NewPool:      raw.IsNewPool,
		Accounts:     raw.Accounts,
		Programs:     raw.Programs,
		Deltas:       raw.Deltas,
		FeeLamports:  raw.FeeLamports,
		ComputeUnits: raw.ComputeUnits,
		Payload:      raw.Payload,
		Hints:        raw.Hints,
	}
}
