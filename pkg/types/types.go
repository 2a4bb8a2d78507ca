// Package types provides the shared data model for the ingest-to-bundle
// pipeline: enriched transactions, behavioral state, opportunities, risk
// decisions, bundles, and wallets. Struct shapes and JSON tagging follow
// the project's house style; money-like fractional quantities that are
// never lamports use decimal.Decimal, everything else uses plain numeric
// types per the numeric semantics in pkg/types/opportunity.go.
package types

import "time"

// TxType classifies a normalized transaction. Classification is a pure
// function of the transaction's instruction set (see internal/ingest).
type TxType string

const (
	TxSwap            TxType = "swap"
	TxLiquidityAdd    TxType = "liquidity_add"
	TxLiquidityRemove TxType = "liquidity_remove"
	TxWhale           TxType = "whale"
	TxMEVHint         TxType = "mev_hint"
	TxOther           TxType = "other"
)

// AccountDelta is a single account's lamport balance change within a
// transaction, used to estimate price impact and profit.
type AccountDelta struct {
	Account string `json:"account"`
	Delta   int64  `json:"deltaLamports"`
}

// Hints carries optional pre-computed scalar signals from the upstream
// feed. HasHint distinguishes "no hint available" from a zero-value hint.
type Hints struct {
	EstimatedMEVLamports uint64  `json:"estimatedMevLamports,omitempty"`
	WashTradeProbability float64 `json:"washTradeProbability,omitempty"`
	HasHint              bool    `json:"hasHint"`
}

// EnrichedTransaction is immutable once produced by C1. It is shared
// read-only by C2 and C4 and dropped only when the sliding window evicts it.
type EnrichedTransaction struct {
	Signature    string         `json:"signature"`
	Slot         uint64         `json:"slot"`
	ReceiptNanos int64          `json:"receiptNanos"`
	Type         TxType         `json:"type"`
	NewPool      bool           `json:"newPool,omitempty"`
	Accounts     []string       `json:"accounts"`
	Programs     []string       `json:"programs"`
	Deltas       []AccountDelta `json:"deltas,omitempty"`
	FeeLamports  uint64         `json:"feeLamports"`
	ComputeUnits uint64         `json:"computeUnits"`
	Payload      []byte         `json:"payload,omitempty"`
	Hints        Hints          `json:"hints"`
}

// ReceiptTime converts the monotonic receipt timestamp to wall clock,
// relative to a (wallClock, monotonicNanos) base captured once at startup.
func (tx *EnrichedTransaction) ReceiptTime(base time.Time, baseNanos int64) time.Time {
	return base.Add(time.Duration(tx.ReceiptNanos - baseNanos))
}

// AbsDeltaSum sums the absolute value of every account delta; used by the
// arbitrage profit estimator (sum(|account_deltas|) * 1%).
func (tx *EnrichedTransaction) AbsDeltaSum() uint64 {
	var sum int64
	for _, d := range tx.Deltas {
		if d.Delta < 0 {
			sum -= d.Delta
		} else {
			sum += d.Delta
		}
	}
	if sum < 0 {
		return 0
	}
	return uint64(sum)
}

// Clone returns a deep copy. Strategies and scorers receive only read-only
// handles; Clone exists for the rare caller (e.g. a test) that mutates.
func (tx *EnrichedTransaction) Clone() *EnrichedTransaction {
	if tx == nil {
		return nil
	}
	out := *tx
	out.Accounts = append([]string(nil), tx.Accounts...)
	out.Programs = append([]string(nil), tx.Programs...)
	out.Deltas = append([]AccountDelta(nil), tx.Deltas...)
	out.Payload = append([]byte(nil), tx.Payload...)
	return &out
}
