package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichedTransactionRoundTrip(t *testing.T) {
	tx := &EnrichedTransaction{
		Signature:    "sig1",
		Slot:         123,
		ReceiptNanos: 456,
		Type:         TxSwap,
		Accounts:     []string{"a", "b"},
		Programs:     []string{"prog1"},
		Deltas:       []AccountDelta{{Account: "a", Delta: -100}, {Account: "b", Delta: 100}},
		FeeLamports:  5000,
		ComputeUnits: 20000,
		Hints:        Hints{HasHint: true, EstimatedMEVLamports: 1000},
	}

	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	var decoded EnrichedTransaction
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *tx, decoded)
}

func TestOpportunityRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	o := &Opportunity{
		ID:                "opp1",
		SourceTxSignature: "sig1",
		Variant:           Variant{Kind: VariantArbitrage, SrcVenue: "raydium", DstVenue: "orca", Pair: "SOL/USDC"},
		EstimatedProfit:   1_000_000,
		Confidence:        0.8,
		DetectionTS:       now,
		OptimalWindow:     Window{Start: now, End: now.Add(time.Second)},
		ExpiryTS:          now.Add(2 * time.Second),
		RiskLevel:         RiskLow,
		Hints:             ExecutionHints{Priority: PriorityFlash, RecommendedTip: 5000},
		Status:            OpportunityOpen,
		Strategy:          "arbitrage",
	}
	raw, err := json.Marshal(o)
	require.NoError(t, err)
	var decoded Opportunity
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *o, decoded)
}

func TestBundleRoundTrip(t *testing.T) {
	b := &Bundle{
		ID: "bundle1",
		Transactions: []BundleTransaction{
			{Tag: TxTagReal, Priority: 10, Payload: []byte{1, 2, 3}},
			{Tag: TxTagDecoy, Priority: 1, Payload: []byte{4, 5}},
		},
		ExpirySlots:     10,
		TipLamports:     2000,
		ProtectionLevel: 5,
		Status:          BundleCreated,
	}
	raw, err := json.Marshal(b)
	require.NoError(t, err)
	var decoded Bundle
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *b, decoded)
	real, ok := decoded.RealTransaction()
	require.True(t, ok)
	assert.Equal(t, uint8(10), real.Priority)
	assert.Equal(t, 1, decoded.DecoyCount())
}

func TestOpportunityExpiryIsStrict(t *testing.T) {
	now := time.Now()
	o := &Opportunity{ExpiryTS: now}
	assert.True(t, o.IsExpired(now), "now == expiry_ts must be expired (strict <)")
	assert.False(t, o.IsExpired(now.Add(-time.Nanosecond)))
}

func TestRingEvictsOldestOnInsert(t *testing.T) {
	r := NewRing(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		r.Push(RingEntry{Timestamp: base.Add(time.Duration(i) * time.Second), Value: float64(i)})
	}
	require.Equal(t, 3, r.Len())
	snap := r.Snapshot()
	assert.Equal(t, float64(2), snap[0].Value)
	assert.Equal(t, float64(4), snap[2].Value)
}

func TestRingWindowRespectsBounds(t *testing.T) {
	r := NewRing(10)
	base := time.Now()
	r.Push(RingEntry{Timestamp: base, Value: 1})
	r.Push(RingEntry{Timestamp: base.Add(3 * time.Second), Value: 2})
	r.Push(RingEntry{Timestamp: base.Add(10 * time.Second), Value: 4})

	sum := r.SumWindow(base.Add(5*time.Second), 5*time.Second)
	assert.Equal(t, float64(3), sum) // only the first two entries fall in [0s,5s]
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.5))
	assert.Equal(t, 1.0, ClampConfidence(1.5))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
}

func TestMarketEventDispatchExhaustive(t *testing.T) {
	var gotTick bool
	ev := &MarketEvent{Kind: EventTick, Timestamp: time.Now()}
	ev.Dispatch(EventHandlers{OnTick: func(time.Time) { gotTick = true }})
	assert.True(t, gotTick)

	var gotWhale bool
	ev2 := &MarketEvent{Kind: EventWhale, Behavior: BehaviorAccumulator}
	ev2.Dispatch(EventHandlers{OnWhale: func(e *MarketEvent) { gotWhale = e.Behavior == BehaviorAccumulator }})
	assert.True(t, gotWhale)
}
