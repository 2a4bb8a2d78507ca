package types

import "time"

// EventKind discriminates MarketEvent. Replaces the source's dynamic
// downcast on an opaque signal object with an exhaustive tag (spec
// redesign guidance: "tagged variant ... dispatched via exhaustive
// pattern match").
type EventKind string

const (
	EventTx        EventKind = "tx"
	EventSocial    EventKind = "social"
	EventWhale     EventKind = "whale"
	EventLiquidity EventKind = "liquidity"
	EventPanic     EventKind = "panic"
	EventNarrative EventKind = "narrative"
	EventTick      EventKind = "tick"
)

// NarrativePhase is the memecoin lifecycle phase carried by a Narrative
// event (MemeVirus strategy).
type NarrativePhase string

const (
	PhaseAccumulation NarrativePhase = "accumulation"
	PhaseViral        NarrativePhase = "viral"
	PhaseDump         NarrativePhase = "dump"
	PhaseRebound      NarrativePhase = "rebound"
	PhaseDormant      NarrativePhase = "dormant"
)

// MarketEvent is a tagged union over every input a strategy may react to.
// Only the fields relevant to Kind are populated; callers must switch
// exhaustively on Kind rather than type-assert.
type MarketEvent struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// EventTx
	Tx *EnrichedTransaction `json:"tx,omitempty"`

	// EventSocial
	TokenID       string  `json:"tokenId,omitempty"`
	MentionCount  int     `json:"mentionCount,omitempty"`
	SentimentPct  float64 `json:"sentimentPct,omitempty"`
	VolumeLamports uint64 `json:"volumeLamports,omitempty"`

	// EventWhale
	WalletID string        `json:"walletId,omitempty"`
	Behavior BehaviorLabel `json:"behavior,omitempty"`
	HoldingsShare float64  `json:"holdingsShare,omitempty"`
	PreDump  bool          `json:"preDump,omitempty"`

	// EventLiquidity
	PoolID           string  `json:"poolId,omitempty"`
	LiquidityDelta   float64 `json:"liquidityDelta,omitempty"`
	LiquidityVelocity float64 `json:"liquidityVelocity,omitempty"`

	// EventPanic
	SellVolumePct float64 `json:"sellVolumePct,omitempty"`
	PriceDropPct  float64 `json:"priceDropPct,omitempty"`

	// EventNarrative
	Phase NarrativePhase `json:"phase,omitempty"`

	// EventTick carries no payload beyond Timestamp; it drives time-based
	// exits without strategies sleeping on the hot path (spec redesign
	// guidance on explicit tick sources).
}

// EventHandlers holds one optional handler per EventKind for Dispatch.
type EventHandlers struct {
	OnTx        func(*EnrichedTransaction)
	OnSocial    func(e *MarketEvent)
	OnWhale     func(e *MarketEvent)
	OnLiquidity func(e *MarketEvent)
	OnPanic     func(e *MarketEvent)
	OnNarrative func(e *MarketEvent)
	OnTick      func(now time.Time)
}

// Dispatch calls exactly one of the supplied handlers matching e.Kind. A
// nil handler for the matched kind is a no-op. Unhandled kinds are ignored
// by design — callers that must be exhaustive should switch on Kind
// directly instead.
func (e *MarketEvent) Dispatch(h EventHandlers) {
	switch e.Kind {
	case EventTx:
		if h.OnTx != nil {
			h.OnTx(e.Tx)
		}
	case EventSocial:
		if h.OnSocial != nil {
			h.OnSocial(e)
		}
	case EventWhale:
		if h.OnWhale != nil {
			h.OnWhale(e)
		}
	case EventLiquidity:
		if h.OnLiquidity != nil {
			h.OnLiquidity(e)
		}
	case EventPanic:
		if h.OnPanic != nil {
			h.OnPanic(e)
		}
	case EventNarrative:
		if h.OnNarrative != nil {
			h.OnNarrative(e)
		}
	case EventTick:
		if h.OnTick != nil {
			h.OnTick(e.Timestamp)
		}
	}
}
