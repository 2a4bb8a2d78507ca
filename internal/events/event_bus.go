// Package events provides the pipeline-wide system event bus: risk alerts,
// kill-switch transitions, opportunity lifecycle, and heartbeats. It is
// deliberately separate from pkg/types.MarketEvent, which is the strategy
// hot-path tagged union — this bus carries operational/observability
// events consumed by C8 and the admin surface.
package events

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventType categorizes a system event.
type EventType string

const (
	EventTypeOpportunityDetected EventType = "opportunity_detected"
	EventTypeSignalApproved      EventType = "signal_approved"
	EventTypeSignalRejected      EventType = "signal_rejected"
	EventTypeBundleSubmitted     EventType = "bundle_submitted"
	EventTypeBundleConfirmed     EventType = "bundle_confirmed"
	EventTypeBundleFailed        EventType = "bundle_failed"
	EventTypeRiskAlert           EventType = "risk_alert"
	EventTypeKillSwitch          EventType = "kill_switch"
	EventTypeShed                EventType = "shed"
	EventTypeHeartbeat           EventType = "heartbeat"
)

// Event is the base interface for all system events.
type Event interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetID() string
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *BaseEvent) GetType() EventType      { return e.Type }
func (e *BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e *BaseEvent) GetID() string           { return e.ID }

// OpportunityEvent reports an opportunity's lifecycle transition.
type OpportunityEvent struct {
	BaseEvent
	OpportunityID string  `json:"opportunityId"`
	Strategy      string  `json:"strategy"`
	ProfitLamports uint64 `json:"profitLamports"`
}

// SignalEvent reports a shield decision.
type SignalEvent struct {
	BaseEvent
	OpportunityID string `json:"opportunityId"`
	ShieldStatus  string `json:"shieldStatus"`
	Reason        string `json:"reason,omitempty"`
}

// BundleEvent reports a bundle's lifecycle transition.
type BundleEvent struct {
	BaseEvent
	BundleID    string `json:"bundleId"`
	Status      string `json:"status"`
	TipLamports uint64 `json:"tipLamports,omitempty"`
}

// RiskAlertEvent reports a risk-gate warning or state change.
type RiskAlertEvent struct {
	BaseEvent
	AlertType string  `json:"alertType"`
	Severity  string  `json:"severity"` // info, warning, critical
	Message   string  `json:"message"`
	Value     float64 `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// KillSwitchEvent reports a lockdown transition.
type KillSwitchEvent struct {
	BaseEvent
	Trigger       string        `json:"trigger"`
	CooldownUntil time.Time     `json:"cooldownUntil"`
	Duration      time.Duration `json:"duration"`
}

// ShedEvent reports a back-pressure drop at some stage.
type ShedEvent struct {
	BaseEvent
	Stage string `json:"stage"`
}

// EventHandler processes an event; a returned error is logged, never
// propagated.
type EventHandler func(event Event) error

// EventFilter selectively admits events to a subscription.
type EventFilter func(event Event) bool

// SubscriptionOptions configures a subscription's dispatch behavior.
type SubscriptionOptions struct {
	Filter EventFilter
	Async  bool
}

// Subscription is an active event-bus registration.
type Subscription struct {
	ID        string
	EventType EventType
	Handler   EventHandler
	Options   SubscriptionOptions
	active    atomic.Bool
}

// IsActive reports whether the subscription still receives events.
func (s *Subscription) IsActive() bool { return s.active.Load() }

// BusConfig configures the bus's worker pool and channel buffer.
type BusConfig struct {
	NumWorkers int
	BufferSize int
}

// DefaultBusConfig returns sensible defaults for the pipeline's event
// volume (system events, not the hot-path MarketEvent stream).
func DefaultBusConfig() BusConfig {
	return BusConfig{NumWorkers: 8, BufferSize: 10000}
}

// Stats summarizes bus throughput and latency.
type Stats struct {
	EventsPublished   int64         `json:"eventsPublished"`
	EventsProcessed   int64         `json:"eventsProcessed"`
	EventsDropped     int64         `json:"eventsDropped"`
	ProcessingErrors  int64         `json:"processingErrors"`
	AvgLatencyNs      int64         `json:"avgLatencyNs"`
	MaxLatencyNs      int64         `json:"maxLatencyNs"`
	P99LatencyNs      int64         `json:"p99LatencyNs"`
	ActiveSubscribers int64         `json:"activeSubscribers"`
}

// Bus is the central system-event router: bounded channel, fixed worker
// pool, panic-recovered async dispatch, EMA + P99 latency tracking.
type Bus struct {
	mu             sync.RWMutex
	subscribers    map[EventType][]*Subscription
	allSubscribers []*Subscription

	eventChan   chan Event
	workerCount int

	eventsPublished   atomic.Int64
	eventsProcessed   atomic.Int64
	eventsDropped     atomic.Int64
	processingErrors  atomic.Int64
	activeSubscribers atomic.Int64

	latencies  []int64
	latencyMu  sync.Mutex
	maxLatency atomic.Int64
	avgLatency atomic.Int64

	subCounter atomic.Int64
	evtCounter atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewBus constructs and starts a Bus with config.NumWorkers goroutines.
func NewBus(logger *zap.Logger, config BusConfig) *Bus {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 8
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 10000
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		subscribers:    make(map[EventType][]*Subscription),
		allSubscribers: make([]*Subscription, 0),
		eventChan:      make(chan Event, config.BufferSize),
		workerCount:    config.NumWorkers,
		ctx:            ctx,
		cancel:         cancel,
		logger:         logger,
		latencies:      make([]int64, 0, 10000),
	}

	for i := 0; i < config.NumWorkers; i++ {
		b.wg.Add(1)
		go b.worker()
	}

	b.logger.Info("event bus started", zap.Int("workers", config.NumWorkers), zap.Int("buffer_size", config.BufferSize))
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event := <-b.eventChan:
			start := time.Now()
			b.processEvent(event)
			b.trackLatency(time.Since(start).Nanoseconds())
		}
	}
}

func (b *Bus) processEvent(event Event) {
	b.mu.RLock()
	subs := b.subscribers[event.GetType()]
	allSubs := b.allSubscribers
	b.mu.RUnlock()

	dispatch := func(sub *Subscription) {
		if !sub.active.Load() {
			return
		}
		if sub.Options.Filter != nil && !sub.Options.Filter(event) {
			return
		}
		if sub.Options.Async {
			go b.executeHandler(sub, event)
		} else {
			b.executeHandler(sub, event)
		}
	}
	for _, sub := range subs {
		dispatch(sub)
	}
	for _, sub := range allSubs {
		dispatch(sub)
	}
	b.eventsProcessed.Add(1)
}

func (b *Bus) executeHandler(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.processingErrors.Add(1)
			b.logger.Error("event handler panic",
				zap.String("subscription_id", sub.ID),
				zap.String("event_type", string(event.GetType())),
				zap.Any("panic", r))
		}
	}()
	if err := sub.Handler(event); err != nil {
		b.processingErrors.Add(1)
		b.logger.Warn("event handler error",
			zap.String("subscription_id", sub.ID),
			zap.String("event_type", string(event.GetType())),
			zap.Error(err))
	}
}

func (b *Bus) trackLatency(latencyNs int64) {
	b.latencyMu.Lock()
	defer b.latencyMu.Unlock()

	b.latencies = append(b.latencies, latencyNs)
	if len(b.latencies) > 10000 {
		b.latencies = b.latencies[5000:]
	}

	if latencyNs > b.maxLatency.Load() {
		b.maxLatency.Store(latencyNs)
	}
	currentAvg := b.avgLatency.Load()
	b.avgLatency.Store((currentAvg*99 + latencyNs) / 100)
}

// Subscribe registers handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler, opts ...SubscriptionOptions) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	options := SubscriptionOptions{Async: true}
	if len(opts) > 0 {
		options = opts[0]
	}
	sub := &Subscription{ID: b.generateSubID(), EventType: eventType, Handler: handler, Options: options}
	sub.active.Store(true)
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.activeSubscribers.Add(1)
	return sub
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler EventHandler, opts ...SubscriptionOptions) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	options := SubscriptionOptions{Async: true}
	if len(opts) > 0 {
		options = opts[0]
	}
	sub := &Subscription{ID: b.generateSubID(), EventType: "*", Handler: handler, Options: options}
	sub.active.Store(true)
	b.allSubscribers = append(b.allSubscribers, sub)
	b.activeSubscribers.Add(1)
	return sub
}

// Unsubscribe deactivates sub; it is skipped by future dispatches.
func (b *Bus) Unsubscribe(sub *Subscription) {
	sub.active.Store(false)
	b.activeSubscribers.Add(-1)
}

// Publish enqueues event for async dispatch; if the buffer is full the
// oldest pending event is dropped to make room, and every drop is logged
// and counted in EventsDropped on Stats(). The bus reports no health state.
func (b *Bus) Publish(event Event) {
	select {
	case b.eventChan <- event:
		b.eventsPublished.Add(1)
	default:
		select {
		case <-b.eventChan:
			b.eventsDropped.Add(1)
		default:
		}
		select {
		case b.eventChan <- event:
			b.eventsPublished.Add(1)
		default:
			b.eventsDropped.Add(1)
		}
		b.logger.Warn("bus buffer full, dropped oldest event", zap.String("event_type", string(event.GetType())))
	}
}

// PublishSync dispatches event to subscribers synchronously.
func (b *Bus) PublishSync(event Event) {
	b.eventsPublished.Add(1)
	b.processEvent(event)
}

// Stats returns a snapshot of throughput/latency counters.
func (b *Bus) Stats() Stats {
	p99 := b.p99LatencyNs()
	return Stats{
		EventsPublished:   b.eventsPublished.Load(),
		EventsProcessed:   b.eventsProcessed.Load(),
		EventsDropped:     b.eventsDropped.Load(),
		ProcessingErrors:  b.processingErrors.Load(),
		AvgLatencyNs:      b.avgLatency.Load(),
		MaxLatencyNs:      b.maxLatency.Load(),
		P99LatencyNs:      p99,
		ActiveSubscribers: b.activeSubscribers.Load(),
	}
}

func (b *Bus) p99LatencyNs() int64 {
	b.latencyMu.Lock()
	defer b.latencyMu.Unlock()
	if len(b.latencies) == 0 {
		return 0
	}
	sorted := make([]int64, len(b.latencies))
	copy(sorted, b.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Stop cancels workers and waits up to 5s for drain.
func (b *Bus) Stop() {
	b.logger.Info("stopping event bus")
	b.cancel()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("event bus stopped", zap.Int64("processed", b.eventsProcessed.Load()), zap.Int64("dropped", b.eventsDropped.Load()))
	case <-time.After(5 * time.Second):
		b.logger.Warn("event bus stop timed out")
	}
}

func (b *Bus) generateSubID() string {
	id := b.subCounter.Add(1)
	return "sub_" + time.Now().Format("20060102150405") + "_" + itoa(id)
}

func (b *Bus) generateEventID() string {
	id := b.evtCounter.Add(1)
	return "evt_" + time.Now().Format("20060102150405") + "_" + itoa(id)
}

func itoa(i int64) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// NewOpportunityEvent builds an OpportunityEvent.
func (b *Bus) NewOpportunityEvent(opportunityID, strategy string, profitLamports uint64) *OpportunityEvent {
	return &OpportunityEvent{
		BaseEvent:      BaseEvent{ID: b.generateEventID(), Type: EventTypeOpportunityDetected, Timestamp: time.Now()},
		OpportunityID:  opportunityID,
		Strategy:       strategy,
		ProfitLamports: profitLamports,
	}
}

// NewSignalEvent builds a SignalEvent tagged approved or rejected.
func (b *Bus) NewSignalEvent(opportunityID, shieldStatus, reason string, approved bool) *SignalEvent {
	t := EventTypeSignalRejected
	if approved {
		t = EventTypeSignalApproved
	}
	return &SignalEvent{
		BaseEvent:     BaseEvent{ID: b.generateEventID(), Type: t, Timestamp: time.Now()},
		OpportunityID: opportunityID,
		ShieldStatus:  shieldStatus,
		Reason:        reason,
	}
}

// NewBundleEvent builds a BundleEvent.
func (b *Bus) NewBundleEvent(bundleID, status string, tipLamports uint64) *BundleEvent {
	eventType := EventTypeBundleSubmitted
	switch status {
	case "confirmed":
		eventType = EventTypeBundleConfirmed
	case "failed", "expired":
		eventType = EventTypeBundleFailed
	}
	return &BundleEvent{
		BaseEvent:   BaseEvent{ID: b.generateEventID(), Type: eventType, Timestamp: time.Now()},
		BundleID:    bundleID,
		Status:      status,
		TipLamports: tipLamports,
	}
}

// NewRiskAlertEvent builds a RiskAlertEvent.
func (b *Bus) NewRiskAlertEvent(alertType, severity, message string, value, threshold float64) *RiskAlertEvent {
	return &RiskAlertEvent{
		BaseEvent: BaseEvent{ID: b.generateEventID(), Type: EventTypeRiskAlert, Timestamp: time.Now()},
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		Value:     value,
		Threshold: threshold,
	}
}

// NewKillSwitchEvent builds a KillSwitchEvent.
func (b *Bus) NewKillSwitchEvent(trigger string, cooldown time.Duration) *KillSwitchEvent {
	now := time.Now()
	return &KillSwitchEvent{
		BaseEvent:     BaseEvent{ID: b.generateEventID(), Type: EventTypeKillSwitch, Timestamp: now},
		Trigger:       trigger,
		CooldownUntil: now.Add(cooldown),
		Duration:      cooldown,
	}
}

// NewShedEvent builds a ShedEvent for the named pipeline stage.
func (b *Bus) NewShedEvent(stage string) *ShedEvent {
	return &ShedEvent{
		BaseEvent: BaseEvent{ID: b.generateEventID(), Type: EventTypeShed, Timestamp: time.Now()},
		Stage:     stage,
	}
}
