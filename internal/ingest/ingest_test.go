package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/types"
)

func TestClassifySwap(t *testing.T) {
	raw := RawTx{
		Programs:     []string{"raydium-amm"},
		Instructions: []string{"swap_exact_in"},
	}
	assert.Equal(t, types.TxSwap, Classify(raw, ClassifyConfig{}))
}

func TestClassifyLiquidityAdd(t *testing.T) {
	raw := RawTx{
		Programs:     []string{"orca-whirlpool"},
		Instructions: []string{"initialize_pool"},
	}
	assert.Equal(t, types.TxLiquidityAdd, Classify(raw, ClassifyConfig{}))
}

func TestClassifyWhaleByDelta(t *testing.T) {
	raw := RawTx{
		FeeLamports: 5000,
		Deltas:      []types.AccountDelta{{Account: "w", Delta: -20_000_000_000}},
	}
	assert.Equal(t, types.TxWhale, Classify(raw, ClassifyConfig{WhaleDeltaLamports: 10_000_000_000}))
}

func TestClassifyMEVHintFallback(t *testing.T) {
	raw := RawTx{Hints: types.Hints{HasHint: true}}
	assert.Equal(t, types.TxMEVHint, Classify(raw, ClassifyConfig{}))
}

func TestClassifyOtherDefault(t *testing.T) {
	raw := RawTx{}
	assert.Equal(t, types.TxOther, Classify(raw, ClassifyConfig{}))
}

// fakeSource is an in-memory StreamSource for Service tests, avoiding any
// real network dial.
type fakeSource struct {
	mu      sync.Mutex
	ch      chan []byte
	health  SourceHealth
	stopped bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan []byte, 64), health: HealthHealthy}
}

func (f *fakeSource) Start(ctx context.Context) error { return nil }
func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		close(f.ch)
		f.stopped = true
	}
	return nil
}
func (f *fakeSource) Messages() <-chan []byte { return f.ch }
func (f *fakeSource) Health() SourceHealth {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}
func (f *fakeSource) setHealth(h SourceHealth) {
	f.mu.Lock()
	f.health = h
	f.mu.Unlock()
}

func decodeJSON(raw []byte) (RawTx, error) {
	var tx RawTx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return RawTx{}, errors.New("malformed")
	}
	return tx, nil
}

func TestServiceNextDrainsNonBlocking(t *testing.T) {
	mempool := newFakeSource()
	confirmed := newFakeSource()
	svc := NewService(zap.NewNop(), mempool, confirmed, decodeJSON, ClassifyConfig{}, 100)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	raw, _ := json.Marshal(RawTx{Signature: "sig1", Instructions: []string{"swap"}, Programs: []string{"raydium-amm"}})
	mempool.ch <- raw

	require.Eventually(t, func() bool {
		return len(svc.Next(0)) > 0
	}, time.Second, 5*time.Millisecond, "expected item to land in buffer")
}

func TestServiceCountsMalformed(t *testing.T) {
	mempool := newFakeSource()
	confirmed := newFakeSource()
	svc := NewService(zap.NewNop(), mempool, confirmed, decodeJSON, ClassifyConfig{}, 100)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	mempool.ch <- []byte("not json")

	require.Eventually(t, func() bool {
		return svc.MalformedCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestServiceHealthAggregation(t *testing.T) {
	mempool := newFakeSource()
	confirmed := newFakeSource()
	svc := NewService(zap.NewNop(), mempool, confirmed, decodeJSON, ClassifyConfig{}, 100)
	assert.Equal(t, Healthy, svc.Health())

	mempool.setHealth(HealthDegraded)
	assert.Equal(t, Degraded, svc.Health())

	confirmed.setHealth(HealthUnhealthy)
	mempool.setHealth(HealthUnhealthy)
	assert.Equal(t, Unhealthy, svc.Health())
}
