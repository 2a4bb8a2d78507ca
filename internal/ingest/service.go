package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/types"
)

// Decoder turns one raw wire message into a RawTx. Wire framing is
// adapter-defined per spec §6; Service only depends on this function type.
type Decoder func(raw []byte) (RawTx, error)

// Health is the component-level health for C1, aggregated from its two
// sources (spec §4.1: total loss of both sources flips Unhealthy, a
// single broken source is Degraded).
type Health int

const (
	Healthy Health = iota
	Degraded
	Unhealthy
)

// Service is C1: two StreamSources feeding one normalization/
// classification stage, with a bounded non-blocking drain queue.
type Service struct {
	logger      *zap.Logger
	mempool     StreamSource
	confirmed   StreamSource
	decode      Decoder
	classifyCfg ClassifyConfig

	mu       sync.Mutex
	buf      []*types.EnrichedTransaction
	capacity int

	malformedCount  int64
	droppedOverflow int64

	startNanos  int64
	baseWall    time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService constructs C1 over the given sources and decoder.
func NewService(logger *zap.Logger, mempool, confirmed StreamSource, decode Decoder, classifyCfg ClassifyConfig, bufferCapacity int) *Service {
	if bufferCapacity <= 0 {
		bufferCapacity = 10000
	}
	return &Service{
		logger:      logger,
		mempool:     mempool,
		confirmed:   confirmed,
		decode:      decode,
		classifyCfg: classifyCfg,
		buf:         make([]*types.EnrichedTransaction, 0, bufferCapacity),
		capacity:    bufferCapacity,
		baseWall:    time.Now(),
		startNanos:  time.Now().UnixNano(),
	}
}

// Start connects both sources and begins consuming their message channels.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.mempool.Start(ctx); err != nil {
		return err
	}
	if err := s.confirmed.Start(ctx); err != nil {
		return err
	}

	s.wg.Add(2)
	go s.consume(ctx, s.mempool)
	go s.consume(ctx, s.confirmed)
	return nil
}

func (s *Service) consume(ctx context.Context, src StreamSource) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-src.Messages():
			if !ok {
				return
			}
			s.handleRaw(raw)
		}
	}
}

func (s *Service) handleRaw(raw []byte) {
	rawTx, err := s.decode(raw)
	if err != nil {
		s.mu.Lock()
		s.malformedCount++
		s.mu.Unlock()
		return
	}
	tx := Enrich(rawTx, time.Now().UnixNano(), s.classifyCfg)
	s.push(tx)
}

func (s *Service) push(tx *types.EnrichedTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) >= s.capacity {
		// shed oldest per spec §5 back-pressure policy
		copy(s.buf, s.buf[1:])
		s.buf = s.buf[:len(s.buf)-1]
		s.droppedOverflow++
	}
	s.buf = append(s.buf, tx)
}

// Next drains up to max buffered items, non-blocking.
func (s *Service) Next(max int) []*types.EnrichedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max <= 0 || max > len(s.buf) {
		max = len(s.buf)
	}
	out := make([]*types.EnrichedTransaction, max)
	copy(out, s.buf[:max])
	s.buf = s.buf[max:]
	return out
}

// Health aggregates the two sources' health.
func (s *Service) Health() Health {
	m, c := s.mempool.Health(), s.confirmed.Health()
	if m == HealthUnhealthy && c == HealthUnhealthy {
		return Unhealthy
	}
	if m != HealthHealthy || c != HealthHealthy {
		return Degraded
	}
	return Healthy
}

// MalformedCount returns the number of dropped malformed messages.
func (s *Service) MalformedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.malformedCount
}

// DroppedOverflowCount returns the number of items shed by back-pressure.
func (s *Service) DroppedOverflowCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedOverflow
}

// Stop halts both sources and waits for consumers to drain.
func (s *Service) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	_ = s.mempool.Stop()
	_ = s.confirmed.Stop()
	s.wg.Wait()
	return nil
}
