package ingest

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kineticshield/core/pkg/util"
)

// SourceHealth is a stream source's own health, rolled up by Service into
// the component-level C1 health reported to C8.
type SourceHealth int

const (
	HealthHealthy SourceHealth = iota
	HealthDegraded
	HealthUnhealthy
)

// StreamSource is one long-lived upstream connection (mempool or
// confirmed-transaction feed). Messages delivers raw wire bytes; the
// source itself never parses them — that's RawTx/Classify's job.
type StreamSource interface {
	Start(ctx context.Context) error
	Stop() error
	Messages() <-chan []byte
	Health() SourceHealth
}

// WebsocketSource dials a single websocket endpoint and reconnects with
// full-jitter exponential backoff on disconnect (spec §4.1: base 250ms,
// cap 10s). Grounded on teacher blockchain.SolanaClient's dial/reconnect
// shape, generalized from a single always-on connection into a
// Start/Stop-able StreamSource with explicit health reporting.
type WebsocketSource struct {
	name    string
	url     string
	logger  *zap.Logger
	backoff util.BackoffConfig
	rng     *rand.Rand

	mu      sync.RWMutex
	conn    *websocket.Conn
	health  SourceHealth
	msgChan chan []byte
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWebsocketSource constructs a source that has not yet dialed.
func NewWebsocketSource(name, url string, logger *zap.Logger, backoff util.BackoffConfig) *WebsocketSource {
	return &WebsocketSource{
		name:    name,
		url:     url,
		logger:  logger,
		backoff: backoff,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		msgChan: make(chan []byte, 4096),
		health:  HealthDegraded,
	}
}

// Start begins the dial-read-reconnect loop in the background.
func (s *WebsocketSource) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

func (s *WebsocketSource) run(ctx context.Context) {
	defer s.wg.Done()
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.setHealth(HealthDegraded)
			s.logger.Warn("websocket dial failed", zap.String("source", s.name), zap.Error(err))
			if !s.sleepBackoff(ctx, attempt) {
				return
			}
			attempt++
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.setHealth(HealthHealthy)
		attempt = 0

		s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		s.setHealth(HealthDegraded)
	}
}

func (s *WebsocketSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		default:
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.logger.Warn("websocket read failed", zap.String("source", s.name), zap.Error(err))
			return
		}
		select {
		case s.msgChan <- msg:
		default:
			// back-pressure: drop the oldest pending message to make room
			// for this one and log the drop; the drop is not counted.
			select {
			case <-s.msgChan:
			default:
			}
			select {
			case s.msgChan <- msg:
			default:
			}
			s.logger.Warn("websocket buffer full, dropped oldest message", zap.String("source", s.name))
		}
	}
}

func (s *WebsocketSource) sleepBackoff(ctx context.Context, attempt int) bool {
	d := s.backoff.Delay(attempt, s.rng)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *WebsocketSource) setHealth(h SourceHealth) {
	s.mu.Lock()
	s.health = h
	s.mu.Unlock()
}

// Health reports the source's current connection health.
func (s *WebsocketSource) Health() SourceHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// Messages exposes the raw-message channel.
func (s *WebsocketSource) Messages() <-chan []byte { return s.msgChan }

// Stop cancels the dial loop and closes the active connection, if any.
func (s *WebsocketSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil {
		_ = conn.Close()
	}
	s.wg.Wait()
	return nil
}
