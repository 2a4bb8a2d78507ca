// Command kineticshield runs the full Kinetic Shield pipeline: streaming
// ingest, behavioral state, multi-strategy detection, the risk gate,
// wallet routing, and atomic bundle submission, grounded on teacher
// cmd/server/main.go's flag parsing, logger construction, component
// wiring order, and signal-based graceful shutdown sequence.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kineticshield/core/internal/api"
	"github.com/kineticshield/core/internal/bundle"
	"github.com/kineticshield/core/internal/events"
	"github.com/kineticshield/core/internal/ingest"
	"github.com/kineticshield/core/internal/metrics"
	"github.com/kineticshield/core/internal/risk"
	"github.com/kineticshield/core/internal/scorer"
	"github.com/kineticshield/core/internal/state"
	"github.com/kineticshield/core/internal/strategy"
	"github.com/kineticshield/core/internal/wallet"
	"github.com/kineticshield/core/internal/workers"
	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
	"github.com/kineticshield/core/pkg/util"
)

// Exit codes per spec §6's named constants.
const (
	exitOK            = 0
	exitUsage         = 64 // EX_USAGE
	exitConfig        = 65 // EX_DATAERR (malformed/invalid config)
	exitUnavailable   = 69 // EX_UNAVAILABLE (a required dependency never came up)
	exitSoftware      = 70 // EX_SOFTWARE (internal invariant violation)
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	logLevel := flag.String("log-level", "", "Override logging.level (debug, info, warn, error)")
	initialCapital := flag.Uint64("capital-lamports", 100_000_000_000, "Starting operator capital, in lamports")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(exitUsage)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(exitConfig)
	}

	logger := setupLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("starting kinetic shield",
		zap.Uint64("capital_lamports", *initialCapital),
		zap.String("block_engine_url", cfg.Bundle.BlockEngineURL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := metrics.NewRegistry(cfg.Metrics.Namespace)

	bus := events.NewBus(logger, events.DefaultBusConfig())
	defer bus.Stop()

	pool := workers.NewPool(logger, workers.DefaultPoolConfig("kineticshield-strategy"))
	pool.SetObserver(strategyPoolObserver{registry: registry})
	pool.Start()
	defer pool.Stop()

	stateStore := state.NewStore(logger, cfg.State)
	stateStore.Start(ctx)
	defer stateStore.Stop()

	strategyRegistry := strategy.NewDefaultRegistry(cfg)
	orchestrator := strategy.NewOrchestrator(logger, strategyRegistry, pool,
		time.Duration(cfg.Strategy.OpportunityTimeoutMs)*time.Millisecond)

	shield := risk.NewShield(logger, cfg.Risk, float64(*initialCapital))

	seedWallets := seedWalletPool(*initialCapital)
	walletRouter := wallet.NewRouter(logger, cfg.Wallet, seedWallets)
	walletRouter.Start(ctx)
	defer walletRouter.Stop()

	submitter := bundle.NewRPCSubmitter(cfg.Bundle.BlockEngineURL)
	builder := bundle.NewBuilder(logger, cfg.Bundle, submitter, fixedSlotSource{},
		bundle.WithAttestor(scorer.NullAttestor{}))

	ingestSvc, err := buildIngestService(logger, cfg.Ingest)
	if err != nil {
		logger.Error("ingest init failed", zap.Error(err))
		os.Exit(exitUnavailable)
	}
	if err := ingestSvc.Start(ctx); err != nil {
		logger.Error("ingest start failed", zap.Error(err))
		os.Exit(exitUnavailable)
	}
	defer ingestSvc.Stop()

	adminState := &debugState{wallets: walletRouter, shield: shield, bus: bus}
	adminServer := api.NewServer(logger, cfg.Admin, registry, adminState)
	go func() {
		if err := adminServer.Start(); err != nil {
			logger.Error("admin server error", zap.Error(err))
		}
	}()

	pipeline := &runLoop{
		logger:       logger,
		ingest:       ingestSvc,
		store:        stateStore,
		orchestrator: orchestrator,
		shield:       shield,
		wallets:      walletRouter,
		builder:      builder,
		metrics:      registry,
		bus:          bus,
	}
	go pipeline.run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := adminServer.Stop(shutdownCtx); err != nil {
		logger.Error("admin server shutdown error", zap.Error(err))
	}

	logger.Info("kinetic shield stopped")
	os.Exit(exitOK)
}

// runLoop polls C1's buffered output, pushes each transaction through
// C2-C7 in sequence, and records outcomes against C8. Grounded on
// teacher cmd/server/main.go's polling goroutines wrapping each
// long-running service.
type runLoop struct {
	logger       *zap.Logger
	ingest       *ingest.Service
	store        *state.Store
	orchestrator *strategy.Orchestrator
	shield       *risk.Shield
	wallets      *wallet.Router
	builder      *bundle.Builder
	metrics      *metrics.Registry
	bus          *events.Bus
}

func (r *runLoop) run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	tickExits := time.NewTicker(time.Second)
	defer tickExits.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, tx := range r.ingest.Next(256) {
				r.processOne(ctx, tx)
			}
		case now := <-tickExits.C:
			r.processTick(ctx, now)
		}
	}
}

// processTick drives every strategy's time-based exit/phase-transition
// logic (spec §4.4's on_tick contract: DeathSpiralIntercept's 90s hard
// exit, MicroLightning's 55-minute hard cap). Tick-derived opportunities
// carry no C2 snapshot, so they run the risk gate with an empty Update
// (unknown volatility, zero battlefield conditions).
func (r *runLoop) processTick(ctx context.Context, now time.Time) {
	for _, opp := range r.orchestrator.Tick(now) {
		r.metrics.RecordProcessed(metrics.ComponentStrategy)
		r.bus.Publish(r.bus.NewOpportunityEvent(opp.ID, opp.Strategy, opp.EstimatedProfit))
		r.processOpportunity(ctx, opp, state.Update{})
	}
}

func (r *runLoop) processOne(ctx context.Context, tx *types.EnrichedTransaction) {
	r.metrics.RecordProcessed(metrics.ComponentIngest)

	update, ok := r.store.Ingest(tx)
	if !ok {
		return
	}
	r.metrics.RecordProcessed(metrics.ComponentState)

	opportunities := r.orchestrator.Dispatch(&update)
	for _, opp := range opportunities {
		r.metrics.RecordProcessed(metrics.ComponentStrategy)
		r.bus.Publish(r.bus.NewOpportunityEvent(opp.ID, opp.Strategy, opp.EstimatedProfit))
		r.processOpportunity(ctx, opp, update)
	}
}

func (r *runLoop) processOpportunity(ctx context.Context, opp *types.Opportunity, update state.Update) {
	volatility := volatilityFor(update)
	battlefield := battlefieldFor(update)

	signal := r.shield.Approve(opp, volatility, battlefield)
	if signal == nil {
		r.metrics.RecordFailed(metrics.ComponentRisk)
		r.bus.Publish(r.bus.NewSignalEvent(opp.ID, r.shield.State().String(), "rejected by risk gate", false))
		return
	}
	r.metrics.RecordApproved(metrics.ComponentRisk)
	r.bus.Publish(r.bus.NewSignalEvent(opp.ID, r.shield.State().String(), "", true))

	selection, err := r.wallets.Select(wallet.Criteria{Strategy: opp.Strategy})
	if err != nil {
		r.logger.Warn("no eligible wallet for approved signal", zap.String("opportunity", opp.ID), zap.Error(err))
		r.metrics.RecordFailed(metrics.ComponentWallet)
		return
	}
	r.metrics.RecordApproved(metrics.ComponentWallet)

	if err := r.wallets.RecordExposureChange(selection.Wallet.ID, int64(signal.ApprovedQuantity), 1); err != nil {
		r.logger.Warn("exposure bookkeeping failed", zap.String("wallet", selection.Wallet.ID), zap.Error(err))
		return
	}

	start := time.Now()
	bun, err := r.builder.BuildAndSubmit(ctx, signal)
	r.metrics.RecordLatency(metrics.ComponentBundle, time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordError(metrics.ComponentBundle)
		r.logger.Warn("bundle submission failed", zap.String("opportunity", opp.ID), zap.Error(err))
		r.bus.Publish(r.bus.NewBundleEvent("", "failed", 0))
		return
	}
	r.metrics.RecordSubmitted(metrics.ComponentBundle)
	r.bus.Publish(r.bus.NewBundleEvent(bun.ID, string(bun.Status), bun.TipLamports))
	r.logger.Info("bundle submitted",
		zap.String("bundle_id", bun.ID),
		zap.String("status", string(bun.Status)),
		zap.Int("decoys", bun.DecoyCount()))
}

// volatilityFor derives a volatility reading for the risk gate from the
// pool's monotonically recomputed flag set, since no dedicated
// volatility-index component exists in this pipeline (spec.md names no
// separate volatility source beyond the risk gate's own consumption of
// it). unknownVolatility's "missing metric = worst case" sentinel
// handling in internal/risk covers the no-pool case.
func volatilityFor(update state.Update) float64 {
	if update.Pool == nil {
		return -1
	}
	if update.Pool.HasFlag(types.FlagHighVolatility) {
		return 0.75
	}
	return 0.1
}

// battlefieldFor derives the MicroLightning "battlefield" liquidity/
// holder snapshot from the pool analytics already tracked by C2.
func battlefieldFor(update state.Update) risk.BattlefieldConditions {
	if update.Pool == nil {
		return risk.BattlefieldConditions{}
	}
	return risk.BattlefieldConditions{
		LiquidityLamports: update.Pool.CumulativeVol,
		MinLiquidity:      0,
		Holders:           0,
		MinHolders:        0,
	}
}

// strategyPoolObserver adapts workers.Pool's per-task completion
// notifications onto C8's metrics registry, tagging every strategy
// dispatch as internal/metrics.ComponentStrategy.
type strategyPoolObserver struct {
	registry *metrics.Registry
}

func (o strategyPoolObserver) Observed(latency time.Duration, err error) {
	o.registry.RecordLatency(metrics.ComponentStrategy, latency.Seconds())
	if err != nil {
		o.registry.RecordError(metrics.ComponentStrategy)
		return
	}
	o.registry.RecordProcessed(metrics.ComponentStrategy)
	o.registry.RecordSuccess(metrics.ComponentStrategy)
}

// fixedSlotSource is a placeholder SlotSource: real slot tracking lives
// in an RPC client outside this pipeline's retrieved scope; shuffle
// determinism only needs a source that is stable within one process
// run, which a monotonic counter would break (spec §4.7 pins the seed
// to (bundle_id, slot), not a free-running counter).
type fixedSlotSource struct{}

func (fixedSlotSource) CurrentSlot() uint64 { return 0 }

// seedWalletPool builds the initial wallet pool wired into the router.
// Real key material is operator-provided via environment variables at
// deploy time per spec §6; this only mints the stub IDs/pubkeys and
// splits capital across a representative set of roles, including the
// fixed five-wallet MicroLightning set.
func seedWalletPool(capitalLamports uint64) []*types.Wallet {
	now := time.Now()
	micro := wallet.NewMicroLightningSet(capitalLamports/4, now, 24*time.Hour)

	general := []*types.Wallet{
		{
			ID:                 util.GenerateID("w"),
			Role:               types.RoleHFT,
			Status:             types.WalletActive,
			BalanceLamports:    capitalLamports / 4,
			MaxExposurePct:     decimal.NewFromFloat(0.3),
			StrategyAllocation: map[string]decimal.Decimal{"arbitrage": decimal.NewFromInt(80), "front_run": decimal.NewFromInt(60), "back_run": decimal.NewFromInt(50)},
			CreatedAt:          now,
			NextRotation:       now.Add(24 * time.Hour),
		},
		{
			ID:                 util.GenerateID("w"),
			Role:               types.RoleArbitrage,
			Status:             types.WalletActive,
			BalanceLamports:    capitalLamports / 4,
			MaxExposurePct:     decimal.NewFromFloat(0.25),
			StrategyAllocation: map[string]decimal.Decimal{"arbitrage": decimal.NewFromInt(90), "liquidity_snipe": decimal.NewFromInt(40)},
			CreatedAt:          now,
			NextRotation:       now.Add(24 * time.Hour),
		},
		{
			ID:                 util.GenerateID("w"),
			Role:               types.RoleConservative,
			Status:             types.WalletActive,
			BalanceLamports:    capitalLamports / 4,
			MaxExposurePct:     decimal.NewFromFloat(0.1),
			StrategyAllocation: map[string]decimal.Decimal{"liquidation": decimal.NewFromInt(70), "liquidity_snipe": decimal.NewFromInt(30)},
			CreatedAt:          now,
			NextRotation:       now.Add(24 * time.Hour),
		},
	}

	for i := range micro.Wallets {
		micro.Wallets[i].StrategyAllocation = map[string]decimal.Decimal{"micro_lightning": decimal.NewFromInt(100)}
	}

	return append(general, micro.Wallets[:]...)
}

// buildIngestService wires C1 over websocket sources per spec §6's
// external-interface table; decode is a minimal JSON normalizer since
// wire framing is adapter-defined and out of this pipeline's retrieved
// scope.
func buildIngestService(logger *zap.Logger, cfg config.IngestConfig) (*ingest.Service, error) {
	backoff := util.BackoffConfig{Base: cfg.ReconnectBase, Cap: cfg.ReconnectCap, Multiplier: 2, MaxAttempts: 0}
	mempool := ingest.NewWebsocketSource("mempool", cfg.MempoolWSURL, logger, backoff)
	confirmed := ingest.NewWebsocketSource("confirmed", cfg.ConfirmedWSURL, logger, backoff)

	decode := func(raw []byte) (ingest.RawTx, error) {
		var tx ingest.RawTx
		if err := json.Unmarshal(raw, &tx); err != nil {
			return ingest.RawTx{}, fmt.Errorf("decode raw tx: %w", err)
		}
		return tx, nil
	}

	classifyCfg := ingest.ClassifyConfig{WhaleDeltaLamports: cfg.WhaleDeltaLamports}
	return ingest.NewService(logger, mempool, confirmed, decode, classifyCfg, 10000), nil
}

// debugState implements api.StateProvider over the live wallet router
// and shield, for the /debug/state admin endpoint.
type debugState struct {
	wallets *wallet.Router
	shield  *risk.Shield
	bus     *events.Bus
}

func (d *debugState) DebugState() map[string]interface{} {
	return map[string]interface{}{
		"wallets":    d.wallets.Snapshot(),
		"state":      d.shield.State().String(),
		"violations": d.shield.Violations(),
		"eventBus":   d.bus.Stats(),
	}
}

func setupLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoding := cfg.Format
	if encoding == "" {
		encoding = "console"
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	zapCfg.EncoderConfig.TimeKey = "time"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		// zap.Config.Build only fails on a malformed static config; this
		// is a programming error, not an operator-facing one.
		panic(err)
	}
	return logger
}
