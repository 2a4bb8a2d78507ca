// Package bundle implements C7: assembly of the real transaction plus
// decoy camouflage into an atomic Bundle, and its retried submission to
// a block-engine endpoint.
package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/rand"

	"go.uber.org/zap"

	"github.com/kineticshield/core/internal/scorer"
	"github.com/kineticshield/core/pkg/config"
	"github.com/kineticshield/core/pkg/types"
	"github.com/kineticshield/core/pkg/util"
)

// realTxPriority is the fixed, highest priority assigned to the real
// transaction of every bundle (spec §4.7 step 1).
const realTxPriority uint8 = 10

// RejectionRateSource reports the recent bundle-rejection rate the tip
// function's competition boost reads (spec §4.7 step 4, §9's explicit
// seam: "never reads competitor data" in this pipeline, but the
// interface is load-bearing so a future caller can wire one in).
type RejectionRateSource interface {
	RejectionRate() float64
}

// staticRejectionRate is the zero-value RejectionRateSource: always 0,
// matching the current pipeline's lack of a competition-signal feed.
type staticRejectionRate struct{}

func (staticRejectionRate) RejectionRate() float64 { return 0 }

// SlotSource supplies the current slot number the deterministic shuffle
// seeds from (spec §4.7 step 3: "seed derived from bundle ID and
// slot").
type SlotSource interface {
	CurrentSlot() uint64
}

// Builder assembles and submits bundles, grounded on teacher
// execution.Executor's retry/backoff shape generalized from an
// order-placement loop to a bundle-submission loop.
type Builder struct {
	logger    *zap.Logger
	cfg       config.BundleConfig
	decoys    *DecoyFactory
	submitter BundleSubmitter
	slots     SlotSource
	rejection RejectionRateSource
	attestor  scorer.Attestor
	rng       *rand.Rand
}

// Option configures optional Builder collaborators.
type Option func(*Builder)

// WithAttestor wires C3's attestation hook (spec §4.7's "Attestation
// hook" paragraph). Omit to run with no attestor configured, which is
// this pipeline's default (spec §4.3's null-attestor policy).
func WithAttestor(a scorer.Attestor) Option {
	return func(b *Builder) { b.attestor = a }
}

// WithRejectionRateSource overrides the default always-zero
// competition signal.
func WithRejectionRateSource(s RejectionRateSource) Option {
	return func(b *Builder) { b.rejection = s }
}

// NewBuilder constructs a Builder. slots supplies the current slot for
// shuffle seeding; submitter performs the actual network submission.
func NewBuilder(logger *zap.Logger, cfg config.BundleConfig, submitter BundleSubmitter, slots SlotSource, opts ...Option) *Builder {
	b := &Builder{
		logger:    logger.Named("bundle-builder"),
		cfg:       cfg,
		decoys:    NewDecoyFactory(),
		submitter: submitter,
		slots:     slots,
		rejection: staticRejectionRate{},
		rng:       rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildAndSubmit assembles and submits one Bundle for an approved
// signal, implementing spec §4.7's five-step algorithm plus its
// retry/attestation addenda.
func (b *Builder) BuildAndSubmit(ctx context.Context, signal *types.ApprovedSignal) (*types.Bundle, error) {
	bundleID := util.GenerateID("bundle")
	slot := b.slots.CurrentSlot()

	real := types.BundleTransaction{
		Tag:      types.TxTagReal,
		Priority: realTxPriority,
		Payload:  realPayload(signal),
	}

	decoyCount := b.cfg.DecoyCount
	txs := make([]types.BundleTransaction, 0, decoyCount+1)
	txs = append(txs, real)
	for i := 0; i < decoyCount; i++ {
		decoy, err := b.decoys.Build(i)
		if err != nil {
			return nil, err
		}
		txs = append(txs, decoy)
	}

	// Transactions are signed (payload bytes final) before the shuffle
	// runs, per DESIGN.md's Bundle Builder decision: order changes
	// below never touch payload bytes, so no signature is invalidated.
	shuffle(txs, bundleID, slot)

	tip := computeTip(signal.Opportunity.EstimatedProfit, b.cfg.MaxTipLamports, b.rejection.RejectionRate())

	bun := &types.Bundle{
		ID:              bundleID,
		Transactions:    txs,
		ExpirySlots:     b.cfg.ExpirySlots,
		TipLamports:     tip,
		ProtectionLevel: b.cfg.ProtectionLevel,
		Status:          types.BundleCreated,
	}

	b.attest(ctx, signal, bun)

	status, err := b.submit(ctx, bun)
	bun.Status = status
	if err != nil {
		b.logger.Warn("bundle submission failed",
			zap.String("bundle_id", bun.ID), zap.Error(err))
		return bun, err
	}
	return bun, nil
}

// submit performs the exponential-jittered retry of spec §4.7's
// "Failure & retry" paragraph: base 100ms, cap 2s, up to 3 attempts,
// short-circuiting on a non-retryable rejection.
func (b *Builder) submit(ctx context.Context, bun *types.Bundle) (types.BundleStatus, error) {
	backoff := util.BackoffConfig{
		Base:        b.cfg.SubmitRetryBase,
		Cap:         b.cfg.SubmitRetryCap,
		Multiplier:  2,
		MaxAttempts: b.cfg.SubmitMaxAttempts,
	}
	if backoff.MaxAttempts <= 0 {
		backoff.MaxAttempts = 3
	}

	status, err := util.Retry(ctx, backoff, b.rng, func(attempt int) (types.BundleStatus, error) {
		s, err := b.submitter.Submit(ctx, bun)
		if err != nil {
			return types.BundleFailed, err
		}
		return s, nil
	}, func(err error) bool {
		// Signature-invalid/expired rejections can never succeed on
		// retry (spec §4.7); terminate immediately instead of burning
		// the bundle's bounded expiry window on guaranteed failures.
		return errors.Is(err, ErrNonRetryable)
	})
	if err != nil {
		return types.BundleFailed, err
	}
	return status, nil
}

// attest runs C3's attestation hook if configured. Failure never
// blocks submission, per spec §4.7's explicit policy.
func (b *Builder) attest(ctx context.Context, signal *types.ApprovedSignal, bun *types.Bundle) {
	if b.attestor == nil {
		return
	}
	inputHash := hashOf(signal.Opportunity.ID)
	outputHash := hashOf(bun.ID)
	if _, err := b.attestor.Attest(ctx, inputHash, outputHash, "bundle-builder"); err != nil {
		b.logger.Warn("attestation failed, proceeding with submission",
			zap.String("bundle_id", bun.ID), zap.Error(err))
	}
}

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// realPayload derives opaque transaction bytes for the real leg from
// the approved signal's opportunity. The bytes themselves are never
// parsed by this pipeline; only their presence and Tag matter to
// the invariants spec §8 checks.
func realPayload(signal *types.ApprovedSignal) []byte {
	return []byte(signal.Opportunity.ID)
}
