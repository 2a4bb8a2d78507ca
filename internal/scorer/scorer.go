// Package scorer defines C3: narrow scorer capability ports plus trivial
// default implementations. Spec.md treats every ML/NLP/attestation
// component as a pluggable black box; these interfaces are the seam, and
// the defaults prove the pipeline is correct without a real model behind
// them (spec §4.3's explicit policy).
package scorer

import "context"

// SequenceScorer predicts a scalar outcome from a feature vector.
type SequenceScorer interface {
	Predict(ctx context.Context, features []float64) (value float64, confidence float64, err error)
}

// AnomalyScorer flags whether a feature vector is anomalous.
type AnomalyScorer interface {
	Score(ctx context.Context, features []float64) (isAnomaly bool, confidence float64, err error)
}

// TextScorer extracts sentiment/entities/topics from free text.
type TextScorer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

// Analysis is a TextScorer result.
type Analysis struct {
	Sentiment  float64 // -1..1
	Confidence float64 // 0..1
	Entities   []string
	Topics     []string
}

// Proof is an opaque attestation of one scored input/output pair.
type Proof struct {
	InputHash  string
	OutputHash string
	ModelMeta  string
	Valid      bool
}

// Attestor produces and verifies Proofs. A null implementation that
// always returns valid proofs lets the pipeline run with no real
// verifiable-computation backend, per spec §4.3.
type Attestor interface {
	Attest(ctx context.Context, inputHash, outputHash, modelMeta string) (Proof, error)
	Verify(ctx context.Context, p Proof) (bool, error)
}
