package scorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kineticshield/core/pkg/util"
)

// MeanSequenceScorer predicts the arithmetic mean of the feature vector
// with a confidence inversely proportional to its spread — a trivial
// stand-in for a real sequence model (spec §4.3 policy).
type MeanSequenceScorer struct{}

func (MeanSequenceScorer) Predict(_ context.Context, features []float64) (float64, float64, error) {
	if len(features) == 0 {
		return 0, 0, nil
	}
	mean := util.Mean(features)
	sd := util.StdDev(features)
	confidence := 1.0 / (1.0 + sd)
	return mean, util.ClampFloat(confidence, 0, 1), nil
}

// ZScoreAnomalyScorer flags the last feature as anomalous when it is at
// least Threshold standard deviations from the mean of the rest. When the
// rest have zero spread, any difference from their mean is flagged.
type ZScoreAnomalyScorer struct {
	Threshold float64 // default 3.0
}

func NewZScoreAnomalyScorer() ZScoreAnomalyScorer {
	return ZScoreAnomalyScorer{Threshold: 3.0}
}

func (z ZScoreAnomalyScorer) Score(_ context.Context, features []float64) (bool, float64, error) {
	if len(features) < 2 {
		return false, 0, nil
	}
	last := features[len(features)-1]
	rest := features[:len(features)-1]
	mean := util.Mean(rest)
	sd := util.StdDev(rest)
	if sd == 0 {
		if last == mean {
			return false, 0, nil
		}
		return true, 1, nil
	}
	zscore := (last - mean) / sd
	if zscore < 0 {
		zscore = -zscore
	}
	isAnomaly := zscore >= z.Threshold
	confidence := util.ClampFloat(zscore/z.Threshold, 0, 1)
	return isAnomaly, confidence, nil
}

var bullishWords = []string{"moon", "pump", "bullish", "buy", "gem", "send", "ape"}
var bearishWords = []string{"rug", "dump", "scam", "bearish", "sell", "honeypot"}

// KeywordTextScorer is a trivial lexicon-matching TextScorer: counts
// bullish vs. bearish keywords and reports a confidence proportional to
// how many keywords fired, per spec §4.3's "keyword matching" example.
type KeywordTextScorer struct{}

func (KeywordTextScorer) Analyze(_ context.Context, text string) (Analysis, error) {
	lower := strings.ToLower(text)
	bull, bear := 0, 0
	for _, w := range bullishWords {
		if strings.Contains(lower, w) {
			bull++
		}
	}
	for _, w := range bearishWords {
		if strings.Contains(lower, w) {
			bear++
		}
	}
	total := bull + bear
	var sentiment, confidence float64
	if total > 0 {
		sentiment = float64(bull-bear) / float64(total)
		confidence = util.ClampFloat(float64(total)/5.0, 0, 1)
	}
	return Analysis{Sentiment: sentiment, Confidence: confidence}, nil
}

// NullAttestor always returns valid proofs, per spec §4.3's "null-
// attestation impl returns always-valid proofs". It hashes inputs purely
// for traceability, not for any cryptographic guarantee.
type NullAttestor struct{}

func (NullAttestor) Attest(_ context.Context, inputHash, outputHash, modelMeta string) (Proof, error) {
	return Proof{InputHash: inputHash, OutputHash: outputHash, ModelMeta: modelMeta, Valid: true}, nil
}

func (NullAttestor) Verify(_ context.Context, p Proof) (bool, error) {
	return p.Valid, nil
}

// HashFeatures is a small helper for callers building an attestation
// input hash from a feature vector without depending on a specific
// model's internal representation.
func HashFeatures(features []float64) string {
	h := sha256.New()
	for _, f := range features {
		h.Write([]byte{byte(int64(f * 1e6))})
	}
	return hex.EncodeToString(h.Sum(nil))
}
