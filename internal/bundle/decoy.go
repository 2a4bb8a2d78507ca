package bundle

import (
	"crypto/rand"
	"fmt"

	"github.com/kineticshield/core/pkg/types"
)

// DecoyStrategy names one of the five camouflage techniques a decoy
// transaction can be produced with (spec §4.7).
type DecoyStrategy string

const (
	DecoyRandomNoise         DecoyStrategy = "random_noise"
	DecoyVolumeMimicking     DecoyStrategy = "volume_mimicking"
	DecoyPatternObfuscation  DecoyStrategy = "pattern_obfuscation"
	DecoyTimingDisruption    DecoyStrategy = "timing_disruption"
	DecoyMultiLayer          DecoyStrategy = "multi_layer"
)

// decoyRotation is the fixed index-mod-5 rotation order spec §4.7 names.
var decoyRotation = [5]DecoyStrategy{
	DecoyRandomNoise,
	DecoyVolumeMimicking,
	DecoyPatternObfuscation,
	DecoyTimingDisruption,
	DecoyMultiLayer,
}

// DecoyFactory produces camouflage transactions, rotating strategy by
// index mod 5. Grounded on teacher `execution.ExchangeAdapter`'s small
// stateless-producer interface shape, generalized to a concrete struct
// since there is exactly one implementation in this pipeline.
type DecoyFactory struct{}

// NewDecoyFactory constructs the single rotating decoy producer.
func NewDecoyFactory() *DecoyFactory {
	return &DecoyFactory{}
}

// StrategyFor returns the rotation strategy for decoy index i.
func (DecoyFactory) StrategyFor(index int) DecoyStrategy {
	return decoyRotation[index%len(decoyRotation)]
}

// Build produces the index-th decoy transaction. Payload bytes are
// opaque filler; only the tag, priority, and strategy label carry
// meaning to the block engine's economics.
func (f *DecoyFactory) Build(index int) (types.BundleTransaction, error) {
	strategy := f.StrategyFor(index)
	payload := make([]byte, 64)
	if _, err := rand.Read(payload); err != nil {
		return types.BundleTransaction{}, fmt.Errorf("bundle: decoy payload: %w", err)
	}
	// Tag the strategy into the opaque payload's first bytes so a test
	// or operator inspecting a captured bundle can recover which
	// rotation slot produced it; the block engine itself never parses
	// decoy payloads.
	label := []byte(strategy)
	copy(payload, label)

	return types.BundleTransaction{
		Tag:      types.TxTagDecoy,
		Priority: decoyPriority(strategy),
		Payload:  payload,
	}, nil
}

// decoyPriority assigns a priority below the real transaction's fixed
// 10, varying modestly by strategy so decoys aren't visually uniform to
// an observer of the unshuffled fee schedule.
func decoyPriority(strategy DecoyStrategy) uint8 {
	switch strategy {
	case DecoyTimingDisruption:
		return 7
	case DecoyMultiLayer:
		return 6
	case DecoyVolumeMimicking:
		return 5
	case DecoyPatternObfuscation:
		return 4
	default:
		return 3
	}
}
