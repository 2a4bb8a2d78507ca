package state

import (
	"time"

	"github.com/kineticshield/core/pkg/types"
	"github.com/kineticshield/core/pkg/util"
)

// whaleKey identifies one (wallet, token) pair's behavior ring.
func whaleKey(wallet, token string) string { return wallet + "|" + token }

// ingestWhale pushes one observation into the (wallet, token) ring and
// recomputes the behavior label as a pure function of the ring contents
// (spec §4.2).
func (s *Store) ingestWhale(wallet, token string, accumulation bool, volumeLamports uint64, holdingsShare float64, at time.Time, sig string) *types.WhaleProfile {
	return s.whales.withLock(whaleKey(wallet, token),
		func() *types.WhaleProfile {
			return &types.WhaleProfile{WalletID: wallet, TokenID: token, Behavior: types.BehaviorUnknown}
		},
		func(p *types.WhaleProfile) *types.WhaleProfile {
			p.Ring = append(p.Ring, types.WhaleRingEntry{
				Timestamp: at, Signature: sig, Accumulation: accumulation, VolumeLamports: volumeLamports,
			})
			if len(p.Ring) > s.cfg.WhaleRingCapacity {
				excess := len(p.Ring) - s.cfg.WhaleRingCapacity
				p.Ring = append([]types.WhaleRingEntry(nil), p.Ring[excess:]...)
			}
			p.HoldingsShare = holdingsShare
			p.LastActivity = at
			p.Behavior = classifyBehavior(p.Ring)
			p.RiskScore = preDumpRiskScore(p.Ring, at, s.cfg.PreDumpMinTxs, s.cfg.PreDumpWindow, s.cfg.PreDumpStdDevMax)
			return p
		})
}

// classifyBehavior is a pure function of the ring: fewer than 5 entries is
// Unknown; otherwise the accumulation share over the whole ring buckets
// into Accumulator/Dumper/Swing/Hodler per spec §4.2's thresholds.
func classifyBehavior(ring []types.WhaleRingEntry) types.BehaviorLabel {
	if len(ring) < 5 {
		return types.BehaviorUnknown
	}
	accum := 0
	for _, e := range ring {
		if e.Accumulation {
			accum++
		}
	}
	share := float64(accum) / float64(len(ring))
	switch {
	case share >= 0.8:
		return types.BehaviorAccumulator
	case share <= 0.2:
		return types.BehaviorDumper
	case share >= 0.4 && share <= 0.6:
		return types.BehaviorSwing
	default:
		return types.BehaviorHodler
	}
}

// preDumpRiskScore returns 1.0 when the ring exhibits the pre-dump pattern
// (≥ minTxs transactions within window AND volume stddev below threshold),
// else 0.0. C4's strategies read this via the WhaleProfile snapshot to
// decide whether to emit a PreDump-triggered opportunity.
func preDumpRiskScore(ring []types.WhaleRingEntry, now time.Time, minTxs int, window time.Duration, stdDevMax float64) float64 {
	cutoff := now.Add(-window)
	var volumes []float64
	count := 0
	for _, e := range ring {
		if !e.Timestamp.Before(cutoff) {
			count++
			volumes = append(volumes, float64(e.VolumeLamports))
		}
	}
	if count < minTxs {
		return 0
	}
	if util.StdDev(volumes) > stdDevMax*util.Mean(volumes) {
		return 0
	}
	return 1.0
}

// WhaleSnapshot returns a copy-on-read handle to the (wallet, token)
// profile, or nil if no observations exist yet.
func (s *Store) WhaleSnapshot(wallet, token string) *types.WhaleProfile {
	p, ok := s.whales.get(whaleKey(wallet, token))
	if !ok {
		return nil
	}
	cp := *p
	cp.Ring = append([]types.WhaleRingEntry(nil), p.Ring...)
	return &cp
}
