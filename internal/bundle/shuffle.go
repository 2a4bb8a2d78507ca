package bundle

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"

	"github.com/kineticshield/core/pkg/types"
)

// seedFor derives a deterministic seed from (bundle ID, slot), per spec
// §4.7: "two independent invocations of the decoy shuffle produce
// identical orderings" for the same (bundle_id, slot) pair. FNV-1a
// matches the sharding hash already used in internal/state.
func seedFor(bundleID string, slot uint64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(bundleID))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], slot)
	_, _ = h.Write(buf[:])
	return int64(h.Sum64())
}

// shuffle deterministically permutes txs in place given (bundleID, slot).
// Transactions are signed before this runs (see DESIGN.md, Bundle
// Builder): only order changes here, never payload bytes, so a
// signature computed over a transaction's own content stays valid
// regardless of its final slot in the bundle.
func shuffle(txs []types.BundleTransaction, bundleID string, slot uint64) {
	if len(txs) <= 1 {
		return
	}
	rng := rand.New(rand.NewSource(seedFor(bundleID, slot)))
	rng.Shuffle(len(txs), func(i, j int) {
		txs[i], txs[j] = txs[j], txs[i]
	})
}
