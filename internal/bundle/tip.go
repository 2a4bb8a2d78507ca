package bundle

// computeTip implements spec §4.7 step 4: a monotone non-decreasing
// function of estimated profit, capped at maxTipLamports, further
// boosted by a competition signal (recent bundle-rejection rate, 0..1).
//
// The rejection-rate boost is a seam per spec §9 ("tip optimization
// mentions competitor-awareness but never reads competitor data"): it
// is wired here so the function is genuinely monotone in both inputs,
// but nothing in this pipeline yet feeds it a non-zero rejectionRate.
func computeTip(estimatedProfitLamports uint64, maxTipLamports uint64, rejectionRate float64) uint64 {
	if rejectionRate < 0 {
		rejectionRate = 0
	}
	if rejectionRate > 1 {
		rejectionRate = 1
	}

	// Base tip: 1% of estimated profit, floor 5000 lamports so a bundle
	// is never submitted with zero fee incentive.
	base := estimatedProfitLamports / 100
	if base < 5000 {
		base = 5000
	}

	// Competition boost: up to +50% more as the rejection rate climbs
	// to 1.0. Integer math keeps the function monotone without float
	// rounding surprises near the cap.
	boost := base * uint64(rejectionRate*50) / 100
	tip := base + boost

	if maxTipLamports > 0 && tip > maxTipLamports {
		tip = maxTipLamports
	}
	return tip
}
