package risk

// strategyRiskWeight is the table-driven per-strategy risk weight from
// spec §4.5 step 4 (values 0.1-0.9), grounded on
// original_source/src/modules/risk.rs's `calculate_risk_score` match
// table, remapped onto this pipeline's eleven strategy names.
var strategyRiskWeight = map[string]float64{
	"arbitrage":              0.1,
	"front_run":              0.4,
	"back_run":               0.3,
	"liquidity_snipe":        0.6,
	"liquidation":            0.3,
	"liquidity_tsunami":      0.7,
	"social_fission":         0.8,
	"whale_shadowing":        0.6,
	"death_spiral_intercept": 0.9,
	"meme_virus":             0.8,
	"micro_lightning":        0.9,
}

// riskWeightFor returns the table weight, defaulting to the midpoint for
// any strategy name the table doesn't recognize rather than rejecting it
// outright.
func riskWeightFor(strategy string) float64 {
	if w, ok := strategyRiskWeight[strategy]; ok {
		return w
	}
	return 0.5
}
