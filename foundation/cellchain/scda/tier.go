package scda

// Tier thresholds over the complexity index. An account sits in tier 1 below
// the first threshold and moves up a tier each time its complexity index
// crosses the next one. Tiers never move down.
const (
	Tier2Threshold = 10.0
	Tier3Threshold = 100.0
	Tier4Threshold = 1000.0
)

// MaxTier is the highest tier an account can reach.
const MaxTier = 4

// energyCaps bounds the energy an account can hold per tier.
var energyCaps = map[int]float64{
	1: 1_000,
	2: 5_000,
	3: 20_000,
	4: 100_000,
}

// tierBonuses is the one time energy bonus granted when an account first
// reaches the tier.
var tierBonuses = map[int]float64{
	2: 100,
	3: 500,
	4: 2_500,
}

// TierForComplexity returns the tier the specified complexity index falls
// in. This is a pure step function of the fixed thresholds.
func TierForComplexity(complexity float64) int {
	switch {
	case complexity >= Tier4Threshold:
		return 4
	case complexity >= Tier3Threshold:
		return 3
	case complexity >= Tier2Threshold:
		return 2
	default:
		return 1
	}
}

// EnergyCap returns the maximum energy an account in the specified tier can
// hold.
func EnergyCap(tier int) float64 {
	if cap, exists := energyCaps[tier]; exists {
		return cap
	}
	return energyCaps[1]
}

// TierBonus returns the one time energy bonus for reaching the specified
// tier.
func TierBonus(tier int) float64 {
	return tierBonuses[tier]
}
