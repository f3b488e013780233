package model

// FeeSchedule holds the maker/taker rates active for one fee tier.
type FeeSchedule struct {
	Maker float64 `json:"maker"`
	Taker float64 `json:"taker"`
	Tier  int     `json:"tier"`
}

// feeTiers is the venue's published volume-tier schedule. Rates step down
// monotonically; tiers 3 and above share the cheapest rates.
var feeTiers = []FeeSchedule{
	{Maker: 0.0002, Taker: 0.0005},
	{Maker: 0.00015, Taker: 0.0004},
	{Maker: 0.0001, Taker: 0.0003},
	{Maker: 0.00005, Taker: 0.0002},
}

// FeeScheduleForTier returns the rate schedule for the given tier. The tier
// identifier is preserved as requested; rates for out-of-range tiers clamp
// to the nearest defined schedule.
func FeeScheduleForTier(tier int) FeeSchedule {
	idx := tier
	if idx < 0 {
		idx = 0
	}
	if idx >= len(feeTiers) {
		idx = len(feeTiers) - 1
	}
	s := feeTiers[idx]
	s.Tier = tier
	return s
}
