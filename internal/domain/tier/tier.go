// Package tier derives the named reputation band from a point total.
//
// The mapping is a pure step function over a fixed ascending threshold
// table. Boundary totals belong to the higher tier (inclusive lower bound),
// so exactly 1000 points is Silver, not Bronze.
package tier

// Tier is a named band of point totals.
type Tier string

// Tiers, lowest to highest.
const (
	Bronze   Tier = "BRONZE"
	Silver   Tier = "SILVER"
	Gold     Tier = "GOLD"
	Platinum Tier = "PLATINUM"
	Diamond  Tier = "DIAMOND"
	Master   Tier = "MASTER"
)

// step pairs a tier with its inclusive lower bound.
type step struct {
	tier Tier
	min  int64
}

// thresholds is ordered ascending; ForPoints walks it from the top.
var thresholds = []step{
	{Bronze, 0},
	{Silver, 1000},
	{Gold, 2500},
	{Platinum, 5000},
	{Diamond, 10000},
	{Master, 25000},
}

// ForPoints returns the tier for a point total. Negative totals clamp to
// Bronze; a ledger can decay below zero when compensations outpace fresh
// engagement.
func ForPoints(points int64) Tier {
	for i := len(thresholds) - 1; i > 0; i-- {
		if points >= thresholds[i].min {
			return thresholds[i].tier
		}
	}
	return Bronze
}

// All returns the tiers in ascending order.
func All() []Tier {
	out := make([]Tier, len(thresholds))
	for i, s := range thresholds {
		out[i] = s.tier
	}
	return out
}

// Min returns the inclusive lower bound for a tier, or 0 for unknown tiers.
func Min(t Tier) int64 {
	for _, s := range thresholds {
		if s.tier == t {
			return s.min
		}
	}
	return 0
}
