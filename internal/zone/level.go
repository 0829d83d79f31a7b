package zone

import (
	"math"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// snapEpsilon absorbs float noise when a ratio times the budget lands
// within rounding error of a whole unit (0.9 * 200000 is 180000, not 180001).
const snapEpsilon = 1e-9

// zoneRule maps a lower usage bound (inclusive) to the zone it opens.
type zoneRule struct {
	From  uint64
	Level model.Zone
}

// Threshold converts a budget ratio to the smallest whole usage value that
// reaches it: usage >= ratio*maxBudget  <=>  usage >= Threshold(ratio, maxBudget).
func Threshold(ratio float64, maxBudget uint64) uint64 {
	if ratio <= 0 {
		return 0
	}
	p := ratio * float64(maxBudget)
	// float64(MaxUint64) is 2^64, which does not convert back to uint64.
	if p >= float64(maxBudget) {
		return maxBudget
	}
	r := math.Round(p)
	if math.Abs(p-r) <= snapEpsilon*math.Max(1, p) {
		return uint64(r)
	}
	return uint64(math.Ceil(p))
}

// rules builds the boundary table for a profile, most severe first.
// Overflow is not a ratio boundary: it opens strictly above MaxBudget.
func rules(p model.Profile) []zoneRule {
	return []zoneRule{
		{From: Threshold(p.CriticalRatio, p.MaxBudget), Level: model.ZoneCritical},
		{From: Threshold(p.WarningRatio, p.MaxBudget), Level: model.ZoneWarning},
	}
}

// Classify maps cumulative usage to a zone under the given profile.
// Pure: identical inputs always yield the identical zone.
//
// INVARIANT: larger usage never classifies into a less severe zone.
func Classify(usage uint64, p model.Profile) model.Zone {
	if usage > p.MaxBudget {
		return model.ZoneOverflow
	}
	for _, r := range rules(p) {
		if usage >= r.From {
			return r.Level
		}
	}
	return model.ZoneNormal
}

// Bounds returns the usage values at which Warning and Critical begin.
func Bounds(p model.Profile) (warning, critical uint64) {
	rs := rules(p)
	return rs[1].From, rs[0].From
}
