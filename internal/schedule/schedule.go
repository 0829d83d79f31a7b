// Package schedule decides which checkpoint tiers are newly due for a session.
package schedule

import (
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/zone"
)

// DueTiers returns every tier whose threshold the session's usage has reached
// and that has not fired yet, lowest threshold first.
//
// A single large delta that crosses several thresholds yields all of them in
// one call; no tier is skipped. DueTiers itself is pure: the caller makes
// firing idempotent by recording returned tiers in the session's FiredTiers.
func DueTiers(s model.Session, p model.Profile) []model.Tier {
	var due []model.Tier
	for _, t := range p.Tiers {
		if s.FiredTiers[t.Name] {
			continue
		}
		if zone.Threshold(t.Ratio, p.MaxBudget) <= s.Usage {
			due = append(due, t)
		}
	}
	return due
}

// Next returns the lowest unfired tier the session has not reached yet and
// how many units remain until it fires. ok is false when none remain.
func Next(s model.Session, p model.Profile) (tier model.Tier, remaining uint64, ok bool) {
	for _, t := range p.Tiers {
		if s.FiredTiers[t.Name] {
			continue
		}
		at := zone.Threshold(t.Ratio, p.MaxBudget)
		if at > s.Usage {
			return t, at - s.Usage, true
		}
	}
	return model.Tier{}, 0, false
}

// MostSevere returns the tier with the highest threshold in due.
// Tiers are evaluated in ascending order, so that is the last element.
func MostSevere(due []model.Tier) (model.Tier, bool) {
	if len(due) == 0 {
		return model.Tier{}, false
	}
	return due[len(due)-1], true
}
