package profile

import (
	"fmt"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// build validates a spec and returns the resolved profile with tier kinds filled in.
func build(id string, s Spec) (model.Profile, error) {
	p := model.Profile{
		ID:            id,
		MaxBudget:     s.MaxBudget,
		WarningRatio:  s.WarningRatio,
		CriticalRatio: s.CriticalRatio,
		Tiers:         make([]model.Tier, len(s.Tiers)),
	}
	for i, t := range s.Tiers {
		if t.Kind == "" {
			t.Kind = inferKind(t.Name)
		}
		p.Tiers[i] = t
	}
	if err := Validate(p); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// inferKind maps a tier name to its kind when the name is itself a kind.
func inferKind(name string) model.TierKind {
	if _, ok := model.KindRank[model.TierKind(name)]; ok {
		return model.TierKind(name)
	}
	return model.KindDetailed
}

// Validate checks that a profile satisfies every catalog invariant.
// Ratio checks are written so NaN fails them.
func Validate(p model.Profile) error {
	invalid := func(format string, args ...any) error {
		return &model.ProfileError{ProfileID: p.ID, Reason: fmt.Sprintf(format, args...)}
	}

	if p.ID == "" {
		return invalid("profile id is required")
	}
	if p.MaxBudget == 0 {
		return invalid("max_budget must be greater than zero")
	}
	if !(p.WarningRatio > 0 && p.WarningRatio < 1) {
		return invalid("warning_ratio %v must be in (0,1)", p.WarningRatio)
	}
	if !(p.CriticalRatio > p.WarningRatio && p.CriticalRatio < 1) {
		return invalid("critical_ratio %v must be in (warning_ratio,1)", p.CriticalRatio)
	}
	if len(p.Tiers) == 0 {
		return invalid("at least one tier is required")
	}

	seen := make(map[string]bool, len(p.Tiers))
	prev := 0.0
	for i, t := range p.Tiers {
		if t.Name == "" {
			return invalid("tiers[%d]: name is required", i)
		}
		if !model.ValidTierName(t.Name) {
			return invalid("tiers[%d]: name %q must use only letters, digits, '.', '-' and '_'", i, t.Name)
		}
		if model.IsReservedTier(t.Name) {
			return invalid("tiers[%d]: name %q is reserved", i, t.Name)
		}
		if seen[t.Name] {
			return invalid("tiers[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
		if !(t.Ratio > 0 && t.Ratio <= 1) {
			return invalid("tiers[%d]: ratio %v must be in (0,1]", i, t.Ratio)
		}
		if !(t.Ratio > prev) {
			return invalid("tiers[%d]: ratio %v must be greater than %v", i, t.Ratio, prev)
		}
		if _, ok := model.KindRank[t.Kind]; !ok {
			return invalid("tiers[%d]: unknown kind %q", i, t.Kind)
		}
		prev = t.Ratio
	}

	// Critical may sit above the last tier; at least one tier must still
	// sit above the Warning boundary.
	if !(p.WarningRatio < prev) {
		return invalid("warning_ratio %v must be below the highest tier ratio %v", p.WarningRatio, prev)
	}
	return nil
}
