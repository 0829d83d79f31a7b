package schedule

import (
	"math"
	"testing"

	"github.com/ppiankov/budgetwatch/internal/model"
)

func context200kProfile() model.Profile {
	return model.Profile{
		ID:            "context-200k",
		MaxBudget:     200000,
		WarningRatio:  0.75,
		CriticalRatio: 0.90,
		Tiers: []model.Tier{
			{Ratio: 0.25, Name: "quick", Kind: model.KindQuick},
			{Ratio: 0.50, Name: "detailed", Kind: model.KindDetailed},
			{Ratio: 0.75, Name: "major", Kind: model.KindMajor},
			{Ratio: 0.875, Name: "final", Kind: model.KindFinal},
		},
	}
}

func names(tiers []model.Tier) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = t.Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- DueTiers tests ---

func TestDueTiersNoneBelowFirstThreshold(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 49999
	if due := DueTiers(*s, context200kProfile()); len(due) != 0 {
		t.Errorf("expected no due tiers, got %v", names(due))
	}
}

func TestDueTiersExactThreshold(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 50000
	due := DueTiers(*s, context200kProfile())
	if !equal(names(due), []string{"quick"}) {
		t.Errorf("expected [quick], got %v", names(due))
	}
}

func TestDueTiersLargeJumpReturnsAllAscending(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 160000 // crosses quick, detailed, major
	due := DueTiers(*s, context200kProfile())
	want := []string{"quick", "detailed", "major"}
	if !equal(names(due), want) {
		t.Errorf("expected %v, got %v", want, names(due))
	}
}

func TestDueTiersSkipsFired(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 160000
	s.FiredTiers["quick"] = true
	s.FiredTiers["detailed"] = true
	due := DueTiers(*s, context200kProfile())
	if !equal(names(due), []string{"major"}) {
		t.Errorf("expected [major], got %v", names(due))
	}
}

func TestDueTiersUnfiredLowerTierStillReturned(t *testing.T) {
	// A tier left unfired by a rejected batch is retried on the next report.
	s := model.NewSession("test", "p")
	s.Usage = 180000
	s.FiredTiers["quick"] = true
	s.FiredTiers["detailed"] = true
	due := DueTiers(*s, context200kProfile())
	want := []string{"major", "final"}
	if !equal(names(due), want) {
		t.Errorf("expected %v, got %v", want, names(due))
	}
}

func TestDueTiersAllFiredReturnsNone(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 500000
	for _, tier := range context200kProfile().Tiers {
		s.FiredTiers[tier.Name] = true
	}
	if due := DueTiers(*s, context200kProfile()); len(due) != 0 {
		t.Errorf("expected none, got %v", names(due))
	}
}

// --- Next tests ---

func TestNextReportsRemaining(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 60000
	s.FiredTiers["quick"] = true

	tier, remaining, ok := Next(*s, context200kProfile())
	if !ok {
		t.Fatal("expected a next tier")
	}
	if tier.Name != "detailed" {
		t.Errorf("expected detailed, got %s", tier.Name)
	}
	if remaining != 40000 {
		t.Errorf("expected 40000 remaining, got %d", remaining)
	}
}

func TestNextNoneLeft(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 175000
	for _, tier := range context200kProfile().Tiers {
		s.FiredTiers[tier.Name] = true
	}
	if _, _, ok := Next(*s, context200kProfile()); ok {
		t.Error("expected no next tier")
	}
}

func TestMostSevere(t *testing.T) {
	due := context200kProfile().Tiers[:3]
	tier, ok := MostSevere(due)
	if !ok || tier.Name != "major" {
		t.Errorf("expected major, got %v %v", tier.Name, ok)
	}
	if _, ok := MostSevere(nil); ok {
		t.Error("expected false for empty input")
	}
}

func TestDueTiersFullRatioAtUint64Limit(t *testing.T) {
	p := model.Profile{
		MaxBudget:     math.MaxUint64,
		WarningRatio:  0.5,
		CriticalRatio: 0.8,
		Tiers:         []model.Tier{{Ratio: 1.0, Name: "exhausted", Kind: model.KindQuick}},
	}
	s := model.NewSession("s1", "huge")

	s.Usage = 1 << 63
	if got := DueTiers(*s, p); len(got) != 0 {
		t.Fatalf("tier at ratio 1.0 fired at half the budget: %v", names(got))
	}
	s.Usage = math.MaxUint64
	if got := names(DueTiers(*s, p)); !equal(got, []string{"exhausted"}) {
		t.Fatalf("expected exhausted at the ceiling, got %v", got)
	}
}
