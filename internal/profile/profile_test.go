package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/budgetwatch/internal/model"
)

func validSpec() Spec {
	return Spec{
		MaxBudget:     200000,
		WarningRatio:  0.75,
		CriticalRatio: 0.90,
		Tiers: []model.Tier{
			{Ratio: 0.25, Name: "quick"},
			{Ratio: 0.50, Name: "detailed"},
			{Ratio: 0.75, Name: "major"},
			{Ratio: 0.875, Name: "final"},
		},
	}
}

func requireInvalid(t *testing.T, s Spec) {
	t.Helper()
	_, err := NewCatalog(map[string]Spec{"bad": s})
	if !errors.Is(err, model.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
	var pe *model.ProfileError
	if !errors.As(err, &pe) || pe.ProfileID != "bad" {
		t.Fatalf("expected ProfileError for %q, got %v", "bad", err)
	}
}

// --- Builtin tests ---

func TestBuiltinsLoad(t *testing.T) {
	c, err := LoadFile("")
	if err != nil {
		t.Fatalf("failed to load built-ins: %v", err)
	}
	for _, id := range []string{"context-200k", "context-1m", "api-calls"} {
		if _, err := c.Resolve(id); err != nil {
			t.Errorf("expected built-in %s: %v", id, err)
		}
	}
}

func TestBuiltinContext200kThresholds(t *testing.T) {
	c, err := LoadFile("")
	if err != nil {
		t.Fatal(err)
	}
	p, err := c.Resolve("context-200k")
	if err != nil {
		t.Fatal(err)
	}
	if p.MaxBudget != 200000 || p.WarningRatio != 0.75 || p.CriticalRatio != 0.90 {
		t.Errorf("unexpected ceilings: %+v", p)
	}
	names := []string{"quick", "detailed", "major", "final"}
	if len(p.Tiers) != len(names) {
		t.Fatalf("expected %d tiers, got %d", len(names), len(p.Tiers))
	}
	for i, n := range names {
		if p.Tiers[i].Name != n {
			t.Errorf("tier %d: expected %s, got %s", i, n, p.Tiers[i].Name)
		}
		if string(p.Tiers[i].Kind) != n {
			t.Errorf("tier %d: expected inferred kind %s, got %s", i, n, p.Tiers[i].Kind)
		}
	}
}

// --- Catalog tests ---

func TestResolveUnknown(t *testing.T) {
	c, err := NewCatalog(map[string]Spec{"a": validSpec()})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Resolve("nonexistent")
	if !errors.Is(err, model.ErrUnknownProfile) {
		t.Errorf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	c, err := NewCatalog(map[string]Spec{"a": validSpec()})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := c.Resolve("a")
	p.Tiers[0].Name = "mutated"

	again, _ := c.Resolve("a")
	if again.Tiers[0].Name != "quick" {
		t.Error("catalog was mutated through a resolved profile")
	}
}

func TestUnknownNameInfersDetailed(t *testing.T) {
	s := validSpec()
	s.Tiers[1].Name = "midpoint"
	c, err := NewCatalog(map[string]Spec{"a": s})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := c.Resolve("a")
	if p.Tiers[1].Kind != model.KindDetailed {
		t.Errorf("expected detailed, got %s", p.Tiers[1].Kind)
	}
}

func TestIDsSorted(t *testing.T) {
	c, err := NewCatalog(map[string]Spec{"b": validSpec(), "a": validSpec(), "c": validSpec()})
	if err != nil {
		t.Fatal(err)
	}
	ids := c.IDs()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("expected sorted ids, got %v", ids)
	}
}

func TestHashStable(t *testing.T) {
	c1, _ := NewCatalog(map[string]Spec{"a": validSpec(), "b": validSpec()})
	c2, _ := NewCatalog(map[string]Spec{"b": validSpec(), "a": validSpec()})
	if c1.Hash() != c2.Hash() {
		t.Error("hash must not depend on map order")
	}

	changed := validSpec()
	changed.MaxBudget = 1
	changed.Tiers = []model.Tier{{Ratio: 1, Name: "quick"}}
	c3, err := NewCatalog(map[string]Spec{"a": changed, "b": validSpec()})
	if err != nil {
		t.Fatal(err)
	}
	if c3.Hash() == c1.Hash() {
		t.Error("hash must change with profile content")
	}
}

// --- Validation tests ---

func TestInvalidZeroBudget(t *testing.T) {
	s := validSpec()
	s.MaxBudget = 0
	requireInvalid(t, s)
}

func TestInvalidWarningNotBelowCritical(t *testing.T) {
	s := validSpec()
	s.WarningRatio = 0.9
	s.CriticalRatio = 0.9
	requireInvalid(t, s)
}

func TestInvalidWarningOutOfRange(t *testing.T) {
	s := validSpec()
	s.WarningRatio = 0
	requireInvalid(t, s)
}

func TestInvalidNonIncreasingTiers(t *testing.T) {
	s := validSpec()
	s.Tiers[2].Ratio = 0.5
	requireInvalid(t, s)
}

func TestInvalidTierAboveOne(t *testing.T) {
	s := validSpec()
	s.Tiers[3].Ratio = 1.2
	requireInvalid(t, s)
}

func TestInvalidWarningAboveLastTier(t *testing.T) {
	s := validSpec()
	s.WarningRatio = 0.88
	s.CriticalRatio = 0.95
	requireInvalid(t, s)
}

func TestCriticalAboveLastTierAllowed(t *testing.T) {
	// critical 0.90 with a last tier at 0.875
	if _, err := NewCatalog(map[string]Spec{"ok": validSpec()}); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}
}

func TestInvalidNoTiers(t *testing.T) {
	s := validSpec()
	s.Tiers = nil
	requireInvalid(t, s)
}

func TestInvalidDuplicateTierName(t *testing.T) {
	s := validSpec()
	s.Tiers[1].Name = "quick"
	requireInvalid(t, s)
}

func TestInvalidReservedTierName(t *testing.T) {
	s := validSpec()
	s.Tiers[0].Name = model.TierHandoff
	requireInvalid(t, s)
}

func TestInvalidTierNameNotPathSafe(t *testing.T) {
	for _, name := range []string{"wrap up", "a/b", "../x", ".quick"} {
		s := validSpec()
		s.Tiers[0].Name = name
		requireInvalid(t, s)
	}
}

func TestInvalidUnknownKind(t *testing.T) {
	s := validSpec()
	s.Tiers[0].Kind = "urgent"
	requireInvalid(t, s)
}

func TestOneInvalidFailsWholeCatalog(t *testing.T) {
	bad := validSpec()
	bad.MaxBudget = 0
	c, err := NewCatalog(map[string]Spec{"good": validSpec(), "bad": bad})
	if err == nil || c != nil {
		t.Fatal("expected no catalog when any profile is invalid")
	}
}

// --- File tests ---

func TestLoadFileOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `profiles:
  context-200k:
    max_budget: 100
    warning_ratio: 0.5
    critical_ratio: 0.8
    tiers:
      - ratio: 0.9
        name: final
  custom:
    max_budget: 10
    warning_ratio: 0.5
    critical_ratio: 0.6
    tiers:
      - ratio: 1.0
        name: done
        kind: final
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	p, _ := c.Resolve("context-200k")
	if p.MaxBudget != 100 {
		t.Errorf("expected override max_budget=100, got %d", p.MaxBudget)
	}
	custom, err := c.Resolve("custom")
	if err != nil {
		t.Fatal(err)
	}
	if custom.Tiers[0].Kind != model.KindFinal {
		t.Errorf("expected explicit kind final, got %s", custom.Tiers[0].Kind)
	}
	if _, err := c.Resolve("api-calls"); err != nil {
		t.Error("expected untouched built-ins to remain")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("profiles: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestInitProfileTemplateIsValid(t *testing.T) {
	specs, err := Parse([]byte(InitProfile("my-profile")))
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	if _, err := NewCatalog(specs); err != nil {
		t.Fatalf("template does not validate: %v", err)
	}
	if _, ok := specs["my-profile"]; !ok {
		t.Error("expected template to use the given name")
	}
}
