package zone

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

// --- Threshold tests ---

func TestThresholdExact(t *testing.T) {
	if got := Threshold(0.75, 200000); got != 150000 {
		t.Errorf("expected 150000, got %d", got)
	}
	if got := Threshold(0.875, 200000); got != 175000 {
		t.Errorf("expected 175000, got %d", got)
	}
}

func TestThresholdSnapsFloatNoise(t *testing.T) {
	// 0.9 is not representable exactly; the product must not round up to 180001.
	if got := Threshold(0.9, 200000); got != 180000 {
		t.Errorf("expected 180000, got %d", got)
	}
	if got := Threshold(0.1, 30); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestThresholdRoundsUpFractions(t *testing.T) {
	// 0.5 * 3 = 1.5 → usage 2 is the first whole value that reaches it
	if got := Threshold(0.5, 3); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestThresholdNeverExceedsBudget(t *testing.T) {
	// ratio 1.0 of MaxUint64 is 2^64 in float64; it must clamp to the budget.
	if got := Threshold(1.0, math.MaxUint64); got != math.MaxUint64 {
		t.Errorf("expected MaxUint64, got %d", got)
	}
	if got := Threshold(1.0, 10000); got != 10000 {
		t.Errorf("expected 10000, got %d", got)
	}
	if got := Threshold(0.5, math.MaxUint64); got < math.MaxUint64/2 {
		t.Errorf("half of MaxUint64 came out as %d", got)
	}
}

func TestClassifyNearUint64Limit(t *testing.T) {
	p := model.Profile{MaxBudget: math.MaxUint64, WarningRatio: 0.75, CriticalRatio: 0.9}
	if got := Classify(1<<63, p); got != model.ZoneNormal {
		t.Errorf("half the budget should be Normal, got %v", got)
	}
	if got := Classify(math.MaxUint64, p); got != model.ZoneCritical {
		t.Errorf("usage at the ceiling should be Critical, got %v", got)
	}
}

// --- Classify tests ---

func TestClassifyBoundaries(t *testing.T) {
	p := context200kProfile()
	tests := []struct {
		usage uint64
		want  model.Zone
	}{
		{0, model.ZoneNormal},
		{149999, model.ZoneNormal},
		{150000, model.ZoneWarning},
		{179999, model.ZoneWarning},
		{180000, model.ZoneCritical},
		{200000, model.ZoneCritical},
		{200001, model.ZoneOverflow},
	}
	for _, tt := range tests {
		if got := Classify(tt.usage, p); got != tt.want {
			t.Errorf("Classify(%d) = %v, want %v", tt.usage, got, tt.want)
		}
	}
}

func TestClassifyIsPure(t *testing.T) {
	p := context200kProfile()
	first := Classify(175000, p)
	for i := 0; i < 100; i++ {
		if got := Classify(175000, p); got != first {
			t.Fatalf("classification changed between calls: %v vs %v", first, got)
		}
	}
}

func TestClassifyMonotonic(t *testing.T) {
	p := context200kProfile()
	prev := model.ZoneNormal
	for usage := uint64(0); usage <= 210000; usage += 997 {
		z := Classify(usage, p)
		if z < prev {
			t.Fatalf("zone decreased at usage %d: %v → %v", usage, prev, z)
		}
		prev = z
	}
	if prev != model.ZoneOverflow {
		t.Errorf("expected to end in Overflow, got %v", prev)
	}
}

func TestBounds(t *testing.T) {
	w, c := Bounds(context200kProfile())
	if w != 150000 || c != 180000 {
		t.Errorf("expected 150000/180000, got %d/%d", w, c)
	}
}
