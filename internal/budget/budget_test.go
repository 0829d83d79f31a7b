package budget

import (
	"errors"
	"math"
	"testing"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// --- Apply tests ---

func TestApplyAccumulates(t *testing.T) {
	s := model.NewSession("test", "p")

	for _, d := range []int64{50000, 50000, 25000} {
		if _, err := Apply(s, d); err != nil {
			t.Fatalf("Apply(%d): %v", d, err)
		}
	}
	if s.Usage != 125000 {
		t.Errorf("expected 125000, got %d", s.Usage)
	}
}

func TestApplyZeroDelta(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 10

	got, err := Apply(s, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
}

func TestApplyNegativeDeltaRejected(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 100

	_, err := Apply(s, -5)
	if !errors.Is(err, model.ErrNegativeDelta) {
		t.Fatalf("expected ErrNegativeDelta, got %v", err)
	}
	if s.Usage != 100 {
		t.Errorf("usage changed on rejected delta: %d", s.Usage)
	}
}

func TestApplyTerminalRejected(t *testing.T) {
	for _, state := range []model.SessionState{model.StateCompleted, model.StateHandedOff} {
		s := model.NewSession("test", "p")
		s.State = state

		_, err := Apply(s, 1)
		if !errors.Is(err, model.ErrSessionTerminal) {
			t.Errorf("%s: expected ErrSessionTerminal, got %v", state, err)
		}
		if s.Usage != 0 {
			t.Errorf("%s: usage changed on terminal session", state)
		}
	}
}

func TestApplyOverflowCheckedBeforeAdd(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = math.MaxUint64 - 10

	_, err := Apply(s, 11)
	if !errors.Is(err, model.ErrUsageOverflow) {
		t.Fatalf("expected ErrUsageOverflow, got %v", err)
	}
	if s.Usage != math.MaxUint64-10 {
		t.Errorf("usage wrapped: %d", s.Usage)
	}

	if _, err := Apply(s, 10); err != nil {
		t.Fatalf("adding up to the max must succeed: %v", err)
	}
}

func TestApplyNoClampAtCeiling(t *testing.T) {
	s := model.NewSession("test", "p")
	if _, err := Apply(s, 250000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Usage != 250000 {
		t.Errorf("expected usage beyond ceiling to be recorded, got %d", s.Usage)
	}
}

// --- Snapshot tests ---

func TestSnapshotWithinBudget(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 50000
	u := Snapshot(*s, model.Profile{MaxBudget: 200000})

	if u.Remaining != 150000 {
		t.Errorf("expected 150000 remaining, got %d", u.Remaining)
	}
	if u.Ratio != 0.25 {
		t.Errorf("expected ratio 0.25, got %f", u.Ratio)
	}
	if u.Exceeded {
		t.Error("expected not exceeded")
	}
}

func TestSnapshotExceeded(t *testing.T) {
	s := model.NewSession("test", "p")
	s.Usage = 200001
	u := Snapshot(*s, model.Profile{MaxBudget: 200000})

	if u.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", u.Remaining)
	}
	if !u.Exceeded {
		t.Error("expected exceeded")
	}
}
