package budgetwatch

import (
	"context"
	"errors"
	"testing"
)

func TestMeterReportsUsage(t *testing.T) {
	c, _ := newTestClient(t)
	id := startSession(t, c, "context-200k")

	calls := 0
	step := c.Meter(id, func(context.Context) (int64, error) {
		calls++
		return 30000, nil
	})

	res, err := step(context.Background())
	if err != nil {
		t.Fatalf("first step: %v", err)
	}
	if len(res.Obligations) != 0 || res.Session.Usage != 30000 {
		t.Fatalf("unexpected first result %+v", res)
	}

	res, err = step(context.Background())
	if err != nil {
		t.Fatalf("second step: %v", err)
	}
	if len(res.Obligations) != 1 || res.Obligations[0].Tier != "quick" {
		t.Fatalf("expected quick after 60000, got %+v", res.Obligations)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestMeterJoinsFunctionError(t *testing.T) {
	c, _ := newTestClient(t)
	id := startSession(t, c, "api-calls")
	boom := errors.New("upstream 503")

	step := c.Meter(id, func(context.Context) (int64, error) {
		return 6000, boom
	})
	res, err := step(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected function error, got %v", err)
	}
	if res.Session.Usage != 6000 || len(res.Obligations) != 1 {
		t.Fatalf("usage must be reported despite the error, got %+v", res)
	}
}

func TestMeterWithNotes(t *testing.T) {
	c, _ := newTestClient(t)
	id := startSession(t, c, "context-200k")

	step := c.Meter(id, func(context.Context) (int64, error) {
		return 160000, nil
	}, MeterWithNotes(func() Notes {
		return Notes{InProgress: []string{"indexing"}}
	}))
	res, err := step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(res.Obligations) != 3 {
		t.Fatalf("expected three obligations, got %+v", res.Obligations)
	}
	if got := res.Obligations[2].Document.InProgress; len(got) != 1 || got[0] != "indexing" {
		t.Errorf("notes not carried into major checkpoint: %v", got)
	}
}

func TestMeterRefusesTerminalSession(t *testing.T) {
	c, _ := newTestClient(t)
	id := startSession(t, c, "api-calls")
	if _, err := c.Complete(context.Background(), id, Notes{Completed: []string{"x"}}); err != nil {
		t.Fatal(err)
	}

	called := false
	step := c.Meter(id, func(context.Context) (int64, error) {
		called = true
		return 1, nil
	})
	if _, err := step(context.Background()); !errors.Is(err, ErrSessionTerminal) {
		t.Fatalf("expected ErrSessionTerminal, got %v", err)
	}
	if called {
		t.Error("function ran against a terminal session")
	}
}

func TestMeterUnknownSession(t *testing.T) {
	c, _ := newTestClient(t)
	step := c.Meter("ghost", func(context.Context) (int64, error) { return 1, nil })
	if _, err := step(context.Background()); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}
