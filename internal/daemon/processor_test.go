package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/profile"
	"github.com/ppiankov/budgetwatch/internal/session"
	"github.com/ppiankov/budgetwatch/internal/sink"
)

func setupProcessorDirs(t *testing.T) DirConfig {
	t.Helper()
	root := t.TempDir()
	cfg := DirConfig{
		Inbox:   filepath.Join(root, "inbox"),
		Results: filepath.Join(root, "results"),
		State:   filepath.Join(root, "state"),
	}
	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return cfg
}

func newTestManager(t *testing.T, s sink.Sink) *session.Manager {
	t.Helper()
	catalog, err := profile.LoadFile("")
	if err != nil {
		t.Fatalf("load built-in profiles: %v", err)
	}
	return session.NewManager(catalog, s)
}

func writeRequestFile(t *testing.T, dir, name string, body any) string {
	t.Helper()
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write request: %v", err)
	}
	return path
}

func readResult(t *testing.T, dirs DirConfig, id string) Result {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dirs.Results, id+".json"))
	if err != nil {
		t.Fatalf("read result %s: %v", id, err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return r
}

func TestProcessorInvalidJSON(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(dirs, newTestManager(t, nil))

	path := filepath.Join(dirs.Inbox, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	// Processing should write a failed result, not return error.
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	result := readResult(t, dirs, "bad")
	if result.Status != ResultFailed {
		t.Errorf("status = %q, want %q", result.Status, ResultFailed)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("request file should leave the inbox")
	}
}

func TestProcessorStartAndReport(t *testing.T) {
	dirs := setupProcessorDirs(t)
	mem := sink.NewMemory()
	p := NewProcessor(dirs, newTestManager(t, mem))

	path := writeRequestFile(t, dirs.Inbox, "batch-001", []Request{
		{Op: OpStart, Profile: "context-200k", SessionID: "s1"},
		{Op: OpReport, SessionID: "s1", Delta: 60000},
	})
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("Process: %v", err)
	}

	result := readResult(t, dirs, "batch-001")
	if result.Status != ResultDone {
		t.Fatalf("status = %q, want %q (%+v)", result.Status, ResultDone, result.Outcomes)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
	report := result.Outcomes[1]
	if len(report.Obligations) != 1 || report.Obligations[0].Tier != "quick" {
		t.Fatalf("expected quick obligation, got %+v", report.Obligations)
	}
	if report.Session == nil || report.Session.Usage != 60000 {
		t.Fatalf("expected session usage 60000, got %+v", report.Session)
	}
	if got := mem.Obligations(); len(got) != 1 {
		t.Fatalf("expected 1 delivered obligation, got %d", len(got))
	}

	if _, err := os.Stat(filepath.Join(dirs.ProcessedDir(), "batch-001.json")); err != nil {
		t.Errorf("request file should be archived: %v", err)
	}
}

func TestProcessorStartGeneratesSessionID(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(dirs, newTestManager(t, nil))

	path := writeRequestFile(t, dirs.Inbox, "start", Request{Op: OpStart, Profile: "api-calls"})
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	result := readResult(t, dirs, "start")
	if result.Outcomes[0].SessionID == "" || result.Outcomes[0].Session == nil {
		t.Fatalf("expected generated session, got %+v", result.Outcomes[0])
	}
}

func TestProcessorPartialFailure(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(dirs, newTestManager(t, nil))

	path := writeRequestFile(t, dirs.Inbox, "mixed", []Request{
		{Op: OpStart, Profile: "context-200k", SessionID: "s1"},
		{Op: OpReport, SessionID: "s1", Delta: -1},
		{Op: OpReport, SessionID: "missing", Delta: 1},
	})
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	result := readResult(t, dirs, "mixed")
	if result.Status != ResultPartial {
		t.Fatalf("status = %q, want %q", result.Status, ResultPartial)
	}
	if result.Outcomes[1].Error == "" || result.Outcomes[2].Error == "" {
		t.Fatalf("expected errors on requests 2 and 3, got %+v", result.Outcomes)
	}
}

func TestProcessorNotesThenComplete(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(dirs, newTestManager(t, nil))

	path := writeRequestFile(t, dirs.Inbox, "finish", []Request{
		{Op: OpStart, Profile: "context-200k", SessionID: "s1"},
		{Op: OpNotes, SessionID: "s1", Notes: &model.ProgressNotes{NextSteps: []string{"ship"}}},
		{Op: OpReport, SessionID: "s1", Delta: 150000},
		{Op: OpComplete, SessionID: "s1", Notes: &model.ProgressNotes{Completed: []string{"ship"}}},
	})
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	result := readResult(t, dirs, "finish")
	if result.Status != ResultDone {
		t.Fatalf("status = %q: %+v", result.Status, result.Outcomes)
	}
	report := result.Outcomes[2]
	if len(report.Obligations) != 3 {
		t.Fatalf("expected quick, detailed and major, got %+v", report.Obligations)
	}
	complete := result.Outcomes[3]
	if len(complete.Obligations) != 1 || complete.Obligations[0].Tier != model.TierCompletion {
		t.Fatalf("expected completion obligation, got %+v", complete.Obligations)
	}
	if complete.Session.State != model.StateCompleted {
		t.Fatalf("expected completed session, got %s", complete.Session.State)
	}
}

func TestProcessorHandOff(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(dirs, newTestManager(t, nil))

	path := writeRequestFile(t, dirs.Inbox, "handoff", []Request{
		{Op: OpStart, Profile: "context-200k", SessionID: "s1"},
		{Op: OpHandOff, SessionID: "s1", Reason: "rotating agent"},
	})
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	result := readResult(t, dirs, "handoff")
	out := result.Outcomes[1]
	if len(out.Obligations) != 1 || out.Obligations[0].Reason != "rotating agent" {
		t.Fatalf("expected handoff obligation with reason, got %+v", out.Obligations)
	}
	if out.Session.State != model.StateHandedOff {
		t.Fatalf("expected handed_off, got %s", out.Session.State)
	}
}

func TestProcessorUndelivered(t *testing.T) {
	dirs := setupProcessorDirs(t)
	mem := sink.NewMemory()
	mem.Fail = func(model.Obligation) error { return errors.New("sink down") }
	p := NewProcessor(dirs, newTestManager(t, mem))

	path := writeRequestFile(t, dirs.Inbox, "undelivered", []Request{
		{Op: OpStart, Profile: "context-200k", SessionID: "s1"},
		{Op: OpReport, SessionID: "s1", Delta: 50000},
	})
	if err := p.Process(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	result := readResult(t, dirs, "undelivered")
	if len(result.Outcomes[1].Undelivered) != 1 {
		t.Fatalf("expected 1 undelivered obligation, got %+v", result.Outcomes[1])
	}
}

func TestProcessorRejectsSymlink(t *testing.T) {
	dirs := setupProcessorDirs(t)
	p := NewProcessor(dirs, newTestManager(t, nil))

	target := filepath.Join(t.TempDir(), "target.json")
	if err := os.WriteFile(target, []byte(`{"op":"start","profile":"api-calls"}`), 0600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dirs.Inbox, "link.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := p.Process(context.Background(), link); err == nil {
		t.Fatal("expected symlink to be rejected")
	}
}
