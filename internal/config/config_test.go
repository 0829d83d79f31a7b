package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/budgetwatch/internal/ledger"
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/profile"
	"github.com/ppiankov/budgetwatch/internal/sink"
	"github.com/ppiankov/budgetwatch/internal/webhook"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "budgetwatch.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- Load tests ---

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, hash, err := LoadConfigWithHash("/nonexistent/path/budgetwatch.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if !cfg.Sinks.Ledger.Enabled || cfg.Sinks.SQLite.Enabled {
		t.Errorf("expected ledger-only defaults, got %+v", cfg.Sinks)
	}
	if hash != hashBytes(nil) {
		t.Errorf("expected empty-input hash, got %s", hash)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
sinks:
  sqlite:
    enabled: true
    path: `+filepath.Join(dir, "cp.db")+`
daemon:
  workers: 8
  poll_interval: 500ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Sinks.SQLite.Enabled || cfg.Sinks.SQLite.Path != filepath.Join(dir, "cp.db") {
		t.Errorf("unexpected sqlite config %+v", cfg.Sinks.SQLite)
	}
	if !cfg.Sinks.Ledger.Enabled {
		t.Error("unspecified sections must keep defaults")
	}
	if cfg.Daemon.Workers != 8 || cfg.Daemon.PollInterval != 500*time.Millisecond {
		t.Errorf("unexpected daemon config %+v", cfg.Daemon)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "sinks: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHashTracksContent(t *testing.T) {
	_, h1, err := LoadConfigWithHash(writeConfig(t, "server:\n  listen: 127.0.0.1:1\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, h2, err := LoadConfigWithHash(writeConfig(t, "server:\n  listen: 127.0.0.1:2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 || !strings.HasPrefix(h1, "sha256:") {
		t.Errorf("expected distinct sha256 hashes, got %s %s", h1, h2)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Errorf("unexpected expansion %s", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("absolute path changed: %s", got)
	}
}

// --- Catalog tests ---

func TestCatalogMergesProfiles(t *testing.T) {
	path := writeConfig(t, `
profiles:
  small:
    max_budget: 1000
    warning_ratio: 0.5
    critical_ratio: 0.8
    tiers:
      - ratio: 0.6
        name: quick
      - ratio: 0.9
        name: final
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	c, err := cfg.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Resolve("small"); err != nil {
		t.Errorf("expected configured profile: %v", err)
	}
	if _, err := c.Resolve("context-200k"); err != nil {
		t.Errorf("expected built-ins kept: %v", err)
	}
}

func TestCatalogRejectsInvalidProfile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiles = map[string]profile.Spec{"bad": {MaxBudget: 0}}
	if _, err := cfg.Catalog(); err == nil {
		t.Fatal("expected invalid profile error")
	}
}

// --- Sink tests ---

func TestBuildSinkNone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.Ledger.Enabled = false
	s, err := cfg.BuildSink()
	if err != nil || s != nil {
		t.Fatalf("expected no sink, got %v %v", s, err)
	}
}

func TestBuildSinkLedgerOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.Ledger.Path = filepath.Join(t.TempDir(), "ledger.jsonl")
	s, err := cfg.BuildSink()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*ledger.Ledger); !ok {
		t.Errorf("expected a single ledger sink, got %T", s)
	}
}

func TestBuildSinkAll(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Sinks.Ledger.Path = filepath.Join(dir, "ledger.jsonl")
	cfg.Sinks.SQLite = SQLiteConfig{Enabled: true, Path: filepath.Join(dir, "cp.db")}
	cfg.Sinks.Outbox = OutboxConfig{Enabled: true, Dir: filepath.Join(dir, "outbox")}

	s, err := cfg.BuildSink()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	multi, ok := s.(sink.Multi)
	if !ok || len(multi) != 3 {
		t.Fatalf("expected 3 sinks, got %T", s)
	}

	ob := model.Obligation{ID: "s1/quick", SessionID: "s1", Tier: "quick"}
	if err := s.Deliver(context.Background(), ob); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "outbox", "s1", "quick.json")); err != nil {
		t.Errorf("expected outbox file: %v", err)
	}
	if r := ledger.Verify(filepath.Join(dir, "ledger.jsonl")); !r.Valid || r.Lines != 1 {
		t.Errorf("expected one ledger line, got %+v", r)
	}
}

func TestBuildSinkBadWebhook(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.Ledger.Path = filepath.Join(t.TempDir(), "ledger.jsonl")
	cfg.Sinks.Webhooks = append(cfg.Sinks.Webhooks, webhook.Config{URL: ""})
	if _, err := cfg.BuildSink(); err == nil {
		t.Fatal("expected webhook config error")
	}
}

// --- Init tests ---

func TestInitTemplateLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgetwatch.yaml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("template must parse: %v", err)
	}
	if _, err := cfg.Catalog(); err != nil {
		t.Fatalf("template profiles must validate: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Error("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Errorf("force overwrite: %v", err)
	}
}
