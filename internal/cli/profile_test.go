package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validProfiles = `profiles:
  build-minutes:
    max_budget: 600
    warning_ratio: 0.6
    critical_ratio: 0.8
    tiers:
      - ratio: 0.5
        name: quick
      - ratio: 0.9
        name: final
`

func TestProfileList(t *testing.T) {
	isolate(t)
	cmd, buf := testCmd()
	if err := runProfileList(cmd, nil); err != nil {
		t.Fatalf("runProfileList: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"api-calls", "context-1m", "context-200k", "Catalog hash: sha256:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProfileListIncludesExtraProfiles(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "extra.yaml")
	if err := os.WriteFile(path, []byte(validProfiles), 0600); err != nil {
		t.Fatal(err)
	}
	profilesPath = path

	cmd, buf := testCmd()
	if err := runProfileList(cmd, nil); err != nil {
		t.Fatalf("runProfileList: %v", err)
	}
	if !strings.Contains(buf.String(), "build-minutes") {
		t.Errorf("expected extra profile listed:\n%s", buf.String())
	}
}

func TestProfileCheckValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(validProfiles), 0600); err != nil {
		t.Fatal(err)
	}
	cmd, buf := testCmd()
	if err := runProfileCheck(cmd, []string{path}); err != nil {
		t.Fatalf("runProfileCheck: %v", err)
	}
	if !strings.Contains(buf.String(), "1 profile(s) OK") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestProfileCheckInvalid(t *testing.T) {
	bad := strings.Replace(validProfiles, "critical_ratio: 0.8", "critical_ratio: 0.5", 1)
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}
	cmd, _ := testCmd()
	err := runProfileCheck(cmd, []string{path})
	if err == nil || !strings.Contains(err.Error(), "build-minutes") {
		t.Fatalf("expected invalid profile error naming build-minutes, got %v", err)
	}
}

func TestProfileCheckEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte("profiles: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cmd, _ := testCmd()
	if err := runProfileCheck(cmd, []string{path}); err == nil {
		t.Fatal("expected error for file without profiles")
	}
}

func TestProfileInitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.yaml")
	profileInitOutput = path
	profileInitForce = false
	defer func() { profileInitOutput = "" }()

	cmd, _ := testCmd()
	if err := runProfileInit(cmd, []string{"nightly"}); err != nil {
		t.Fatalf("runProfileInit: %v", err)
	}
	// The generated template must itself pass validation.
	check, buf := testCmd()
	if err := runProfileCheck(check, []string{path}); err != nil {
		t.Fatalf("template does not validate: %v", err)
	}
	if !strings.Contains(buf.String(), "OK") {
		t.Errorf("unexpected output: %s", buf.String())
	}

	if err := runProfileInit(cmd, []string{"nightly"}); err == nil {
		t.Fatal("expected refusal to overwrite without --force")
	}
}

func TestInitWritesConfig(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "conf", "budgetwatch.yaml")
	defer func() { configPath = "" }()
	initForce = false

	cmd, buf := testCmd()
	if err := runInit(cmd, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(buf.String(), configPath) {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if err := runInit(cmd, nil); err == nil {
		t.Fatal("expected refusal to overwrite without --force")
	}
	initForce = true
	defer func() { initForce = false }()
	if err := runInit(cmd, nil); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}

func TestUnitCommand(t *testing.T) {
	configPath = "/etc/budgetwatch/budgetwatch.yaml"
	unitBinary = "/usr/local/bin/budgetwatch"
	defer func() { configPath, unitBinary = "", "" }()

	cmd, buf := testCmd()
	if err := runUnit(cmd, []string{"daemon"}); err != nil {
		t.Fatalf("runUnit: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# budgetwatch-daemon.service", "ExecStart=/usr/local/bin/budgetwatch daemon --config /etc/budgetwatch/budgetwatch.yaml"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if err := runUnit(cmd, []string{"simulate"}); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}
