// Package config loads budgetwatch.yaml: profile overrides, sinks and
// transport settings.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/budgetwatch/internal/ledger"
	"github.com/ppiankov/budgetwatch/internal/outbox"
	"github.com/ppiankov/budgetwatch/internal/profile"
	"github.com/ppiankov/budgetwatch/internal/sink"
	"github.com/ppiankov/budgetwatch/internal/store"
	"github.com/ppiankov/budgetwatch/internal/webhook"
)

// LedgerConfig enables the hash-chained JSONL ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SQLiteConfig enables the SQLite checkpoint store.
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutboxConfig enables per-session JSON handoff files.
type OutboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Sinks selects where obligations are delivered.
type Sinks struct {
	Ledger   LedgerConfig     `yaml:"ledger"`
	SQLite   SQLiteConfig     `yaml:"sqlite"`
	Outbox   OutboxConfig     `yaml:"outbox"`
	Webhooks []webhook.Config `yaml:"webhooks"`
}

// ServerConfig configures the gRPC server.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// DaemonConfig configures the inbox daemon.
type DaemonConfig struct {
	Inbox        string        `yaml:"inbox"`
	Results      string        `yaml:"results"`
	State        string        `yaml:"state"`
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Config is the full budgetwatch configuration.
type Config struct {
	Profiles map[string]profile.Spec `yaml:"profiles"`
	Sinks    Sinks                   `yaml:"sinks"`
	Server   ServerConfig            `yaml:"server"`
	Daemon   DaemonConfig            `yaml:"daemon"`
}

// DefaultDir returns ~/.budgetwatch, or a temp directory when home is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "budgetwatch")
	}
	return filepath.Join(home, ".budgetwatch")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "budgetwatch.yaml")
}

// DefaultConfig returns the configuration used when no file exists:
// built-in profiles and the ledger sink only.
func DefaultConfig() *Config {
	dir := DefaultDir()
	return &Config{
		Sinks: Sinks{
			Ledger: LedgerConfig{Enabled: true, Path: filepath.Join(dir, "ledger.jsonl")},
			SQLite: SQLiteConfig{Path: filepath.Join(dir, "checkpoints.db")},
			Outbox: OutboxConfig{Dir: filepath.Join(dir, "outbox")},
		},
		Server: ServerConfig{Listen: "127.0.0.1:7420"},
		Daemon: DaemonConfig{
			Inbox:        filepath.Join(dir, "inbox"),
			Results:      filepath.Join(dir, "results"),
			State:        filepath.Join(dir, "state"),
			Workers:      4,
			PollInterval: 2 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// Empty path falls back to ~/.budgetwatch/budgetwatch.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns the SHA-256 hash of the
// raw YAML bytes. When no file exists the hash is that of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.expand()
	return cfg, hashBytes(data), nil
}

// Catalog builds the profile catalog: built-ins overlaid with configured profiles.
func (c *Config) Catalog() (*profile.Catalog, error) {
	return profile.NewCatalog(profile.Merge(profile.Builtins(), c.Profiles))
}

// BuildSink opens every enabled sink. It returns nil when none is enabled.
// On error, sinks opened so far are closed.
func (c *Config) BuildSink() (sink.Sink, error) {
	var sinks sink.Multi
	fail := func(err error) (sink.Sink, error) {
		return nil, errors.Join(err, sinks.Close())
	}

	if c.Sinks.Ledger.Enabled {
		l, err := ledger.Open(c.Sinks.Ledger.Path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, l)
	}
	if c.Sinks.SQLite.Enabled {
		s, err := store.Open(c.Sinks.SQLite.Path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if c.Sinks.Outbox.Enabled {
		o, err := outbox.New(c.Sinks.Outbox.Dir)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, o)
	}
	for i, wc := range c.Sinks.Webhooks {
		w, err := webhook.New(wc)
		if err != nil {
			return fail(fmt.Errorf("sinks.webhooks[%d]: %w", i, err))
		}
		sinks = append(sinks, w)
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// expand resolves a leading "~/" in configured paths.
func (c *Config) expand() {
	for _, p := range []*string{
		&c.Sinks.Ledger.Path,
		&c.Sinks.SQLite.Path,
		&c.Sinks.Outbox.Dir,
		&c.Daemon.Inbox,
		&c.Daemon.Results,
		&c.Daemon.State,
	} {
		*p = ExpandHome(*p)
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}
