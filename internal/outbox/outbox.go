// Package outbox writes each checkpoint obligation as a JSON file under a
// per-session directory, for agents and operators that read handoffs from disk.
// It implements sink.Sink.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// validKey matches alphanumeric, dash, underscore, and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateKey rejects path components that could escape the outbox.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("key %q contains invalid characters: only alphanumeric, dash, underscore, and dot are allowed", key)
	}
	return nil
}

// Outbox manages obligation files on disk.
type Outbox struct {
	dir string
	mu  sync.Mutex
}

// New creates an Outbox backed by dir.
func New(dir string) (*Outbox, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create outbox directory: %w", err)
	}
	return &Outbox{dir: dir}, nil
}

// Dir returns the outbox root.
func (o *Outbox) Dir() string { return o.dir }

// Deliver writes <dir>/<session>/<tier>.json, or <tier>@emergency.json for
// emergencies. '@' never appears in a tier name, so the two cannot collide.
// No-op if the file already exists.
func (o *Outbox) Deliver(_ context.Context, ob model.Obligation) error {
	path, err := o.path(ob)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("outbox: create session directory: %w", err)
	}
	return writeAtomic(path, ob)
}

// List returns a session's obligations ordered by usage at trigger.
func (o *Outbox) List(sessionID string) ([]model.Obligation, error) {
	if err := validateKey(sessionID); err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(o.dir, sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var obs []model.Obligation
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(o.dir, sessionID, e.Name()))
		if err != nil {
			continue
		}
		var ob model.Obligation
		if err := json.Unmarshal(data, &ob); err != nil {
			continue
		}
		obs = append(obs, ob)
	}
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].UsageAtTrigger != obs[j].UsageAtTrigger {
			return obs[i].UsageAtTrigger < obs[j].UsageAtTrigger
		}
		return obs[i].EmittedAt.Before(obs[j].EmittedAt)
	})
	return obs, nil
}

// Close implements sink.Sink.
func (o *Outbox) Close() error { return nil }

func (o *Outbox) path(ob model.Obligation) (string, error) {
	if err := validateKey(ob.SessionID); err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	if err := validateKey(ob.Tier); err != nil {
		return "", fmt.Errorf("invalid tier name: %w", err)
	}
	name := ob.Tier
	if ob.IsEmergency {
		name += "@emergency"
	}
	return filepath.Join(o.dir, ob.SessionID, name+".json"), nil
}

func writeAtomic(path string, ob model.Obligation) error {
	data, err := json.MarshalIndent(ob, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
