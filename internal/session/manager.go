package session

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/profile"
	"github.com/ppiankov/budgetwatch/internal/sink"
)

// validID restricts caller-chosen session ids to path-safe characters;
// file sinks use them as directory names.
var validID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return "sess-" + uuid.NewString()
}

// ValidateID rejects ids that are empty, too long or not path-safe.
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid session id %q: use letters, digits, '.', '_' or '-'", id)
	}
	return nil
}

// Manager routes operations to per-session controllers. The catalog is the
// only state shared across sessions and is read-only.
type Manager struct {
	catalog  atomic.Pointer[profile.Catalog]
	sink     sink.Sink
	sessions sync.Map // session id -> *Controller
}

// NewManager creates a manager over catalog. s may be nil, in which case
// Deliver is a no-op and callers persist obligations themselves.
func NewManager(catalog *profile.Catalog, s sink.Sink) *Manager {
	m := &Manager{sink: s}
	m.catalog.Store(catalog)
	return m
}

// Catalog returns the profile catalog sessions are started from.
func (m *Manager) Catalog() *profile.Catalog { return m.catalog.Load() }

// SwapCatalog replaces the catalog for sessions started from now on.
// Running sessions keep the profile they resolved at start.
func (m *Manager) SwapCatalog(c *profile.Catalog) {
	m.catalog.Store(c)
}

// Start creates an Active session under profileID. An empty sessionID gets a
// generated one.
func (m *Manager) Start(profileID, sessionID string) (model.Session, error) {
	p, err := m.Catalog().Resolve(profileID)
	if err != nil {
		return model.Session{}, err
	}
	if sessionID == "" {
		sessionID = NewSessionID()
	} else if err := ValidateID(sessionID); err != nil {
		return model.Session{}, err
	}

	c := NewController(sessionID, p)
	if _, loaded := m.sessions.LoadOrStore(sessionID, c); loaded {
		return model.Session{}, fmt.Errorf("%w: %s", model.ErrSessionExists, sessionID)
	}
	return c.Snapshot(), nil
}

// Get returns the controller for id.
func (m *Manager) Get(id string) (*Controller, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownSession, id)
	}
	return v.(*Controller), nil
}

// ReportUsage applies delta to session id. See Controller.ReportUsage.
func (m *Manager) ReportUsage(id string, delta int64) ([]model.Obligation, error) {
	c, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return c.ReportUsage(delta)
}

// ReportUsageWithNotes applies delta with fresh notes.
func (m *Manager) ReportUsageWithNotes(id string, delta int64, notes model.ProgressNotes) ([]model.Obligation, error) {
	c, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return c.ReportUsageWithNotes(delta, notes)
}

// SetNotes replaces the notes of session id.
func (m *Manager) SetNotes(id string, notes model.ProgressNotes) error {
	c, err := m.Get(id)
	if err != nil {
		return err
	}
	return c.SetNotes(notes)
}

// Complete finishes session id.
func (m *Manager) Complete(id string, notes model.ProgressNotes) (model.Obligation, error) {
	c, err := m.Get(id)
	if err != nil {
		return model.Obligation{}, err
	}
	return c.Complete(notes)
}

// HandOff hands session id over to a successor.
func (m *Manager) HandOff(id string, notes model.ProgressNotes, reason string) (model.Obligation, error) {
	c, err := m.Get(id)
	if err != nil {
		return model.Obligation{}, err
	}
	return c.HandOff(notes, reason)
}

// Status returns the status of session id.
func (m *Manager) Status(id string) (Status, error) {
	c, err := m.Get(id)
	if err != nil {
		return Status{}, err
	}
	return c.Status(), nil
}

// List returns snapshots of every known session, oldest first.
func (m *Manager) List() []model.Session {
	var out []model.Session
	m.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Controller).Snapshot())
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Forget drops a terminal session from memory. Active sessions are kept.
func (m *Manager) Forget(id string) error {
	c, err := m.Get(id)
	if err != nil {
		return err
	}
	if st := c.Snapshot().State; !st.Terminal() {
		return fmt.Errorf("session %s is %s; complete or hand it off first", id, st)
	}
	m.sessions.Delete(id)
	return nil
}

// Deliver hands obligations to the configured sink and returns those that
// could not be delivered. Call it after the session operation returns;
// delivery never runs inside a session's critical section.
func (m *Manager) Deliver(ctx context.Context, obs []model.Obligation) ([]model.Obligation, error) {
	return sink.Deliver(ctx, m.sink, obs)
}
