// Package store keeps checkpoint documents in SQLite for operator lookup.
// It implements sink.Sink and never reconstructs live sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// ErrNotFound is returned by Latest when a session has no checkpoints.
var ErrNotFound = errors.New("store: no checkpoints")

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	tier          TEXT NOT NULL,
	usage         TEXT NOT NULL,
	zone          TEXT NOT NULL,
	is_emergency  INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	document      TEXT NOT NULL,
	emitted_at    TEXT NOT NULL,
	seq           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS checkpoints_session ON checkpoints (session_id, seq);
`

// Record is one stored checkpoint.
type Record struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Tier        string         `json:"tier"`
	Usage       uint64         `json:"usage_at_trigger"`
	Zone        model.Zone     `json:"zone_at_trigger"`
	IsEmergency bool           `json:"is_emergency"`
	Reason      string         `json:"reason,omitempty"`
	Document    model.Document `json:"document"`
	EmittedAt   time.Time      `json:"emitted_at"`
}

// Store is a SQLite-backed checkpoint table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// One writer keeps INSERT ordering (seq) consistent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Deliver inserts ob; an id already stored is ignored.
func (s *Store) Deliver(ctx context.Context, ob model.Obligation) error {
	doc, err := json.Marshal(ob.Document)
	if err != nil {
		return fmt.Errorf("store: marshal document: %w", err)
	}
	emitted := ob.EmittedAt
	if emitted.IsZero() {
		emitted = time.Now()
	}
	// SQLite integers are signed 64-bit; usage is kept as decimal text.
	_, err = s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO checkpoints
	(id, session_id, tier, usage, zone, is_emergency, reason, document, emitted_at, seq)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
	(SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints))`,
		ob.ID, ob.SessionID, ob.Tier,
		strconv.FormatUint(ob.UsageAtTrigger, 10),
		ob.ZoneAtTrigger.String(), boolInt(ob.IsEmergency), ob.Reason, string(doc),
		emitted.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", ob.ID, err)
	}
	return nil
}

// List returns a session's checkpoints in emission order.
func (s *Store) List(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, tier, usage, zone, is_emergency, reason, document, emitted_at
FROM checkpoints WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	return out, nil
}

// Latest returns the most recently stored checkpoint of a session.
func (s *Store) Latest(ctx context.Context, sessionID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, session_id, tier, usage, zone, is_emergency, reason, document, emitted_at
FROM checkpoints WHERE session_id = ? ORDER BY seq DESC LIMIT 1`, sessionID)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w for session %s", ErrNotFound, sessionID)
	}
	return r, err
}

// Sessions returns every session id with at least one checkpoint, sorted.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM checkpoints ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (Record, error) {
	var (
		r                    Record
		usage, zone, doc, ts string
		emergency            int
	)
	if err := sc.Scan(&r.ID, &r.SessionID, &r.Tier, &usage, &zone, &emergency, &r.Reason, &doc, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("store: scan: %w", err)
	}
	var err error
	if r.Usage, err = strconv.ParseUint(usage, 10, 64); err != nil {
		return Record{}, fmt.Errorf("store: %s: bad usage %q: %w", r.ID, usage, err)
	}
	if r.Zone, err = model.ParseZone(zone); err != nil {
		return Record{}, fmt.Errorf("store: %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(doc), &r.Document); err != nil {
		return Record{}, fmt.Errorf("store: %s: bad document: %w", r.ID, err)
	}
	if r.EmittedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return Record{}, fmt.Errorf("store: %s: bad timestamp: %w", r.ID, err)
	}
	r.IsEmergency = emergency != 0
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
