// Package ledger is an append-only, hash-chained JSONL record of every
// checkpoint obligation. It implements sink.Sink.
package ledger

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/budgetwatch/internal/handoff"
	"github.com/ppiankov/budgetwatch/internal/model"
)

// GenesisHash is the prev_hash for the first entry in a new ledger.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// maxLine bounds a single ledger line; documents carry caller notes.
const maxLine = 4 << 20

// Ledger appends obligations to a JSONL file. Each entry's prev_hash is the
// hash of the previous line, forming a tamper-evident chain. An obligation id
// already present in the file is never written twice.
type Ledger struct {
	path     string
	file     *os.File
	prevHash string
	seen     map[string]bool
	mu       sync.Mutex
}

// Open opens (or creates) a ledger for appending. An existing file is scanned
// to recover the chain tail and the set of recorded obligation ids.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}

	prevHash := GenesisHash
	seen := make(map[string]bool)

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("ledger: read existing: %w", err)
		}
		scanner := newScanner(f)
		var lastLine []byte
		for scanner.Scan() {
			lastLine = append(lastLine[:0], scanner.Bytes()...)
			var e struct {
				ObligationID string `json:"obligation_id"`
			}
			if json.Unmarshal(lastLine, &e) == nil && e.ObligationID != "" {
				seen[e.ObligationID] = true
			}
		}
		f.Close()
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("ledger: scan existing: %w", err)
		}
		if len(lastLine) > 0 {
			prevHash = HashLine(lastLine)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("ledger: open file: %w", err)
	}

	return &Ledger{
		path:     path,
		file:     file,
		prevHash: prevHash,
		seen:     seen,
	}, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Deliver appends ob to the ledger and syncs to disk.
func (l *Ledger) Deliver(_ context.Context, ob model.Obligation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seen[ob.ID] {
		return nil
	}

	digest, err := handoff.Digest(ob.Document)
	if err != nil {
		return err
	}
	ts := ob.EmittedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := Entry{
		Timestamp:      ts.UTC().Format(TimestampFormat),
		ObligationID:   ob.ID,
		SessionID:      ob.SessionID,
		Tier:           ob.Tier,
		UsageAtTrigger: ob.UsageAtTrigger,
		ZoneAtTrigger:  ob.ZoneAtTrigger,
		IsEmergency:    ob.IsEmergency,
		Reason:         ob.Reason,
		Digest:         digest,
		Document:       ob.Document,
		PrevHash:       l.prevHash,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ledger: marshal entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("ledger: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("ledger: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	l.seen[ob.ID] = true
	return nil
}

// Close flushes and closes the underlying file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

func newScanner(f *os.File) *bufio.Scanner {
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 64*1024), maxLine)
	return s
}
