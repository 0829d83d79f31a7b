package ledger

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ppiankov/budgetwatch/internal/handoff"
	"github.com/ppiankov/budgetwatch/internal/model"
)

// Summary holds counts and bounds for one session's checkpoints.
type Summary struct {
	Total          int        `json:"total"`
	EmergencyCount int        `json:"emergency_count"`
	MaxZone        model.Zone `json:"max_zone"`
	MaxUsage       uint64     `json:"max_usage"`
	FirstTimestamp string     `json:"first_timestamp"`
	LastTimestamp  string     `json:"last_timestamp"`
}

// ReplayResult holds a session's ledger entries in write order.
type ReplayResult struct {
	SessionID string  `json:"session_id"`
	Entries   []Entry `json:"entries"`
	Summary   Summary `json:"summary"`
}

// Replay reads the ledger and returns the entries of one session.
// An empty sessionID matches every entry.
func Replay(path, sessionID string) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{SessionID: sessionID}
	scanner := newScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		if sessionID != "" && entry.SessionID != sessionID {
			continue
		}
		result.Entries = append(result.Entries, entry)

		sum := &result.Summary
		sum.Total++
		if entry.IsEmergency {
			sum.EmergencyCount++
		}
		if entry.ZoneAtTrigger > sum.MaxZone {
			sum.MaxZone = entry.ZoneAtTrigger
		}
		if entry.UsageAtTrigger > sum.MaxUsage {
			sum.MaxUsage = entry.UsageAtTrigger
		}
		if sum.FirstTimestamp == "" {
			sum.FirstTimestamp = entry.Timestamp
		}
		sum.LastTimestamp = entry.Timestamp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return result, nil
}

func checkDigest(e Entry) error {
	got, err := handoff.Digest(e.Document)
	if err != nil {
		return err
	}
	if got != e.Digest {
		return fmt.Errorf("document digest mismatch for %s: expected %s, got %s", e.ObligationID, e.Digest, got)
	}
	return nil
}
