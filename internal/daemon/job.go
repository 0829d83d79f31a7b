// Package daemon implements the budgetwatch inbox service.
// Usage reports arrive as JSON files in the inbox directory, are applied to
// in-process sessions, and results are written to the results directory.
package daemon

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// Request operations.
const (
	OpStart    = "start"
	OpReport   = "report"
	OpNotes    = "notes"
	OpComplete = "complete"
	OpHandOff  = "handoff"
)

// validOps is the set of accepted op values.
var validOps = map[string]bool{
	OpStart:    true,
	OpReport:   true,
	OpNotes:    true,
	OpComplete: true,
	OpHandOff:  true,
}

// Request is one session operation dropped into the inbox.
type Request struct {
	Op        string               `json:"op"`
	SessionID string               `json:"session_id"`
	Profile   string               `json:"profile,omitempty"`
	Delta     int64                `json:"delta,omitempty"`
	Notes     *model.ProgressNotes `json:"notes,omitempty"`
	Reason    string               `json:"reason,omitempty"`
}

// Result is written to the results directory after processing a file.
// A file holding several requests gets one Outcome per request.
type Result struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Outcomes    []Outcome `json:"outcomes,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Outcome is the effect of one request.
type Outcome struct {
	Op          string             `json:"op"`
	SessionID   string             `json:"session_id"`
	Obligations []model.Obligation `json:"obligations,omitempty"`
	Undelivered []model.Obligation `json:"undelivered,omitempty"`
	Session     *model.Session     `json:"session,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Result status values.
const (
	ResultDone    = "done"
	ResultPartial = "partial"
	ResultFailed  = "failed"
)

// ValidateRequest checks that a request has the fields its op needs.
// Session ids for start may be empty; the manager generates one.
func ValidateRequest(r *Request) error {
	if r.Op == "" {
		return fmt.Errorf("op is required")
	}
	if !validOps[r.Op] {
		return fmt.Errorf("invalid op %q: must be one of: start, report, notes, complete, handoff", r.Op)
	}
	switch r.Op {
	case OpStart:
		if r.Profile == "" {
			return fmt.Errorf("profile is required for start")
		}
	case OpNotes:
		if r.Notes == nil {
			return fmt.Errorf("notes are required for notes")
		}
		fallthrough
	default:
		if r.SessionID == "" {
			return fmt.Errorf("session_id is required for %s", r.Op)
		}
	}
	return nil
}

// ParseRequests decodes a file body holding either one request object or
// an array of requests applied in order.
func ParseRequests(data []byte) ([]Request, error) {
	var list []Request
	if err := json.Unmarshal(data, &list); err == nil {
		if len(list) == 0 {
			return nil, fmt.Errorf("empty request list")
		}
		return list, nil
	}
	var one Request
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, err
	}
	return []Request{one}, nil
}
