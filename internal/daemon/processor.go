package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/session"
)

// Processor applies request files to the session manager.
type Processor struct {
	dirs DirConfig
	mgr  *session.Manager
}

// NewProcessor creates a processor writing results under dirs.
func NewProcessor(dirs DirConfig, mgr *session.Manager) *Processor {
	return &Processor{dirs: dirs, mgr: mgr}
}

// Process handles a single request file through its full lifecycle:
// read → move to processing → apply → write result → archive.
func (p *Processor) Process(ctx context.Context, path string) error {
	// Reject symlinks before reading so an inbox entry cannot point the
	// daemon at arbitrary files.
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat request file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(path))
	}

	id := strings.TrimSuffix(filepath.Base(path), ".json")
	processingPath := filepath.Join(p.dirs.ProcessingDir(), id+".json")
	if err := moveFile(path, processingPath); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}

	data, err := os.ReadFile(processingPath)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}

	var result *Result
	reqs, err := ParseRequests(data)
	if err != nil {
		result = failed(id, fmt.Sprintf("invalid JSON: %v", err))
	} else {
		result = p.apply(ctx, id, reqs)
	}

	if err := p.writeResult(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	if err := moveFile(processingPath, filepath.Join(p.dirs.ProcessedDir(), id+".json")); err != nil {
		_ = os.Remove(processingPath)
	}
	return nil
}

// apply runs reqs in order. A failed request does not stop later ones.
func (p *Processor) apply(ctx context.Context, id string, reqs []Request) *Result {
	result := &Result{ID: id, Outcomes: make([]Outcome, 0, len(reqs))}
	failures := 0
	for _, req := range reqs {
		out := p.execute(ctx, req)
		if out.Error != "" {
			failures++
		}
		result.Outcomes = append(result.Outcomes, out)
	}
	switch {
	case failures == 0:
		result.Status = ResultDone
	case failures == len(reqs):
		result.Status = ResultFailed
	default:
		result.Status = ResultPartial
	}
	result.CompletedAt = time.Now().UTC()
	return result
}

// execute dispatches one request to the manager and delivers its obligations.
func (p *Processor) execute(ctx context.Context, req Request) Outcome {
	out := Outcome{Op: req.Op, SessionID: req.SessionID}
	if err := ValidateRequest(&req); err != nil {
		out.Error = fmt.Sprintf("validation failed: %v", err)
		return out
	}

	var (
		obs []model.Obligation
		err error
	)
	switch req.Op {
	case OpStart:
		var sess model.Session
		sess, err = p.mgr.Start(req.Profile, req.SessionID)
		if err == nil {
			out.SessionID = sess.ID
		}
	case OpReport:
		if req.Notes != nil {
			obs, err = p.mgr.ReportUsageWithNotes(req.SessionID, req.Delta, *req.Notes)
		} else {
			obs, err = p.mgr.ReportUsage(req.SessionID, req.Delta)
		}
	case OpNotes:
		err = p.mgr.SetNotes(req.SessionID, *req.Notes)
	case OpComplete:
		var ob model.Obligation
		ob, err = p.mgr.Complete(req.SessionID, notesOrEmpty(req.Notes))
		if err == nil {
			obs = []model.Obligation{ob}
		}
	case OpHandOff:
		var ob model.Obligation
		ob, err = p.mgr.HandOff(req.SessionID, notesOrEmpty(req.Notes), req.Reason)
		if err == nil {
			obs = []model.Obligation{ob}
		}
	}
	if err != nil {
		out.Error = err.Error()
	}

	// Obligations returned with an error (forced handoff) still go out.
	if len(obs) > 0 {
		out.Obligations = obs
		undelivered, derr := p.mgr.Deliver(ctx, obs)
		if derr != nil {
			fmt.Fprintf(os.Stderr, "daemon: session %s: %d obligation(s) undelivered: %v\n",
				out.SessionID, len(undelivered), derr)
		}
		out.Undelivered = undelivered
		for _, ob := range obs {
			if ob.IsEmergency {
				fmt.Fprintf(os.Stderr, "daemon: session %s EMERGENCY checkpoint %s (%s)\n", ob.SessionID, ob.Tier, ob.Reason)
			}
		}
	}

	if c, gerr := p.mgr.Get(out.SessionID); gerr == nil {
		snap := c.Snapshot()
		out.Session = &snap
	}
	return out
}

func notesOrEmpty(n *model.ProgressNotes) model.ProgressNotes {
	if n == nil {
		return model.ProgressNotes{}
	}
	return *n
}

// writeResult writes a result to the results directory atomically.
func (p *Processor) writeResult(r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	filename := r.ID + ".json"
	tmpPath := filepath.Join(p.dirs.Results, filename+".tmp")
	finalPath := filepath.Join(p.dirs.Results, filename)

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	return os.Rename(tmpPath, finalPath)
}

// failed builds a minimal failed result for a file that cannot be applied.
func failed(id, errMsg string) *Result {
	if id == "" {
		id = fmt.Sprintf("unknown-%d", time.Now().UnixNano())
	}
	return &Result{
		ID:          id,
		Status:      ResultFailed,
		Error:       errMsg,
		CompletedAt: time.Now().UTC(),
	}
}
