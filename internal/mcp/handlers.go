package mcp

import (
	"context"
	"sort"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// --- Input/Output types ---

// NotesInput mirrors model.ProgressNotes for tool schemas.
type NotesInput struct {
	Completed       []string `json:"completed,omitempty" jsonschema:"work finished since the last checkpoint"`
	InProgress      []string `json:"in_progress,omitempty" jsonschema:"work currently underway"`
	NextSteps       []string `json:"next_steps,omitempty" jsonschema:"what a successor should do next"`
	FreeformContext string   `json:"freeform_context,omitempty" jsonschema:"anything else a successor needs"`
}

func (n *NotesInput) notes() model.ProgressNotes {
	if n == nil {
		return model.ProgressNotes{}
	}
	return model.ProgressNotes{
		Completed:       n.Completed,
		InProgress:      n.InProgress,
		NextSteps:       n.NextSteps,
		FreeformContext: n.FreeformContext,
	}
}

// StartInput defines parameters for the budget_start tool.
type StartInput struct {
	Profile   string `json:"profile" jsonschema:"budget profile id (e.g. context-200k)"`
	SessionID string `json:"session_id,omitempty" jsonschema:"session id, generated when omitted"`
}

// SessionOutput describes a session's state.
type SessionOutput struct {
	SessionID           string   `json:"session_id"`
	Profile             string   `json:"profile"`
	State               string   `json:"state"`
	Zone                string   `json:"zone"`
	Usage               uint64   `json:"usage"`
	LastCheckpointUsage uint64   `json:"last_checkpoint_usage"`
	FiredTiers          []string `json:"fired_tiers"`
	StartedAt           string   `json:"started_at"`
	Error               string   `json:"error,omitempty"`
}

// ReportInput defines parameters for the budget_report tool.
type ReportInput struct {
	SessionID string      `json:"session_id" jsonschema:"session id from budget_start"`
	Delta     int64       `json:"delta" jsonschema:"usage consumed since the last report; must not be negative"`
	Notes     *NotesInput `json:"notes,omitempty" jsonschema:"progress notes, replacing earlier ones when set"`
}

// ObligationItem is one checkpoint the agent must write.
type ObligationItem struct {
	ID          string   `json:"id"`
	Tier        string   `json:"tier"`
	TierKind    string   `json:"tier_kind"`
	Usage       uint64   `json:"usage_at_trigger"`
	Zone        string   `json:"zone_at_trigger"`
	IsEmergency bool     `json:"is_emergency"`
	Reason      string   `json:"reason,omitempty"`
	Completed   []string `json:"completed"`
	InProgress  []string `json:"in_progress"`
	NextSteps   []string `json:"next_steps"`
	Freeform    string   `json:"freeform_context,omitempty"`
	Delivered   bool     `json:"delivered"`
}

// ObligationsOutput is returned by budget_report, budget_complete and
// budget_handoff.
type ObligationsOutput struct {
	Obligations []ObligationItem `json:"obligations"`
	Session     SessionOutput    `json:"session"`
	Error       string           `json:"error,omitempty"`
}

// CompleteInput defines parameters for the budget_complete tool.
type CompleteInput struct {
	SessionID string     `json:"session_id" jsonschema:"session id from budget_start"`
	Notes     NotesInput `json:"notes,omitempty" jsonschema:"final progress notes"`
}

// HandOffInput defines parameters for the budget_handoff tool.
type HandOffInput struct {
	SessionID string     `json:"session_id" jsonschema:"session id from budget_start"`
	Notes     NotesInput `json:"notes,omitempty" jsonschema:"state a successor needs to continue"`
	Reason    string     `json:"reason,omitempty" jsonschema:"why the session is handed off"`
}

// StatusInput defines parameters for the budget_status tool.
type StatusInput struct {
	SessionID string `json:"session_id" jsonschema:"session id from budget_start"`
}

// StatusOutput is the session status with budget lookahead.
type StatusOutput struct {
	Session    SessionOutput `json:"session"`
	Max        uint64        `json:"max_budget"`
	Remaining  uint64        `json:"remaining"`
	Ratio      float64       `json:"ratio"`
	NextTier   string        `json:"next_tier,omitempty"`
	NextTierIn uint64        `json:"next_tier_in,omitempty"`
}

// --- Handlers ---

func (s *Server) handleStart(ctx context.Context, req *mcpsdk.CallToolRequest, input StartInput) (*mcpsdk.CallToolResult, SessionOutput, error) {
	sess, err := s.mgr.Start(input.Profile, input.SessionID)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, SessionOutput{Error: err.Error()}, nil
	}
	return nil, sessionOutput(sess), nil
}

func (s *Server) handleReport(ctx context.Context, req *mcpsdk.CallToolRequest, input ReportInput) (*mcpsdk.CallToolResult, ObligationsOutput, error) {
	var (
		obs []model.Obligation
		err error
	)
	if input.Notes != nil {
		obs, err = s.mgr.ReportUsageWithNotes(input.SessionID, input.Delta, input.Notes.notes())
	} else {
		obs, err = s.mgr.ReportUsage(input.SessionID, input.Delta)
	}

	// An overflow still carries the forced handoff obligation.
	out := s.deliver(ctx, input.SessionID, obs)
	if err != nil {
		out.Error = err.Error()
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleComplete(ctx context.Context, req *mcpsdk.CallToolRequest, input CompleteInput) (*mcpsdk.CallToolResult, ObligationsOutput, error) {
	ob, err := s.mgr.Complete(input.SessionID, input.Notes.notes())
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, ObligationsOutput{Obligations: []ObligationItem{}, Error: err.Error()}, nil
	}
	return nil, s.deliver(ctx, input.SessionID, []model.Obligation{ob}), nil
}

func (s *Server) handleHandOff(ctx context.Context, req *mcpsdk.CallToolRequest, input HandOffInput) (*mcpsdk.CallToolResult, ObligationsOutput, error) {
	ob, err := s.mgr.HandOff(input.SessionID, input.Notes.notes(), input.Reason)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, ObligationsOutput{Obligations: []ObligationItem{}, Error: err.Error()}, nil
	}
	return nil, s.deliver(ctx, input.SessionID, []model.Obligation{ob}), nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st, err := s.mgr.Status(input.SessionID)
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, StatusOutput{Session: SessionOutput{Error: err.Error()}}, nil
	}
	return nil, StatusOutput{
		Session:    sessionOutput(st.Session),
		Max:        st.Budget.Max,
		Remaining:  st.Budget.Remaining,
		Ratio:      st.Budget.Ratio,
		NextTier:   st.NextTier,
		NextTierIn: st.NextTierIn,
	}, nil
}

// deliver hands obs to the sinks and builds the tool output. Obligations a
// sink rejected are still returned, marked undelivered.
func (s *Server) deliver(ctx context.Context, sessionID string, obs []model.Obligation) ObligationsOutput {
	undelivered, _ := s.mgr.Deliver(ctx, obs)
	failed := make(map[string]bool, len(undelivered))
	for _, ob := range undelivered {
		failed[ob.ID] = true
	}

	out := ObligationsOutput{Obligations: make([]ObligationItem, 0, len(obs))}
	for _, ob := range obs {
		out.Obligations = append(out.Obligations, ObligationItem{
			ID:          ob.ID,
			Tier:        ob.Tier,
			TierKind:    string(ob.Document.TierKind),
			Usage:       ob.UsageAtTrigger,
			Zone:        ob.ZoneAtTrigger.String(),
			IsEmergency: ob.IsEmergency,
			Reason:      ob.Reason,
			Completed:   ob.Document.Completed,
			InProgress:  ob.Document.InProgress,
			NextSteps:   ob.Document.NextSteps,
			Freeform:    ob.Document.FreeformContext,
			Delivered:   !failed[ob.ID],
		})
	}
	if c, err := s.mgr.Get(sessionID); err == nil {
		out.Session = sessionOutput(c.Snapshot())
	}
	return out
}

func sessionOutput(sess model.Session) SessionOutput {
	fired := make([]string, 0, len(sess.FiredTiers))
	for name := range sess.FiredTiers {
		fired = append(fired, name)
	}
	sort.Strings(fired)
	return SessionOutput{
		SessionID:           sess.ID,
		Profile:             sess.ProfileID,
		State:               string(sess.State),
		Zone:                sess.Zone.String(),
		Usage:               sess.Usage,
		LastCheckpointUsage: sess.LastCheckpointUsage,
		FiredTiers:          fired,
		StartedAt:           sess.StartedAt.Format(time.RFC3339),
	}
}
