package budgetwatchv1

import (
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/session"
)

// StartSessionRequest opens a session. SessionID is generated when empty.
type StartSessionRequest struct {
	ProfileID string `json:"profile_id"`
	SessionID string `json:"session_id,omitempty"`
}

// StartSessionResponse carries the new session.
type StartSessionResponse struct {
	Session model.Session `json:"session"`
}

// ReportUsageRequest adds Delta units. Notes, when set, replace the
// session's progress notes before tiers are evaluated.
type ReportUsageRequest struct {
	SessionID string               `json:"session_id"`
	Delta     int64                `json:"delta"`
	Notes     *model.ProgressNotes `json:"notes,omitempty"`
}

// CompleteSessionRequest finishes a session.
type CompleteSessionRequest struct {
	SessionID string              `json:"session_id"`
	Notes     model.ProgressNotes `json:"notes"`
}

// HandOffSessionRequest hands a session to a successor.
type HandOffSessionRequest struct {
	SessionID string              `json:"session_id"`
	Notes     model.ProgressNotes `json:"notes"`
	Reason    string              `json:"reason,omitempty"`
}

// ObligationsResponse is returned by ReportUsage, CompleteSession and
// HandOffSession. Undelivered lists obligations the server's sinks
// rejected; the caller owns their retry.
type ObligationsResponse struct {
	Obligations []model.Obligation `json:"obligations"`
	Undelivered []model.Obligation `json:"undelivered,omitempty"`
	Session     model.Session      `json:"session"`
}

// GetSessionRequest asks for one session's status.
type GetSessionRequest struct {
	SessionID string `json:"session_id"`
}

// GetSessionResponse is the session status.
type GetSessionResponse = session.Status
