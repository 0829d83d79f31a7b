package budgetwatch

import (
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/session"
)

type (
	// Session is a point-in-time snapshot of one budget session.
	Session = model.Session
	// Notes is the caller's running account of progress.
	Notes = model.ProgressNotes
	// Obligation is one checkpoint the caller must write.
	Obligation = model.Obligation
	// Document is the checkpoint content carried by an Obligation.
	Document = model.Document
	// Status is a session snapshot with budget and schedule lookahead.
	Status = session.Status
	// Zone is the budget health zone.
	Zone = model.Zone
)

// Zones, in escalation order.
const (
	ZoneNormal    = model.ZoneNormal
	ZoneWarning   = model.ZoneWarning
	ZoneCritical  = model.ZoneCritical
	ZoneOverflow  = model.ZoneOverflow
)

// Errors returned by Client methods. Match with errors.Is.
var (
	ErrUnknownProfile  = model.ErrUnknownProfile
	ErrUnknownSession  = model.ErrUnknownSession
	ErrSessionExists   = model.ErrSessionExists
	ErrNegativeDelta   = model.ErrNegativeDelta
	ErrSessionTerminal = model.ErrSessionTerminal
	ErrUsageOverflow   = model.ErrUsageOverflow
	ErrIncompleteNotes = model.ErrIncompleteNotes
)

// Result is the outcome of one usage report.
type Result struct {
	Obligations []Obligation // checkpoints made due, in firing order
	Undelivered []Obligation // subset the sink did not accept
	Session     Session      // snapshot after the report
}

// Emergency reports whether any obligation in r was an emergency checkpoint.
func (r Result) Emergency() bool {
	for _, ob := range r.Obligations {
		if ob.IsEmergency {
			return true
		}
	}
	return false
}
