// Package handoff assembles checkpoint documents from session metadata and
// caller-supplied progress notes. It never invents content.
package handoff

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// Meta is the scheduling metadata merged into a document.
type Meta struct {
	SessionID string
	ProfileID string
	MaxBudget uint64
	Tier      string
	Kind      model.TierKind
	Usage     uint64
	Zone      model.Zone
	Emergency bool
	Reason    string

	// Lenient waives the notes requirement of major and final tiers.
	// Set for completion, handoff and emergency documents.
	Lenient bool
}

// Compose builds the canonical document. It fails with ErrIncompleteNotes
// only when notes are entirely empty on a major or final tier and the
// composition is not lenient.
func Compose(meta Meta, notes model.ProgressNotes) (model.Document, error) {
	if !meta.Lenient && meta.Kind.RequiresNotes() && notes.Empty() {
		return model.Document{}, fmt.Errorf("%w: tier %q (%s) requires progress notes",
			model.ErrIncompleteNotes, meta.Tier, meta.Kind)
	}

	return model.Document{
		Tier:            meta.Tier,
		SessionID:       meta.SessionID,
		UsageAtTrigger:  meta.Usage,
		ZoneAtTrigger:   meta.Zone,
		IsEmergency:     meta.Emergency,
		Completed:       list(notes.Completed),
		InProgress:      list(notes.InProgress),
		NextSteps:       list(notes.NextSteps),
		FreeformContext: notes.FreeformContext,
		ProfileID:       meta.ProfileID,
		TierKind:        meta.Kind,
		MaxBudget:       meta.MaxBudget,
		Reason:          meta.Reason,
	}, nil
}

// Digest returns "sha256:<hex>" of the document's canonical JSON.
// Document is a plain struct, so encoding/json field order is fixed.
func Digest(doc model.Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("handoff: marshal document: %w", err)
	}
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// list copies in, turning nil into an empty list so the schema always
// carries arrays.
func list(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
