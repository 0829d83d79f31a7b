// Package emergency detects usage jumps that outran the checkpoint schedule.
package emergency

import (
	"fmt"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// Reason codes for a trigger.
const (
	ReasonOverflowBreach = "overflow_breach"
	ReasonZoneJump       = "zone_jump"
)

// Trigger is a priority interrupt returned alongside normal scheduling output.
// Callers must inspect it and emit an emergency checkpoint when non-nil.
type Trigger struct {
	From   model.Zone
	To     model.Zone
	Code   string
	Reason string
}

// Check compares the zone before and after one usage report.
// It fires on a fresh Overflow breach or when more than one zone boundary
// was crossed in a single report. Returns nil when no emergency applies.
func Check(prev, next model.Zone) *Trigger {
	if next == model.ZoneOverflow && prev != model.ZoneOverflow {
		return &Trigger{
			From:   prev,
			To:     next,
			Code:   ReasonOverflowBreach,
			Reason: fmt.Sprintf("budget ceiling breached: %s → %s", prev, next),
		}
	}
	if next-prev > 1 {
		return &Trigger{
			From:   prev,
			To:     next,
			Code:   ReasonZoneJump,
			Reason: fmt.Sprintf("zone jumped %s → %s in one report", prev, next),
		}
	}
	return nil
}
