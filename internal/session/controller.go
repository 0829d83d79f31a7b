// Package session owns the per-session budget state machine and the
// registry that routes reports to it.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/budgetwatch/internal/budget"
	"github.com/ppiankov/budgetwatch/internal/emergency"
	"github.com/ppiankov/budgetwatch/internal/handoff"
	"github.com/ppiankov/budgetwatch/internal/model"
	"github.com/ppiankov/budgetwatch/internal/schedule"
	"github.com/ppiankov/budgetwatch/internal/zone"
)

// Controller serializes every mutation of one session. Reports for the
// same session never interleave; distinct controllers share nothing.
type Controller struct {
	mu      sync.Mutex
	s       *model.Session
	profile model.Profile
	now     func() time.Time
}

// NewController starts an Active session with zero usage under p.
func NewController(id string, p model.Profile) *Controller {
	return &Controller{
		s:       model.NewSession(id, p.ID),
		profile: p,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ID returns the session id.
func (c *Controller) ID() string { return c.s.ID }

// Profile returns the profile the session was started under.
func (c *Controller) Profile() model.Profile { return c.profile }

// Snapshot returns a deep copy of the session state.
func (c *Controller) Snapshot() model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Copy()
}

// Status summarizes a session for status endpoints.
type Status struct {
	Session    model.Session `json:"session"`
	Budget     budget.Usage  `json:"budget"`
	NextTier   string        `json:"next_tier,omitempty"`
	NextTierIn uint64        `json:"next_tier_in,omitempty"`
}

// Status returns the session snapshot with budget and schedule lookahead.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Session: c.s.Copy(),
		Budget:  budget.Snapshot(*c.s, c.profile),
	}
	if !c.s.State.Terminal() {
		if t, remaining, ok := schedule.Next(*c.s, c.profile); ok {
			st.NextTier = t.Name
			st.NextTierIn = remaining
		}
	}
	return st
}

// SetNotes replaces the progress notes carried into later checkpoints.
func (c *Controller) SetNotes(notes model.ProgressNotes) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.State.Terminal() {
		return fmt.Errorf("%w: %s is %s", model.ErrSessionTerminal, c.s.ID, c.s.State)
	}
	c.s.Notes = notes.Clone()
	return nil
}

// ReportUsage adds delta to the session and returns the checkpoint
// obligations that became due, in ascending tier order with any emergency
// obligation last.
//
// On ErrIncompleteNotes the usage stays applied but no tier fires; a later
// report (a zero delta is enough) retries once notes are supplied.
// On ErrUsageOverflow the session is forced to HandedOff and the returned
// slice holds the emergency handoff obligation.
func (c *Controller) ReportUsage(delta int64) ([]model.Obligation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report(delta, nil)
}

// ReportUsageWithNotes is ReportUsage with notes replaced first.
// Notes are only stored when the delta is accepted.
func (c *Controller) ReportUsageWithNotes(delta int64, notes model.ProgressNotes) ([]model.Obligation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report(delta, &notes)
}

func (c *Controller) report(delta int64, notes *model.ProgressNotes) ([]model.Obligation, error) {
	prev := c.s.Zone
	if _, err := budget.Apply(c.s, delta); err != nil {
		if errors.Is(err, model.ErrUsageOverflow) {
			if notes != nil {
				c.s.Notes = notes.Clone()
			}
			ob, herr := c.terminate(model.StateHandedOff, model.TierHandoff, true, err.Error())
			if herr != nil {
				return nil, errors.Join(err, herr)
			}
			return []model.Obligation{ob}, err
		}
		return nil, err
	}
	if notes != nil {
		c.s.Notes = notes.Clone()
	}

	c.s.EscalateZone(zone.Classify(c.s.Usage, c.profile))
	trigger := emergency.Check(prev, c.s.Zone)
	due := schedule.DueTiers(*c.s, c.profile)

	obs, err := c.plan(due, trigger)
	if err != nil {
		return nil, err
	}
	c.fire(obs)
	return obs, nil
}

// plan composes one obligation per due tier. With an emergency the most
// severe due tier is emitted as the emergency obligation instead, and the
// whole batch is composed leniently.
func (c *Controller) plan(due []model.Tier, trigger *emergency.Trigger) ([]model.Obligation, error) {
	if len(due) == 0 && trigger == nil {
		return nil, nil
	}
	lenient := trigger != nil
	regular := due
	var severe *model.Tier
	if trigger != nil {
		if t, ok := schedule.MostSevere(due); ok {
			regular = due[:len(due)-1]
			severe = &t
		}
	}

	obs := make([]model.Obligation, 0, len(due)+1)
	for _, t := range regular {
		reason := fmt.Sprintf("usage %d reached tier %s (%.0f%% of %d)",
			c.s.Usage, t.Name, t.Ratio*100, c.profile.MaxBudget)
		ob, err := c.compose(t.Name, t.Kind, false, reason, lenient)
		if err != nil {
			return nil, err
		}
		obs = append(obs, ob)
	}

	if trigger != nil {
		name, kind := model.EmergencyTier(trigger.To), model.KindFinal
		if severe != nil {
			name, kind = severe.Name, severe.Kind
		}
		ob, err := c.compose(name, kind, true, trigger.Reason, true)
		if err != nil {
			return nil, err
		}
		obs = append(obs, ob)
	}
	return obs, nil
}

// fire records emitted tiers so they never fire again.
func (c *Controller) fire(obs []model.Obligation) {
	for _, ob := range obs {
		c.s.FiredTiers[ob.Tier] = true
		c.s.LastCheckpointUsage = ob.UsageAtTrigger
	}
}

// Complete emits the final checkpoint and moves the session to Completed.
func (c *Controller) Complete(notes model.ProgressNotes) (model.Obligation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.State.Terminal() {
		return model.Obligation{}, fmt.Errorf("%w: %s is %s", model.ErrSessionTerminal, c.s.ID, c.s.State)
	}
	c.s.Notes = notes.Clone()
	return c.terminate(model.StateCompleted, model.TierCompletion, false, "session completed")
}

// HandOff emits a handoff checkpoint and moves the session to HandedOff.
func (c *Controller) HandOff(notes model.ProgressNotes, reason string) (model.Obligation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s.State.Terminal() {
		return model.Obligation{}, fmt.Errorf("%w: %s is %s", model.ErrSessionTerminal, c.s.ID, c.s.State)
	}
	if reason == "" {
		reason = "handoff requested"
	}
	c.s.Notes = notes.Clone()
	return c.terminate(model.StateHandedOff, model.TierHandoff, false, reason)
}

func (c *Controller) terminate(state model.SessionState, tier string, isEmergency bool, reason string) (model.Obligation, error) {
	ob, err := c.compose(tier, model.KindFinal, isEmergency, reason, true)
	if err != nil {
		return model.Obligation{}, err
	}
	c.fire([]model.Obligation{ob})
	c.s.State = state
	return ob, nil
}

func (c *Controller) compose(tier string, kind model.TierKind, isEmergency bool, reason string, lenient bool) (model.Obligation, error) {
	doc, err := handoff.Compose(handoff.Meta{
		SessionID: c.s.ID,
		ProfileID: c.profile.ID,
		MaxBudget: c.profile.MaxBudget,
		Tier:      tier,
		Kind:      kind,
		Usage:     c.s.Usage,
		Zone:      c.s.Zone,
		Emergency: isEmergency,
		Reason:    reason,
		Lenient:   lenient,
	}, c.s.Notes)
	if err != nil {
		return model.Obligation{}, err
	}
	return model.Obligation{
		ID:             model.ObligationID(c.s.ID, tier, isEmergency),
		SessionID:      c.s.ID,
		Tier:           tier,
		UsageAtTrigger: c.s.Usage,
		ZoneAtTrigger:  c.s.Zone,
		IsEmergency:    isEmergency,
		Reason:         reason,
		Document:       doc,
		EmittedAt:      c.now(),
	}, nil
}
