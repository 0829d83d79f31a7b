package model

import (
	"regexp"
	"strings"
	"time"
)

// TierKind classifies how much substance a checkpoint tier demands.
type TierKind string

const (
	KindQuick    TierKind = "quick"
	KindDetailed TierKind = "detailed"
	KindMajor    TierKind = "major"
	KindFinal    TierKind = "final"
)

// KindRank maps tier kinds to a comparable integer.
var KindRank = map[TierKind]int{
	KindQuick:    0,
	KindDetailed: 1,
	KindMajor:    2,
	KindFinal:    3,
}

// RequiresNotes returns true for kinds that reject empty progress notes.
func (k TierKind) RequiresNotes() bool {
	return k == KindMajor || k == KindFinal
}

// Reserved tier names used for checkpoints outside the tier schedule.
const (
	TierCompletion = "completion"
	TierHandoff    = "handoff"
	TierEmergency  = "emergency"
)

// EmergencyTier names the unscheduled checkpoint raised when an emergency
// fires with no profile tier due. Zones only escalate, so the name is unique
// per session.
func EmergencyTier(z Zone) string {
	return TierEmergency + "-" + strings.ToLower(z.String())
}

// IsReservedTier reports whether name collides with an unscheduled checkpoint.
func IsReservedTier(name string) bool {
	return name == TierCompletion || name == TierHandoff || strings.HasPrefix(name, TierEmergency)
}

// tierNamePattern keeps tier names usable as file and ledger keys.
var tierNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ValidTierName reports whether name is safe as a path component: letters,
// digits, dot, dash and underscore, starting with a letter or digit, no "..".
func ValidTierName(name string) bool {
	return tierNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// Tier is a named checkpoint that fires once usage crosses Ratio of the budget.
type Tier struct {
	Ratio float64  `yaml:"ratio" json:"ratio"`
	Name  string   `yaml:"name" json:"name"`
	Kind  TierKind `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// Profile is one immutable resource ceiling and its zone/tier policy.
type Profile struct {
	ID            string  `json:"id"`
	MaxBudget     uint64  `json:"max_budget"`
	WarningRatio  float64 `json:"warning_ratio"`
	CriticalRatio float64 `json:"critical_ratio"`
	Tiers         []Tier  `json:"tiers"`
}

// TierByName returns the profile tier with the given name.
func (p Profile) TierByName(name string) (Tier, bool) {
	for _, t := range p.Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// ProgressNotes is the caller-supplied state delta carried into a checkpoint.
type ProgressNotes struct {
	Completed       []string `json:"completed,omitempty"`
	InProgress      []string `json:"in_progress,omitempty"`
	NextSteps       []string `json:"next_steps,omitempty"`
	FreeformContext string   `json:"freeform_context,omitempty"`
}

// Empty returns true when the notes carry no content at all.
func (n ProgressNotes) Empty() bool {
	return len(n.Completed) == 0 && len(n.InProgress) == 0 &&
		len(n.NextSteps) == 0 && n.FreeformContext == ""
}

// Clone returns a copy that shares no slices with n.
func (n ProgressNotes) Clone() ProgressNotes {
	return ProgressNotes{
		Completed:       cloneStrings(n.Completed),
		InProgress:      cloneStrings(n.InProgress),
		NextSteps:       cloneStrings(n.NextSteps),
		FreeformContext: n.FreeformContext,
	}
}

// Session is the state of one monitored task instance.
type Session struct {
	ID                  string          `json:"session_id"`
	ProfileID           string          `json:"profile_id"`
	Usage               uint64          `json:"cumulative_usage"`
	LastCheckpointUsage uint64          `json:"last_checkpoint_usage"`
	Zone                Zone            `json:"zone"`
	FiredTiers          map[string]bool `json:"fired_tiers"`
	State               SessionState    `json:"state"`
	Notes               ProgressNotes   `json:"notes"`
	StartedAt           time.Time       `json:"started_at"`
}

// NewSession creates an Active session with zero usage.
func NewSession(id, profileID string) *Session {
	return &Session{
		ID:         id,
		ProfileID:  profileID,
		Zone:       ZoneNormal,
		FiredTiers: make(map[string]bool),
		State:      StateActive,
		StartedAt:  time.Now().UTC(),
	}
}

// EscalateZone advances the zone monotonically.
// If z <= current, this is a no-op.
func (s *Session) EscalateZone(z Zone) {
	if z > s.Zone {
		s.Zone = z
	}
}

// HasFired returns true if the tier already produced a checkpoint.
func (s *Session) HasFired(tier string) bool {
	return s.FiredTiers[tier]
}

// Copy returns a deep copy safe to hand outside the session lock.
func (s *Session) Copy() Session {
	c := *s
	c.FiredTiers = make(map[string]bool, len(s.FiredTiers))
	for k, v := range s.FiredTiers {
		c.FiredTiers[k] = v
	}
	c.Notes = s.Notes.Clone()
	return c
}

// Document is the checkpoint/handoff record. The first nine fields form the
// stable schema consumed by persistence and rendering collaborators.
type Document struct {
	Tier            string   `json:"tier"`
	SessionID       string   `json:"session_id"`
	UsageAtTrigger  uint64   `json:"usage_at_trigger"`
	ZoneAtTrigger   Zone     `json:"zone_at_trigger"`
	IsEmergency     bool     `json:"is_emergency"`
	Completed       []string `json:"completed"`
	InProgress      []string `json:"in_progress"`
	NextSteps       []string `json:"next_steps"`
	FreeformContext string   `json:"freeform_context,omitempty"`

	ProfileID string   `json:"profile_id,omitempty"`
	TierKind  TierKind `json:"tier_kind,omitempty"`
	MaxBudget uint64   `json:"max_budget,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Obligation is an immutable checkpoint record handed to the external sink.
// Once emitted it is never recalled.
type Obligation struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Tier           string    `json:"tier"`
	UsageAtTrigger uint64    `json:"usage_at_trigger"`
	ZoneAtTrigger  Zone      `json:"zone_at_trigger"`
	IsEmergency    bool      `json:"is_emergency"`
	Reason         string    `json:"reason,omitempty"`
	Document       Document  `json:"document"`
	EmittedAt      time.Time `json:"emitted_at"`
}

// ObligationID returns the deterministic id sinks deduplicate on.
func ObligationID(sessionID, tier string, emergency bool) string {
	id := sessionID + "/" + tier
	if emergency {
		id += "!emergency"
	}
	return id
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
