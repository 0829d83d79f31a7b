package webhook

// Config defines a webhook destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // tier names, "emergency", "completion", "handoff"; empty = all
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the generic payload sent to webhook endpoints.
type Event struct {
	Timestamp      string   `json:"timestamp"`
	ObligationID   string   `json:"obligation_id"`
	SessionID      string   `json:"session_id"`
	ProfileID      string   `json:"profile_id,omitempty"`
	Tier           string   `json:"tier"`
	UsageAtTrigger uint64   `json:"usage_at_trigger"`
	MaxBudget      uint64   `json:"max_budget,omitempty"`
	Zone           string   `json:"zone"`
	IsEmergency    bool     `json:"is_emergency"`
	Reason         string   `json:"reason,omitempty"`
	Completed      []string `json:"completed"`
	InProgress     []string `json:"in_progress"`
	NextSteps      []string `json:"next_steps"`
}
