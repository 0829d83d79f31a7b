package ledger

import "github.com/ppiankov/budgetwatch/internal/model"

// TimestampFormat is the layout used in ledger entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one line in the hash-chained JSONL ledger.
// All fields are structs (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp      string         `json:"ts"`
	ObligationID   string         `json:"obligation_id"`
	SessionID      string         `json:"session_id"`
	Tier           string         `json:"tier"`
	UsageAtTrigger uint64         `json:"usage_at_trigger"`
	ZoneAtTrigger  model.Zone     `json:"zone_at_trigger"`
	IsEmergency    bool           `json:"is_emergency"`
	Reason         string         `json:"reason,omitempty"`
	Digest         string         `json:"document_digest"`
	Document       model.Document `json:"document"`
	PrevHash       string         `json:"prev_hash"`
}
