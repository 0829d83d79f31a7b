package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	title := fmt.Sprintf("budgetwatch: %s checkpoint", event.Tier)
	if event.IsEmergency {
		title = fmt.Sprintf("budgetwatch: EMERGENCY %s checkpoint", event.Tier)
	}
	fields := []any{
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Session:* %s", event.SessionID)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Zone:* %s", event.Zone)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Usage:* %d / %d", event.UsageAtTrigger, event.MaxBudget)},
		map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
	}
	blocks := []any{
		map[string]any{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": title},
		},
		map[string]any{"type": "section", "fields": fields},
	}
	if len(event.NextSteps) > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": "*Next steps:*\n• " + strings.Join(event.NextSteps, "\n• "),
			},
		})
	}
	return json.Marshal(map[string]any{"blocks": blocks})
}

func formatPagerDuty(event Event) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"dedup_key":    event.ObligationID,
		"payload": map[string]any{
			"summary":  fmt.Sprintf("budgetwatch %s checkpoint: session %s at %d", event.Tier, event.SessionID, event.UsageAtTrigger),
			"severity": severityFor(event),
			"source":   "budgetwatch",
			"custom_details": map[string]any{
				"session_id":   event.SessionID,
				"tier":         event.Tier,
				"zone":         event.Zone,
				"usage":        event.UsageAtTrigger,
				"is_emergency": event.IsEmergency,
				"reason":       event.Reason,
			},
		},
	}
	return json.Marshal(payload)
}

func severityFor(event Event) string {
	if event.IsEmergency {
		return "critical"
	}
	switch event.Zone {
	case "Overflow":
		return "critical"
	case "Critical":
		return "error"
	case "Warning":
		return "warning"
	default:
		return "info"
	}
}
