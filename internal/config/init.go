package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitTemplate is the commented starter config written by "budgetwatch init".
const InitTemplate = `# budgetwatch configuration
#
# Profiles here override the built-ins by id.
profiles:
  my-task:
    max_budget: 50000
    warning_ratio: 0.70
    critical_ratio: 0.90
    tiers:
      - ratio: 0.30
        name: quick
      - ratio: 0.60
        name: detailed
      - ratio: 0.85
        name: major
      - ratio: 0.95
        name: final

sinks:
  ledger:
    enabled: true
    path: ~/.budgetwatch/ledger.jsonl
  sqlite:
    enabled: false
    path: ~/.budgetwatch/checkpoints.db
  outbox:
    enabled: false
    dir: ~/.budgetwatch/outbox
  webhooks: []
  #  - url: https://hooks.slack.com/services/...
  #    format: slack
  #    events: [emergency, final]

server:
  listen: 127.0.0.1:7420

daemon:
  inbox: ~/.budgetwatch/inbox
  results: ~/.budgetwatch/results
  state: ~/.budgetwatch/state
  workers: 4
  poll_interval: 2s
`

// WriteTemplate writes InitTemplate to path. It refuses to overwrite an
// existing file unless force is set.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(InitTemplate), 0600)
}
