package profile

import "fmt"

// InitProfile returns a commented YAML starter template for a new profile.
func InitProfile(name string) string {
	return fmt.Sprintf(`# budgetwatch profile
# Merge into the profiles section of budgetwatch.yaml, or pass with --profiles.
profiles:
  %s:
    # Total allowance of the metered resource for one session.
    max_budget: 200000

    # Zone boundaries as fractions of max_budget.
    # usage < warning -> Normal, < critical -> Warning,
    # <= max_budget -> Critical, above -> Overflow.
    warning_ratio: 0.75
    critical_ratio: 0.90

    # Checkpoint tiers, strictly increasing. Each fires once per session.
    # kind: quick | detailed | major | final (inferred from name when omitted).
    # major and final tiers reject empty progress notes.
    # The highest ratio must be above warning_ratio.
    tiers:
      - ratio: 0.25
        name: quick
      - ratio: 0.50
        name: detailed
      - ratio: 0.75
        name: major
      - ratio: 0.875
        name: final
      # - ratio: 0.95
      #   name: last-call
      #   kind: final
`, name)
}
