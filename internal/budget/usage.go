package budget

import "github.com/ppiankov/budgetwatch/internal/model"

// Usage captures a session's consumption against its profile ceiling.
type Usage struct {
	Used      uint64  `json:"used"`
	Max       uint64  `json:"max"`
	Remaining uint64  `json:"remaining"`
	Ratio     float64 `json:"ratio"`
	Exceeded  bool    `json:"exceeded"`
}

// Snapshot reads current usage from the session against the profile.
func Snapshot(s model.Session, p model.Profile) Usage {
	u := Usage{
		Used: s.Usage,
		Max:  p.MaxBudget,
	}
	if s.Usage < p.MaxBudget {
		u.Remaining = p.MaxBudget - s.Usage
	}
	if p.MaxBudget > 0 {
		u.Ratio = float64(s.Usage) / float64(p.MaxBudget)
	}
	u.Exceeded = s.Usage > p.MaxBudget
	return u
}
