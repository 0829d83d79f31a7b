package budget

import (
	"fmt"
	"math"

	"github.com/ppiankov/budgetwatch/internal/model"
)

// Apply adds delta to the session's cumulative usage and returns the new total.
// Usage is never clamped to the profile ceiling: exceeding it is signalled
// through the Overflow zone, not rejected here.
//
// Rejections leave the session untouched.
func Apply(s *model.Session, delta int64) (uint64, error) {
	if delta < 0 {
		return s.Usage, fmt.Errorf("%w: %d", model.ErrNegativeDelta, delta)
	}
	if s.State.Terminal() {
		return s.Usage, fmt.Errorf("%w: session %s is %s", model.ErrSessionTerminal, s.ID, s.State)
	}
	d := uint64(delta)
	if s.Usage > math.MaxUint64-d {
		return s.Usage, fmt.Errorf("%w: %d + %d exceeds counter range", model.ErrUsageOverflow, s.Usage, d)
	}
	s.Usage += d
	return s.Usage, nil
}
