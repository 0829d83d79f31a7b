package budgetwatch

import (
	"context"
	"errors"
	"fmt"
)

// UnitFunc performs one unit of work and returns how many budget units it
// consumed. Usage is reported even when err is non-nil.
type UnitFunc func(ctx context.Context) (int64, error)

// MeteredFunc is a UnitFunc whose usage has been reported.
type MeteredFunc func(ctx context.Context) (Result, error)

// NotesFunc supplies the current progress notes before each report.
type NotesFunc func() Notes

// MeterOption configures a single Meter call.
type MeterOption func(*meterConfig)

type meterConfig struct {
	notes NotesFunc
}

// MeterWithNotes refreshes the session's notes from fn before every report,
// so tiers that require notes never fail for lack of them.
func MeterWithNotes(fn NotesFunc) MeterOption {
	return func(m *meterConfig) { m.notes = fn }
}

// Meter returns a function that calls fn and reports its usage against
// sessionID. A terminal session is refused before fn runs. The returned
// error joins fn's error with the report error.
func (c *Client) Meter(sessionID string, fn UnitFunc, opts ...MeterOption) MeteredFunc {
	var mcfg meterConfig
	for _, o := range opts {
		o(&mcfg)
	}

	return func(ctx context.Context) (Result, error) {
		st, err := c.mgr.Status(sessionID)
		if err != nil {
			return Result{}, err
		}
		if st.Session.State.Terminal() {
			return Result{Session: st.Session}, fmt.Errorf("%w: %s", ErrSessionTerminal, sessionID)
		}

		units, fnErr := fn(ctx)

		var res Result
		var repErr error
		if mcfg.notes != nil {
			res, repErr = c.ReportWithNotes(ctx, sessionID, units, mcfg.notes())
		} else {
			res, repErr = c.Report(ctx, sessionID, units)
		}
		return res, errors.Join(fnErr, repErr)
	}
}
