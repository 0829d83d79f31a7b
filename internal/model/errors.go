package model

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by the engine wraps one of these.
var (
	ErrInvalidProfile  = errors.New("invalid profile")
	ErrUnknownProfile  = errors.New("unknown profile")
	ErrUnknownSession  = errors.New("unknown session")
	ErrSessionExists   = errors.New("session already exists")
	ErrNegativeDelta   = errors.New("negative usage delta")
	ErrSessionTerminal = errors.New("session is terminal")
	ErrUsageOverflow   = errors.New("usage counter overflow")
	ErrIncompleteNotes = errors.New("incomplete progress notes")
)

// ProfileError reports which profile failed validation and why.
type ProfileError struct {
	ProfileID string
	Reason    string
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("invalid profile %q: %s", e.ProfileID, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidProfile) hold.
func (e *ProfileError) Unwrap() error {
	return ErrInvalidProfile
}
