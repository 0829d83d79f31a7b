package model

import "fmt"

// Zone is the discrete urgency classification of a session's usage.
// Ordered by severity; a session's zone can only advance.
type Zone int

const (
	ZoneNormal   Zone = 0
	ZoneWarning  Zone = 1
	ZoneCritical Zone = 2
	ZoneOverflow Zone = 3
)

func (z Zone) String() string {
	switch z {
	case ZoneNormal:
		return "Normal"
	case ZoneWarning:
		return "Warning"
	case ZoneCritical:
		return "Critical"
	case ZoneOverflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// ParseZone maps a zone name back to its value. Case-sensitive, matching String().
func ParseZone(s string) (Zone, error) {
	switch s {
	case "Normal":
		return ZoneNormal, nil
	case "Warning":
		return ZoneWarning, nil
	case "Critical":
		return ZoneCritical, nil
	case "Overflow":
		return ZoneOverflow, nil
	default:
		return ZoneNormal, fmt.Errorf("unknown zone %q", s)
	}
}

// MarshalText encodes the zone by name so documents stay readable.
func (z Zone) MarshalText() ([]byte, error) {
	if z < ZoneNormal || z > ZoneOverflow {
		return nil, fmt.Errorf("invalid zone %d", int(z))
	}
	return []byte(z.String()), nil
}

// UnmarshalText decodes a zone name.
func (z *Zone) UnmarshalText(text []byte) error {
	v, err := ParseZone(string(text))
	if err != nil {
		return err
	}
	*z = v
	return nil
}

// SessionState is the lifecycle state of a monitored session.
type SessionState string

const (
	StateActive    SessionState = "active"
	StateCompleted SessionState = "completed"
	StateHandedOff SessionState = "handed_off"
)

// Terminal returns true for states that accept no further usage reports.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateHandedOff
}
