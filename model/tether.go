package model

import "time"

// SpoolState is the deck winch spool mode.
type SpoolState uint8

const (
	SpoolIdle SpoolState = iota
	SpoolLocked
	SpoolPayingOut
	SpoolReelingIn
)

func (s SpoolState) String() string {
	switch s {
	case SpoolIdle:
		return "idle"
	case SpoolLocked:
		return "locked"
	case SpoolPayingOut:
		return "paying_out"
	case SpoolReelingIn:
		return "reeling_in"
	default:
		return "unknown"
	}
}

// TetherStatus is the bridge's view of the tether, combining the latest deck
// report with the latched altitudes used by the high-tension timeout.
type TetherStatus struct {
	CableOutM  float64    `json:"cable_out_m"`
	SpoolState SpoolState `json:"spool_state"`
	Tension    uint8      `json:"tension"`

	HighTension bool `json:"high_tension"`

	// LastTelemetryAt is when the last deck report arrived.
	LastTelemetryAt time.Time `json:"last_telemetry_at"`
	// TransitionAt is refreshed on every report while tension is nominal and
	// frozen once high tension is entered.
	TransitionAt time.Time `json:"transition_at"`

	// TagAltCm is the tag altitude at TransitionAt, 0 if no tag was tracked.
	TagAltCm float64 `json:"tag_alt_cm"`
	// VehicleAltCm is the altitude above home at TransitionAt.
	VehicleAltCm float64 `json:"vehicle_alt_cm"`

	CommsTimedOut   bool `json:"comms_timed_out"`
	FailureNotified bool `json:"failure_notified"`
}
