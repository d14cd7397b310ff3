package model

import "time"

// CommandKind is the canonical form a tracker command was classified as.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandPosition
	CommandVelocity
	CommandPosVel
	CommandAttitude
	CommandAccel
)

func (k CommandKind) String() string {
	switch k {
	case CommandPosition:
		return "position"
	case CommandVelocity:
		return "velocity"
	case CommandPosVel:
		return "posvel"
	case CommandAttitude:
		return "attitude"
	case CommandAccel:
		return "accel"
	default:
		return "none"
	}
}

// Vector3 is a plain three-component vector. Units depend on the field.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Location is a global position. Lat/Lng are degrees * 1e7, Alt is in cm.
// Altitudes handed to the motion controller are always relative: either to
// home, or to terrain when TerrainAlt is set.
type Location struct {
	Lat         int32 `json:"lat"`
	Lng         int32 `json:"lng"`
	AltCm       int32 `json:"alt_cm"`
	RelativeAlt bool  `json:"relative_alt"`
	TerrainAlt  bool  `json:"terrain_alt"`
}

// Command is the latest decoded tracker command. Only the fields implied by
// Kind are meaningful.
type Command struct {
	Kind       CommandKind `json:"kind"`
	Pos        Location    `json:"pos"`
	VelCms     Vector3     `json:"vel_cms"`
	AccelCmss  Vector3     `json:"accel_cmss"`
	AttCd      Vector3     `json:"att_cd"`
	IsYawRate  bool        `json:"is_yaw_rate"`
	Unconsumed bool        `json:"unconsumed"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// PosVelCmd is the payload of a position+velocity command.
type PosVelCmd struct {
	Pos       Location `json:"pos"`
	VelCms    Vector3  `json:"vel_cms"`
	YawCd     float64  `json:"yaw_cd"`
	IsYawRate bool     `json:"is_yaw_rate"`
}

// AttitudeCmd is the payload of an attitude + climb-rate command.
type AttitudeCmd struct {
	AttCd     Vector3 `json:"att_cd"`
	VzCms     float64 `json:"vz_cms"`
	IsYawRate bool    `json:"is_yaw_rate"`
}

// AccelCmd is the payload of an acceleration + yaw + climb-rate command.
type AccelCmd struct {
	AccelCmss Vector3 `json:"accel_cmss"`
	YawCd     float64 `json:"yaw_cd"`
	VzCms     float64 `json:"vz_cms"`
	IsYawRate bool    `json:"is_yaw_rate"`
}

// MarshalText renders the kind by name in JSON payloads.
func (k CommandKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseCommandKind is the inverse of CommandKind.String for pullable kinds.
func ParseCommandKind(s string) (CommandKind, bool) {
	for k := CommandPosition; k <= CommandAccel; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return CommandNone, false
}
