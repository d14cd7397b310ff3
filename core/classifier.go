package core

import "github.com/signalsfoundry/planck-bridge/model"

// Type-mask ranges of a Planck command message. A field group is valid only
// when every bit of its range is set.
const (
	MaskPosition uint16 = 0x0007
	MaskVelocity uint16 = 0x0038
	MaskVz       uint16 = 0x0020
	MaskAccel    uint16 = 0x01C0
	MaskAttitude uint16 = 0x0E00
	MaskYaw      uint16 = 0x0800
	MaskYawRate  uint16 = 0x1000
)

// CommandFields records which field groups of a command are valid.
type CommandFields struct {
	Pos     bool
	Vel     bool
	Vz      bool
	Acc     bool
	Att     bool
	Yaw     bool
	YawRate bool
}

// DecodeTypeMask expands a command type mask into field validity flags.
func DecodeTypeMask(mask uint16) CommandFields {
	has := func(bits uint16) bool { return mask&bits == bits }
	return CommandFields{
		Pos:     has(MaskPosition),
		Vel:     has(MaskVelocity),
		Vz:      has(MaskVz),
		Acc:     has(MaskAccel),
		Att:     has(MaskAttitude),
		Yaw:     has(MaskYaw),
		YawRate: has(MaskYawRate),
	}
}

// Classify infers the command kind from field presence. The checks run in
// order and the first match wins; masks that fit none of them are
// CommandNone.
func Classify(f CommandFields) model.CommandKind {
	yawing := f.Yaw || f.YawRate
	switch {
	case f.Pos && !f.Vel:
		return model.CommandPosition
	case f.Pos && f.Vel:
		return model.CommandPosVel
	case f.Vel:
		return model.CommandVelocity
	case f.Vz && !f.Acc && f.Att && yawing:
		return model.CommandAttitude
	case f.Vz && f.Acc && !f.Att && yawing:
		return model.CommandAccel
	default:
		return model.CommandNone
	}
}
