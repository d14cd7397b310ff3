package model

// MessageID identifies a Planck dialect message on the wire.
type MessageID uint16

const (
	MsgIDStatus             MessageID = 11000
	MsgIDCommand            MessageID = 11001
	MsgIDCommandRequest     MessageID = 11002
	MsgIDLandingTagEstimate MessageID = 11003
	MsgIDDeckTetherStatus   MessageID = 11004
)

// String returns a short label suitable for logs and metric labels.
func (id MessageID) String() string {
	switch id {
	case MsgIDStatus:
		return "status"
	case MsgIDCommand:
		return "command"
	case MsgIDCommandRequest:
		return "command_request"
	case MsgIDLandingTagEstimate:
		return "tag_estimate"
	case MsgIDDeckTetherStatus:
		return "tether_status"
	default:
		return "unknown"
	}
}

// Message is any decoded inbound or outbound Planck message.
type Message interface {
	ID() MessageID
}

// Frame is the MAVLink coordinate frame carried by a command message.
type Frame uint8

const (
	FrameGlobal               Frame = 0
	FrameGlobalRelativeAlt    Frame = 3
	FrameGlobalInt            Frame = 5
	FrameGlobalRelativeAltInt Frame = 6
	FrameGlobalTerrainAlt     Frame = 10
	FrameGlobalTerrainAltInt  Frame = 11
)

// Status bits.
const (
	FailsafeCommboxOK    uint8 = 0x01
	FailsafeCommboxGPSOK uint8 = 0x02

	StatusTrackingTag        uint8 = 0x01
	StatusTrackingCommboxGPS uint8 = 0x02
)

// StatusMessage is the raw Planck status report.
type StatusMessage struct {
	TakeoffReady    uint8
	LandReady       uint8
	Failsafe        uint8
	Status          uint8
	TakeoffComplete uint8
	AtLocation      uint8
}

func (StatusMessage) ID() MessageID { return MsgIDStatus }

// CommandMessage is a motion command sent by the tracker. Lat/Lon are in
// degrees * 1e7, Alt in metres, rates in SI units, attitude in radians.
type CommandMessage struct {
	Lat      int32
	Lon      int32
	Alt      float32
	Frame    Frame
	Vel      [3]float32
	Acc      [3]float32
	Att      [3]float32
	TypeMask uint16
}

func (CommandMessage) ID() MessageID { return MsgIDCommand }

// TagEstimateMessage is the landing tag pose in the local NED frame.
type TagEstimateMessage struct {
	X, Y, Z          float32
	VX, VY, VZ       float32
	Roll, Pitch, Yaw float32
	TimestampUs      uint64
}

func (TagEstimateMessage) ID() MessageID { return MsgIDLandingTagEstimate }

// TetherStatusMessage is the deck winch report. CableOut is in feet.
type TetherStatusMessage struct {
	CableOut     float32
	SpoolStatus  SpoolState
	CableTension uint8
}

func (TetherStatusMessage) ID() MessageID { return MsgIDDeckTetherStatus }
