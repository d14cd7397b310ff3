package model

// RequestType is the discriminant of an outbound command request.
type RequestType uint8

const (
	RequestTakeoff RequestType = iota + 1
	RequestMoveTarget
	RequestRTB
	RequestLand
	RequestStop
)

func (t RequestType) String() string {
	switch t {
	case RequestTakeoff:
		return "takeoff"
	case RequestMoveTarget:
		return "move_target"
	case RequestRTB:
		return "rtb"
	case RequestLand:
		return "land"
	case RequestStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Request is an outbound request to Planck. Params holds param1..param5.
// When HasRates is set, slot six carries PackedRates; the link dialect is the
// only place that turns it into a float bit pattern.
type Request struct {
	TargetSystem    uint8
	TargetComponent uint8
	Type            RequestType
	Params          [5]float32
	PackedRates     uint32
	HasRates        bool
}

func (Request) ID() MessageID { return MsgIDCommandRequest }
