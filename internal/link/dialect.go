// Package link carries Planck messages over MAVLink.
//
// The PLANCK_* messages form a small custom dialect served by gomavlib. This
// package is the only place that converts between those wire structs and the
// model types, including the request's sixth parameter, which carries the
// packed climb/descent rates as raw float32 bits.
package link

import (
	"errors"
	"fmt"
	"math"

	"github.com/bluenviron/gomavlib/v3/pkg/dialect"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/model"
)

// ErrUnknownMessage indicates a message outside the Planck dialect.
var ErrUnknownMessage = errors.New("unknown message")

// MessagePlanckStatus is PLANCK_STATUS.
type MessagePlanckStatus struct {
	TakeoffReady    uint8
	LandReady       uint8
	Failsafe        uint8
	Status          uint8
	TakeoffComplete uint8
	AtLocation      uint8
}

// GetID implements message.Message.
func (*MessagePlanckStatus) GetID() uint32 { return uint32(model.MsgIDStatus) }

// MessagePlanckCmdMsg is PLANCK_CMD_MSG.
type MessagePlanckCmdMsg struct {
	Lat      int32
	Lon      int32
	Alt      float32
	Frame    uint8
	Vel      [3]float32
	Acc      [3]float32
	Att      [3]float32
	TypeMask uint16
}

// GetID implements message.Message.
func (*MessagePlanckCmdMsg) GetID() uint32 { return uint32(model.MsgIDCommand) }

// MessagePlanckCmdRequest is PLANCK_CMD_REQUEST.
type MessagePlanckCmdRequest struct {
	TargetSystem    uint8
	TargetComponent uint8
	Type            uint8
	Param1          float32
	Param2          float32
	Param3          float32
	Param4          float32
	Param5          float32
	Param6          float32
}

// GetID implements message.Message.
func (*MessagePlanckCmdRequest) GetID() uint32 { return uint32(model.MsgIDCommandRequest) }

// MessagePlanckLandingTagEstimateNed is PLANCK_LANDING_TAG_ESTIMATE_NED.
type MessagePlanckLandingTagEstimateNed struct {
	X             float32
	Y             float32
	Z             float32
	Vx            float32
	Vy            float32
	Vz            float32
	Roll          float32
	Pitch         float32
	Yaw           float32
	ApTimestampUs uint64
}

// GetID implements message.Message.
func (*MessagePlanckLandingTagEstimateNed) GetID() uint32 {
	return uint32(model.MsgIDLandingTagEstimate)
}

// MessagePlanckDeckTetherStatus is PLANCK_DECK_TETHER_STATUS. CableOut is in feet.
type MessagePlanckDeckTetherStatus struct {
	CableOut     float32
	SpoolStatus  uint8
	CableTension uint8
}

// GetID implements message.Message.
func (*MessagePlanckDeckTetherStatus) GetID() uint32 {
	return uint32(model.MsgIDDeckTetherStatus)
}

// Dialect is the Planck MAVLink dialect.
var Dialect = &dialect.Dialect{
	Version: 1,
	Messages: []message.Message{
		&MessagePlanckStatus{},
		&MessagePlanckCmdMsg{},
		&MessagePlanckCmdRequest{},
		&MessagePlanckLandingTagEstimateNed{},
		&MessagePlanckDeckTetherStatus{},
	},
}

// FromMAVLink converts a decoded dialect message into its model form.
func FromMAVLink(m message.Message) (model.Message, error) {
	switch m := m.(type) {
	case *MessagePlanckStatus:
		return model.StatusMessage{
			TakeoffReady:    m.TakeoffReady,
			LandReady:       m.LandReady,
			Failsafe:        m.Failsafe,
			Status:          m.Status,
			TakeoffComplete: m.TakeoffComplete,
			AtLocation:      m.AtLocation,
		}, nil
	case *MessagePlanckCmdMsg:
		return model.CommandMessage{
			Lat:      m.Lat,
			Lon:      m.Lon,
			Alt:      m.Alt,
			Frame:    model.Frame(m.Frame),
			Vel:      m.Vel,
			Acc:      m.Acc,
			Att:      m.Att,
			TypeMask: m.TypeMask,
		}, nil
	case *MessagePlanckLandingTagEstimateNed:
		return model.TagEstimateMessage{
			X:           m.X,
			Y:           m.Y,
			Z:           m.Z,
			VX:          m.Vx,
			VY:          m.Vy,
			VZ:          m.Vz,
			Roll:        m.Roll,
			Pitch:       m.Pitch,
			Yaw:         m.Yaw,
			TimestampUs: m.ApTimestampUs,
		}, nil
	case *MessagePlanckDeckTetherStatus:
		return model.TetherStatusMessage{
			CableOut:     m.CableOut,
			SpoolStatus:  model.SpoolState(m.SpoolStatus),
			CableTension: m.CableTension,
		}, nil
	case *MessagePlanckCmdRequest:
		packed := math.Float32bits(m.Param6)
		return model.Request{
			TargetSystem:    m.TargetSystem,
			TargetComponent: m.TargetComponent,
			Type:            model.RequestType(m.Type),
			Params:          [5]float32{m.Param1, m.Param2, m.Param3, m.Param4, m.Param5},
			PackedRates:     packed,
			HasRates:        core.HasRateMarker(packed),
		}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil message", ErrUnknownMessage)
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownMessage, m.GetID())
	}
}

// ToMAVLink converts a model message into its dialect form.
func ToMAVLink(msg model.Message) (message.Message, error) {
	switch m := msg.(type) {
	case model.StatusMessage:
		return &MessagePlanckStatus{
			TakeoffReady:    m.TakeoffReady,
			LandReady:       m.LandReady,
			Failsafe:        m.Failsafe,
			Status:          m.Status,
			TakeoffComplete: m.TakeoffComplete,
			AtLocation:      m.AtLocation,
		}, nil
	case model.CommandMessage:
		return &MessagePlanckCmdMsg{
			Lat:      m.Lat,
			Lon:      m.Lon,
			Alt:      m.Alt,
			Frame:    uint8(m.Frame),
			Vel:      m.Vel,
			Acc:      m.Acc,
			Att:      m.Att,
			TypeMask: m.TypeMask,
		}, nil
	case model.TagEstimateMessage:
		return &MessagePlanckLandingTagEstimateNed{
			X:             m.X,
			Y:             m.Y,
			Z:             m.Z,
			Vx:            m.VX,
			Vy:            m.VY,
			Vz:            m.VZ,
			Roll:          m.Roll,
			Pitch:         m.Pitch,
			Yaw:           m.Yaw,
			ApTimestampUs: m.TimestampUs,
		}, nil
	case model.TetherStatusMessage:
		return &MessagePlanckDeckTetherStatus{
			CableOut:     m.CableOut,
			SpoolStatus:  uint8(m.SpoolStatus),
			CableTension: m.CableTension,
		}, nil
	case model.Request:
		return requestToMAVLink(m), nil
	case nil:
		return nil, fmt.Errorf("%w: nil message", ErrUnknownMessage)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, msg.ID())
	}
}

// requestToMAVLink writes the packed rates into param6 as raw bits. Without
// rates the slot is zero.
func requestToMAVLink(req model.Request) *MessagePlanckCmdRequest {
	out := &MessagePlanckCmdRequest{
		TargetSystem:    req.TargetSystem,
		TargetComponent: req.TargetComponent,
		Type:            uint8(req.Type),
		Param1:          req.Params[0],
		Param2:          req.Params[1],
		Param3:          req.Params[2],
		Param4:          req.Params[3],
		Param5:          req.Params[4],
	}
	if req.HasRates {
		out.Param6 = math.Float32frombits(req.PackedRates)
	}
	return out
}
