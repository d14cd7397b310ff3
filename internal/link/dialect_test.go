package link

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/model"
)

type foreignMessage struct{}

func (*foreignMessage) GetID() uint32 { return 0 }

func TestMessagesRoundTripThroughDialect(t *testing.T) {
	msgs := []model.Message{
		model.StatusMessage{TakeoffReady: 1, Failsafe: model.FailsafeCommboxOK, Status: model.StatusTrackingTag, AtLocation: 1},
		model.CommandMessage{
			Lat:      -338688000,
			Lon:      1512093000,
			Alt:      42.5,
			Frame:    model.FrameGlobalRelativeAltInt,
			Vel:      [3]float32{1, 2, 3},
			Att:      [3]float32{0, 0, 1.5},
			TypeMask: core.MaskPosition | core.MaskVelocity,
		},
		model.TagEstimateMessage{X: 0.5, Y: -0.25, Z: 12, Yaw: 3, TimestampUs: 1<<40 + 7},
		model.TetherStatusMessage{CableOut: 88.5, SpoolStatus: model.SpoolReelingIn, CableTension: 91},
	}

	for _, msg := range msgs {
		t.Run(msg.ID().String(), func(t *testing.T) {
			wire, err := ToMAVLink(msg)
			if err != nil {
				t.Fatalf("ToMAVLink: %v", err)
			}
			if wire.GetID() != uint32(msg.ID()) {
				t.Fatalf("wire id = %d, want %d", wire.GetID(), msg.ID())
			}
			got, err := FromMAVLink(wire)
			if err != nil {
				t.Fatalf("FromMAVLink: %v", err)
			}
			if got != msg {
				t.Fatalf("converted %+v, want %+v", got, msg)
			}
		})
	}
}

func TestDialectListsEveryPlanckMessage(t *testing.T) {
	want := map[uint32]bool{
		uint32(model.MsgIDStatus):             true,
		uint32(model.MsgIDCommand):            true,
		uint32(model.MsgIDCommandRequest):     true,
		uint32(model.MsgIDLandingTagEstimate): true,
		uint32(model.MsgIDDeckTetherStatus):   true,
	}
	if len(Dialect.Messages) != len(want) {
		t.Fatalf("dialect has %d messages, want %d", len(Dialect.Messages), len(want))
	}
	for _, m := range Dialect.Messages {
		if !want[m.GetID()] {
			t.Fatalf("unexpected message id %d in dialect", m.GetID())
		}
		delete(want, m.GetID())
	}
}

func TestRequestRatesAreRawBits(t *testing.T) {
	// Up rate 0x7FC0 puts all ones in the float exponent; the slot must still
	// carry the exact bits.
	packed := core.EncodeRates(0x7FC0, 123)
	req := model.Request{
		TargetSystem:    1,
		TargetComponent: 25,
		Type:            model.RequestMoveTarget,
		Params:          [5]float32{7, 1, 2, 3, 1},
		PackedRates:     packed,
		HasRates:        true,
	}
	wire, err := ToMAVLink(req)
	if err != nil {
		t.Fatalf("ToMAVLink: %v", err)
	}
	cmd := wire.(*MessagePlanckCmdRequest)
	if got := math.Float32bits(cmd.Param6); got != packed {
		t.Fatalf("param6 = %#08x, want %#08x", got, packed)
	}
	if cmd.Param1 != 7 || cmd.Param5 != 1 {
		t.Fatalf("params not carried: %+v", cmd)
	}

	back, err := FromMAVLink(wire)
	if err != nil {
		t.Fatalf("FromMAVLink: %v", err)
	}
	if back != req {
		t.Fatalf("converted %+v, want %+v", back, req)
	}
}

func TestRequestWithoutRatesZeroesSlot(t *testing.T) {
	wire, err := ToMAVLink(model.Request{Type: model.RequestStop, PackedRates: 0xFFFFFFFF})
	if err != nil {
		t.Fatalf("ToMAVLink: %v", err)
	}
	if got := math.Float32bits(wire.(*MessagePlanckCmdRequest).Param6); got != 0 {
		t.Fatalf("param6 = %#08x, want 0", got)
	}
	msg, err := FromMAVLink(wire)
	if err != nil {
		t.Fatalf("FromMAVLink: %v", err)
	}
	if msg.(model.Request).HasRates {
		t.Fatalf("zero slot converted as carrying rates")
	}
}

func TestUnknownMessagesAreRejected(t *testing.T) {
	if _, err := FromMAVLink(&foreignMessage{}); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("FromMAVLink(foreign) err = %v, want ErrUnknownMessage", err)
	}
	if _, err := FromMAVLink(nil); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("FromMAVLink(nil) err = %v, want ErrUnknownMessage", err)
	}
	if _, err := ToMAVLink(nil); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("ToMAVLink(nil) err = %v, want ErrUnknownMessage", err)
	}
}
