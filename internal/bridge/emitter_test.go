package bridge

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/model"
)

type captureSender struct {
	sent []model.Request
	err  error
}

func (c *captureSender) Send(_ context.Context, req model.Request) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, req)
	return nil
}

func (c *captureSender) last(t *testing.T) model.Request {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatalf("nothing sent")
	}
	return c.sent[len(c.sent)-1]
}

var testTarget = Target{System: 1, Component: DefaultPlanckComponentID}

func TestEmitterRequestLayouts(t *testing.T) {
	h := newHarness(t, fakePose{})
	sender := &captureSender{}
	e := h.b.NewEmitter(sender, testTarget)
	ctx := context.Background()

	tests := []struct {
		name       string
		send       func() error
		wantType   model.RequestType
		wantParams [5]float32
		wantRates  bool
	}{
		{
			name:       "takeoff",
			send:       func() error { return e.RequestTakeoff(ctx, 15) },
			wantType:   model.RequestTakeoff,
			wantParams: [5]float32{15},
		},
		{
			name:       "alt change",
			send:       func() error { return e.RequestAltChange(ctx, 30, 150, 90) },
			wantType:   model.RequestMoveTarget,
			wantParams: [5]float32{4, 0, 0, 30, 0},
			wantRates:  true,
		},
		{
			name:       "rtb",
			send:       func() error { return e.RequestRTB(ctx, 40, 2, 1.5, 5) },
			wantType:   model.RequestRTB,
			wantParams: [5]float32{40, 2, 1.5, 5, 0},
		},
		{
			name:       "land",
			send:       func() error { return e.RequestLand(ctx, 0.7) },
			wantType:   model.RequestLand,
			wantParams: [5]float32{0.7},
		},
		{
			name:       "move target rate",
			send:       func() error { return e.RequestMoveTarget(ctx, model.Vector3{X: 1, Y: -2, Z: 0.5}, true, 100, 50) },
			wantType:   model.RequestMoveTarget,
			wantParams: [5]float32{7, 1, -2, 0.5, 1},
			wantRates:  true,
		},
		{
			name:       "move target offset",
			send:       func() error { return e.RequestMoveTarget(ctx, model.Vector3{X: 3}, false, 0, 0) },
			wantType:   model.RequestMoveTarget,
			wantParams: [5]float32{7, 3, 0, 0, 0},
			wantRates:  true,
		},
		{
			name:     "stop",
			send:     func() error { return e.StopCommanding(ctx) },
			wantType: model.RequestStop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.send(); err != nil {
				t.Fatalf("send: %v", err)
			}
			req := sender.last(t)
			if req.TargetSystem != 1 || req.TargetComponent != DefaultPlanckComponentID {
				t.Fatalf("target = %d/%d", req.TargetSystem, req.TargetComponent)
			}
			if req.Type != tt.wantType {
				t.Fatalf("type = %s, want %s", req.Type, tt.wantType)
			}
			if req.Params != tt.wantParams {
				t.Fatalf("params = %v, want %v", req.Params, tt.wantParams)
			}
			if req.HasRates != tt.wantRates {
				t.Fatalf("HasRates = %v, want %v", req.HasRates, tt.wantRates)
			}
			if tt.wantRates && !core.HasRateMarker(req.PackedRates) {
				t.Fatalf("packed rates %#x missing marker", req.PackedRates)
			}
		})
	}
}

func TestAltChangePacksRates(t *testing.T) {
	h := newHarness(t, fakePose{})
	sender := &captureSender{}
	e := h.b.NewEmitter(sender, testTarget)

	if err := e.RequestAltChange(context.Background(), 20, -150, 40000); err != nil {
		t.Fatalf("RequestAltChange: %v", err)
	}
	up, down := core.DecodeRates(sender.last(t).PackedRates)
	if up != 150 || down != core.RateMax {
		t.Fatalf("decoded rates = (%v, %v), want (150, %d)", up, down, core.RateMax)
	}
	if math.Float32bits(math.Float32frombits(sender.last(t).PackedRates)) != sender.last(t).PackedRates {
		t.Fatalf("packed rates do not survive a float bit-cast")
	}
}

func TestMoveTargetClearsArrivalLatch(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()
	e := h.b.NewEmitter(&captureSender{}, testTarget)

	h.b.Handle(ctx, model.StatusMessage{AtLocation: 1})
	if err := e.RequestTakeoff(ctx, 10); err != nil {
		t.Fatalf("RequestTakeoff: %v", err)
	}
	if !h.b.Status().WasAtLocation {
		t.Fatalf("non-move request cleared the latch")
	}

	if err := e.RequestMoveTarget(ctx, model.Vector3{X: 1}, false, 0, 0); err != nil {
		t.Fatalf("RequestMoveTarget: %v", err)
	}
	if h.b.ConsumeArrival() {
		t.Fatalf("latch survived a move-target request")
	}
}

func TestFailedMoveTargetKeepsLatch(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()
	boom := errors.New("link down")
	e := h.b.NewEmitter(&captureSender{err: boom}, testTarget)

	h.b.Handle(ctx, model.StatusMessage{AtLocation: 1})
	err := e.RequestMoveTarget(ctx, model.Vector3{Y: 1}, true, 10, 10)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
	if !h.b.ConsumeArrival() {
		t.Fatalf("latch cleared although the request was not sent")
	}
}

func TestEmitterWithoutSender(t *testing.T) {
	rec := newRecordingMetrics()
	b := New(nil, nil, nil, WithMetricsRecorder(rec))
	e := b.NewEmitter(nil, testTarget)
	if err := e.RequestLand(context.Background(), 1); !errors.Is(err, ErrNoSender) {
		t.Fatalf("err = %v, want ErrNoSender", err)
	}
	if !errors.Is(rec.requests[model.RequestLand], ErrNoSender) {
		t.Fatalf("request metric not recorded with error")
	}
}
