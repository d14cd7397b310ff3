package bridge

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/model"
	"github.com/signalsfoundry/planck-bridge/timectrl"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakePose struct {
	home  int32
	alt   int32
	altOK bool
}

func (p fakePose) HomeAltCm() int32              { return p.home }
func (p fakePose) AltAboveHomeCm() (int32, bool) { return p.alt, p.altOK }

type fakeMotors struct{ armed bool }

func (m *fakeMotors) Armed() bool { return m.armed }

type recordingSink struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (s *recordingSink) Notify(_ context.Context, n model.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *recordingSink) count(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.notices {
		if got.Text == text {
			n++
		}
	}
	return n
}

type harness struct {
	b      *Bridge
	clock  *timectrl.Manual
	motors *fakeMotors
	sink   *recordingSink
}

func newHarness(t *testing.T, pose PoseSource) *harness {
	t.Helper()
	h := &harness{
		clock:  timectrl.NewManual(t0),
		motors: &fakeMotors{armed: true},
		sink:   &recordingSink{},
	}
	h.b = New(pose, h.motors, nil, WithClock(h.clock), WithEventSink(h.sink))
	return h
}

func TestPositionCommandIsDeliveredOnce(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()

	h.b.Handle(ctx, model.CommandMessage{
		Lat:      473977418,
		Lon:      85455939,
		Alt:      12.5,
		Frame:    model.FrameGlobalRelativeAlt,
		TypeMask: core.MaskPosition,
	})

	loc, err := h.b.TakePositionCmd(ctx)
	if err != nil {
		t.Fatalf("TakePositionCmd: %v", err)
	}
	if loc.Lat != 473977418 || loc.Lng != 85455939 || loc.AltCm != 1250 {
		t.Fatalf("unexpected location %+v", loc)
	}
	if !loc.RelativeAlt || loc.TerrainAlt {
		t.Fatalf("expected home-relative altitude, got %+v", loc)
	}

	if _, err := h.b.TakePositionCmd(ctx); !errors.Is(err, ErrNoNewCommand) {
		t.Fatalf("second pull error = %v, want ErrNoNewCommand", err)
	}
}

func TestNoCommandBeforeFirstMessage(t *testing.T) {
	h := newHarness(t, fakePose{})
	if _, err := h.b.TakeVelocityCmd(context.Background()); !errors.Is(err, ErrNoNewCommand) {
		t.Fatalf("err = %v, want ErrNoNewCommand", err)
	}
	if _, pending := h.b.PendingCommandKind(); pending {
		t.Fatalf("fresh bridge should have nothing pending")
	}
}

func TestKindMismatchLeavesCommandPending(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()

	h.b.Handle(ctx, model.CommandMessage{
		Vel:      [3]float32{1, -2, 0.5},
		TypeMask: core.MaskVelocity,
	})

	if _, err := h.b.TakePositionCmd(ctx); !errors.Is(err, ErrCommandKindMismatch) {
		t.Fatalf("err = %v, want ErrCommandKindMismatch", err)
	}
	kind, pending := h.b.PendingCommandKind()
	if !pending || kind != model.CommandVelocity {
		t.Fatalf("pending = (%s, %v), want (velocity, true)", kind, pending)
	}

	vel, err := h.b.TakeVelocityCmd(ctx)
	if err != nil {
		t.Fatalf("TakeVelocityCmd: %v", err)
	}
	if vel != (model.Vector3{X: 100, Y: -200, Z: 50}) {
		t.Fatalf("vel = %+v", vel)
	}
}

func TestNewerCommandOverwritesPending(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()

	h.b.Handle(ctx, model.CommandMessage{Vel: [3]float32{1, 0, 0}, TypeMask: core.MaskVelocity})
	h.b.Handle(ctx, model.CommandMessage{Vel: [3]float32{2, 0, 0}, TypeMask: core.MaskVelocity})

	vel, err := h.b.TakeVelocityCmd(ctx)
	if err != nil {
		t.Fatalf("TakeVelocityCmd: %v", err)
	}
	if vel.X != 200 {
		t.Fatalf("vel.X = %v, want the latest command (200)", vel.X)
	}
	if _, err := h.b.TakeVelocityCmd(ctx); !errors.Is(err, ErrNoNewCommand) {
		t.Fatalf("expected a single delivery, got %v", err)
	}
}

func TestAltitudeFrames(t *testing.T) {
	const home = 5000
	tests := []struct {
		name    string
		frame   model.Frame
		alt     float32
		wantAlt int32
		terrain bool
	}{
		{"relative", model.FrameGlobalRelativeAlt, 120.5, 12050, false},
		{"relative int", model.FrameGlobalRelativeAltInt, 10, 1000, false},
		{"terrain", model.FrameGlobalTerrainAlt, 15, 1500, true},
		{"terrain int", model.FrameGlobalTerrainAltInt, 2.25, 225, true},
		{"absolute", model.FrameGlobal, 120.5, 12050 - home, false},
		{"absolute int", model.FrameGlobalInt, 60, 6000 - home, false},
		{"unknown frame treated as absolute", model.Frame(99), 70, 7000 - home, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fakePose{home: home})
			ctx := context.Background()
			h.b.Handle(ctx, model.CommandMessage{Alt: tt.alt, Frame: tt.frame, TypeMask: core.MaskPosition})

			loc, err := h.b.TakePositionCmd(ctx)
			if err != nil {
				t.Fatalf("TakePositionCmd: %v", err)
			}
			if loc.AltCm != tt.wantAlt {
				t.Fatalf("AltCm = %d, want %d", loc.AltCm, tt.wantAlt)
			}
			if !loc.RelativeAlt || loc.TerrainAlt != tt.terrain {
				t.Fatalf("flags = relative %v terrain %v, want relative true terrain %v", loc.RelativeAlt, loc.TerrainAlt, tt.terrain)
			}
		})
	}
}

func TestCompositeCommandAccessors(t *testing.T) {
	ctx := context.Background()
	att := [3]float32{0.1, -0.2, float32(math.Pi / 2)}

	t.Run("posvel", func(t *testing.T) {
		h := newHarness(t, fakePose{})
		h.b.Handle(ctx, model.CommandMessage{
			Alt:      5,
			Frame:    model.FrameGlobalRelativeAlt,
			Vel:      [3]float32{1, 1, 0},
			Att:      att,
			TypeMask: core.MaskPosition | core.MaskVelocity | core.MaskYawRate,
		})
		cmd, err := h.b.TakePosVelCmd(ctx)
		if err != nil {
			t.Fatalf("TakePosVelCmd: %v", err)
		}
		if cmd.Pos.AltCm != 500 || cmd.VelCms.X != 100 || !cmd.IsYawRate {
			t.Fatalf("unexpected posvel %+v", cmd)
		}
		if math.Abs(cmd.YawCd-9000) > 0.01 {
			t.Fatalf("YawCd = %v, want 9000", cmd.YawCd)
		}
	})

	t.Run("attitude", func(t *testing.T) {
		h := newHarness(t, fakePose{})
		h.b.Handle(ctx, model.CommandMessage{
			Vel:      [3]float32{0, 0, -0.5},
			Att:      att,
			TypeMask: core.MaskVz | core.MaskAttitude,
		})
		cmd, err := h.b.TakeAttitudeCmd(ctx)
		if err != nil {
			t.Fatalf("TakeAttitudeCmd: %v", err)
		}
		if cmd.VzCms != -50 || cmd.IsYawRate {
			t.Fatalf("unexpected attitude %+v", cmd)
		}
		if math.Abs(cmd.AttCd.Z-9000) > 0.01 {
			t.Fatalf("AttCd.Z = %v, want 9000", cmd.AttCd.Z)
		}
	})

	t.Run("accel", func(t *testing.T) {
		h := newHarness(t, fakePose{})
		h.b.Handle(ctx, model.CommandMessage{
			Vel:      [3]float32{0, 0, 0.25},
			Acc:      [3]float32{0.5, 0, 0},
			Att:      att,
			TypeMask: core.MaskVz | core.MaskAccel | core.MaskYawRate,
		})
		cmd, err := h.b.TakeAccelCmd(ctx)
		if err != nil {
			t.Fatalf("TakeAccelCmd: %v", err)
		}
		if cmd.AccelCmss.X != 50 || cmd.VzCms != 25 || !cmd.IsYawRate {
			t.Fatalf("unexpected accel %+v", cmd)
		}
	})
}

func TestUnclassifiedCommandCannotBeTaken(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()
	h.b.Handle(ctx, model.CommandMessage{TypeMask: core.MaskAccel})

	kind, pending := h.b.PendingCommandKind()
	if kind != model.CommandNone || !pending {
		t.Fatalf("pending = (%s, %v), want (none, true)", kind, pending)
	}
	if _, err := h.b.TakeAccelCmd(ctx); !errors.Is(err, ErrCommandKindMismatch) {
		t.Fatalf("err = %v, want ErrCommandKindMismatch", err)
	}
}

func TestNonFiniteAltitudeDiscardsPositionCommand(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()
	nan := float32(math.NaN())

	h.b.Handle(ctx, model.CommandMessage{Alt: nan, Frame: model.FrameGlobalRelativeAlt, TypeMask: core.MaskPosition})
	if kind, _ := h.b.PendingCommandKind(); kind != model.CommandNone {
		t.Fatalf("kind = %s, want none", kind)
	}
	if _, err := h.b.TakePositionCmd(ctx); !errors.Is(err, ErrCommandKindMismatch) {
		t.Fatalf("err = %v, want ErrCommandKindMismatch", err)
	}

	// Altitude is irrelevant to a velocity command.
	h.b.Handle(ctx, model.CommandMessage{Alt: float32(math.Inf(1)), Vel: [3]float32{1, 0, 0}, TypeMask: core.MaskVelocity})
	if _, err := h.b.TakeVelocityCmd(ctx); err != nil {
		t.Fatalf("TakeVelocityCmd: %v", err)
	}
}

func TestOutOfRangeAltitudeSaturates(t *testing.T) {
	h := newHarness(t, fakePose{home: -500})
	ctx := context.Background()

	h.b.Handle(ctx, model.CommandMessage{Alt: 3e38, Frame: model.FrameGlobal, TypeMask: core.MaskPosition})
	loc, err := h.b.TakePositionCmd(ctx)
	if err != nil {
		t.Fatalf("TakePositionCmd: %v", err)
	}
	if loc.AltCm != math.MaxInt32 {
		t.Fatalf("AltCm = %d, want %d", loc.AltCm, int32(math.MaxInt32))
	}

	h.b.Handle(ctx, model.CommandMessage{Alt: -3e38, Frame: model.FrameGlobalRelativeAlt, TypeMask: core.MaskPosition})
	if loc, _ = h.b.TakePositionCmd(ctx); loc.AltCm != math.MinInt32 {
		t.Fatalf("AltCm = %d, want %d", loc.AltCm, int32(math.MinInt32))
	}
}

func TestOverrideWithZeroCommands(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()
	h.b.Handle(ctx, model.CommandMessage{Vel: [3]float32{3, 3, 3}, TypeMask: core.MaskVelocity})

	h.b.OverrideWithZeroVelocity(ctx)
	vel, err := h.b.TakeVelocityCmd(ctx)
	if err != nil {
		t.Fatalf("TakeVelocityCmd: %v", err)
	}
	if vel != (model.Vector3{}) {
		t.Fatalf("vel = %+v, want zero", vel)
	}

	h.b.OverrideWithZeroAttitude(ctx)
	att, err := h.b.TakeAttitudeCmd(ctx)
	if err != nil {
		t.Fatalf("TakeAttitudeCmd: %v", err)
	}
	if att != (model.AttitudeCmd{}) {
		t.Fatalf("att = %+v, want zero", att)
	}
}

func TestStatusFlagsAndArrivalLatch(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()

	h.b.Handle(ctx, model.StatusMessage{
		TakeoffReady: 1,
		Failsafe:     model.FailsafeCommboxOK,
		Status:       model.StatusTrackingTag | model.StatusTrackingCommboxGPS,
		AtLocation:   0,
	})
	st := h.b.Status()
	if !st.TakeoffReady || st.LandReady || !st.CommboxOK || st.CommboxGPSOK || !st.TrackingTag || !st.TrackingCommboxGPS {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.WasAtLocation {
		t.Fatalf("latch set before arrival")
	}

	h.b.Handle(ctx, model.StatusMessage{AtLocation: 1})
	if !h.b.Status().WasAtLocation {
		t.Fatalf("latch not set on rising edge")
	}
	if !h.b.ConsumeArrival() {
		t.Fatalf("ConsumeArrival = false, want true")
	}
	if h.b.ConsumeArrival() {
		t.Fatalf("arrival reported twice")
	}

	// Still at location: no new edge, no new arrival.
	h.b.Handle(ctx, model.StatusMessage{AtLocation: 1})
	if h.b.ConsumeArrival() {
		t.Fatalf("latch re-set without a new rising edge")
	}
}

func TestStatusMessageNeverClearsLatch(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()
	h.b.Handle(ctx, model.StatusMessage{AtLocation: 1})
	h.b.Handle(ctx, model.StatusMessage{AtLocation: 0})
	if !h.b.ConsumeArrival() {
		t.Fatalf("latch lost after at_location dropped")
	}
}

func TestTagEstimateConversion(t *testing.T) {
	h := newHarness(t, fakePose{})
	h.b.Handle(context.Background(), model.TagEstimateMessage{
		X: 1, Y: -1, Z: 2.5,
		VX: 0.1, VY: 0, VZ: -0.2,
		Yaw:         float32(math.Pi),
		TimestampUs: 123456,
	})
	est := h.b.TagEstimate()
	if est.PosCm != (model.Vector3{X: 100, Y: -100, Z: 250}) {
		t.Fatalf("PosCm = %+v", est.PosCm)
	}
	if math.Abs(est.AttCd.Z-18000) > 0.01 || est.TimestampUs != 123456 {
		t.Fatalf("unexpected estimate %+v", est)
	}
}

func TestHandleIgnoresUnknownMessages(t *testing.T) {
	h := newHarness(t, fakePose{})
	h.b.Handle(context.Background(), nil)
	h.b.Handle(context.Background(), model.Request{Type: model.RequestLand})
	if _, pending := h.b.PendingCommandKind(); pending {
		t.Fatalf("unknown message changed command state")
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	messages map[model.MessageID]int
	pulls    map[string]int
	timeouts int
	tether   model.TetherStatus
	requests map[model.RequestType]error
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		messages: make(map[model.MessageID]int),
		pulls:    make(map[string]int),
		requests: make(map[model.RequestType]error),
	}
}

func (r *recordingMetrics) ObserveMessage(id model.MessageID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[id]++
}

func (r *recordingMetrics) ObserveCommand(model.CommandKind) {}

func (r *recordingMetrics) ObservePull(kind model.CommandKind, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pulls[kind.String()+"/"+result]++
}

func (r *recordingMetrics) ObserveRequest(t model.RequestType, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[t] = err
}

func (r *recordingMetrics) SetTether(st model.TetherStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tether = st
}

func (r *recordingMetrics) ObserveTetherTimeout(_ bool, newFailure bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if newFailure {
		r.timeouts++
	}
}

func TestMetricsRecorderIsFed(t *testing.T) {
	rec := newRecordingMetrics()
	b := New(fakePose{}, &fakeMotors{}, nil, WithMetricsRecorder(rec), WithClock(timectrl.NewManual(t0)))
	ctx := context.Background()

	b.Handle(ctx, model.StatusMessage{})
	b.Handle(ctx, model.CommandMessage{TypeMask: core.MaskPosition})
	b.Handle(ctx, model.TetherStatusMessage{CableTension: 10})
	_, _ = b.TakeVelocityCmd(ctx)
	_, _ = b.TakePositionCmd(ctx)
	_, _ = b.TakePositionCmd(ctx)

	if rec.messages[model.MsgIDStatus] != 1 || rec.messages[model.MsgIDCommand] != 1 || rec.messages[model.MsgIDDeckTetherStatus] != 1 {
		t.Fatalf("messages = %v", rec.messages)
	}
	for key, want := range map[string]int{"velocity/mismatch": 1, "position/ok": 1, "position/empty": 1} {
		if rec.pulls[key] != want {
			t.Fatalf("pulls[%s] = %d, want %d (all: %v)", key, rec.pulls[key], want, rec.pulls)
		}
	}
	if rec.tether.Tension != 10 {
		t.Fatalf("tether gauge tension = %d, want 10", rec.tether.Tension)
	}
}

func TestConcurrentHandleAndTake(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered := 0

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			h.b.Handle(ctx, model.CommandMessage{Vel: [3]float32{float32(i), 0, 0}, TypeMask: core.MaskVelocity})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if _, err := h.b.TakeVelocityCmd(ctx); err == nil {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
			_ = h.b.CheckForHighTensionTimeout(ctx, 40)
		}
	}()
	wg.Wait()

	if delivered > n {
		t.Fatalf("delivered %d commands from %d messages", delivered, n)
	}
}

func TestTakeCommandDispatchesByKind(t *testing.T) {
	h := newHarness(t, fakePose{})
	ctx := context.Background()

	h.b.Handle(ctx, model.CommandMessage{Vel: [3]float32{0, 0, 2}, Att: [3]float32{0.1, 0, 0}, TypeMask: core.MaskVz | core.MaskAttitude})
	got, err := h.b.TakeCommand(ctx, model.CommandAttitude)
	if err != nil {
		t.Fatalf("TakeCommand: %v", err)
	}
	att, ok := got.(model.AttitudeCmd)
	if !ok {
		t.Fatalf("payload type %T, want model.AttitudeCmd", got)
	}
	if att.VzCms != 200 {
		t.Fatalf("VzCms = %v, want 200", att.VzCms)
	}

	if _, err := h.b.TakeCommand(ctx, model.CommandNone); !errors.Is(err, ErrInvalidCommandKind) {
		t.Fatalf("TakeCommand(None) err = %v, want ErrInvalidCommandKind", err)
	}
}

func TestParseCommandKind(t *testing.T) {
	for _, k := range []model.CommandKind{model.CommandPosition, model.CommandVelocity, model.CommandPosVel, model.CommandAttitude, model.CommandAccel} {
		got, ok := model.ParseCommandKind(k.String())
		if !ok || got != k {
			t.Fatalf("ParseCommandKind(%q) = (%v, %v)", k.String(), got, ok)
		}
	}
	if _, ok := model.ParseCommandKind("none"); ok {
		t.Fatalf("none should not parse as a pullable kind")
	}
}
