// Package bridge holds the vehicle-side state shared between the Planck
// companion link and the flight controller: the latest status, tag estimate,
// tracker command and tether report, plus the outbound request emitter.
package bridge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/model"
	"github.com/signalsfoundry/planck-bridge/timectrl"
)

// PoseSource exposes the vehicle altitudes the bridge needs.
type PoseSource interface {
	// HomeAltCm is the absolute home altitude in cm.
	HomeAltCm() int32
	// AltAboveHomeCm is the current altitude above home in cm. ok is false
	// when no position estimate is available.
	AltAboveHomeCm() (alt int32, ok bool)
}

// Motors reports whether the vehicle is armed.
type Motors interface {
	Armed() bool
}

// EventSink receives operator notices. Notify is called on the link reader
// and poller goroutines and must not block.
type EventSink interface {
	Notify(ctx context.Context, n model.Notice)
}

// MetricsRecorder receives bridge-level counters and tether gauges.
type MetricsRecorder interface {
	ObserveMessage(id model.MessageID)
	ObserveCommand(kind model.CommandKind)
	ObservePull(kind model.CommandKind, result string)
	ObserveRequest(t model.RequestType, err error)
	SetTether(st model.TetherStatus)
	ObserveTetherTimeout(timedOut, newFailure bool)
}

// Snapshot is a copy of everything the bridge holds. Each part is read
// under its own lock.
type Snapshot struct {
	Status  model.Status       `json:"status"`
	Tag     model.TagEstimate  `json:"tag"`
	Tether  model.TetherStatus `json:"tether"`
	Command model.Command      `json:"command"`
}

// Bridge is the single owner of the Planck-derived state. All methods are
// safe for concurrent use.
type Bridge struct {
	status  statusStore
	tag     tagStore
	cmd     commandStore
	tether  *TetherMonitor
	timeout time.Duration
	pose    PoseSource
	motors  Motors
	sink    EventSink
	clock   timectrl.Clock
	log     logging.Logger
	metrics MetricsRecorder
}

// Option customises Bridge construction.
type Option func(*Bridge)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithEventSink routes operator notices to s.
func WithEventSink(s EventSink) Option {
	return func(b *Bridge) {
		b.sink = s
	}
}

// WithClock overrides the wall clock, mostly for tests.
func WithClock(c timectrl.Clock) Option {
	return func(b *Bridge) {
		b.clock = c
	}
}

// WithCommsTimeout overrides how long the deck may stay silent before the
// tether link is considered lost.
func WithCommsTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.timeout = d
	}
}

// New builds a Bridge. A nil pose reports no altitude; nil motors report
// disarmed.
func New(pose PoseSource, motors Motors, log logging.Logger, opts ...Option) *Bridge {
	if log == nil {
		log = logging.Noop()
	}
	b := &Bridge{
		pose:    pose,
		motors:  motors,
		clock:   timectrl.System{},
		log:     log,
		timeout: DefaultCommsTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.pose == nil {
		b.pose = noPose{}
	}
	if b.motors == nil {
		b.motors = disarmed{}
	}
	if b.clock == nil {
		b.clock = timectrl.System{}
	}
	b.tether = NewTetherMonitor(b.clock.Now(), b.timeout, b.notify, b.log)
	return b
}

// Snapshot returns a copy of the current state.
func (b *Bridge) Snapshot() Snapshot {
	return Snapshot{
		Status:  b.status.snapshot(),
		Tag:     b.tag.snapshot(),
		Tether:  b.tether.Status(),
		Command: b.cmd.snapshot(),
	}
}

// Tether returns a copy of the tether monitor state.
func (b *Bridge) Tether() model.TetherStatus {
	return b.tether.Status()
}

func (b *Bridge) notify(ctx context.Context, sev model.Severity, text string) {
	n := model.Notice{
		ID:       uuid.NewString(),
		Severity: sev,
		Text:     text,
		At:       b.clock.Now(),
	}
	if b.sink == nil {
		b.log.Info(ctx, "notice dropped; no sink", logging.String("text", text))
		return
	}
	b.sink.Notify(ctx, n)
}

type noPose struct{}

func (noPose) HomeAltCm() int32              { return 0 }
func (noPose) AltAboveHomeCm() (int32, bool) { return 0, false }

type disarmed struct{}

func (disarmed) Armed() bool { return false }
