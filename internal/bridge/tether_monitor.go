package bridge

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/model"
)

// DefaultCommsTimeout is how long the deck may stay silent before the tether
// link is considered lost.
const DefaultCommsTimeout = 5 * time.Second

// Timeout budget bounds and padding, in seconds.
const (
	budgetMinS         = 5.0
	budgetMaxS         = 120.0
	budgetBufferS      = 2.0
	budgetNoRefS       = 10.0
	budgetUnconfirmedS = 5.0
	minReelSpeedCms    = 1.0
)

// Notice texts emitted by the monitor.
const (
	NoticeHighTension    = "Tether Tension Mode Change: High Tension"
	NoticeNominalTension = "Tether Tension Mode Change: Nominal"
	NoticeCommsTimedOut  = "Tether comms timed out"
	NoticeCommsRestored  = "Tether comms restored"
	NoticeTensionTimeout = "Tether high-tension timeout!"
)

// AltitudeReference is the altitude context sampled when a tether report
// arrives.
type AltitudeReference struct {
	TrackingTag bool
	// TagAltCm is the tag z estimate, used only when TrackingTag is set.
	TagAltCm     float64
	VehicleAltCm int32
	VehicleAltOK bool
}

// TimeoutConditions is the vehicle context for a timeout check.
type TimeoutConditions struct {
	Armed         bool
	CommboxOK     bool
	TagTrackingOK bool
}

// TimeoutCheck is the outcome of one CheckTimeout call.
type TimeoutCheck struct {
	TimedOut bool
	// NewFailure is set only on the call that first observed the timeout.
	NewFailure bool
	Budget     time.Duration
	Deadline   time.Time
}

type pendingNotice struct {
	sev  model.Severity
	text string
}

// TetherMonitor tracks tether tension and decides when a sustained high
// tension (or loss of deck comms) has outlasted the time needed to reel the
// vehicle in.
//
// OnTelemetry latches the reference altitudes and the transition time;
// CheckTimeout reads them. Both serialise on the monitor lock, so a check
// always observes a fully applied report.
type TetherMonitor struct {
	mu           sync.Mutex
	st           model.TetherStatus
	commsTimeout time.Duration
	notify       func(ctx context.Context, sev model.Severity, text string)
	log          logging.Logger
}

// NewTetherMonitor returns a monitor whose timestamps start at now.
func NewTetherMonitor(now time.Time, commsTimeout time.Duration, notify func(context.Context, model.Severity, string), log logging.Logger) *TetherMonitor {
	if commsTimeout <= 0 {
		commsTimeout = DefaultCommsTimeout
	}
	if log == nil {
		log = logging.Noop()
	}
	m := &TetherMonitor{commsTimeout: commsTimeout, notify: notify, log: log}
	m.reset(now)
	return m
}

func (m *TetherMonitor) reset(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = model.TetherStatus{
		LastTelemetryAt: now,
		TransitionAt:    now,
		VehicleAltCm:    core.DefaultAltCm,
	}
}

// Status returns a copy of the monitor state.
func (m *TetherMonitor) Status() model.TetherStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// OnTelemetry applies a deck tether report received at now.
func (m *TetherMonitor) OnTelemetry(ctx context.Context, msg model.TetherStatusMessage, ref AltitudeReference, now time.Time) model.TetherStatus {
	var notices []pendingNotice

	m.mu.Lock()
	m.st.LastTelemetryAt = now
	m.st.CableOutM = float64(msg.CableOut) * core.FeetToMeters
	m.st.SpoolState = msg.SpoolStatus
	m.st.Tension = msg.CableTension

	high := msg.SpoolStatus == model.SpoolLocked && msg.CableTension > core.TensionHighMark
	entered := high && !m.st.HighTension
	exited := !high && m.st.HighTension
	switch {
	case entered:
		notices = append(notices, pendingNotice{model.SeverityInfo, NoticeHighTension})
	case exited:
		notices = append(notices, pendingNotice{model.SeverityInfo, NoticeNominalTension})
	}

	// Keep the last known-good altitudes until high tension began, so they
	// remain usable once deck comms drop.
	if !high || entered {
		m.st.TransitionAt = now
		if ref.TrackingTag {
			m.st.TagAltCm = ref.TagAltCm
		} else {
			m.st.TagAltCm = 0
		}
		if ref.VehicleAltOK {
			m.st.VehicleAltCm = float64(ref.VehicleAltCm)
		} else {
			m.st.VehicleAltCm = core.DefaultAltCm
		}
	}
	m.st.HighTension = high
	out := m.st
	m.mu.Unlock()

	m.log.Debug(ctx, "tether report",
		logging.Int("tension", int(msg.CableTension)),
		logging.String("spool", msg.SpoolStatus.String()),
		logging.Bool("high_tension", high),
		logging.Float("cable_out_m", out.CableOutM),
	)
	m.emit(ctx, notices)
	return out
}

// CheckTimeout reports whether the high-tension timeout has expired at now.
// A disarmed vehicle never times out. The critical notice is emitted once per
// sustained failure; any non-failing check re-arms it.
func (m *TetherMonitor) CheckTimeout(ctx context.Context, reelSpeedCms float64, cond TimeoutConditions, now time.Time) TimeoutCheck {
	if !cond.Armed {
		return TimeoutCheck{}
	}

	var notices []pendingNotice
	defer func() { m.emit(ctx, notices) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	commsFailed := now.Sub(m.st.LastTelemetryAt) > m.commsTimeout
	switch {
	case commsFailed && !m.st.CommsTimedOut:
		notices = append(notices, pendingNotice{model.SeverityCritical, NoticeCommsTimedOut})
	case !commsFailed && m.st.CommsTimedOut:
		notices = append(notices, pendingNotice{model.SeverityInfo, NoticeCommsRestored})
	}
	m.st.CommsTimedOut = commsFailed

	if !m.st.HighTension && !commsFailed {
		m.st.FailureNotified = false
		return TimeoutCheck{}
	}

	posRefGood := cond.CommboxOK || cond.TagTrackingOK
	budget := TimeoutBudget(m.st.TagAltCm, m.st.VehicleAltCm, reelSpeedCms, posRefGood, commsFailed, m.st.HighTension)
	deadline := m.st.TransitionAt.Add(budget)
	res := TimeoutCheck{Budget: budget, Deadline: deadline}

	if !now.After(deadline) {
		m.st.FailureNotified = false
		return res
	}

	res.TimedOut = true
	if !m.st.FailureNotified {
		res.NewFailure = true
		m.st.FailureNotified = true
		notices = append(notices, pendingNotice{model.SeverityCritical, NoticeTensionTimeout})
	}
	return res
}

// TimeoutBudget is the time allowed between the transition and a declared
// failure: the latched altitude over the reel speed, padded for a missing
// position reference or lost comms, padded again when high tension was never
// confirmed by the deck, plus a fixed buffer. The result is clamped to
// [5s, 120s] and truncated to whole seconds.
func TimeoutBudget(tagAltCm, vehicleAltCm, reelSpeedCms float64, posRefGood, commsFailed, highTension bool) time.Duration {
	reel := reelSpeedCms
	if math.IsNaN(reel) || reel < minReelSpeedCms {
		reel = minReelSpeedCms
	}

	alt := vehicleAltCm
	if tagAltCm != 0 {
		alt = tagAltCm
	}
	s := alt / reel
	if !posRefGood || commsFailed {
		s += budgetNoRefS
	}
	if !highTension {
		s += budgetUnconfirmedS
	}
	if math.IsNaN(s) {
		s = budgetMaxS
	}
	s = math.Min(math.Max(s+budgetBufferS, budgetMinS), budgetMaxS)
	return time.Duration(int(s)) * time.Second
}

func (m *TetherMonitor) emit(ctx context.Context, notices []pendingNotice) {
	if m.notify == nil {
		return
	}
	for _, n := range notices {
		m.notify(ctx, n.sev, n.text)
	}
}
