package bridge

import (
	"context"
	"time"

	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/internal/observability"
	"github.com/signalsfoundry/planck-bridge/model"
	"go.opentelemetry.io/otel/attribute"
)

// Handle applies one decoded inbound message to the bridge state. Unknown
// message types are ignored.
func (b *Bridge) Handle(ctx context.Context, msg model.Message) {
	if msg == nil {
		return
	}
	ctx, span := observability.StartSpan(ctx, "planck.handle",
		attribute.String("planck.message", msg.ID().String()),
	)
	defer span.End()

	now := b.clock.Now()
	switch m := msg.(type) {
	case model.StatusMessage:
		b.handleStatus(ctx, m, now)
	case model.CommandMessage:
		b.handleCommand(ctx, m, now)
	case model.TagEstimateMessage:
		b.handleTagEstimate(m)
	case model.TetherStatusMessage:
		b.handleTetherStatus(ctx, m, now)
	default:
		b.log.Debug(ctx, "ignoring message", logging.Int("msg_id", int(msg.ID())))
		return
	}
	if b.metrics != nil {
		b.metrics.ObserveMessage(msg.ID())
	}
}

func (b *Bridge) handleStatus(ctx context.Context, m model.StatusMessage, now time.Time) {
	if b.status.update(m, now) {
		b.log.Info(ctx, "planck reports arrival at location")
	}
}

func (b *Bridge) handleCommand(ctx context.Context, m model.CommandMessage, now time.Time) {
	pos, altOK := b.commandLocation(m)
	c := model.Command{
		Pos:        pos,
		VelCms:     core.ScaleVec(m.Vel, core.MetersToCm),
		AccelCmss:  core.ScaleVec(m.Acc, core.MetersToCm),
		AttCd:      core.ScaleVec(m.Att, core.RadToCentiDeg),
		Unconsumed: true,
		UpdatedAt:  now,
	}
	fields := core.DecodeTypeMask(m.TypeMask)
	c.IsYawRate = fields.YawRate
	c.Kind = core.Classify(fields)
	if !altOK && (c.Kind == model.CommandPosition || c.Kind == model.CommandPosVel) {
		b.log.Warn(ctx, "discarding position command with non-finite altitude",
			logging.String("kind", c.Kind.String()),
			logging.Float("alt_m", float64(m.Alt)),
		)
		c.Kind = model.CommandNone
	}

	b.storeCommand(c)
	b.log.Debug(ctx, "tracker command",
		logging.String("kind", c.Kind.String()),
		logging.Int("type_mask", int(m.TypeMask)),
	)
}

// commandLocation converts the command position so that the altitude is
// always relative to home or to terrain. Altitudes saturate at the int32
// range; ok is false when the altitude is not a finite number.
func (b *Bridge) commandLocation(m model.CommandMessage) (model.Location, bool) {
	altCm, ok := core.CmFromMeters(float64(m.Alt))
	loc := model.Location{
		Lat:         m.Lat,
		Lng:         m.Lon,
		AltCm:       altCm,
		RelativeAlt: true,
	}
	switch m.Frame {
	case model.FrameGlobalRelativeAlt, model.FrameGlobalRelativeAltInt:
	case model.FrameGlobalTerrainAlt, model.FrameGlobalTerrainAltInt:
		loc.TerrainAlt = true
	default:
		loc.AltCm = core.SaturateInt32(float64(loc.AltCm) - float64(b.pose.HomeAltCm()))
	}
	return loc, ok
}

func (b *Bridge) handleTagEstimate(m model.TagEstimateMessage) {
	b.tag.set(model.TagEstimate{
		PosCm:       core.Vec(m.X, m.Y, m.Z, core.MetersToCm),
		VelCms:      core.Vec(m.VX, m.VY, m.VZ, core.MetersToCm),
		AttCd:       core.Vec(m.Roll, m.Pitch, m.Yaw, core.RadToCentiDeg),
		TimestampUs: m.TimestampUs,
	})
}

func (b *Bridge) handleTetherStatus(ctx context.Context, m model.TetherStatusMessage, now time.Time) {
	alt, ok := b.pose.AltAboveHomeCm()
	ref := AltitudeReference{
		TrackingTag:  b.status.snapshot().TrackingTag,
		TagAltCm:     b.tag.snapshot().PosCm.Z,
		VehicleAltCm: alt,
		VehicleAltOK: ok,
	}
	st := b.tether.OnTelemetry(ctx, m, ref, now)
	if b.metrics != nil {
		b.metrics.SetTether(st)
	}
}

// CheckForHighTensionTimeout polls the tether timeout. reelSpeedCms is the
// winch reel-in speed used to size the budget.
func (b *Bridge) CheckForHighTensionTimeout(ctx context.Context, reelSpeedCms float64) bool {
	status := b.status.snapshot()
	res := b.tether.CheckTimeout(ctx, reelSpeedCms, TimeoutConditions{
		Armed:         b.motors.Armed(),
		CommboxOK:     status.CommboxOK,
		TagTrackingOK: status.TrackingTag,
	}, b.clock.Now())

	if res.NewFailure {
		b.log.Error(ctx, "tether high-tension timeout",
			logging.Duration("budget", res.Budget),
			logging.Float("reel_speed_cms", reelSpeedCms),
		)
	}
	if b.metrics != nil {
		b.metrics.SetTether(b.tether.Status())
		b.metrics.ObserveTetherTimeout(res.TimedOut, res.NewFailure)
	}
	return res.TimedOut
}
