package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/planck-bridge/core"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/internal/observability"
	"github.com/signalsfoundry/planck-bridge/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Validity flags carried in param1 of a move-target request.
const (
	MoveValidAltOnly float32 = 0b100
	MoveValidAll     float32 = 0b111
)

// DefaultPlanckComponentID is the component id Planck's controller listens on.
const DefaultPlanckComponentID uint8 = 25

// ErrNoSender is returned when an emitter has no transport.
var ErrNoSender = errors.New("no request sender")

// RequestSender delivers an outbound request to Planck.
type RequestSender interface {
	Send(ctx context.Context, req model.Request) error
}

// Target addresses outbound requests.
type Target struct {
	System    uint8
	Component uint8
}

// Emitter builds and sends outbound requests to Planck.
type Emitter struct {
	sender     RequestSender
	target     Target
	invalidate func()
	log        logging.Logger
	metrics    MetricsRecorder
}

// NewEmitter returns an emitter sending through sender. A move-target request
// clears the bridge's arrival latch once it has been sent.
func (b *Bridge) NewEmitter(sender RequestSender, target Target) *Emitter {
	return &Emitter{
		sender:     sender,
		target:     target,
		invalidate: b.status.clearArrival,
		log:        b.log,
		metrics:    b.metrics,
	}
}

// RequestTakeoff asks Planck to take off to altM metres.
func (e *Emitter) RequestTakeoff(ctx context.Context, altM float32) error {
	return e.send(ctx, e.request(model.RequestTakeoff, altM))
}

// RequestAltChange moves the tracking target to altM metres only, at the
// given climb and descent rates (cm/s).
func (e *Emitter) RequestAltChange(ctx context.Context, altM float32, rateUpCms, rateDownCms float64) error {
	req := e.request(model.RequestMoveTarget, MoveValidAltOnly, 0, 0, altM)
	req.PackedRates = core.EncodeRates(rateUpCms, rateDownCms)
	req.HasRates = true
	return e.send(ctx, req)
}

// RequestRTB asks Planck to return to base at altM metres.
func (e *Emitter) RequestRTB(ctx context.Context, altM, rateUp, rateDown, rateXY float32) error {
	return e.send(ctx, e.request(model.RequestRTB, altM, rateUp, rateDown, rateXY))
}

// RequestLand asks Planck to land at descentRate.
func (e *Emitter) RequestLand(ctx context.Context, descentRate float32) error {
	return e.send(ctx, e.request(model.RequestLand, descentRate))
}

// RequestMoveTarget shifts the tracking target by an NED offset, or at an
// NED rate when isRate is set.
func (e *Emitter) RequestMoveTarget(ctx context.Context, offsetNED model.Vector3, isRate bool, rateUpCms, rateDownCms float64) error {
	var rate float32
	if isRate {
		rate = 1
	}
	req := e.request(model.RequestMoveTarget, MoveValidAll,
		float32(offsetNED.X), float32(offsetNED.Y), float32(offsetNED.Z), rate)
	req.PackedRates = core.EncodeRates(rateUpCms, rateDownCms)
	req.HasRates = true
	if err := e.send(ctx, req); err != nil {
		return err
	}
	if e.invalidate != nil {
		e.invalidate()
	}
	return nil
}

// StopCommanding tells Planck to stop sending commands.
func (e *Emitter) StopCommanding(ctx context.Context) error {
	return e.send(ctx, e.request(model.RequestStop))
}

func (e *Emitter) request(t model.RequestType, params ...float32) model.Request {
	req := model.Request{
		TargetSystem:    e.target.System,
		TargetComponent: e.target.Component,
		Type:            t,
	}
	copy(req.Params[:], params)
	return req
}

func (e *Emitter) send(ctx context.Context, req model.Request) error {
	ctx, span := observability.StartSpan(ctx, "planck.request",
		attribute.String("planck.request", req.Type.String()),
	)
	defer span.End()

	var err error
	if e.sender == nil {
		err = ErrNoSender
	} else {
		err = e.sender.Send(ctx, req)
	}
	if e.metrics != nil {
		e.metrics.ObserveRequest(req.Type, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Warn(ctx, "planck request failed",
			logging.String("type", req.Type.String()),
			logging.Err(err),
		)
		return fmt.Errorf("send %s request: %w", req.Type, err)
	}
	e.log.Debug(ctx, "planck request sent", logging.String("type", req.Type.String()))
	return nil
}
