package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/internal/observability"
	"github.com/signalsfoundry/planck-bridge/model"
)

type commandStore struct {
	mu sync.Mutex
	c  model.Command
}

func (cs *commandStore) set(c model.Command) {
	cs.mu.Lock()
	cs.c = c
	cs.mu.Unlock()
}

func (cs *commandStore) snapshot() model.Command {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.c
}

func (cs *commandStore) pending() (model.CommandKind, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.c.Kind, cs.c.Unconsumed
}

// take hands out the pending command if it is of kind want. A command of
// another kind stays pending.
func (cs *commandStore) take(want model.CommandKind) (model.Command, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.c.Unconsumed {
		return model.Command{}, ErrNoNewCommand
	}
	if cs.c.Kind != want {
		return model.Command{}, fmt.Errorf("%w: pending %s, requested %s", ErrCommandKindMismatch, cs.c.Kind, want)
	}
	cs.c.Unconsumed = false
	return cs.c, nil
}

// PendingCommandKind reports the kind of the latest command and whether it is
// still unconsumed.
func (b *Bridge) PendingCommandKind() (model.CommandKind, bool) {
	return b.cmd.pending()
}

// Command returns a copy of the latest command without consuming it.
func (b *Bridge) Command() model.Command {
	return b.cmd.snapshot()
}

func (b *Bridge) take(ctx context.Context, want model.CommandKind) (model.Command, error) {
	c, err := b.cmd.take(want)
	result := observability.PullOK
	switch {
	case errors.Is(err, ErrNoNewCommand):
		result = observability.PullEmpty
	case errors.Is(err, ErrCommandKindMismatch):
		result = observability.PullMismatch
		b.log.Warn(ctx, "command pulled as wrong kind",
			logging.String("requested", want.String()),
			logging.Err(err),
		)
	}
	if b.metrics != nil {
		b.metrics.ObservePull(want, result)
	}
	return c, err
}

// TakePositionCmd consumes a pending position command.
func (b *Bridge) TakePositionCmd(ctx context.Context) (model.Location, error) {
	c, err := b.take(ctx, model.CommandPosition)
	if err != nil {
		return model.Location{}, err
	}
	return c.Pos, nil
}

// TakeVelocityCmd consumes a pending velocity command (cm/s, NED).
func (b *Bridge) TakeVelocityCmd(ctx context.Context) (model.Vector3, error) {
	c, err := b.take(ctx, model.CommandVelocity)
	if err != nil {
		return model.Vector3{}, err
	}
	return c.VelCms, nil
}

// TakePosVelCmd consumes a pending position+velocity command. Yaw is taken
// from the attitude z component.
func (b *Bridge) TakePosVelCmd(ctx context.Context) (model.PosVelCmd, error) {
	c, err := b.take(ctx, model.CommandPosVel)
	if err != nil {
		return model.PosVelCmd{}, err
	}
	return model.PosVelCmd{
		Pos:       c.Pos,
		VelCms:    c.VelCms,
		YawCd:     c.AttCd.Z,
		IsYawRate: c.IsYawRate,
	}, nil
}

// TakeAttitudeCmd consumes a pending attitude command. The climb rate is the
// velocity z component.
func (b *Bridge) TakeAttitudeCmd(ctx context.Context) (model.AttitudeCmd, error) {
	c, err := b.take(ctx, model.CommandAttitude)
	if err != nil {
		return model.AttitudeCmd{}, err
	}
	return model.AttitudeCmd{
		AttCd:     c.AttCd,
		VzCms:     c.VelCms.Z,
		IsYawRate: c.IsYawRate,
	}, nil
}

// TakeAccelCmd consumes a pending acceleration command.
func (b *Bridge) TakeAccelCmd(ctx context.Context) (model.AccelCmd, error) {
	c, err := b.take(ctx, model.CommandAccel)
	if err != nil {
		return model.AccelCmd{}, err
	}
	return model.AccelCmd{
		AccelCmss: c.AccelCmss,
		YawCd:     c.AttCd.Z,
		VzCms:     c.VelCms.Z,
		IsYawRate: c.IsYawRate,
	}, nil
}

// TakeCommand consumes a pending command of the given kind and returns the
// payload the matching typed accessor would.
func (b *Bridge) TakeCommand(ctx context.Context, kind model.CommandKind) (any, error) {
	switch kind {
	case model.CommandPosition:
		return b.TakePositionCmd(ctx)
	case model.CommandVelocity:
		return b.TakeVelocityCmd(ctx)
	case model.CommandPosVel:
		return b.TakePosVelCmd(ctx)
	case model.CommandAttitude:
		return b.TakeAttitudeCmd(ctx)
	case model.CommandAccel:
		return b.TakeAccelCmd(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommandKind, kind)
	}
}

// OverrideWithZeroVelocity replaces the current command with a pending zero
// velocity command, used to hold position when tracking is lost.
func (b *Bridge) OverrideWithZeroVelocity(ctx context.Context) {
	b.override(ctx, model.CommandVelocity)
}

// OverrideWithZeroAttitude replaces the current command with a pending level
// attitude command with zero climb rate.
func (b *Bridge) OverrideWithZeroAttitude(ctx context.Context) {
	b.override(ctx, model.CommandAttitude)
}

func (b *Bridge) override(ctx context.Context, kind model.CommandKind) {
	b.cmd.set(model.Command{
		Kind:       kind,
		Unconsumed: true,
		UpdatedAt:  b.clock.Now(),
	})
	b.log.Debug(ctx, "command overridden with zero", logging.String("kind", kind.String()))
}

func (b *Bridge) storeCommand(c model.Command) {
	b.cmd.set(c)
	if b.metrics != nil {
		b.metrics.ObserveCommand(c.Kind)
	}
}
