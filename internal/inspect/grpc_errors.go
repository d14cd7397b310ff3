package inspect

import (
	"errors"

	"github.com/signalsfoundry/planck-bridge/internal/bridge"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidArgument is used for client-side validation failures.
var ErrInvalidArgument = errors.New("invalid argument")

// ToStatusError maps bridge errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, bridge.ErrNoNewCommand):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, bridge.ErrInvalidCommandKind):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, bridge.ErrCommandKindMismatch):
		return status.Error(codes.FailedPrecondition, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
