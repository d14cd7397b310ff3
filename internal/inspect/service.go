// Package inspect serves the bridge's state over gRPC for ground tooling:
// snapshots, tether state and command pulls, plus the standard health
// service reflecting tether health.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/signalsfoundry/planck-bridge/internal/bridge"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified inspector service name. It is also the
// name whose health follows the tether.
const ServiceName = "planck.bridge.v1.Inspector"

// Server implements the inspector service over a bridge.
type Server struct {
	bridge  *bridge.Bridge
	health  *health.Server
	healthy atomic.Bool
	log     logging.Logger
}

// NewServer returns an inspector for b. Health starts SERVING.
func NewServer(b *bridge.Bridge, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		bridge: b,
		health: health.NewServer(),
		log:    log,
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.healthy.Store(true)
	return s
}

// Register attaches the inspector and health services to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&inspectorServiceDesc, s)
	healthpb.RegisterHealthServer(gs, s.health)
}

// SetTetherHealth marks the inspector NOT_SERVING while the tether check
// reports a timeout or lost telemetry.
func (s *Server) SetTetherHealth(ctx context.Context, healthy bool) {
	if s.healthy.Swap(healthy) == healthy {
		return
	}
	st := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
	s.health.SetServingStatus("", st)
	s.log.Info(ctx, "inspector health changed", logging.String("status", st.String()))
}

// Shutdown flips every service to NOT_SERVING ahead of a graceful stop.
func (s *Server) Shutdown() { s.health.Shutdown() }

func (s *Server) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.bridge.Snapshot())
}

func (s *Server) GetTether(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.bridge.Tether())
}

// TakeCommand pulls the pending command of req["kind"].
func (s *Server) TakeCommand(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.GetFields()["kind"].GetStringValue()
	kind, ok := model.ParseCommandKind(name)
	if !ok {
		return nil, ToStatusError(fmt.Errorf("%w: %q", ErrInvalidArgument, name))
	}
	payload, err := s.bridge.TakeCommand(ctx, kind)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return toStruct(map[string]any{"kind": kind, "command": payload})
}

// toStruct renders v through its JSON form so the wire shape matches the
// HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}
