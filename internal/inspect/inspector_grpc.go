// Service plumbing for proto/planck/bridge/v1/inspector.proto. The service
// only uses well-known types, so this file keeps the protoc-gen-go-grpc shape
// without a generated message package.

package inspect

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// InspectorServer is the server API for the inspector service.
type InspectorServer interface {
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetTether(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	TakeCommand(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

const (
	getSnapshotMethod = "/" + ServiceName + "/GetSnapshot"
	getTetherMethod   = "/" + ServiceName + "/GetTether"
	takeCommandMethod = "/" + ServiceName + "/TakeCommand"
)

var inspectorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InspectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
		{MethodName: "GetTether", Handler: getTetherHandler},
		{MethodName: "TakeCommand", Handler: takeCommandHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "planck/bridge/v1/inspector.proto",
}

func getSnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InspectorServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getSnapshotMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InspectorServer).GetSnapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getTetherHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InspectorServer).GetTether(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getTetherMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InspectorServer).GetTether(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func takeCommandHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InspectorServer).TakeCommand(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: takeCommandMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InspectorServer).TakeCommand(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// InspectorClient is the client API for the inspector service.
type InspectorClient struct {
	cc grpc.ClientConnInterface
}

func NewInspectorClient(cc grpc.ClientConnInterface) *InspectorClient {
	return &InspectorClient{cc: cc}
}

func (c *InspectorClient) GetSnapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getSnapshotMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InspectorClient) GetTether(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getTetherMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InspectorClient) TakeCommand(ctx context.Context, kind string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"kind": kind})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, takeCommandMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
