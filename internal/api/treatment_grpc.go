package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "waterai.v1.TreatmentService"

// Method names served by TreatmentService.
const (
	MethodPredict      = "Predict"
	MethodOptimize     = "Optimize"
	MethodListModels   = "ListModels"
	MethodReloadModels = "ReloadModels"
)

// TreatmentServer is implemented by the gRPC facade. Requests and responses
// are JSON-shaped google.protobuf.Struct messages.
type TreatmentServer interface {
	Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Optimize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListModels(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReloadModels(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// FullMethod returns the wire path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type unaryCall func(srv TreatmentServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TreatmentServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TreatmentServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// TreatmentServiceDesc describes the service for grpc.Server registration.
var TreatmentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TreatmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodPredict, Handler: unaryHandler(MethodPredict, TreatmentServer.Predict)},
		{MethodName: MethodOptimize, Handler: unaryHandler(MethodOptimize, TreatmentServer.Optimize)},
		{MethodName: MethodListModels, Handler: unaryHandler(MethodListModels, TreatmentServer.ListModels)},
		{MethodName: MethodReloadModels, Handler: unaryHandler(MethodReloadModels, TreatmentServer.ReloadModels)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "waterai/v1/treatment.proto",
}

// RegisterTreatmentServer attaches srv to s.
func RegisterTreatmentServer(s grpc.ServiceRegistrar, srv TreatmentServer) {
	s.RegisterService(&TreatmentServiceDesc, srv)
}

// TreatmentClient calls a remote TreatmentService.
type TreatmentClient struct {
	cc grpc.ClientConnInterface
}

// NewTreatmentClient wraps an established connection.
func NewTreatmentClient(cc grpc.ClientConnInterface) *TreatmentClient {
	return &TreatmentClient{cc: cc}
}

func (c *TreatmentClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Predict calls TreatmentService.Predict.
func (c *TreatmentClient) Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPredict, in, opts...)
}

// Optimize calls TreatmentService.Optimize.
func (c *TreatmentClient) Optimize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodOptimize, in, opts...)
}

// ListModels calls TreatmentService.ListModels.
func (c *TreatmentClient) ListModels(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListModels, in, opts...)
}

// ReloadModels calls TreatmentService.ReloadModels.
func (c *TreatmentClient) ReloadModels(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodReloadModels, in, opts...)
}
