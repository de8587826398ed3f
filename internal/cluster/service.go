package cluster

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully-qualified gRPC service name Dispatch/Cancel are
// registered and invoked under.
const serviceName = "corelake.cluster.ScanService"

// ScanServer is implemented by worker executors: Dispatch runs one Job's
// partition scan and returns its partial result; Cancel aborts every
// in-flight Job sharing a trace id.
type ScanServer interface {
	Dispatch(ctx context.Context, job *Job) (*PartialResult, error)
	Cancel(ctx context.Context, req *CancelRequest) (*Empty, error)
}

// ServiceDesc is the hand-written grpc.ServiceDesc for ScanServer, the
// same structure protoc-gen-go-grpc would emit from a
// cluster/common.proto definition, written directly since this service's
// messages are plain JSON-coded Go structs rather than generated
// protobuf bindings.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ScanServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
		{MethodName: "Cancel", Handler: cancelHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cluster/scan.proto",
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Job)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Dispatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScanServer).Dispatch(ctx, req.(*Job))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScanServer).Cancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Cancel"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScanServer).Cancel(ctx, req.(*CancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterScanServer attaches srv to s under ServiceDesc.
func RegisterScanServer(s grpc.ServiceRegistrar, srv ScanServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ScanServiceClient is a hand-written client stub for ScanServer, the
// client-side analogue of RegisterScanServer.
type ScanServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewScanServiceClient wraps an established connection to a worker.
func NewScanServiceClient(cc grpc.ClientConnInterface) *ScanServiceClient {
	return &ScanServiceClient{cc: cc}
}

func (c *ScanServiceClient) Dispatch(ctx context.Context, job *Job, opts ...grpc.CallOption) (*PartialResult, error) {
	out := new(PartialResult)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Dispatch", job, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ScanServiceClient) Cancel(ctx context.Context, req *CancelRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Cancel", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ServerOptions returns the grpc.ServerOption needed to speak the JSON
// codec this package registers instead of protobuf.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{grpc.ForceServerCodec(jsonCodec{})}
}

// DialOptions returns the grpc.DialOption needed for a client to speak
// the same JSON codec as ServerOptions.
func DialOptions() []grpc.DialOption {
	return []grpc.DialOption{grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}))}
}
