package wiremsg

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName and MethodRequestAction name the single RPC spec.md's
// gRPC service defines, in lieu of a .proto-generated service
// descriptor.
const (
	ServiceName         = "ensemble.elasticity.Elasticity"
	MethodRequestAction = "RequestAction"
)

// ElasticityServer is implemented by internal/elasticity/server (C8).
type ElasticityServer interface {
	RequestAction(ctx context.Context, req *ActionRequest) (*Response, error)
}

// RegisterElasticityServer wires srv onto a grpc.Server (or anything
// satisfying grpc.ServiceRegistrar), the hand-authored equivalent of
// generated Register<Service>Server code.
func RegisterElasticityServer(s grpc.ServiceRegistrar, srv ElasticityServer) {
	s.RegisterService(&elasticityServiceDesc, srv)
}

var elasticityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ElasticityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodRequestAction,
			Handler:    elasticityRequestActionHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wiremsg/elasticity.proto",
}

func elasticityRequestActionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ActionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ElasticityServer).RequestAction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/" + MethodRequestAction,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ElasticityServer).RequestAction(ctx, req.(*ActionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ElasticityClient is the C7 client stub over the hand-authored
// contract.
type ElasticityClient interface {
	RequestAction(ctx context.Context, in *ActionRequest, opts ...grpc.CallOption) (*Response, error)
}

type elasticityClient struct {
	cc grpc.ClientConnInterface
}

// NewElasticityClient wraps a dialed connection as an ElasticityClient.
func NewElasticityClient(cc grpc.ClientConnInterface) ElasticityClient {
	return &elasticityClient{cc: cc}
}

func (c *elasticityClient) RequestAction(ctx context.Context, in *ActionRequest, opts ...grpc.CallOption) (*Response, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	out := new(Response)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+MethodRequestAction, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
