package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "recommendation.v1.RecommendationService"

const getRecommendationsMethod = "/" + ServiceName + "/GetRecommendations"

// RecommendationServiceServer is the server API of ServiceName. Messages are
// google.protobuf.Struct so callers need no generated stubs.
type RecommendationServiceServer interface {
	GetRecommendations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes ServiceName for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecommendationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetRecommendations", Handler: getRecommendationsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recommendation/v1/recommendation.proto",
}

func getRecommendationsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecommendationServiceServer).GetRecommendations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getRecommendationsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RecommendationServiceServer).GetRecommendations(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls ServiceName over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetRecommendations invokes the unary RPC.
func (c *Client) GetRecommendations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getRecommendationsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
