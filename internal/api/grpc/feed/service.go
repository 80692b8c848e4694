package feed

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "alertreceiver.v1.AlertFeed"

	getStatusMethod = "/" + ServiceName + "/GetStatus"
	subscribeMethod = "/" + ServiceName + "/Subscribe"
)

// FeedServer is the server API of the alert feed.
//
//nolint:revive // FeedServer mirrors generated gRPC naming.
type FeedServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Subscribe(req *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// serviceDesc describes the alert feed for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "alertreceiver/v1/feed.proto",
}

// Register adds the feed implementation to a gRPC server.
func Register(registrar grpc.ServiceRegistrar, srv FeedServer) {
	registrar.RegisterService(&serviceDesc, srv)
}

func getStatusHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	feed, _ := srv.(FeedServer)

	if interceptor == nil {
		return feed.GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: getStatusMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		empty, _ := req.(*emptypb.Empty)

		return feed.GetStatus(ctx, empty)
	}

	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	feed, _ := srv.(FeedServer)

	return feed.Subscribe(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}
