package feed

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alert-receiver/internal/dispatcher"
	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/wire"
)

// Subscriber abstracts the dispatcher the feed attaches streams to.
type Subscriber interface {
	Subscribe(handler dispatcher.Handler) *dispatcher.Subscription
}

// StatusProvider abstracts the receiver whose status GetStatus reports.
type StatusProvider interface {
	Status() alert.Status
}

// Server implements the AlertFeed gRPC API.
type Server struct {
	// subscriber provides alerts for Subscribe streams.
	subscriber Subscriber
	// status provides the receiver status for GetStatus.
	status StatusProvider
	// logCtx carries the logger for stream events.
	logCtx context.Context //nolint:containedctx // Only used to resolve the logger.
}

// NewServer wires the dispatcher and receiver into a gRPC handler.
func NewServer(ctx context.Context, subscriber Subscriber, statusProvider StatusProvider) *Server {
	return &Server{
		subscriber: subscriber,
		status:     statusProvider,
		logCtx:     logger.WithName(ctx, "feed"),
	}
}

// GetStatus returns the current receiver status.
func (s *Server) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	if s.status == nil {
		return nil, status.Error(codes.Unavailable, "receiver is not attached")
	}

	return wire.StatusToStruct(s.status.Status()), nil
}

// Subscribe streams alerts until the client goes away or the dispatcher closes.
func (s *Server) Subscribe(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.subscriber == nil {
		return status.Error(codes.Unavailable, "dispatcher is not attached")
	}

	ctx := stream.Context()
	sendErr := make(chan error, 1)

	sub := s.subscriber.Subscribe(func(a alert.Alert) {
		if err := stream.Send(wire.AlertToStruct(a)); err != nil {
			select {
			case sendErr <- err:
			default:
			}
		}
	})

	// The handler must not return while the drain goroutine can still call Send.
	defer func() {
		sub.Unsubscribe()
		<-sub.Done()
	}()

	logger.Info(s.logCtx, "Feed subscriber connected")

	select {
	case <-ctx.Done():
		logger.Info(s.logCtx, "Feed subscriber disconnected")

		return nil
	case err := <-sendErr:
		logger.WarnKV(s.logCtx, "Feed stream failed", "error", err)

		return status.Error(codes.Unavailable, "unable to send alert")
	case <-sub.Done():
		return status.Error(codes.Unavailable, "alert feed closed")
	}
}
