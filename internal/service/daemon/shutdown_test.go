package daemon

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/oshokin/alert-receiver/internal/api/grpc/feed"
	"github.com/oshokin/alert-receiver/internal/dispatcher"
	"github.com/oshokin/alert-receiver/internal/domain/alert"
)

// TestShutdown_StalledFeedClient checks that a feed client which stopped reading
// cannot hold the process open past the stop timeout.
func TestShutdown_StalledFeedClient(t *testing.T) {
	t.Parallel()

	const alertCount = 3000

	alerts := dispatcher.New(context.Background(), dispatcher.WithPolicy(dispatcher.Unbounded))

	var logged atomic.Int64

	alerts.Subscribe(func(alert.Alert) {
		logged.Add(1)
	})

	listener := bufconn.Listen(1 << 20)
	feedServer := grpc.NewServer()
	feed.Register(feedServer, feed.NewServer(context.Background(), alerts, nil))

	go func() {
		_ = feedServer.Serve(listener) //nolint:errcheck // Serve returns once the server stops.
	}()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	streamCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// The stream is opened and then never read from.
	stream, err := conn.NewStream(
		streamCtx,
		&grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true},
		"/"+feed.ServiceName+"/Subscribe",
	)
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(new(emptypb.Empty)))
	require.NoError(t, stream.CloseSend())

	require.Eventually(t, func() bool {
		return alerts.Subscribers() == 2
	}, 2*time.Second, 10*time.Millisecond)

	text := strings.Repeat("x", 1024)
	for range alertCount {
		alerts.Deliver(alert.New(ulid.Make(), text, "127.0.0.1:1", len(text), time.Now()))
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		shutdown(alerts, feedServer, 200*time.Millisecond)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "shutdown blocked behind a feed client that stopped reading")
	}

	require.EqualValues(t, alertCount, logged.Load())
}
