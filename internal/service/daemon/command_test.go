package daemon

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alert-receiver/internal/api/grpc/feed"
	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/receiver"
	"github.com/oshokin/alert-receiver/internal/service/common"
)

// listening carries the addresses reported by Options.Ready.
type listening struct {
	udp  string
	feed string
}

// TestRun_FeedRoundtrip starts the daemon, sends a datagram and reads it back from the feed.
func TestRun_FeedRoundtrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan listening, 1)
	result := make(chan error, 1)

	go func() {
		result <- Run(ctx, &Options{
			ConfigPath:  filepath.Join(t.TempDir(), "absent.yaml"),
			Listen:      common.ListenOverrides{Address: "127.0.0.1", Port: 0},
			FeedAddress: "127.0.0.1:0",
			Ready: func(udpAddress, feedAddress string) {
				ready <- listening{udp: udpAddress, feed: feedAddress}
			},
		})
	}()

	var addrs listening

	select {
	case addrs = <-ready:
	case err := <-result:
		require.FailNow(t, "daemon exited early", "%v", err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "daemon did not start")
	}

	client, err := feed.Dial(ctx, addrs.feed, feed.WithCallTimeout(time.Second))
	require.NoError(t, err)

	defer func() { _ = client.Close() }()

	status, err := client.GetStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, alert.StateListening, status.State)
	require.Equal(t, addrs.udp, status.LocalAddr)

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	received := make(chan alert.Alert, 1)

	go func() {
		_ = client.Subscribe(streamCtx, func(a alert.Alert) error { //nolint:errcheck // Ends with the test.
			select {
			case received <- a:
			default:
			}

			return nil
		})
	}()

	conn, err := net.Dial("udp", addrs.udp)
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	// The stream attaches asynchronously; resend until the first alert arrives.
	var got alert.Alert

	require.Eventually(t, func() bool {
		_, _ = conn.Write([]byte("Fire drill"))

		select {
		case got = <-received:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, "Alert: Fire drill", got.Display)

	stopStream()
	cancel()

	select {
	case err = <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "daemon did not stop")
	}
}

// TestRun_BindFailure reports the bind error and does not start.
func TestRun_BindFailure(t *testing.T) {
	t.Parallel()

	occupied, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	defer func() { _ = occupied.Close() }()

	_, portText, err := net.SplitHostPort(occupied.LocalAddr().String())
	require.NoError(t, err)

	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	err = Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Listen:     common.ListenOverrides{Address: "127.0.0.1", Port: port},
	})
	require.Error(t, err)

	var bindErr *receiver.BindError
	require.True(t, errors.As(err, &bindErr))
	require.Contains(t, []receiver.Cause{receiver.CausePortUnavailable, receiver.CauseAlreadyRunning}, bindErr.Cause)
}

// TestRun_InvalidLogLevel fails before binding.
func TestRun_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		Listen:     common.ListenOverrides{Port: common.PortFromConfig},
		LogLevel:   "loud",
	})
	require.Error(t, err)
}
