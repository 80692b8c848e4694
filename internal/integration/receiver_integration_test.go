package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alert-receiver/internal/dispatcher"
	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/receiver"
	"github.com/oshokin/alert-receiver/internal/service/sender"
)

// startPipeline binds a receiver on port (falling back to an ephemeral port
// when it is taken) and returns it with its dispatcher.
func startPipeline(t *testing.T, port int) (*receiver.Receiver, *dispatcher.Dispatcher) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	alerts := dispatcher.New(ctx, dispatcher.WithPolicy(dispatcher.Unbounded))
	r := receiver.New(ctx)

	err := r.Start(ctx, "127.0.0.1", port, alerts)

	var bindErr *receiver.BindError
	if port != 0 && errors.As(err, &bindErr) {
		t.Logf("port %d unavailable (%v), using an ephemeral port", port, err)

		err = r.Start(ctx, "127.0.0.1", 0, alerts)
	}

	require.NoError(t, err)

	t.Cleanup(func() {
		r.Stop()
		alerts.Close()
	})

	return r, alerts
}

// TestEndToEnd_FireDrill sends one datagram to the default port and expects the exact display string.
func TestEndToEnd_FireDrill(t *testing.T) {
	t.Parallel()

	r, alerts := startPipeline(t, receiver.DefaultPort)

	received := make(chan alert.Alert, 1)
	alerts.Subscribe(func(a alert.Alert) { received <- a })

	_, port, err := net.SplitHostPort(r.LocalAddr())
	require.NoError(t, err)

	sent, err := sender.Run(context.Background(), &sender.Options{
		Target:   net.JoinHostPort("127.0.0.1", port),
		Messages: []string{"Fire drill"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	select {
	case a := <-received:
		require.Equal(t, "Alert: Fire drill", a.Display)
		require.Equal(t, "Fire drill", a.Text)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "alert not delivered")
	}
}

// TestEndToEnd_OrderAcrossSubscribers delivers a burst to several subscribers in send order.
func TestEndToEnd_OrderAcrossSubscribers(t *testing.T) {
	t.Parallel()

	const (
		subscribers = 3
		messages    = 200
	)

	r, alerts := startPipeline(t, 0)

	results := make([]chan string, subscribers)

	for i := range results {
		ch := make(chan string, messages)
		results[i] = ch

		alerts.Subscribe(func(a alert.Alert) { ch <- a.Text })
	}

	conn, err := net.Dial("udp", r.LocalAddr())
	require.NoError(t, err)

	defer func() { _ = conn.Close() }()

	for i := range messages {
		_, err = conn.Write([]byte(strconv.Itoa(i)))
		require.NoError(t, err)

		// Keep the burst within the socket receive buffer.
		if i%50 == 49 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	deadline := time.After(5 * time.Second)

	for s, ch := range results {
		previous := -1

		for range messages {
			select {
			case text := <-ch:
				n, convErr := strconv.Atoi(text)
				require.NoError(t, convErr)
				require.Greater(t, n, previous, fmt.Sprintf("subscriber %d out of order", s))

				previous = n
			case <-deadline:
				require.FailNow(t, "alerts not delivered", "subscriber %d stopped after %d", s, previous)
			}
		}
	}

	require.Equal(t, uint64(messages), r.Status().Received)
}

// TestEndToEnd_StopAndRebind stops a receiver with a pending read and binds the same port again.
func TestEndToEnd_StopAndRebind(t *testing.T) {
	t.Parallel()

	r, alerts := startPipeline(t, 0)

	address := r.LocalAddr()
	host, portText, err := net.SplitHostPort(address)
	require.NoError(t, err)

	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	stopped := make(chan struct{})

	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		require.FailNow(t, "stop did not unblock the pending read")
	}

	status := r.Status()
	require.Equal(t, alert.StateStopped, status.State)
	require.Equal(t, alert.ReasonStopRequested, status.Reason)

	require.NoError(t, r.Start(context.Background(), host, port, alerts))
	require.Equal(t, address, r.LocalAddr())
}
