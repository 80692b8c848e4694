package desktop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
)

// fakeBus records Notify calls.
type fakeBus struct {
	// methods are the invoked method names.
	methods []string
	// args are the arguments of each call.
	args [][]any
	// err fails every call when set.
	err error
}

func (b *fakeBus) Call(method string, _ dbus.Flags, args ...any) *dbus.Call {
	b.methods = append(b.methods, method)
	b.args = append(b.args, args)

	return &dbus.Call{Err: b.err, Body: []any{uint32(len(b.methods))}}
}

func testAlert(text string) alert.Alert {
	now := time.Now()

	return alert.New(alert.NewIDGenerator().Next(now), text, "127.0.0.1:41000", len(text), now)
}

// TestNotifier_Handle sends a Notify call with the alert text as body.
func TestNotifier_Handle(t *testing.T) {
	t.Parallel()

	bus := new(fakeBus)
	n := newNotifier(context.Background(), bus, Options{AppName: "alert-receiver", ExpireTimeout: 3 * time.Second})

	n.Handle(testAlert("Fire drill"))

	require.Equal(t, []string{"org.freedesktop.Notifications.Notify"}, bus.methods)

	args := bus.args[0]
	require.Len(t, args, 8)
	require.Equal(t, "alert-receiver", args[0])
	require.Equal(t, uint32(0), args[1])
	require.Equal(t, "Alert", args[3])
	require.Equal(t, "Fire drill", args[4])
	require.Equal(t, int32(3000), args[7])

	hints, ok := args[6].(map[string]dbus.Variant)
	require.True(t, ok)
	require.Equal(t, urgencyCritical, hints["urgency"].Value())
	require.Equal(t, "127.0.0.1:41000", hints["x-alert-source"].Value())

	require.Equal(t, uint64(1), n.Shown())
	require.Equal(t, uint32(1), n.lastID.Load())
	require.NoError(t, n.Close())
}

// TestNotifier_Handle_Error does not count rejected notifications.
func TestNotifier_Handle_Error(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{err: errors.New("no notification server")}
	n := newNotifier(context.Background(), bus, Options{AppName: "alert-receiver"})

	n.Handle(testAlert("ignored"))

	require.Len(t, bus.methods, 1)
	require.Zero(t, n.Shown())
}

// TestExpireMillis maps zero to the server default and clamps large values.
func TestExpireMillis(t *testing.T) {
	t.Parallel()

	require.Equal(t, int32(-1), expireMillis(0))
	require.Equal(t, int32(1500), expireMillis(1500*time.Millisecond))
	require.Equal(t, int32(1<<31-1), expireMillis(1000*time.Hour))
}
