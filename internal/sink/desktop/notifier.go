package desktop

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
)

const (
	notificationsDest = "org.freedesktop.Notifications"
	notificationsPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod      = notificationsDest + ".Notify"

	// urgencyCritical keeps the notification on screen until dismissed on most servers.
	urgencyCritical = byte(2)
	// icon is the themed icon name shown with each alert.
	icon = "dialog-warning"
	// summary is the notification title.
	summary = "Alert"
)

// caller is the part of dbus.BusObject the notifier uses.
type caller interface {
	Call(method string, flags dbus.Flags, args ...any) *dbus.Call
}

// Options configures a Notifier.
type Options struct {
	// AppName is reported to the notification server.
	AppName string
	// ExpireTimeout is how long a notification stays visible; zero lets the server decide.
	ExpireTimeout time.Duration
}

// Notifier posts one desktop notification per alert.
type Notifier struct {
	// conn is the session bus connection; nil when a caller was injected.
	conn *dbus.Conn
	// object is the notification server.
	object caller
	// opts holds the notification settings.
	opts Options
	// logCtx carries the sink logger.
	logCtx context.Context //nolint:containedctx // Only used to resolve the logger.

	// shown counts notifications accepted by the server.
	shown atomic.Uint64
	// lastID is the id returned by the server for the latest notification.
	lastID atomic.Uint32
}

// Connect opens the session bus.
func Connect(ctx context.Context, opts Options) (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	n := newNotifier(ctx, conn.Object(notificationsDest, notificationsPath), opts)
	n.conn = conn

	return n, nil
}

func newNotifier(ctx context.Context, object caller, opts Options) *Notifier {
	return &Notifier{
		object: object,
		opts:   opts,
		logCtx: logger.WithName(ctx, "desktop"),
	}
}

// Handle shows the alert. It satisfies dispatcher.Handler.
func (n *Notifier) Handle(a alert.Alert) {
	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(urgencyCritical),
		"category": dbus.MakeVariant("network"),
	}

	if a.Source != "" {
		hints["x-alert-source"] = dbus.MakeVariant(a.Source)
	}

	call := n.object.Call(
		notifyMethod,
		0,
		n.opts.AppName,
		uint32(0),
		icon,
		summary,
		a.Text,
		[]string{},
		hints,
		expireMillis(n.opts.ExpireTimeout),
	)
	if call.Err != nil {
		logger.WarnKV(n.logCtx, "Failed to show notification", "id", a.ID.String(), "error", call.Err)

		return
	}

	var id uint32
	if err := call.Store(&id); err == nil {
		n.lastID.Store(id)
	}

	n.shown.Add(1)
}

// Shown returns the number of notifications accepted by the server.
func (n *Notifier) Shown() uint64 {
	return n.shown.Load()
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}

	return n.conn.Close()
}

// expireMillis converts a timeout to the Notify expire_timeout argument:
// -1 lets the server decide.
func expireMillis(timeout time.Duration) int32 {
	if timeout <= 0 {
		return -1
	}

	return int32(min(timeout.Milliseconds(), int64(^uint32(0)>>1))) //nolint:gosec // Clamped to int32 range.
}
