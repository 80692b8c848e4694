package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/alert-receiver/internal/api/grpc/feed"
	"github.com/oshokin/alert-receiver/internal/config"
	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/service/common"
	"github.com/oshokin/alert-receiver/internal/wire"
)

// Options configures the alert-watch process.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// FeedAddress overrides the configured feed address.
	FeedAddress string
	// JSON prints machine-readable output.
	JSON bool
	// Output receives the printed alerts or status.
	Output io.Writer
}

// Stream prints every alert from the feed until ctx is cancelled or the daemon goes away.
func Stream(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alert-watch")

	client, address, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Watching alert feed", "address", address)

	return client.Subscribe(ctx, func(a alert.Alert) error {
		return printAlert(opts.Output, a, opts.JSON)
	})
}

// Status prints the receiver status once.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alert-watch")

	client, _, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	status, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}

	return printStatus(opts.Output, status, opts.JSON, time.Now())
}

func connect(ctx context.Context, opts *Options) (*feed.Client, string, error) {
	settings, err := common.LoadSettings(opts.ConfigPath, common.ListenOverrides{Port: common.PortFromConfig})
	if err != nil {
		return nil, "", err
	}

	address := opts.FeedAddress
	if address == "" {
		address = settings.Feed.Address
	}

	if address == "" {
		address = config.DefaultFeedAddress
	}

	client, err := feed.Dial(ctx, address, feed.WithCallTimeout(settings.Timeout.Std()))
	if err != nil {
		return nil, "", err
	}

	return client, address, nil
}

func printAlert(w io.Writer, a alert.Alert, asJSON bool) error {
	if asJSON {
		body, err := wire.MarshalAlertJSON(a)
		if err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}

		_, err = fmt.Fprintln(w, string(body))

		return err
	}

	_, err := fmt.Fprintf(w, "%s  %-21s  %s\n", a.ReceivedAt.Local().Format(time.TimeOnly), a.Source, a.Display)

	return err
}

func printStatus(w io.Writer, status alert.Status, asJSON bool, now time.Time) error {
	if asJSON {
		body, err := wire.MarshalStatusJSON(status)
		if err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		_, err = fmt.Fprintln(w, string(body))

		return err
	}

	//nolint:gosec // Counters stay far below MaxInt64.
	received, transient := int64(status.Received), int64(status.TransientErrors)

	lines := []string{
		"State:            " + status.State.String(),
		"Address:          " + status.LocalAddr,
		"Received:         " + humanize.Comma(received),
		"Transient errors: " + humanize.Comma(transient),
	}

	if !status.StartedAt.IsZero() {
		lines = append(lines, "Started:          "+humanize.RelTime(status.StartedAt, now, "ago", "from now"))
	}

	if !status.StoppedAt.IsZero() {
		lines = append(lines, "Stopped:          "+humanize.RelTime(status.StoppedAt, now, "ago", "from now"))
	}

	if status.Reason != "" {
		lines = append(lines, "Reason:           "+status.Reason)
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}
