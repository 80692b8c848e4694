package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/alert-receiver/internal/api/grpc/feed"
	"github.com/oshokin/alert-receiver/internal/dispatcher"
	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/receiver"
	"github.com/oshokin/alert-receiver/internal/service/common"
)

// Options controls the alert-receiver process.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// Listen overrides configured listen settings.
	Listen common.ListenOverrides
	// FeedAddress overrides the configured gRPC feed address.
	FeedAddress string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Ready is called once every listener is bound. Optional.
	Ready func(udpAddress, feedAddress string)
}

// ErrReceiverStopped is returned when the receive loop exits on a fatal error.
var ErrReceiverStopped = errors.New("receiver stopped")

// Run starts receiving and blocks until ctx is cancelled or the receiver fails.
//
//nolint:funlen // Startup wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alert-receiver")

	settings, err := common.LoadSettings(opts.ConfigPath, opts.Listen)
	if err != nil {
		return err
	}

	if opts.FeedAddress != "" {
		settings.Feed.Address = opts.FeedAddress
	}

	if err = common.ApplyLogLevel(settings.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	alerts, err := common.NewDispatcher(ctx, settings)
	if err != nil {
		return err
	}

	alerts.Subscribe(echo(ctx))

	closeSinks, err := attachSinks(ctx, settings, alerts)
	if err != nil {
		alerts.Close()

		return err
	}

	// The dispatcher is closed first so no handler runs on a released sink.
	// A second Close only waits.
	defer func() {
		alerts.Close()
		closeSinks()
	}()

	r, err := common.NewReceiver(ctx, settings)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	var feedServer *grpc.Server

	feedAddress := ""

	if settings.Feed.Address != "" {
		lc := net.ListenConfig{}

		lis, listenErr := lc.Listen(ctx, "tcp", settings.Feed.Address)
		if listenErr != nil {
			return fmt.Errorf("listen on %s: %w", settings.Feed.Address, listenErr)
		}

		feedServer = grpc.NewServer()
		feed.Register(feedServer, feed.NewServer(ctx, alerts, r))
		feedAddress = lis.Addr().String()

		group.Go(func() error {
			if serveErr := feedServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
				return fmt.Errorf("serve feed: %w", serveErr)
			}

			return nil
		})

		logger.InfoKV(ctx, "Alert feed listening", "address", feedAddress)
	}

	if err = r.Start(groupCtx, settings.Listen.Address, settings.Listen.Port, alerts); err != nil {
		if feedServer != nil {
			feedServer.Stop()

			_ = group.Wait() //nolint:errcheck // The bind error is the one worth reporting.
		}

		return fmt.Errorf("start receiver: %w", err)
	}

	logger.Infof(ctx, "Listening for alerts on %s", r.LocalAddr())

	if opts.Ready != nil {
		opts.Ready(r.LocalAddr(), feedAddress)
	}

	group.Go(func() error {
		return watchReceiver(r)
	})

	group.Go(func() error {
		<-groupCtx.Done()

		logger.Info(ctx, "Shutting down")

		r.Stop()
		shutdown(alerts, feedServer, settings.Timeout.Std())

		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Alert receiver stopped")

	return nil
}

// echo returns the subscriber that writes every alert to the log.
func echo(ctx context.Context) dispatcher.Handler {
	return func(a alert.Alert) {
		logger.InfoKV(ctx, a.Display, "id", a.ID.String(), "source", a.Source, "size", a.Size)
	}
}

// watchReceiver waits for the receive loop to exit and reports fatal exits.
func watchReceiver(r *receiver.Receiver) error {
	<-r.Done()

	status := r.Status()
	if status.Reason != alert.ReasonStopRequested {
		return fmt.Errorf("%w: %s", ErrReceiverStopped, status.Reason)
	}

	return nil
}

// shutdown drains the dispatcher while the feed server stops. Feed streams end
// once their queue is drained; a stream whose client stopped reading is cut off
// by the forced stop after timeout, which releases its drain goroutine.
func shutdown(alerts *dispatcher.Dispatcher, feedServer *grpc.Server, timeout time.Duration) {
	drained := make(chan struct{})

	go func() {
		defer close(drained)

		alerts.Close()
	}()

	if feedServer != nil {
		stopGRPC(feedServer, timeout)
	}

	<-drained
}

// stopGRPC stops the server gracefully, forcing it after timeout.
func stopGRPC(server *grpc.Server, timeout time.Duration) {
	stopped := make(chan struct{})

	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-stopped:
	case <-timer.C:
		server.Stop()
		<-stopped
	}
}
