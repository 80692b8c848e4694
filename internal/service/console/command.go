package console

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/alert-receiver/internal/config"
	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/receiver"
	"github.com/oshokin/alert-receiver/internal/service/common"
	"github.com/oshokin/alert-receiver/internal/tui"
)

// DefaultLogFile receives the console logs.
const DefaultLogFile = "alert-console.log"

// Options controls the alert-console process.
type Options struct {
	// ConfigPath specifies the path to the settings file.
	ConfigPath string
	// Listen overrides configured listen settings.
	Listen common.ListenOverrides
	// LogLevel overrides the configured log level.
	LogLevel string
	// LogFile is where logs are written while the UI runs.
	LogFile string
	// ProgramOptions are passed to the bubbletea program.
	ProgramOptions []tea.ProgramOption
}

// controller starts the receiver on the console's behalf.
type controller struct {
	// ctx bounds the receive loop.
	ctx context.Context //nolint:containedctx // The loop must stop with the console.
	// receiver is started on demand.
	receiver *receiver.Receiver
	// sink receives alerts.
	sink receiver.Sink
	// address and port are the listen settings.
	address string
	port    int
}

// Start binds the configured address and starts receiving.
func (c *controller) Start() error {
	return c.receiver.Start(c.ctx, c.address, c.port, c.sink)
}

// Done is closed when the current receive loop exits.
func (c *controller) Done() <-chan struct{} {
	return c.receiver.Done()
}

// Status returns the receiver snapshot.
func (c *controller) Status() alert.Status {
	return c.receiver.Status()
}

// Run shows the console until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts *Options) error {
	settings, err := common.LoadSettings(opts.ConfigPath, opts.Listen)
	if err != nil {
		return err
	}

	logFile := opts.LogFile
	if logFile == "" {
		logFile = DefaultLogFile
	}

	output, err := os.OpenFile(filepath.Clean(logFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	defer func() {
		_ = output.Close()
	}()

	// Swap the global logger before any context derives from it.
	logger.SetLogger(logger.NewWithOutput(zapcore.Lock(output), nil))

	if err = common.ApplyLogLevel(settings.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	ctx = logger.WithName(ctx, "alert-console")

	alerts, err := common.NewDispatcher(ctx, settings)
	if err != nil {
		return err
	}

	r, err := common.NewReceiver(ctx, settings)
	if err != nil {
		alerts.Close()

		return err
	}

	ctrl := &controller{
		ctx:      ctx,
		receiver: r,
		sink:     alerts,
		address:  settings.Listen.Address,
		port:     settings.Listen.Port,
	}

	logger.Info(ctx, "Console started")

	err = tui.Run(ctx, ctrl, alerts, opts.ProgramOptions...)

	r.Stop()
	alerts.Close()

	logger.Info(ctx, "Console stopped")

	return err
}
