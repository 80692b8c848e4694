package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alert-receiver/internal/config"
	"github.com/oshokin/alert-receiver/internal/service/common"
	"github.com/oshokin/alert-receiver/internal/service/console"
	"github.com/oshokin/alert-receiver/internal/version"
)

var (
	// configPath to the configuration file.
	configPath string
	// listenAddress overrides the configured interface.
	listenAddress string
	// listenPort overrides the configured UDP port.
	listenPort int
	// encoding overrides the configured payload charset.
	encoding string
	// logLevel overrides the configured log level.
	logLevel string
	// logFile receives logs while the UI runs.
	logFile string

	// rootCmd represents the base command for the terminal console.
	rootCmd = &cobra.Command{
		Use:   "alert-console",
		Short: "Show received UDP alerts in an interactive terminal.",
		Long: `Opens a full-screen list of received alerts, newest at the bottom.

The receiver stays idle until you press enter (or s) to start receiving; the
action is disabled while the receiver is listening. Bind failures, such as the
port being in use or another receiver already running, are shown next to the
action. Logs are written to a file because the screen belongs to the UI.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return console.Run(ctx, &console.Options{
				ConfigPath: configPath,
				Listen: common.ListenOverrides{
					Address:  listenAddress,
					Port:     listenPort,
					Encoding: encoding,
				},
				LogLevel: logLevel,
				LogFile:  logFile,
			})
		},
	}
)

// Execute runs the alert-console CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&listenAddress, "address", "a", "", "interface to listen on (default: all interfaces)")
	flags.IntVarP(&listenPort, "port", "p", common.PortFromConfig, "UDP port to listen on (default: from config, 5000)")
	flags.StringVarP(&encoding, "encoding", "e", "", "payload charset, e.g. utf-8 or windows-1251")
	flags.StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFile, "log-file", console.DefaultLogFile, "file receiving logs while the UI runs")
}
