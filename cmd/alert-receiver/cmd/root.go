package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alert-receiver/internal/config"
	"github.com/oshokin/alert-receiver/internal/service/common"
	"github.com/oshokin/alert-receiver/internal/service/daemon"
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
	// feedAddress overrides the configured gRPC feed address.
	feedAddress string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the receiver daemon.
	rootCmd = &cobra.Command{
		Use:   "alert-receiver",
		Short: "Receive UDP alerts and fan them out to the configured sinks.",
		Long: `Binds a UDP socket at startup and turns every datagram into an alert.

Each alert is echoed to the log as "Alert: <text>" and, when configured, shown
as a desktop notification, forwarded to an MQTT topic and streamed over the
gRPC alert feed. Datagrams longer than the buffer size are truncated and
malformed text is decoded with replacement characters.

Settings are read from the configuration file (YAML, or TOML by extension);
a missing file means defaults. Flags override the file.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return daemon.Run(ctx, &daemon.Options{
				ConfigPath: configPath,
				Listen: common.ListenOverrides{
					Address:  listenAddress,
					Port:     listenPort,
					Encoding: encoding,
				},
				FeedAddress: feedAddress,
				LogLevel:    logLevel,
			})
		},
	}
)

// Execute runs the alert-receiver CLI and exits with non-zero status on error.
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
	flags.StringVarP(&feedAddress, "feed", "f", "", "gRPC feed listen address, e.g. 127.0.0.1:50061")
	flags.StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
}
