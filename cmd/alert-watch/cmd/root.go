package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alert-receiver/internal/config"
	"github.com/oshokin/alert-receiver/internal/service/watch"
	"github.com/oshokin/alert-receiver/internal/version"
)

var (
	// configPath to the configuration file.
	configPath string
	// feedAddress overrides the configured gRPC feed address.
	feedAddress string
	// asJSON switches output to JSON.
	asJSON bool

	// rootCmd represents the base command for streaming alerts.
	rootCmd = &cobra.Command{
		Use:   "alert-watch",
		Short: "Stream alerts from a running alert-receiver.",
		Long: `Connects to the gRPC alert feed of a running alert-receiver and prints
every alert received after the connection, in arrival order.

The feed address comes from --feed, then from the configuration file, then
defaults to 127.0.0.1:50061.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return watch.Stream(ctx, options(cmd))
		},
	}

	// statusCmd prints the receiver status once.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the receiver status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return watch.Status(ctx, options(cmd))
		},
	}
)

func options(cmd *cobra.Command) *watch.Options {
	return &watch.Options{
		ConfigPath:  configPath,
		FeedAddress: feedAddress,
		JSON:        asJSON,
		Output:      cmd.OutOrStdout(),
	}
}

// Execute runs the alert-watch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVarP(&feedAddress, "feed", "f", "", "gRPC feed address (default 127.0.0.1:50061)")
	flags.BoolVarP(&asJSON, "json", "j", false, "print JSON")

	rootCmd.AddCommand(statusCmd)
}
