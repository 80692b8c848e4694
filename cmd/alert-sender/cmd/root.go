package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alert-receiver/internal/payload"
	"github.com/oshokin/alert-receiver/internal/service/sender"
	"github.com/oshokin/alert-receiver/internal/version"
)

var (
	// target is the receiver address.
	target string
	// encoding is the charset messages are encoded with.
	encoding string
	// interval is the pause between datagrams.
	interval time.Duration

	// rootCmd represents the base command for sending alerts.
	rootCmd = &cobra.Command{
		Use:   "alert-sender [message...]",
		Short: "Send alert datagrams to a receiver.",
		Long: `Sends one UDP datagram per message argument, or per non-empty line of
standard input when no arguments are given.

The target defaults to 127.0.0.1:5000; a bare port or host fills in the other
half. Use it for drills and to check that a receiver is reachable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			_, err := sender.Run(ctx, &sender.Options{
				Target:   target,
				Messages: args,
				Input:    cmd.InOrStdin(),
				Encoding: encoding,
				Interval: interval,
			})

			return err
		},
	}
)

// Execute runs the alert-sender CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&target, "target", "t", "", "receiver address host:port (default 127.0.0.1:5000)")
	flags.StringVarP(&encoding, "encoding", "e", payload.DefaultEncoding, "payload charset, e.g. utf-8 or windows-1251")
	flags.DurationVarP(&interval, "interval", "i", 0, "pause between datagrams")
}
