package sender

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/payload"
	"github.com/oshokin/alert-receiver/internal/receiver"
)

// Options configures the alert-sender process.
type Options struct {
	// Target is the receiver address; a bare port or ":port" means localhost.
	Target string
	// Messages are sent in order, one datagram each.
	Messages []string
	// Input supplies one message per line when Messages is empty.
	Input io.Reader
	// Encoding is the charset the text is encoded with.
	Encoding string
	// Interval is the pause between datagrams.
	Interval time.Duration
}

// errNoMessages is returned when there is nothing to send.
var errNoMessages = errors.New("no messages to send")

// Run sends every message and returns the number of datagrams written.
func Run(ctx context.Context, opts *Options) (int, error) {
	ctx = logger.WithName(ctx, "alert-sender")

	target := NormalizeTarget(opts.Target)

	encoding := opts.Encoding
	if encoding == "" {
		encoding = payload.DefaultEncoding
	}

	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "udp", target)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", target, err)
	}

	defer func() {
		_ = conn.Close()
	}()

	next := messageSource(opts)
	sent := 0

	for {
		text, ok, err := next()
		if err != nil {
			return sent, fmt.Errorf("read messages: %w", err)
		}

		if !ok {
			break
		}

		if sent > 0 && opts.Interval > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(opts.Interval):
			}
		}

		if err = send(ctx, conn, encoding, text); err != nil {
			return sent, err
		}

		sent++
	}

	if sent == 0 {
		return 0, errNoMessages
	}

	return sent, nil
}

func send(ctx context.Context, conn net.Conn, encoding, text string) error {
	raw, err := payload.Encode(encoding, text)
	if err != nil {
		return fmt.Errorf("encode %q: %w", text, err)
	}

	if len(raw) > receiver.DefaultBufferSize {
		logger.WarnKV(ctx, "Message exceeds the default receive buffer and will be truncated", "size", len(raw))
	}

	if _, err = conn.Write(raw); err != nil {
		return fmt.Errorf("send %q: %w", text, err)
	}

	logger.InfoKV(ctx, "Sent alert", "target", conn.RemoteAddr().String(), "text", text, "size", len(raw))

	return nil
}

// messageSource yields the explicit messages, or non-empty input lines.
func messageSource(opts *Options) func() (string, bool, error) {
	if len(opts.Messages) > 0 || opts.Input == nil {
		i := 0

		return func() (string, bool, error) {
			if i >= len(opts.Messages) {
				return "", false, nil
			}

			i++

			return opts.Messages[i-1], true, nil
		}
	}

	scanner := bufio.NewScanner(opts.Input)

	return func() (string, bool, error) {
		for scanner.Scan() {
			if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
				return line, true, nil
			}
		}

		return "", false, scanner.Err()
	}
}

// NormalizeTarget fills in the loopback host and the default port.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)

	if target == "" {
		return net.JoinHostPort("127.0.0.1", strconv.Itoa(receiver.DefaultPort))
	}

	if _, err := strconv.Atoi(target); err == nil {
		return net.JoinHostPort("127.0.0.1", target)
	}

	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return net.JoinHostPort(target, strconv.Itoa(receiver.DefaultPort))
	}

	if host == "" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
