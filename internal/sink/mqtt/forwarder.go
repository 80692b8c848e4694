package mqtt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/wire"
)

const (
	// clientIDPrefix prefixes generated client IDs.
	clientIDPrefix = "alert-receiver-"
	// disconnectQuiesce is how long Close waits for in-flight work, in milliseconds.
	disconnectQuiesce = 250
	// keepAlive is the MQTT keep-alive interval.
	keepAlive = 60 * time.Second
	// maxReconnectInterval caps the automatic reconnect backoff.
	maxReconnectInterval = time.Minute
)

var (
	// ErrBrokerRequired is returned when no broker URL is configured.
	ErrBrokerRequired = errors.New("mqtt broker must be provided")
	// ErrTopicRequired is returned when no topic is configured.
	ErrTopicRequired = errors.New("mqtt topic must be provided")
	// errPublishTimeout is returned when the broker does not acknowledge in time.
	errPublishTimeout = errors.New("publish timed out")
)

// Options configures a Forwarder.
type Options struct {
	// Broker is the broker URL, e.g. tcp://127.0.0.1:1883.
	Broker string
	// Topic receives one message per alert.
	Topic string
	// QoS is the MQTT quality of service level.
	QoS byte
	// Retained marks messages as retained.
	Retained bool
	// ClientID identifies the connection; DefaultClientID is used when empty.
	ClientID string
	// Timeout bounds connect and publish acknowledgements.
	Timeout time.Duration
}

// publisher is the part of paho.Client the forwarder needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
}

// Forwarder publishes alerts to an MQTT topic.
type Forwarder struct {
	// client is the broker connection.
	client publisher
	// opts holds the publish settings.
	opts Options
	// logCtx carries the sink logger.
	logCtx context.Context //nolint:containedctx // Only used to resolve the logger.

	// published counts acknowledged messages.
	published atomic.Uint64
	// failed counts alerts that could not be published.
	failed atomic.Uint64
}

// DefaultClientID derives a client ID from the hostname.
func DefaultClientID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return fmt.Sprintf("%s%d", clientIDPrefix, os.Getpid())
	}

	return clientIDPrefix + hostname
}

// Connect dials the broker and returns a ready Forwarder.
func Connect(ctx context.Context, opts Options) (*Forwarder, error) {
	if opts.Broker == "" {
		return nil, ErrBrokerRequired
	}

	if opts.Topic == "" {
		return nil, ErrTopicRequired
	}

	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID()
	}

	logCtx := logger.WithFields(logger.WithName(ctx, "mqtt"), "broker", opts.Broker, "topic", opts.Topic)

	clientOptions := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(maxReconnectInterval).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.WarnKV(logCtx, "Broker connection lost, reconnecting", "error", err)
		}).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info(logCtx, "Connected to broker")
		})

	if opts.Timeout > 0 {
		clientOptions.SetConnectTimeout(opts.Timeout)
	}

	client := paho.NewClient(clientOptions)

	if err := await(ctx, client.Connect(), opts.Timeout); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", opts.Broker, err)
	}

	return newForwarder(logCtx, client, opts), nil
}

func newForwarder(logCtx context.Context, client publisher, opts Options) *Forwarder {
	return &Forwarder{
		client: client,
		opts:   opts,
		logCtx: logCtx,
	}
}

// Handle publishes one alert. It satisfies dispatcher.Handler.
func (f *Forwarder) Handle(a alert.Alert) {
	body, err := wire.MarshalAlertJSON(a)
	if err != nil {
		f.failed.Add(1)
		logger.ErrorKV(f.logCtx, "Failed to encode alert", "id", a.ID.String(), "error", err)

		return
	}

	token := f.client.Publish(f.opts.Topic, f.opts.QoS, f.opts.Retained, body)

	if err = await(context.Background(), token, f.opts.Timeout); err != nil {
		f.failed.Add(1)
		logger.WarnKV(f.logCtx, "Failed to publish alert", "id", a.ID.String(), "error", err)

		return
	}

	f.published.Add(1)
}

// Published returns the number of acknowledged messages.
func (f *Forwarder) Published() uint64 {
	return f.published.Load()
}

// Failed returns the number of alerts that could not be published.
func (f *Forwarder) Failed() uint64 {
	return f.failed.Load()
}

// Close disconnects from the broker.
func (f *Forwarder) Close() {
	f.client.Disconnect(disconnectQuiesce)
}

// await waits for token completion, ctx cancellation or timeout, whichever comes first.
// A zero timeout waits without a deadline.
func await(ctx context.Context, token paho.Token, timeout time.Duration) error {
	var expired <-chan time.Time

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		expired = timer.C
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return errPublishTimeout
	}
}
