package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/alert-receiver/internal/dispatcher"
	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/payload"
	"github.com/oshokin/alert-receiver/internal/receiver"
)

// Config holds the settings of the receiver daemon, the console and the feed client.
type Config struct {
	// Listen describes the UDP socket alerts arrive on.
	Listen ListenConfig `yaml:"listen" toml:"listen"`
	// Dispatch controls the per-subscriber queues.
	Dispatch DispatchConfig `yaml:"dispatch" toml:"dispatch"`
	// Feed configures the gRPC alert feed.
	Feed FeedConfig `yaml:"feed" toml:"feed"`
	// MQTT configures alert forwarding to a broker.
	MQTT MQTTConfig `yaml:"mqtt" toml:"mqtt"`
	// Desktop configures freedesktop notifications.
	Desktop DesktopConfig `yaml:"desktop" toml:"desktop"`
	// LogLevel is the minimum level written to the log.
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// Timeout bounds network operations such as broker connects and RPC calls.
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// ListenConfig describes the UDP listener.
type ListenConfig struct {
	// Address is the interface to bind; empty means all interfaces.
	Address string `yaml:"address" toml:"address"`
	// Port is the UDP port.
	Port int `yaml:"port" toml:"port"`
	// BufferSize is the maximum payload size; longer datagrams are truncated.
	BufferSize int `yaml:"buffer_size" toml:"buffer_size"`
	// Encoding is the payload charset label.
	Encoding string `yaml:"encoding" toml:"encoding"`
}

// DispatchConfig controls backpressure between the receiver and subscribers.
type DispatchConfig struct {
	// QueueCapacity bounds each subscriber queue.
	QueueCapacity int `yaml:"queue_capacity" toml:"queue_capacity"`
	// DropPolicy is one of drop-oldest, drop-newest, unbounded.
	DropPolicy string `yaml:"drop_policy" toml:"drop_policy"`
}

// FeedConfig configures the gRPC feed.
type FeedConfig struct {
	// Address is the feed listen address for the daemon and the dial target
	// for the watch client. Empty disables the feed in the daemon.
	Address string `yaml:"address" toml:"address"`
}

// MQTTConfig configures the MQTT forwarder. An empty Broker disables it.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://127.0.0.1:1883.
	Broker string `yaml:"broker" toml:"broker"`
	// Topic receives one message per alert.
	Topic string `yaml:"topic" toml:"topic"`
	// QoS is the MQTT quality of service level (0-2).
	QoS int `yaml:"qos" toml:"qos"`
	// Retained marks published messages as retained.
	Retained bool `yaml:"retained" toml:"retained"`
	// ClientID identifies the forwarder; generated from the hostname if empty.
	ClientID string `yaml:"client_id" toml:"client_id"`
}

// DesktopConfig configures desktop notifications.
type DesktopConfig struct {
	// Enabled turns desktop notifications on.
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// AppName is the application name shown by the notification daemon.
	AppName string `yaml:"app_name" toml:"app_name"`
	// ExpireTimeout is how long a notification stays visible; zero lets the server decide.
	ExpireTimeout Duration `yaml:"expire_timeout" toml:"expire_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for receiver settings.
	DefaultConfigFilename = "alert-receiver.yaml"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultTopic is the MQTT topic used when none is configured.
	DefaultTopic = "alerts"

	// DefaultAppName is the application name used for desktop notifications.
	DefaultAppName = "alert-receiver"

	// DefaultFeedAddress is the conventional feed address for local setups.
	DefaultFeedAddress = "127.0.0.1:50061"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// maxBufferSize is the largest UDP payload.
	maxBufferSize = 65535
	// maxPort is the highest valid port.
	maxPort = 65535
	// maxQoS is the highest MQTT QoS level.
	maxQoS = 2
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidPort is returned for ports outside 0-65535.
	errInvalidPort = errors.New("listen port must be between 0 and 65535")
	// errInvalidBufferSize is returned for buffers larger than a UDP datagram.
	errInvalidBufferSize = errors.New("buffer size must not exceed 65535 bytes")
	// errInvalidQueueCapacity is returned for negative queue capacities.
	errInvalidQueueCapacity = errors.New("queue capacity must not be negative")
	// errInvalidLogLevel is returned for unknown log levels.
	errInvalidLogLevel = errors.New("unknown log level")
	// errInvalidBroker is returned for malformed broker URLs.
	errInvalidBroker = errors.New("mqtt broker must be a tcp, ssl, ws or wss URL")
	// errInvalidQoS is returned for QoS values outside 0-2.
	errInvalidQoS = errors.New("mqtt qos must be 0, 1 or 2")
	// errTopicRequired is returned when a broker is set without a topic.
	errTopicRequired = errors.New("mqtt topic must be provided")
)

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Address:    "",
			Port:       receiver.DefaultPort,
			BufferSize: receiver.DefaultBufferSize,
			Encoding:   payload.DefaultEncoding,
		},
		Dispatch: DispatchConfig{
			QueueCapacity: dispatcher.DefaultQueueCapacity,
			DropPolicy:    dispatcher.DropOldest.String(),
		},
		MQTT: MQTTConfig{
			Topic: DefaultTopic,
		},
		Desktop: DesktopConfig{
			AppName: DefaultAppName,
		},
		LogLevel: "info",
		Timeout:  Duration(DefaultTimeout),
	}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = unmarshal(path, contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOptional is Load that falls back to Default when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := marshal(path, cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills zero values with defaults.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.Listen.Port < 0 || settings.Listen.Port > maxPort {
		return errInvalidPort
	}

	if settings.Listen.BufferSize <= 0 {
		settings.Listen.BufferSize = receiver.DefaultBufferSize
	}

	if settings.Listen.BufferSize > maxBufferSize {
		return errInvalidBufferSize
	}

	if settings.Listen.Encoding == "" {
		settings.Listen.Encoding = payload.DefaultEncoding
	}

	if err := payload.Validate(settings.Listen.Encoding); err != nil {
		return fmt.Errorf("invalid listen encoding: %w", err)
	}

	if settings.Dispatch.QueueCapacity < 0 {
		return errInvalidQueueCapacity
	}

	if settings.Dispatch.QueueCapacity == 0 {
		settings.Dispatch.QueueCapacity = dispatcher.DefaultQueueCapacity
	}

	if _, err := dispatcher.ParsePolicy(settings.Dispatch.DropPolicy); err != nil {
		return fmt.Errorf("invalid dispatch settings: %w", err)
	}

	if settings.Feed.Address != "" {
		if _, err := net.ResolveTCPAddr("tcp", settings.Feed.Address); err != nil {
			return fmt.Errorf("invalid feed address: %w", err)
		}
	}

	if err := validateMQTT(&settings.MQTT); err != nil {
		return err
	}

	if settings.Desktop.AppName == "" {
		settings.Desktop.AppName = DefaultAppName
	}

	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errInvalidLogLevel, settings.LogLevel)
	}

	// Set default timeout if not specified
	if settings.Timeout <= 0 {
		settings.Timeout = Duration(DefaultTimeout)
	}

	return nil
}

// validateMQTT checks the forwarder settings when a broker is configured.
func validateMQTT(settings *MQTTConfig) error {
	if settings.Broker == "" {
		return nil
	}

	brokerURL, err := url.Parse(settings.Broker)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidBroker, err)
	}

	switch brokerURL.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return errInvalidBroker
	}

	if brokerURL.Host == "" {
		return errInvalidBroker
	}

	if settings.QoS < 0 || settings.QoS > maxQoS {
		return errInvalidQoS
	}

	if settings.Topic == "" {
		return errTopicRequired
	}

	return nil
}

// isTOML reports whether path should be read as TOML.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func unmarshal(path string, contents []byte, cfg *Config) error {
	if isTOML(path) {
		return toml.Unmarshal(contents, cfg)
	}

	return yaml.Unmarshal(contents, cfg)
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if isTOML(path) {
		return toml.Marshal(cfg)
	}

	return yaml.Marshal(cfg)
}
