package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	// Defaults are valid.
	require.NoError(t, Validate(Default()))

	// Zero values are filled in.
	settings := new(Config)
	require.NoError(t, Validate(settings))
	require.Equal(t, 1024, settings.Listen.BufferSize)
	require.Equal(t, "utf-8", settings.Listen.Encoding)
	require.Equal(t, 1024, settings.Dispatch.QueueCapacity)
	require.Equal(t, DefaultTimeout, settings.Timeout.Std())
	require.Equal(t, DefaultAppName, settings.Desktop.AppName)

	invalid := map[string]func(*Config){
		"port":      func(c *Config) { c.Listen.Port = 70000 },
		"buffer":    func(c *Config) { c.Listen.BufferSize = 70000 },
		"encoding":  func(c *Config) { c.Listen.Encoding = "klingon" },
		"capacity":  func(c *Config) { c.Dispatch.QueueCapacity = -1 },
		"policy":    func(c *Config) { c.Dispatch.DropPolicy = "drop-everything" },
		"feed":      func(c *Config) { c.Feed.Address = "bad:address" },
		"broker":    func(c *Config) { c.MQTT.Broker = "http://broker:1883" },
		"qos":       func(c *Config) { c.MQTT.Broker = "tcp://127.0.0.1:1883"; c.MQTT.QoS = 3 },
		"topic":     func(c *Config) { c.MQTT.Broker = "tcp://127.0.0.1:1883"; c.MQTT.Topic = "" },
		"log_level": func(c *Config) { c.LogLevel = "loud" },
	}

	for name, mutate := range invalid {
		cfg := Default()
		mutate(cfg)
		require.Error(t, Validate(cfg), name)
	}

	// Okay with the optional components enabled.
	settings = Default()
	settings.Feed.Address = DefaultFeedAddress
	settings.MQTT.Broker = "tcp://127.0.0.1:1883"
	settings.MQTT.QoS = 1
	require.NoError(t, Validate(settings))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly in both formats.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"settings.yaml", "settings.toml"} {
		path := filepath.Join(t.TempDir(), name)

		settings := Default()
		settings.Listen.Address = "127.0.0.1"
		settings.Listen.Port = 5050
		settings.Listen.Encoding = "windows-1251"
		settings.Dispatch.DropPolicy = "drop-newest"
		settings.Feed.Address = DefaultFeedAddress
		settings.Desktop.Enabled = true
		settings.Desktop.ExpireTimeout = Duration(10 * time.Second)
		settings.Timeout = Duration(3 * time.Second)

		require.NoError(t, Save(path, settings), name)

		loaded, err := Load(path)
		require.NoError(t, err, name)
		require.Equal(t, settings, loaded, name)

		// File exists.
		_, err = os.Stat(path)
		require.NoError(t, err)
	}
}

// TestLoad_PartialFileKeepsDefaults verifies that omitted fields keep their default values.
func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "partial.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("listen:\n  port: 6000\ntimeout: 2s\n"), DefaultFilePermissions))

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	require.Equal(t, 6000, cfg.Listen.Port)
	require.Equal(t, 1024, cfg.Listen.BufferSize)
	require.Equal(t, "drop-oldest", cfg.Dispatch.DropPolicy)
	require.Equal(t, 2*time.Second, cfg.Timeout.Std())

	tomlPath := filepath.Join(dir, "partial.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[listen]\nport = 6001\n\n[mqtt]\nbroker = \"tcp://127.0.0.1:1883\"\n"), DefaultFilePermissions))

	cfg, err = Load(tomlPath)
	require.NoError(t, err)
	require.Equal(t, 6001, cfg.Listen.Port)
	require.Equal(t, DefaultTopic, cfg.MQTT.Topic)
}

// TestLoadOptional falls back to defaults for missing files but not for broken ones.
func TestLoadOptional(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadOptional(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("listen: [\n"), DefaultFilePermissions))

	_, err = LoadOptional(broken)
	require.Error(t, err)
}

// TestDuration_Text covers parsing of human-readable durations.
func TestDuration_Text(t *testing.T) {
	t.Parallel()

	var d Duration

	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	require.Equal(t, 90*time.Second, d.Std())

	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1m30s", string(text))

	require.NoError(t, d.UnmarshalText([]byte(" ")))
	require.Zero(t, d.Std())

	require.Error(t, d.UnmarshalText([]byte("soon")))
}
