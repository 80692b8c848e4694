//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"

	"github.com/oshokin/alert-receiver/internal/config"
	"github.com/oshokin/alert-receiver/internal/logger"
)

// PortFromConfig marks a port override as unset; port 0 is a valid override.
const PortFromConfig = -1

// ListenOverrides are command-line values that replace configured listen settings.
type ListenOverrides struct {
	// Address replaces the listen address when not empty.
	Address string
	// Port replaces the listen port unless it equals PortFromConfig.
	Port int
	// Encoding replaces the payload encoding when not empty.
	Encoding string
}

// errUnknownLogLevel is returned for log levels zap does not know.
var errUnknownLogLevel = errors.New("unknown log level")

// LoadSettings reads the configuration at path, applies overrides and validates the result.
// A missing file yields the defaults.
func LoadSettings(path string, overrides ListenOverrides) (*config.Config, error) {
	settings, err := config.LoadOptional(path)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if overrides.Address != "" {
		settings.Listen.Address = overrides.Address
	}

	if overrides.Port != PortFromConfig {
		settings.Listen.Port = overrides.Port
	}

	if overrides.Encoding != "" {
		settings.Listen.Encoding = overrides.Encoding
	}

	if err = config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return settings, nil
}

// ApplyLogLevel sets the global log level. An empty override keeps the configured level.
func ApplyLogLevel(configured, override string) error {
	level := configured
	if override != "" {
		level = override
	}

	if level == "" {
		return nil
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}

	logger.SetLevel(parsed)

	return nil
}
