package daemon

import (
	"context"
	"fmt"

	"github.com/oshokin/alert-receiver/internal/config"
	"github.com/oshokin/alert-receiver/internal/dispatcher"
	"github.com/oshokin/alert-receiver/internal/logger"
	"github.com/oshokin/alert-receiver/internal/sink/desktop"
	"github.com/oshokin/alert-receiver/internal/sink/mqtt"
)

// attachSinks subscribes the configured optional sinks and returns a function
// releasing their connections. Call it after the dispatcher is closed.
func attachSinks(ctx context.Context, settings *config.Config, alerts *dispatcher.Dispatcher) (func(), error) {
	var closers []func()

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if settings.Desktop.Enabled {
		notifier, err := desktop.Connect(ctx, desktop.Options{
			AppName:       settings.Desktop.AppName,
			ExpireTimeout: settings.Desktop.ExpireTimeout.Std(),
		})
		if err != nil {
			// A headless host has no session bus; the daemon keeps running without it.
			logger.WarnKV(ctx, "Desktop notifications disabled", "error", err)
		} else {
			alerts.Subscribe(notifier.Handle)

			closers = append(closers, func() { _ = notifier.Close() })

			logger.Info(ctx, "Desktop notifications enabled")
		}
	}

	if settings.MQTT.Broker != "" {
		connectCtx, cancel := context.WithTimeout(ctx, settings.Timeout.Std())
		defer cancel()

		forwarder, err := mqtt.Connect(connectCtx, mqtt.Options{
			Broker:   settings.MQTT.Broker,
			Topic:    settings.MQTT.Topic,
			QoS:      byte(settings.MQTT.QoS), //nolint:gosec // Validated to 0-2.
			Retained: settings.MQTT.Retained,
			ClientID: settings.MQTT.ClientID,
			Timeout:  settings.Timeout.Std(),
		})
		if err != nil {
			closeAll()

			return nil, fmt.Errorf("attach mqtt forwarder: %w", err)
		}

		alerts.Subscribe(forwarder.Handle)

		closers = append(closers, forwarder.Close)

		logger.InfoKV(ctx, "Forwarding alerts to MQTT", "broker", settings.MQTT.Broker, "topic", settings.MQTT.Topic)
	}

	return closeAll, nil
}
