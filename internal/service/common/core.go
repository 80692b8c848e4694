//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"

	"github.com/oshokin/alert-receiver/internal/config"
	"github.com/oshokin/alert-receiver/internal/dispatcher"
	"github.com/oshokin/alert-receiver/internal/payload"
	"github.com/oshokin/alert-receiver/internal/receiver"
)

// NewDispatcher builds a dispatcher from the dispatch settings.
func NewDispatcher(ctx context.Context, settings *config.Config) (*dispatcher.Dispatcher, error) {
	policy, err := dispatcher.ParsePolicy(settings.Dispatch.DropPolicy)
	if err != nil {
		return nil, fmt.Errorf("parse drop policy: %w", err)
	}

	return dispatcher.New(
		ctx,
		dispatcher.WithQueueCapacity(settings.Dispatch.QueueCapacity),
		dispatcher.WithPolicy(policy),
	), nil
}

// NewReceiver builds an idle receiver from the listen settings.
func NewReceiver(ctx context.Context, settings *config.Config) (*receiver.Receiver, error) {
	decoder, err := payload.NewDecoder(settings.Listen.Encoding)
	if err != nil {
		return nil, fmt.Errorf("create payload decoder: %w", err)
	}

	return receiver.New(
		ctx,
		receiver.WithBufferSize(settings.Listen.BufferSize),
		receiver.WithDecoder(decoder),
	), nil
}
