package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oshokin/alert-receiver/internal/dispatcher"
	"github.com/oshokin/alert-receiver/internal/domain/alert"
)

// Subscriber is the dispatcher the console attaches to.
type Subscriber interface {
	Subscribe(handler dispatcher.Handler) *dispatcher.Subscription
}

// Run shows the console until the user quits or ctx is cancelled.
// Alerts are posted into the event loop from the subscription's drain goroutine.
func Run(ctx context.Context, ctrl Controller, alerts Subscriber, opts ...tea.ProgramOption) error {
	programOptions := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	program := tea.NewProgram(New(ctrl), programOptions...)

	sub := alerts.Subscribe(func(a alert.Alert) {
		program.Send(AlertMsg{Alert: a})
	})
	defer sub.Unsubscribe()

	_, err := program.Run()
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("run console: %w", err)
	}

	return nil
}
