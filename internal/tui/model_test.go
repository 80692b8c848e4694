package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
)

// fakeController records start requests.
type fakeController struct {
	mu     sync.Mutex
	starts int
	err    error
	done   chan struct{}
	status alert.Status
}

func newFakeController() *fakeController {
	return &fakeController{done: make(chan struct{})}
}

func (c *fakeController) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.starts++
	if c.err == nil {
		c.status = alert.Status{State: alert.StateListening, LocalAddr: "127.0.0.1:5000"}
	}

	return c.err
}

func (c *fakeController) Done() <-chan struct{} { return c.done }

func (c *fakeController) Status() alert.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)

	model, ok := next.(Model)
	require.True(t, ok)

	return model, cmd
}

func enter() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}

func newAlert(text string, at time.Time) alert.Alert {
	return alert.New(alert.NewIDGenerator().Next(at), text, "127.0.0.1:40000", len(text), at)
}

// TestModel_StartOnce runs the start action once and disables it afterwards.
func TestModel_StartOnce(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	m, _ := update(t, New(ctrl), tea.WindowSizeMsg{Width: 80, Height: 20})

	m, cmd := update(t, m, enter())
	require.NotNil(t, cmd)
	require.True(t, m.starting)

	// A second press while the first is in flight does nothing.
	m, again := update(t, m, enter())
	require.Nil(t, again)

	m, wait := update(t, m, cmd())
	require.True(t, m.started)
	require.NotNil(t, wait)
	require.Contains(t, m.View(), "Listening on 127.0.0.1:5000")

	_, again = update(t, m, enter())
	require.Nil(t, again)
	require.Equal(t, 1, ctrl.starts)
}

// TestModel_StartFailure shows the bind error and keeps the action enabled.
func TestModel_StartFailure(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.err = errors.New("port 5000 is already in use")

	m, _ := update(t, New(ctrl), tea.WindowSizeMsg{Width: 80, Height: 20})

	m, cmd := update(t, m, enter())
	m, _ = update(t, m, cmd())

	require.False(t, m.started)
	require.True(t, m.statusErr)
	require.True(t, m.canStart())
	require.Contains(t, m.View(), "port 5000 is already in use")
}

// TestModel_Stopped re-enables the action after the loop exits.
func TestModel_Stopped(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	m, _ := update(t, New(ctrl), tea.WindowSizeMsg{Width: 80, Height: 20})

	m, cmd := update(t, m, enter())
	m, wait := update(t, m, cmd())

	ctrl.mu.Lock()
	ctrl.status = alert.Status{State: alert.StateStopped, Reason: "socket closed unexpectedly"}
	ctrl.mu.Unlock()
	close(ctrl.done)

	m, _ = update(t, m, wait())
	require.False(t, m.started)
	require.True(t, m.statusErr)
	require.True(t, m.canStart())
	require.Contains(t, m.View(), "socket closed unexpectedly")
}

// TestModel_Alerts appends alerts in order and keeps the newest visible.
func TestModel_Alerts(t *testing.T) {
	t.Parallel()

	m, _ := update(t, New(newFakeController()), tea.WindowSizeMsg{Width: 80, Height: 8})
	require.Contains(t, m.View(), "No alerts yet")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	for i := range 20 {
		m, _ = update(t, m, AlertMsg{Alert: newAlert("alert "+string(rune('A'+i)), base.Add(time.Duration(i)*time.Second))})
	}

	require.Len(t, m.alerts, 20)
	require.Equal(t, "alert A", m.alerts[0].Text)
	require.Equal(t, "alert T", m.alerts[19].Text)
	require.True(t, m.viewport.AtBottom())

	view := m.View()
	require.Contains(t, view, "Alert: alert T")
	require.Contains(t, view, "12:00:19")
	require.NotContains(t, view, "Alert: alert A")
}

// TestModel_AlertsBeforeResize keeps alerts that arrive before the first layout.
func TestModel_AlertsBeforeResize(t *testing.T) {
	t.Parallel()

	m, _ := update(t, New(newFakeController()), AlertMsg{Alert: newAlert("early", time.Now())})
	require.Equal(t, "Initializing...", m.View())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	require.Contains(t, m.View(), "Alert: early")
}

// TestModel_StatusLine counts alerts and shows the relative time of the last one.
func TestModel_StatusLine(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)

	m := New(newFakeController())
	m.now = func() time.Time { return now }
	m.started = true
	m.status = "Listening on 0.0.0.0:5000"
	m.alerts = []alert.Alert{newAlert("Fire drill", now.Add(-3*time.Minute))}

	line := m.statusLine()
	require.True(t, strings.HasPrefix(line, "Listening on 0.0.0.0:5000"))
	require.Contains(t, line, "1 alerts")
	require.Contains(t, line, "3 minutes ago")
}

// TestModel_Quit returns tea.Quit.
func TestModel_Quit(t *testing.T) {
	t.Parallel()

	_, cmd := update(t, New(newFakeController()), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}
