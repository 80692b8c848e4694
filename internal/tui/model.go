package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/oshokin/alert-receiver/internal/domain/alert"
)

const (
	// headerHeight is the number of lines above the alert list.
	headerHeight = 3
	// footerHeight is the number of lines below the alert list.
	footerHeight = 1
	// tickInterval refreshes relative times in the status line.
	tickInterval = 10 * time.Second
	// timeLayout formats the receive time of each alert.
	timeLayout = "15:04:05"
)

// Controller starts the receiver on behalf of the console.
type Controller interface {
	// Start binds the socket and starts receiving.
	Start() error
	// Done is closed when the current receive loop exits.
	Done() <-chan struct{}
	// Status returns the receiver snapshot.
	Status() alert.Status
}

// AlertMsg carries one received alert into the event loop.
type AlertMsg struct {
	// Alert is the received alert.
	Alert alert.Alert
}

// startResultMsg reports the outcome of a start request.
type startResultMsg struct {
	// err is the bind error, if any.
	err error
	// status is the receiver snapshot after the attempt.
	status alert.Status
	// done is closed when the started loop exits.
	done <-chan struct{}
}

// stoppedMsg reports that the receive loop exited.
type stoppedMsg struct {
	// status is the receiver snapshot after the exit.
	status alert.Status
}

// tickMsg refreshes relative times.
type tickMsg time.Time

// Model is the console state. It is only touched by the bubbletea loop.
type Model struct {
	// ctrl starts the receiver.
	ctrl Controller
	// keys holds the key bindings.
	keys KeyMap
	// help renders the key help footer.
	help help.Model
	// viewport scrolls the alert list.
	viewport viewport.Model

	// alerts are all alerts received so far, oldest first.
	alerts []alert.Alert
	// started is set while the receiver is listening.
	started bool
	// starting is set while a start request is in flight.
	starting bool
	// listenAddr is the bound address.
	listenAddr string
	// status is the message shown next to the start button.
	status string
	// statusErr marks status as an error.
	statusErr bool

	// width and height are the terminal size.
	width, height int
	// ready is set once the terminal size is known.
	ready bool

	// now returns the current time.
	now func() time.Time
}

// New creates the console model.
func New(ctrl Controller) Model {
	return Model{
		ctrl:   ctrl,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		status: "Press enter to start receiving",
		now:    time.Now,
	}
}

// Init starts the relative-time ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

		return m, nil

	case AlertMsg:
		m.alerts = append(m.alerts, msg.Alert)
		m.refresh()

		return m, nil

	case startResultMsg:
		return m.handleStarted(msg)

	case stoppedMsg:
		m.started = false
		m.status = "Stopped: " + msg.status.Reason
		m.statusErr = msg.status.Reason != alert.ReasonStopRequested

		return m, nil

	case tickMsg:
		return m, tick()
	}

	if !m.ready {
		return m, nil
	}

	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize(m.width, m.height)

		return m, nil

	case key.Matches(msg, m.keys.Start):
		if !m.canStart() {
			return m, nil
		}

		m.starting = true
		m.status = "Starting..."
		m.statusErr = false

		return m, startCmd(m.ctrl)
	}

	if !m.ready {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()

		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()

		return m, nil
	}

	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	return m, cmd
}

func (m Model) handleStarted(msg startResultMsg) (tea.Model, tea.Cmd) {
	m.starting = false

	if msg.err != nil {
		m.status = msg.err.Error()
		m.statusErr = true

		return m, nil
	}

	m.started = true
	m.listenAddr = msg.status.LocalAddr
	m.status = "Listening on " + m.listenAddr
	m.statusErr = false

	return m, waitForStop(m.ctrl, msg.done)
}

// canStart reports whether the start action is enabled.
func (m Model) canStart() bool {
	return m.ctrl != nil && !m.started && !m.starting
}

// resize lays out the viewport for a terminal of the given size.
func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	m.width = width
	m.height = height
	m.help.Width = width

	footer := footerHeight
	if m.help.ShowAll {
		footer = lipgloss.Height(m.help.View(m.keys))
	}

	listHeight := max(1, height-headerHeight-footer)

	if !m.ready {
		m.viewport = viewport.New(width, listHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = listHeight
	}

	m.refresh()
}

// refresh re-renders the alert list and scrolls to the newest alert.
func (m *Model) refresh() {
	if !m.ready {
		return
	}

	m.viewport.SetContent(m.renderAlerts())
	m.viewport.GotoBottom()
}

func (m Model) renderAlerts() string {
	if len(m.alerts) == 0 {
		return emptyStyle.Render("No alerts yet")
	}

	var b strings.Builder

	for i, a := range m.alerts {
		if i > 0 {
			b.WriteByte('\n')
		}

		b.WriteString(timeStyle.Render(a.ReceivedAt.Format(timeLayout)))
		b.WriteByte(' ')
		b.WriteString(alertStyle.Render(a.Display))
	}

	return b.String()
}

// View renders the console.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Alert Receiver"),
		m.renderControls(),
		"",
		m.viewport.View(),
		m.help.View(m.keys),
	)
}

func (m Model) renderControls() string {
	button := buttonStyle.Render("Start receiving")
	if !m.canStart() {
		button = disabledButtonStyle.Render("Start receiving")
	}

	status := statusStyle.Render(m.statusLine())
	if m.statusErr {
		status = errorStyle.Render(m.status)
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, button, "  ", status)
}

func (m Model) statusLine() string {
	if !m.started {
		return m.status
	}

	line := fmt.Sprintf("%s · %s alerts", m.status, humanize.Comma(int64(len(m.alerts))))

	if len(m.alerts) > 0 {
		last := m.alerts[len(m.alerts)-1].ReceivedAt
		line += " · last " + humanize.RelTime(last, m.now(), "ago", "from now")
	}

	return line
}

func startCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.Start()

		result := startResultMsg{
			err:    err,
			status: ctrl.Status(),
		}

		if err == nil {
			result.done = ctrl.Done()
		}

		return result
	}
}

func waitForStop(ctrl Controller, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done

		return stoppedMsg{status: ctrl.Status()}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
