package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/helvik/rctpower/internal/poller"
	"github.com/helvik/rctpower/internal/registers"
)

// Message types for async operations
type readingMsg struct {
	id     uint32
	value  float32
	err    error
	round  int
	isLast bool
}

type refreshMsg struct{}

type pollerStoppedMsg struct {
	err error
}

// dashboardKeyMap defines key bindings for the dashboard screen
type dashboardKeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Quit},
	}
}

// reading is the latest known state of one register row.
type reading struct {
	value   float32
	haveOne bool
	lastErr string
	updated time.Time
}

// DashboardModel is the live readout screen: one row per published register,
// refreshed on a fixed interval through the poller.
type DashboardModel struct {
	Endpoint string
	Poller   *poller.Poller
	Interval time.Duration
	Timeout  time.Duration

	rows     []registers.Register
	readings map[uint32]*reading

	round      int
	refreshing bool
	stopped    bool
	stopErr    error

	Width  int
	Height int

	Spinner spinner.Model
	Help    help.Model
	Keys    dashboardKeyMap
}

// NewDashboardModel creates the dashboard for one connected poller.
func NewDashboardModel(endpoint string, p *poller.Poller, interval, timeout time.Duration) DashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	keys := dashboardKeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh now"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	rows := registers.All()
	readings := make(map[uint32]*reading, len(rows))
	for _, r := range rows {
		readings[r.ID] = &reading{}
	}

	return DashboardModel{
		Endpoint: endpoint,
		Poller:   p,
		Interval: interval,
		Timeout:  timeout,
		rows:     rows,
		readings: readings,
		Spinner:  s,
		Help:     help.New(),
		Keys:     keys,
	}
}

// Init starts the spinner, the first refresh round, and the poller watchdog.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		m.refresh(),
		watchPollerCmd(m.Poller),
	)
}

// refresh launches one read per register for the current round.
func (m DashboardModel) refresh() tea.Cmd {
	round := m.round
	cmds := make([]tea.Cmd, 0, len(m.rows))
	for i, r := range m.rows {
		cmds = append(cmds, readRegisterCmd(m.Poller, r.ID, m.Timeout, round, i == len(m.rows)-1))
	}
	return tea.Batch(cmds...)
}

// readRegisterCmd performs one blocking read off the UI goroutine.
func readRegisterCmd(p *poller.Poller, id uint32, timeout time.Duration, round int, isLast bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
		defer cancel()

		value, err := p.ReadValue(ctx, id, timeout)
		return readingMsg{id: id, value: value, err: err, round: round, isLast: isLast}
	}
}

// watchPollerCmd blocks until the poller exits and reports why.
func watchPollerCmd(p *poller.Poller) tea.Cmd {
	return func() tea.Msg {
		<-p.Done()
		return pollerStoppedMsg{err: p.Err()}
	}
}

// scheduleRefreshCmd waits out the refresh interval.
func scheduleRefreshCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// Update handles messages and updates the model
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Refresh):
			if m.stopped || m.refreshing {
				return m, nil
			}
			m.round++
			m.refreshing = true
			return m, m.refresh()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case readingMsg:
		if msg.round != m.round {
			// A straggler from an earlier round; the row already moved on.
			return m, nil
		}
		if r, ok := m.readings[msg.id]; ok {
			if msg.err != nil {
				r.lastErr = msg.err.Error()
			} else {
				r.value = msg.value
				r.haveOne = true
				r.lastErr = ""
				r.updated = time.Now()
			}
		}
		if msg.isLast {
			m.refreshing = false
			if !m.stopped {
				return m, scheduleRefreshCmd(m.Interval)
			}
		}
		return m, nil

	case refreshMsg:
		if m.stopped {
			return m, nil
		}
		m.round++
		m.refreshing = true
		return m, m.refresh()

	case pollerStoppedMsg:
		m.stopped = true
		m.stopErr = msg.err
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m DashboardModel) View() string {
	if m.Width == 0 {
		return "starting..."
	}

	content := m.renderContent()
	helpText := m.Help.View(m.Keys)
	return RenderApplicationContainer(content, helpText, m.Endpoint, m.Width, m.Height)
}

func (m DashboardModel) renderContent() string {
	var statusLine string
	switch {
	case m.stopped && m.stopErr != nil:
		statusLine = ErrorStyle.Render(fmt.Sprintf("✗ connection lost: %v", m.stopErr))
	case m.stopped:
		statusLine = SubtitleStyle.Render("connection closed")
	case m.refreshing:
		statusLine = m.Spinner.View() + SubtitleStyle.Render(" reading...")
	default:
		statusLine = SubtitleStyle.Render(fmt.Sprintf("refreshing every %s", m.Interval))
	}

	lines := []string{statusLine, ""}
	for _, row := range m.rows {
		lines = append(lines, m.renderRow(row))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderRow renders one register line: name, value, unit, error marker.
func (m DashboardModel) renderRow(row registers.Register) string {
	r := m.readings[row.ID]

	label := LabelStyle.Render(row.Name)

	var value string
	switch {
	case r.haveOne:
		style := ValueStyle
		if m.stopped || r.lastErr != "" {
			style = StaleValueStyle
		}
		value = style.Render(row.FormatValue(r.value))
	default:
		value = StaleValueStyle.Render("—")
	}

	desc := SubtitleStyle.Render("  " + row.Description)

	line := lipgloss.JoinHorizontal(lipgloss.Left, "  ", label, value, desc)
	if r.lastErr != "" {
		line = lipgloss.JoinHorizontal(lipgloss.Left, line,
			lipgloss.NewStyle().Foreground(WarningColor).Render("  ⚠ "+r.lastErr))
	}
	return line
}
