package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/helvik/rctpower/internal/poller"
)

// Run drives the live dashboard for one connected poller until the user
// quits or the connection dies. Blocks until the program exits.
func Run(endpoint string, p *poller.Poller, interval, timeout time.Duration) error {
	model := NewDashboardModel(endpoint, p, interval, timeout)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
