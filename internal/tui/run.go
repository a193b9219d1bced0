// Package tui implements the interactive refund wizard.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/polisee/polisee/internal/wizard"
)

// Run starts the wizard and blocks until the user exits.
//
// Controller transitions can originate off the UI thread (notification
// events, the completion fallback timer), so they are forwarded into the
// program as messages rather than read directly.
func Run(cfg Config) error {
	m := newModel(cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())

	cfg.Controller.OnChange(func(st wizard.State) {
		p.Send(wizardStateMsg{state: st})
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running wizard: %w", err)
	}
	return nil
}
