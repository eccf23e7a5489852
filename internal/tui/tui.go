// Package tui is the interactive terminal client: a Kanban board with drag-and-drop, a
// timeline, and a critical-path report over one task snapshot.
package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

func Run(opts Options) error {
	if opts.Backend == nil {
		return errors.New("tui: no backend")
	}
	applyColorProfilePreference()
	applyThemePreference(opts.Theme)
	applyGlyphPreference(opts.Glyphs)

	m := newAppModel(opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run()
	return err
}
