package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

func (m appModel) View() string {
	bodyH := max(m.height-headerLines-footerLines, 1)

	var body string
	switch {
	case !m.loaded && m.loading:
		body = normalizePane(styleMuted().Render("Loading tasks…"), m.width, bodyH)
	case !m.loaded:
		body = normalizePane(styleMuted().Render("No data yet. Press r to reload."), m.width, bodyH)
	case m.view == viewTimeline:
		body = m.renderTimeline(bodyH)
	case m.view == viewCritical:
		body = m.renderCritical(bodyH)
	default:
		body = m.renderBoard(bodyH)
	}
	if m.modal != modalNone {
		body = lipgloss.Place(m.width, bodyH, lipgloss.Center, lipgloss.Center, m.renderModal())
	}

	return strings.Join([]string{m.renderHeader(), "", body, "", m.renderFooter()}, "\n")
}

func (m appModel) renderHeader() string {
	tabs := make([]string, 0, len(viewOrder))
	for _, v := range viewOrder {
		st := lipgloss.NewStyle().Padding(0, 1)
		if v == m.view {
			st = st.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
		} else {
			st = st.Foreground(colorMuted)
		}
		tabs = append(tabs, st.Render(v.title()))
	}
	left := lipgloss.NewStyle().Bold(true).Render("taskboard") + "  " + m.projectName()
	right := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.loading {
		right = styleMuted().Render("syncing… ") + right
	}
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return fitWidth(left+strings.Repeat(" ", gap)+right, m.width)
}

func (m appModel) renderFooter() string {
	if m.flash.text != "" {
		st := lipgloss.NewStyle().Padding(0, 1).Bold(true)
		if m.flash.kind == flashError {
			st = st.Foreground(lipgloss.Color("255")).Background(colorFlashErrorBg)
		} else {
			st = st.Foreground(colorSurfaceFg).Background(colorFlashInfoBg)
		}
		return fitWidth(st.Render(m.flash.text)+styleMuted().Render("  esc: dismiss"), m.width)
	}

	id, dragging := m.drag.Active()
	parts := make([]string, 0, 12)
	if dragging {
		target := "no column"
		if h := m.drag.Hovered(); h != "" {
			target = string(h)
		}
		parts = append(parts, lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("moving #%d %s %s", id, glyphArrow(), target)))
	}
	for _, b := range m.keys.footer(m.view, dragging) {
		parts = append(parts, helpText(b))
	}
	return fitWidth(styleMuted().Render(strings.Join(parts, "  ")), m.width)
}

func helpText(b key.Binding) string {
	h := b.Help()
	return h.Key + ": " + h.Desc
}
