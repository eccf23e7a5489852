package tui

import (
	"os"
	"strconv"
	"strings"

	"taskboard-cli/internal/critpath"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The TUI must stay readable on light and dark terminals, so semantic colors are
// AdaptiveColors and faint styling is only used on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted          = ac("240", "243")
	colorSurfaceFg      = ac("235", "252")
	colorControlBg      = ac("252", "235")
	colorSelectedBg     = ac("#e9e9e9", "#262626")
	colorSelectedFg     = ac("235", "255")
	colorAccent         = ac("27", "62")
	colorAccentFg       = ac("255", "235")
	colorCardMetaFg     = ac("238", "250")
	colorHoverBg        = ac("#dbeafe", "#1e3a5f")
	colorInvalidFg      = ac("160", "203")
	colorFlashErrorBg   = ac("196", "160")
	colorFlashInfoBg    = ac("#d1fae5", "#065f46")
	colorSeverityOK     = ac("28", "78")
	colorSeverityWarn   = ac("130", "214")
	colorSeverityError  = ac("160", "203")
	colorProgressFilled = ac("28", "78")
	colorProgressEmpty  = ac("250", "238")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

func severityStyle(s critpath.Severity) lipgloss.Style {
	st := lipgloss.NewStyle().Bold(true)
	switch s {
	case critpath.SeverityOK:
		return st.Foreground(colorSeverityOK)
	case critpath.SeverityWarning:
		return st.Foreground(colorSeverityWarn)
	case critpath.SeverityError:
		return st.Foreground(colorSeverityError)
	default:
		return st.Foreground(colorMuted)
	}
}

func floatStyle(c critpath.FloatCategory) lipgloss.Style {
	switch c {
	case critpath.FloatCritical:
		return severityStyle(critpath.SeverityError)
	case critpath.FloatNearCritical:
		return severityStyle(critpath.SeverityWarning)
	case critpath.FloatNormal:
		return lipgloss.NewStyle().Foreground(colorSeverityOK)
	default:
		return styleMuted()
	}
}

// applyColorProfilePreference sets Lip Gloss's color profile for the interactive TUI.
//
// termenv.EnvColorProfile honors CLICOLOR, which can disable colors in a TUI by accident.
// Only NO_COLOR is honored here; otherwise follow the terminal's capabilities.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.ColorProfile()

	// Some terminals under-report; trust TERM/COLORTERM when they claim more.
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	switch {
	case strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit"):
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	case strings.Contains(term, "256color"):
		if profile == termenv.Ascii || profile == termenv.ANSI {
			profile = termenv.ANSI256
		}
	}
	lipgloss.SetColorProfile(profile)
}

// applyThemePreference configures background detection for AdaptiveColor.
//
// Priority:
// 1) TASKBOARD_TUI_THEME=light|dark|auto
// 2) config tui.theme
// 3) COLORFGBG heuristic ("15;0" = fg;bg)
func applyThemePreference(configured string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("TASKBOARD_TUI_THEME")))
	if v == "" || v == "auto" {
		v = strings.ToLower(strings.TrimSpace(configured))
	}
	switch v {
	case "light":
		lipgloss.SetHasDarkBackground(false)
		return
	case "dark":
		lipgloss.SetHasDarkBackground(true)
		return
	}
	if fgbg := strings.TrimSpace(os.Getenv("COLORFGBG")); fgbg != "" {
		parts := strings.Split(fgbg, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			lipgloss.SetHasDarkBackground(bg < 7)
		}
	}
}
