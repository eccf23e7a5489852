package tui

import (
	"os"
	"strings"
	"sync"
)

// Terminals can't change the user's font, but we can choose between Unicode and ASCII
// glyphs for affordances (twisties, bars, arrows).

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

// applyGlyphPreference: TASKBOARD_TUI_GLYPHS wins over the config value.
func applyGlyphPreference(configured string) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("TASKBOARD_TUI_GLYPHS")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(configured))
	}
	switch v {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

func pick(unicode, ascii string) string {
	if glyphs() == glyphSetASCII {
		return ascii
	}
	return unicode
}

func glyphTwistyCollapsed() string { return pick("▸", ">") }
func glyphTwistyExpanded() string  { return pick("▾", "v") }
func glyphBullet() string          { return pick("•", "*") }
func glyphArrow() string           { return pick("→", "->") }
func glyphHRule() string           { return pick("─", "-") }
func glyphBar() string             { return pick("█", "#") }
func glyphBarRemaining() string    { return pick("▒", "=") }
func glyphCheck() string           { return pick("✓", "x") }
func glyphGrab() string            { return pick("≡", "=") }
func glyphCritical() string        { return pick("◆", "!") }
