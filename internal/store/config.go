package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type GlobalConfig struct {
	// APIURL is the task API base, e.g. http://localhost:8001/api.
	APIURL string `json:"apiUrl,omitempty"`
	Token  string `json:"token,omitempty"`

	// CurrentProjectID scopes task lists; 0 means all projects.
	CurrentProjectID int64 `json:"currentProjectId,omitempty"`

	TUI *TUIConfig `json:"tui,omitempty"`
}

type TUIConfig struct {
	// Theme is one of: auto|light|dark.
	Theme string `json:"theme,omitempty"`
	// Glyphs selects the glyph set ("unicode" or "ascii").
	Glyphs string `json:"glyphs,omitempty"`
	// DefaultView is the view opened when there is no saved state (board|timeline|critical).
	DefaultView string `json:"defaultView,omitempty"`
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.taskboard).
	if v := strings.TrimSpace(os.Getenv("TASKBOARD_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".taskboard"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func SaveConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Keep the previous config around; failures here never block the write.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, "config.json.bak.*.tmp", path+".bak", prev, 0o600)
	}

	// The token lives here, so the file is private to the user.
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

// ConfigKeys lists the keys accepted by Set and Get.
var ConfigKeys = []string{"apiUrl", "token", "project", "tui.theme", "tui.glyphs", "tui.defaultView"}

// Set updates one config key from its string form. An empty value clears the key.
func (cfg *GlobalConfig) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "apiUrl":
		cfg.APIURL = strings.TrimRight(value, "/")
	case "token":
		cfg.Token = value
	case "project":
		if value == "" {
			cfg.CurrentProjectID = 0
			return nil
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id < 0 {
			return fmt.Errorf("project: expected a numeric id, got %q", value)
		}
		cfg.CurrentProjectID = id
	case "tui.theme":
		switch value {
		case "", "auto", "light", "dark":
		default:
			return fmt.Errorf("tui.theme: expected auto|light|dark, got %q", value)
		}
		cfg.tui().Theme = value
	case "tui.glyphs":
		switch value {
		case "", "unicode", "ascii":
		default:
			return fmt.Errorf("tui.glyphs: expected unicode|ascii, got %q", value)
		}
		cfg.tui().Glyphs = value
	case "tui.defaultView":
		switch value {
		case "", "board", "timeline", "critical":
		default:
			return fmt.Errorf("tui.defaultView: expected board|timeline|critical, got %q", value)
		}
		cfg.tui().DefaultView = value
	default:
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(ConfigKeys, ", "))
	}
	if cfg.TUI != nil && *cfg.TUI == (TUIConfig{}) {
		cfg.TUI = nil
	}
	return nil
}

// Values returns every set key in stable order. The token is masked.
func (cfg *GlobalConfig) Values() map[string]string {
	out := map[string]string{}
	if cfg.APIURL != "" {
		out["apiUrl"] = cfg.APIURL
	}
	if cfg.Token != "" {
		out["token"] = maskToken(cfg.Token)
	}
	if cfg.CurrentProjectID != 0 {
		out["project"] = strconv.FormatInt(cfg.CurrentProjectID, 10)
	}
	if t := cfg.TUI; t != nil {
		if t.Theme != "" {
			out["tui.theme"] = t.Theme
		}
		if t.Glyphs != "" {
			out["tui.glyphs"] = t.Glyphs
		}
		if t.DefaultView != "" {
			out["tui.defaultView"] = t.DefaultView
		}
	}
	return out
}

// SortedKeys returns the keys of m in ConfigKeys order.
func SortedKeys(m map[string]string) []string {
	rank := map[string]int{}
	for i, k := range ConfigKeys {
		rank[k] = i
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return rank[keys[i]] < rank[keys[j]] })
	return keys
}

func (cfg *GlobalConfig) tui() *TUIConfig {
	if cfg.TUI == nil {
		cfg.TUI = &TUIConfig{}
	}
	return cfg.TUI
}

func maskToken(tok string) string {
	if len(tok) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(tok)-4) + tok[len(tok)-4:]
}
