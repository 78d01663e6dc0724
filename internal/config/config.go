package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"vochat/internal/hotkeys"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond
	// maxValidPort is the highest TCP port number (2^16 - 1).
	// Port 0 is valid and means "OS auto-assign".
	maxValidPort = 65535

	maxStuckTimeoutMs = 60_000
	maxSettleDelayMs  = 5_000
	maxKeyDelayMs     = 1_000
	maxOverlayEdge    = 4096
	maxHistoryEntries = 100_000
)

// Hotkey source kinds. They mirror input.KindHook and input.KindShortcut.
const (
	SourceHook     = "hook"
	SourceShortcut = "shortcut"
)

const appDirName = "vochat"

// defaultConfigDirFn is a test seam; tests override it to simulate
// directory-resolution failures in validateConfigPath.
var defaultConfigDirFn = defaultConfigDir
var userHomeDirFn = os.UserHomeDir
var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears path-resolution warnings
// accumulated during DefaultPath() calls.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	if len(defaultPathWarningState.messages) == 0 {
		return nil
	}
	out := make([]string, len(defaultPathWarningState.messages))
	copy(out, defaultPathWarningState.messages)
	defaultPathWarningState.messages = nil
	return out
}

// Config is the vochat runtime configuration.
type Config struct {
	Hotkey  HotkeyConfig  `yaml:"hotkey" json:"hotkey"`
	Overlay OverlayConfig `yaml:"overlay" json:"overlay"`
	Paste   PasteConfig   `yaml:"paste" json:"paste"`
	// VoiceCommands enables spoken punctuation ("comma", "nieuwe regel")
	// in transcripts passed to InsertText.
	VoiceCommands bool          `yaml:"voice_commands" json:"voice_commands"`
	Bridge        BridgeConfig  `yaml:"bridge" json:"bridge"`
	History       HistoryConfig `yaml:"history" json:"history"`
}

// HotkeyConfig selects the dictation combo and how it is observed.
type HotkeyConfig struct {
	// Combo is a "+"-separated key list such as "Alt+Z".
	Combo string `yaml:"combo" json:"combo"`
	// Source is "hook" (raw keyboard hook) or "shortcut" (OS-registered
	// global shortcut).
	Source string `yaml:"source" json:"source"`
	// StuckTimeoutMs forces the combo released when no release event arrives
	// within this many milliseconds of activation. 0 disables the watchdog.
	StuckTimeoutMs int `yaml:"stuck_timeout_ms" json:"stuck_timeout_ms"`
}

// OverlayConfig is the overlay window geometry at creation.
type OverlayConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
}

// PasteConfig holds paste injection timings.
type PasteConfig struct {
	SettleDelayMs int `yaml:"settle_delay_ms" json:"settle_delay_ms"`
	KeyDelayMs    int `yaml:"key_delay_ms" json:"key_delay_ms"`
}

// BridgeConfig controls the loopback WebSocket used by the speech-to-text
// collaborator.
type BridgeConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Port 0 lets the OS assign an available port.
	Port int `yaml:"port" json:"port"`
}

// HistoryConfig controls the local dictation history.
type HistoryConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	MaxEntries int  `yaml:"max_entries" json:"max_entries"`
	// Path overrides the database location. Empty means history.db next to
	// the config file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// StuckTimeout returns the watchdog timeout, 0 when disabled.
func (h HotkeyConfig) StuckTimeout() time.Duration {
	return time.Duration(h.StuckTimeoutMs) * time.Millisecond
}

// SettleDelay returns the wait before the paste combo.
func (p PasteConfig) SettleDelay() time.Duration {
	return time.Duration(p.SettleDelayMs) * time.Millisecond
}

// KeyDelay returns the wait between paste key events.
func (p PasteConfig) KeyDelay() time.Duration {
	return time.Duration(p.KeyDelayMs) * time.Millisecond
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Hotkey: HotkeyConfig{
			Combo:  "Alt+Z",
			Source: SourceHook,
		},
		Overlay: OverlayConfig{
			Width:  280,
			Height: 70,
		},
		Paste: PasteConfig{
			SettleDelayMs: 100,
			KeyDelayMs:    100,
		},
		VoiceCommands: true,
		Bridge: BridgeConfig{
			Enabled: true,
			Port:    0,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 500,
		},
	}
}

// DefaultPath resolves the config file path, preferring LOCALAPPDATA over
// APPDATA, falling back to ~/.config when both are unset, and then to
// os.TempDir() if the home directory cannot be resolved.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
			recordDefaultPathWarning(
				"Config path fallback: failed to resolve LOCALAPPDATA/APPDATA/home directory. Using temp directory; settings persistence may be limited.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appDirName, "config.yaml")
}

// HistoryPath returns the history database path for cfg loaded from
// configPath.
func HistoryPath(configPath string, cfg Config) string {
	if p := strings.TrimSpace(cfg.History.Path); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), "history.db")
}

// Load reads the config file. A missing or empty file yields defaults.
// Fields absent from the file keep their default values. Invalid values are
// replaced by defaults with a warning; only I/O and YAML syntax errors are
// returned.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), err
	}
	applyDefaultsAndValidate(&cfg)
	return cfg, nil
}

// EnsureFile writes default config if missing and returns loaded config.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Save normalizes cfg and atomically writes it to path.
// Returns the normalized config that was actually written to disk.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	applyDefaultsAndValidate(&cfg)

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := atomicWrite(normalizedPath, raw); err != nil {
		return cfg, err
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", path)
	return cfg, nil
}

// atomicWrite writes config data using temp-file + rename to avoid partial
// writes and retries rename on Windows to tolerate transient file locks.
func atomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("save config: chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("save config: sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

// validateConfigPath normalizes path and enforces that config writes stay
// inside the default config directory.
func validateConfigPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("config path required")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save config: resolve path: %w", err)
	}

	expectedDir, err := defaultConfigDirFn()
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	absoluteExpectedDir, err := filepath.Abs(expectedDir)
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	if !pathWithinDir(absolutePath, absoluteExpectedDir) {
		return "", fmt.Errorf("save config: path outside config directory: %q", absolutePath)
	}

	return absolutePath, nil
}

func defaultConfigDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir blocks directory traversal by ensuring path is under dir.
// It also rejects Windows cross-drive escapes because filepath.Rel returns
// an absolute path when roots differ.
func pathWithinDir(path string, dir string) bool {
	relativePath, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if relativePath == "." {
		return true
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(relativePath)
}

// applyDefaultsAndValidate fills missing defaults and repairs invalid values
// in-place. Every repair is logged; none is fatal so a bad edit never keeps
// the app from starting.
// MUTATES: cfg is directly modified.
func applyDefaultsAndValidate(cfg *Config) {
	defaults := DefaultConfig()
	if isZeroConfig(*cfg) {
		*cfg = defaults
		return
	}

	normalizeHotkey(&cfg.Hotkey, defaults.Hotkey)

	if cfg.Overlay.Width <= 0 || cfg.Overlay.Width > maxOverlayEdge {
		warnReset("overlay.width", cfg.Overlay.Width, defaults.Overlay.Width)
		cfg.Overlay.Width = defaults.Overlay.Width
	}
	if cfg.Overlay.Height <= 0 || cfg.Overlay.Height > maxOverlayEdge {
		warnReset("overlay.height", cfg.Overlay.Height, defaults.Overlay.Height)
		cfg.Overlay.Height = defaults.Overlay.Height
	}

	cfg.Paste.SettleDelayMs = clampMs("paste.settle_delay_ms", cfg.Paste.SettleDelayMs, defaults.Paste.SettleDelayMs, maxSettleDelayMs)
	cfg.Paste.KeyDelayMs = clampMs("paste.key_delay_ms", cfg.Paste.KeyDelayMs, defaults.Paste.KeyDelayMs, maxKeyDelayMs)

	validateBridgePort(cfg)

	if cfg.History.MaxEntries <= 0 || cfg.History.MaxEntries > maxHistoryEntries {
		warnReset("history.max_entries", cfg.History.MaxEntries, defaults.History.MaxEntries)
		cfg.History.MaxEntries = defaults.History.MaxEntries
	}
	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
}

func normalizeHotkey(h *HotkeyConfig, defaults HotkeyConfig) {
	combo := strings.TrimSpace(h.Combo)
	if combo == "" {
		h.Combo = defaults.Combo
	} else if parsed, err := hotkeys.ParseCombo(combo); err != nil {
		slog.Warn("[WARN-CONFIG] invalid hotkey.combo, using default",
			"value", combo, "default", defaults.Combo, "error", err)
		h.Combo = defaults.Combo
	} else {
		h.Combo = parsed.Normalized()
	}

	source := strings.ToLower(strings.TrimSpace(h.Source))
	switch source {
	case "":
		h.Source = defaults.Source
	case SourceHook, SourceShortcut:
		h.Source = source
	default:
		warnReset("hotkey.source", h.Source, defaults.Source)
		h.Source = defaults.Source
	}

	if h.StuckTimeoutMs < 0 {
		warnReset("hotkey.stuck_timeout_ms", h.StuckTimeoutMs, 0)
		h.StuckTimeoutMs = 0
	} else if h.StuckTimeoutMs > maxStuckTimeoutMs {
		warnReset("hotkey.stuck_timeout_ms", h.StuckTimeoutMs, maxStuckTimeoutMs)
		h.StuckTimeoutMs = maxStuckTimeoutMs
	}
}

// clampMs resets negative delays to the default and caps large ones.
func clampMs(field string, value, def, maximum int) int {
	switch {
	case value < 0:
		warnReset(field, value, def)
		return def
	case value > maximum:
		warnReset(field, value, maximum)
		return maximum
	default:
		return value
	}
}

// validateBridgePort resets out-of-range ports to 0 (auto-assign).
func validateBridgePort(cfg *Config) {
	if cfg.Bridge.Port < 0 || cfg.Bridge.Port > maxValidPort {
		warnReset("bridge.port", cfg.Bridge.Port, 0)
		cfg.Bridge.Port = 0
	}
}

func warnReset(field string, value, replacement any) {
	slog.Warn("[WARN-CONFIG] invalid value replaced", "field", field, "value", value, "replacement", replacement)
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func isZeroConfig(cfg Config) bool {
	// reflect.DeepEqual guards against field-addition drift that manual checks miss.
	return reflect.DeepEqual(cfg, Config{})
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
