//go:build darwin || linux || windows

package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.design/x/hotkey"

	"vochat/internal/hotkeys"
)

type registeredHotkey interface {
	Register() error
	Unregister() error
	Keydown() <-chan hotkey.Event
	Keyup() <-chan hotkey.Event
}

var newHotkeyFn = func(mods []hotkey.Modifier, key hotkey.Key) registeredHotkey {
	return hotkey.New(mods, key)
}

var shortcutKeys = map[hotkeys.Key]hotkey.Key{
	"A": hotkey.KeyA, "B": hotkey.KeyB, "C": hotkey.KeyC, "D": hotkey.KeyD,
	"E": hotkey.KeyE, "F": hotkey.KeyF, "G": hotkey.KeyG, "H": hotkey.KeyH,
	"I": hotkey.KeyI, "J": hotkey.KeyJ, "K": hotkey.KeyK, "L": hotkey.KeyL,
	"M": hotkey.KeyM, "N": hotkey.KeyN, "O": hotkey.KeyO, "P": hotkey.KeyP,
	"Q": hotkey.KeyQ, "R": hotkey.KeyR, "S": hotkey.KeyS, "T": hotkey.KeyT,
	"U": hotkey.KeyU, "V": hotkey.KeyV, "W": hotkey.KeyW, "X": hotkey.KeyX,
	"Y": hotkey.KeyY, "Z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"F1": hotkey.KeyF1, "F2": hotkey.KeyF2, "F3": hotkey.KeyF3, "F4": hotkey.KeyF4,
	"F5": hotkey.KeyF5, "F6": hotkey.KeyF6, "F7": hotkey.KeyF7, "F8": hotkey.KeyF8,
	"F9": hotkey.KeyF9, "F10": hotkey.KeyF10, "F11": hotkey.KeyF11, "F12": hotkey.KeyF12,
	hotkeys.KeySpace: hotkey.KeySpace,
	hotkeys.KeyTab:   hotkey.KeyTab,
	hotkeys.KeyEnter: hotkey.KeyReturn,
	hotkeys.KeyEsc:   hotkey.KeyEscape,
}

// ShortcutSource registers the combo as an OS global shortcut. It sees only
// the combo itself, so every member is reported pressed on key down and
// released on key up.
type ShortcutSource struct {
	combo hotkeys.Combo
	mods  []hotkey.Modifier
	key   hotkey.Key
}

// NewShortcutSource validates combo against the OS shortcut key tables.
func NewShortcutSource(combo hotkeys.Combo) (*ShortcutSource, error) {
	modKeys, mainKey, err := splitShortcutCombo(combo)
	if err != nil {
		return nil, err
	}
	mods := make([]hotkey.Modifier, 0, len(modKeys))
	for _, m := range modKeys {
		mod, ok := shortcutModifiers[m]
		if !ok {
			return nil, fmt.Errorf("modifier %s cannot be used in a shortcut on this platform", m)
		}
		mods = append(mods, mod)
	}
	key, ok := shortcutKeys[mainKey]
	if !ok {
		return nil, fmt.Errorf("key %s cannot be used in a shortcut", mainKey)
	}
	return &ShortcutSource{combo: combo, mods: mods, key: key}, nil
}

// Name implements Source.
func (*ShortcutSource) Name() string { return KindShortcut }

// Run registers the shortcut and forwards its edges until ctx is cancelled.
func (s *ShortcutSource) Run(ctx context.Context, emit func(Event)) error {
	hk := newHotkeyFn(s.mods, s.key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register shortcut %s: %w", s.combo, err)
	}
	defer func() {
		if err := hk.Unregister(); err != nil {
			slog.Warn("[input] unregister shortcut failed", "combo", s.combo.Normalized(), "error", err)
		}
	}()
	slog.Info("[input] global shortcut registered", "combo", s.combo.Normalized())

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-hk.Keydown():
			if !ok {
				return errors.New("shortcut keydown channel closed")
			}
			for _, ev := range shortcutEvents(s.combo, hotkeys.Press) {
				emit(ev)
			}
		case _, ok := <-hk.Keyup():
			if !ok {
				return errors.New("shortcut keyup channel closed")
			}
			for _, ev := range shortcutEvents(s.combo, hotkeys.Release) {
				emit(ev)
			}
		}
	}
}
