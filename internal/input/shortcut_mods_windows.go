//go:build windows

package input

import (
	"golang.design/x/hotkey"

	"vochat/internal/hotkeys"
)

var shortcutModifiers = map[hotkeys.Key]hotkey.Modifier{
	hotkeys.KeyCtrl:  hotkey.ModCtrl,
	hotkeys.KeyShift: hotkey.ModShift,
	hotkeys.KeyAlt:   hotkey.ModAlt,
	hotkeys.KeyMeta:  hotkey.ModWin,
}
