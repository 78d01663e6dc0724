//go:build darwin

package input

import (
	"golang.design/x/hotkey"

	"vochat/internal/hotkeys"
)

var shortcutModifiers = map[hotkeys.Key]hotkey.Modifier{
	hotkeys.KeyCtrl:  hotkey.ModCtrl,
	hotkeys.KeyShift: hotkey.ModShift,
	hotkeys.KeyAlt:   hotkey.ModOption,
	hotkeys.KeyMeta:  hotkey.ModCmd,
}
