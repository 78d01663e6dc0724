//go:build linux

package input

import (
	"golang.design/x/hotkey"

	"vochat/internal/hotkeys"
)

// X11 maps Alt to Mod1 and Super to Mod4 on common layouts.
var shortcutModifiers = map[hotkeys.Key]hotkey.Modifier{
	hotkeys.KeyCtrl:  hotkey.ModCtrl,
	hotkeys.KeyShift: hotkey.ModShift,
	hotkeys.KeyAlt:   hotkey.Mod1,
	hotkeys.KeyMeta:  hotkey.Mod4,
}
