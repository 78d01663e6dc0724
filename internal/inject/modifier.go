package inject

import "runtime"

var goos = runtime.GOOS

// PasteModifier returns the modifier used for the paste shortcut on this OS.
func PasteModifier() string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
