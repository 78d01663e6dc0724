package hotkeys

import (
	"strconv"
	"strings"
)

// Key is a logical key identifier. Left and right variants of a physical key
// (Alt/AltGr, LCtrl/RCtrl, ...) map to the same Key.
type Key string

// Modifier keys.
const (
	KeyCtrl  Key = "Ctrl"
	KeyAlt   Key = "Alt"
	KeyShift Key = "Shift"
	KeyMeta  Key = "Meta"
)

// Named non-modifier keys.
const (
	KeySpace     Key = "Space"
	KeyTab       Key = "Tab"
	KeyEnter     Key = "Enter"
	KeyEsc       Key = "Esc"
	KeyBackquote Key = "`"
)

// modifierOrder fixes the position of modifiers in normalized combo strings.
var modifierOrder = []Key{KeyCtrl, KeyAlt, KeyShift, KeyMeta}

var keyByName = map[string]Key{
	"CTRL":      KeyCtrl,
	"CONTROL":   KeyCtrl,
	"ALT":       KeyAlt,
	"ALTGR":     KeyAlt,
	"OPTION":    KeyAlt,
	"SHIFT":     KeyShift,
	"META":      KeyMeta,
	"WIN":       KeyMeta,
	"SUPER":     KeyMeta,
	"CMD":       KeyMeta,
	"COMMAND":   KeyMeta,
	"SPACE":     KeySpace,
	"TAB":       KeyTab,
	"ENTER":     KeyEnter,
	"RETURN":    KeyEnter,
	"ESC":       KeyEsc,
	"ESCAPE":    KeyEsc,
	"`":         KeyBackquote,
	"BACKQUOTE": KeyBackquote,
	"GRAVE":     KeyBackquote,
}

const maxFunctionKey = 24

// LookupKey resolves a case-insensitive key name ("alt", "z", "F9", "space")
// to its Key identifier.
func LookupKey(name string) (Key, bool) {
	token := strings.ToUpper(strings.TrimSpace(name))
	if token == "" {
		return "", false
	}
	if key, ok := keyByName[token]; ok {
		return key, true
	}
	if len(token) == 1 {
		ch := token[0]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			return Key(token), true
		}
		return "", false
	}
	if strings.HasPrefix(token, "F") {
		n, err := strconv.Atoi(token[1:])
		if err == nil && n >= 1 && n <= maxFunctionKey {
			return Key("F" + strconv.Itoa(n)), true
		}
	}
	return "", false
}

// IsModifier reports whether k is one of Ctrl, Alt, Shift or Meta.
func IsModifier(k Key) bool {
	switch k {
	case KeyCtrl, KeyAlt, KeyShift, KeyMeta:
		return true
	default:
		return false
	}
}

// Transition is the kind of a physical key transition.
type Transition uint8

const (
	Press Transition = iota + 1
	Release
)

func (t Transition) String() string {
	switch t {
	case Press:
		return "press"
	case Release:
		return "release"
	default:
		return "unknown"
	}
}
