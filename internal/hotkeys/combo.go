package hotkeys

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrEmptyCombo is returned when a combo spec names no keys.
var ErrEmptyCombo = errors.New("hotkey combo is empty")

// Combo is the unordered set of keys that must be held together to activate
// dictation. Construct only via ParseCombo or NewCombo so that the set is
// non-empty, deduplicated and normalized.
type Combo struct {
	keys       []Key
	normalized string
}

// ParseCombo parses a spec like "Alt+Z" or "ctrl+shift+space".
func ParseCombo(spec string) (Combo, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Combo{}, ErrEmptyCombo
	}

	parts := strings.Split(raw, "+")
	keys := make([]Key, 0, len(parts))
	for _, token := range parts {
		if strings.TrimSpace(token) == "" {
			return Combo{}, fmt.Errorf("empty key token in hotkey %q", raw)
		}
		key, ok := LookupKey(token)
		if !ok {
			return Combo{}, fmt.Errorf("unknown key %q in hotkey %q", strings.TrimSpace(token), raw)
		}
		keys = append(keys, key)
	}
	return NewCombo(keys...)
}

// NewCombo builds a combo from already-resolved keys. Duplicates collapse.
func NewCombo(keys ...Key) (Combo, error) {
	var mods, others []Key
	seen := make(map[Key]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			return Combo{}, errors.New("hotkey combo contains an empty key")
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if IsModifier(key) {
			mods = append(mods, key)
		} else {
			others = append(others, key)
		}
	}
	if len(seen) == 0 {
		return Combo{}, ErrEmptyCombo
	}

	slices.SortFunc(mods, func(a, b Key) int {
		return slices.Index(modifierOrder, a) - slices.Index(modifierOrder, b)
	})
	slices.Sort(others)

	ordered := append(mods, others...)
	names := make([]string, len(ordered))
	for i, key := range ordered {
		names[i] = string(key)
	}
	return Combo{
		keys:       ordered,
		normalized: strings.Join(names, "+"),
	}, nil
}

// Keys returns the combo members, modifiers first.
func (c Combo) Keys() []Key { return slices.Clone(c.keys) }

// Contains reports whether key is a member of the combo.
func (c Combo) Contains(key Key) bool { return slices.Contains(c.keys, key) }

// Normalized returns the canonical human-readable combo string.
func (c Combo) Normalized() string { return c.normalized }

// IsZero reports whether c is the zero Combo.
func (c Combo) IsZero() bool { return len(c.keys) == 0 }

// Equal reports whether both combos contain the same keys.
func (c Combo) Equal(other Combo) bool { return c.normalized == other.normalized }

// Split returns the modifier members and the remaining members separately.
func (c Combo) Split() (modifiers []Key, others []Key) {
	for _, key := range c.keys {
		if IsModifier(key) {
			modifiers = append(modifiers, key)
		} else {
			others = append(others, key)
		}
	}
	return modifiers, others
}

func (c Combo) String() string { return c.normalized }
