package input

import (
	"fmt"

	"vochat/internal/hotkeys"
)

// splitShortcutCombo checks that combo can be registered as an OS shortcut:
// at least one modifier plus exactly one other key.
func splitShortcutCombo(combo hotkeys.Combo) ([]hotkeys.Key, hotkeys.Key, error) {
	mods, others := combo.Split()
	if len(mods) == 0 {
		return nil, "", fmt.Errorf("shortcut %q needs at least one modifier", combo)
	}
	if len(others) != 1 {
		return nil, "", fmt.Errorf("shortcut %q needs exactly one non-modifier key, got %d", combo, len(others))
	}
	return mods, others[0], nil
}

// shortcutEvents expands one shortcut edge into per-key transitions.
// Presses go modifiers first; releases go in reverse.
func shortcutEvents(combo hotkeys.Combo, transition hotkeys.Transition) []Event {
	keys := combo.Keys()
	events := make([]Event, 0, len(keys))
	if transition == hotkeys.Press {
		for _, key := range keys {
			events = append(events, Event{Key: key, Transition: transition})
		}
		return events
	}
	for i := len(keys) - 1; i >= 0; i-- {
		events = append(events, Event{Key: keys[i], Transition: transition})
	}
	return events
}
