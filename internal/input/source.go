// Package input delivers global keyboard transitions to the hotkey state
// machine, independent of which application has focus.
package input

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vochat/internal/hotkeys"
)

// Source kinds accepted by NewSource.
const (
	KindHook     = "hook"
	KindShortcut = "shortcut"
)

// ErrUnsupported is returned when a source kind cannot run on this platform.
var ErrUnsupported = errors.New("input source is not supported on this platform")

// Event is one physical key transition.
type Event struct {
	Key        hotkeys.Key
	Transition hotkeys.Transition
}

// Source produces key events for the whole session.
//
// Run blocks until ctx is cancelled or the underlying OS facility stops.
// It returns an error when the facility cannot be installed. emit is called
// on the source goroutine and must return quickly without blocking.
type Source interface {
	Name() string
	Run(ctx context.Context, emit func(Event)) error
}

// NewSource builds the source selected by kind. An empty kind selects the
// raw keyboard hook.
func NewSource(kind string, combo hotkeys.Combo) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindHook:
		return NewHookSource(), nil
	case KindShortcut:
		src, err := NewShortcutSource(combo)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown input source %q (want %q or %q)", kind, KindHook, KindShortcut)
	}
}
