package input

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"

	"vochat/internal/hotkeys"
)

var (
	hookStartFn = hook.Start
	hookEndFn   = hook.End
)

// ErrHookStopped is returned when the OS hook stops delivering events while
// the context is still live.
var ErrHookStopped = errors.New("keyboard hook stopped")

// HookSource observes every key transition through a low-level global
// keyboard hook. Only one hook may be installed per process.
type HookSource struct{}

// NewHookSource returns the raw keyboard hook source.
func NewHookSource() *HookSource { return &HookSource{} }

// Name implements Source.
func (*HookSource) Name() string { return KindHook }

// Run installs the hook and forwards key events until ctx is cancelled.
func (s *HookSource) Run(ctx context.Context, emit func(Event)) error {
	events := hookStartFn()
	if events == nil {
		return errors.New("install keyboard hook: no event channel")
	}
	defer hookEndFn()
	slog.Info("[input] keyboard hook installed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrHookStopped
			}
			if translated, ok := translateHookEvent(ev); ok {
				emit(translated)
			}
		}
	}
}

// translateHookEvent maps a hook event to a key transition. Key-typed events
// report the same physical press as KeyHold; delivering both is harmless
// because presses are idempotent in the state machine.
func translateHookEvent(ev hook.Event) (Event, bool) {
	var transition hotkeys.Transition
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		transition = hotkeys.Press
	case hook.KeyUp:
		transition = hotkeys.Release
	default:
		return Event{}, false
	}
	key, ok := hookKeyForCode(ev.Keycode)
	if !ok {
		return Event{}, false
	}
	return Event{Key: key, Transition: transition}, true
}

var (
	hookKeysOnce sync.Once
	hookKeys     map[uint16]hotkeys.Key
)

// hookAliases covers hook key names that LookupKey does not know.
var hookAliases = map[string]hotkeys.Key{
	"lalt":   hotkeys.KeyAlt,
	"ralt":   hotkeys.KeyAlt,
	"lctrl":  hotkeys.KeyCtrl,
	"rctrl":  hotkeys.KeyCtrl,
	"lshift": hotkeys.KeyShift,
	"rshift": hotkeys.KeyShift,
	"lcmd":   hotkeys.KeyMeta,
	"rcmd":   hotkeys.KeyMeta,
}

func hookKeyForCode(code uint16) (hotkeys.Key, bool) {
	hookKeysOnce.Do(func() {
		hookKeys = buildHookKeyTable(hook.Keycode)
	})
	if code == 0 {
		return "", false
	}
	key, ok := hookKeys[code]
	return key, ok
}

func buildHookKeyTable(names map[string]uint16) map[uint16]hotkeys.Key {
	table := make(map[uint16]hotkeys.Key, len(names))
	for name, code := range names {
		key, ok := hookAliases[name]
		if !ok {
			key, ok = hotkeys.LookupKey(name)
		}
		if !ok {
			continue
		}
		if existing, dup := table[code]; dup && existing != key {
			slog.Debug("[input] conflicting hook key names", "code", code, "kept", existing, "skipped", key)
			continue
		}
		table[code] = key
	}
	return table
}
