package input

import (
	"context"
	"errors"
	"testing"
	"time"

	hook "github.com/robotn/gohook"

	"vochat/internal/hotkeys"
)

// NOTE: These tests swap package-level hook functions.
// Do not use t.Parallel() here.

func stubHook(t *testing.T, events chan hook.Event) *int {
	t.Helper()
	t.Cleanup(func() {
		hookStartFn = hook.Start
		hookEndFn = hook.End
	})
	ended := 0
	hookStartFn = func() chan hook.Event { return events }
	hookEndFn = func() { ended++ }
	return &ended
}

func TestTranslateHookEvent(t *testing.T) {
	tests := []struct {
		name   string
		event  hook.Event
		want   Event
		wantOK bool
	}{
		{
			name:   "alt hold is press",
			event:  hook.Event{Kind: hook.KeyHold, Keycode: hook.Keycode["alt"]},
			want:   Event{Key: hotkeys.KeyAlt, Transition: hotkeys.Press},
			wantOK: true,
		},
		{
			name:   "right alt collapses to alt",
			event:  hook.Event{Kind: hook.KeyUp, Keycode: hook.Keycode["ralt"]},
			want:   Event{Key: hotkeys.KeyAlt, Transition: hotkeys.Release},
			wantOK: true,
		},
		{
			name:   "letter key down",
			event:  hook.Event{Kind: hook.KeyDown, Keycode: hook.Keycode["z"]},
			want:   Event{Key: "Z", Transition: hotkeys.Press},
			wantOK: true,
		},
		{
			name:   "space release",
			event:  hook.Event{Kind: hook.KeyUp, Keycode: hook.Keycode["space"]},
			want:   Event{Key: hotkeys.KeySpace, Transition: hotkeys.Release},
			wantOK: true,
		},
		{
			name:  "typed event without keycode",
			event: hook.Event{Kind: hook.KeyDown, Keychar: 'z'},
		},
		{
			name:  "mouse events ignored",
			event: hook.Event{Kind: hook.MouseDown, Keycode: hook.Keycode["z"]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translateHookEvent(tt.event)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("translateHookEvent() = (%+v, %v), want (%+v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBuildHookKeyTableSkipsUnknownNames(t *testing.T) {
	table := buildHookKeyTable(map[string]uint16{
		"alt":  56,
		"ralt": 3640,
		"num1": 79,
		"f9":   67,
		"rcmd": 3676,
	})
	want := map[uint16]hotkeys.Key{56: hotkeys.KeyAlt, 3640: hotkeys.KeyAlt, 67: "F9", 3676: hotkeys.KeyMeta}
	if len(table) != len(want) {
		t.Fatalf("table = %v, want %v", table, want)
	}
	for code, key := range want {
		if table[code] != key {
			t.Fatalf("table[%d] = %q, want %q", code, table[code], key)
		}
	}
}

func TestHookSourceForwardsEventsUntilCancelled(t *testing.T) {
	events := make(chan hook.Event, 4)
	ended := stubHook(t, events)
	events <- hook.Event{Kind: hook.KeyHold, Keycode: hook.Keycode["alt"]}
	events <- hook.Event{Kind: hook.MouseMove}
	events <- hook.Event{Kind: hook.KeyHold, Keycode: hook.Keycode["z"]}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- NewHookSource().Run(ctx, func(ev Event) { got <- ev })
	}()

	for _, want := range []Event{
		{Key: hotkeys.KeyAlt, Transition: hotkeys.Press},
		{Key: "Z", Transition: hotkeys.Press},
	} {
		select {
		case ev := <-got:
			if ev != want {
				t.Fatalf("event = %+v, want %+v", ev, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if *ended != 1 {
		t.Fatalf("hook.End called %d times, want 1", *ended)
	}
}

func TestHookSourceReportsClosedChannel(t *testing.T) {
	events := make(chan hook.Event)
	stubHook(t, events)
	close(events)

	err := NewHookSource().Run(context.Background(), func(Event) {})
	if !errors.Is(err, ErrHookStopped) {
		t.Fatalf("Run() error = %v, want ErrHookStopped", err)
	}
}

func TestHookSourceInstallFailure(t *testing.T) {
	stubHook(t, nil)
	if err := NewHookSource().Run(context.Background(), func(Event) {}); err == nil {
		t.Fatal("Run() should fail when the hook yields no channel")
	}
}
