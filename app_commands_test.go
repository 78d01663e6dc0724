package main

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"vochat/internal/config"
	"vochat/internal/history"
	"vochat/internal/inject"
)

// attachHistory opens a real store in a temp dir and installs it on app.
func attachHistory(t *testing.T, app *App) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), 10)
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	app.historyMu.Lock()
	app.history = store
	app.historyMu.Unlock()
	return store
}

func TestToggleOverlayShowsThenHides(t *testing.T) {
	h := newTestHarness(t)

	if err := h.app.ToggleOverlay(); err != nil {
		t.Fatalf("first ToggleOverlay() error = %v", err)
	}
	if !h.app.state.OverlayVisible() {
		t.Fatal("overlay should be visible after first toggle")
	}
	if err := h.app.ToggleOverlay(); err != nil {
		t.Fatalf("second ToggleOverlay() error = %v", err)
	}
	if h.app.state.OverlayVisible() {
		t.Fatal("overlay should be hidden after second toggle")
	}

	got := strings.Join(h.window.snapshot(), ",")
	if got != "create:280x70,show,hide" {
		t.Fatalf("window calls = %s", got)
	}
}

func TestToggleOverlayRollsBackOnShowFailure(t *testing.T) {
	h := newTestHarness(t)
	h.window.showErr = errors.New("compositor gone")

	if err := h.app.ToggleOverlay(); err == nil {
		t.Fatal("ToggleOverlay() expected error")
	}
	if h.app.state.OverlayVisible() {
		t.Fatal("visibility must roll back when show fails")
	}
}

func TestHideOverlayIsIdempotent(t *testing.T) {
	h := newTestHarness(t)

	for range 2 {
		if err := h.app.HideOverlay(); err != nil {
			t.Fatalf("HideOverlay() error = %v", err)
		}
	}
	if calls := h.window.snapshot(); len(calls) != 0 {
		t.Fatalf("hiding a never-created overlay touched the window: %v", calls)
	}

	if err := h.app.ShowOverlay(); err != nil {
		t.Fatalf("ShowOverlay() error = %v", err)
	}
	for range 2 {
		if err := h.app.HideOverlay(); err != nil {
			t.Fatalf("HideOverlay() error = %v", err)
		}
	}
	if h.app.state.OverlayVisible() {
		t.Fatal("overlay still visible")
	}
}

func TestOverlayCommandsFailBeforeStartup(t *testing.T) {
	window := &recordingWindow{}
	swapAppSeams(t, window, &recordingKeyboard{}, &emittedEvents{}, &testRuntimeLogger{})
	app := NewApp()

	for name, fn := range map[string]func() error{
		"toggle": app.ToggleOverlay,
		"show":   app.ShowOverlay,
		"hide":   app.HideOverlay,
	} {
		if err := fn(); !errors.Is(err, errAppNotRunning) {
			t.Fatalf("%s before startup error = %v, want errAppNotRunning", name, err)
		}
	}
	if calls := window.snapshot(); len(calls) != 0 {
		t.Fatalf("window touched before startup: %v", calls)
	}
}

func TestSimulatePasteSendsModifierCombo(t *testing.T) {
	h := newTestHarness(t)

	if err := h.app.SimulatePaste(); err != nil {
		t.Fatalf("SimulatePaste() error = %v", err)
	}
	calls, _ := h.keyboard.snapshot()
	if got := strings.Join(calls, ","); got != "down:ctrl,tap:v,up:ctrl" {
		t.Fatalf("key calls = %s", got)
	}
}

func TestSimulatePasteStopsAtFailingStep(t *testing.T) {
	tests := []struct {
		name      string
		failOn    string
		wantStep  string
		wantCalls string
	}{
		{name: "modifier down", failOn: "down:ctrl", wantStep: inject.StepModifierDown, wantCalls: "down:ctrl"},
		{name: "letter tap", failOn: "tap:v", wantStep: inject.StepLetterTap, wantCalls: "down:ctrl,tap:v"},
		{name: "modifier up", failOn: "up:ctrl", wantStep: inject.StepModifierUp, wantCalls: "down:ctrl,tap:v,up:ctrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			h.keyboard.failOn = tt.failOn

			err := h.app.SimulatePaste()
			var injErr *inject.InjectionError
			if !errors.As(err, &injErr) {
				t.Fatalf("SimulatePaste() error = %v, want InjectionError", err)
			}
			if injErr.Step != tt.wantStep {
				t.Fatalf("step = %q, want %q", injErr.Step, tt.wantStep)
			}
			calls, _ := h.keyboard.snapshot()
			if got := strings.Join(calls, ","); got != tt.wantCalls {
				t.Fatalf("key calls = %s, want %s", got, tt.wantCalls)
			}
		})
	}
}

func TestSimulatePasteKeyboardUnavailable(t *testing.T) {
	h := newTestHarness(t)
	h.keyboard.openErr = inject.ErrPermissionDenied

	err := h.app.SimulatePaste()
	if !errors.Is(err, inject.ErrPermissionDenied) {
		t.Fatalf("SimulatePaste() error = %v, want ErrPermissionDenied", err)
	}
	if calls, _ := h.keyboard.snapshot(); len(calls) != 0 {
		t.Fatalf("keys sent without a keyboard: %v", calls)
	}
}

func TestPauseMediaTapsPlayPause(t *testing.T) {
	h := newTestHarness(t)

	if err := h.app.PauseMedia(); err != nil {
		t.Fatalf("PauseMedia() error = %v", err)
	}
	calls, _ := h.keyboard.snapshot()
	if got := strings.Join(calls, ","); got != "tap:"+inject.KeyMediaPlayPause {
		t.Fatalf("key calls = %s", got)
	}
}

func TestInsertTextAppliesVoiceCommandsAndPastes(t *testing.T) {
	h := newTestHarness(t)
	store := attachHistory(t, h.app)
	if err := h.app.ShowOverlay(); err != nil {
		t.Fatalf("ShowOverlay() error = %v", err)
	}

	if err := h.app.InsertText("hello comma world period"); err != nil {
		t.Fatalf("InsertText() error = %v", err)
	}

	calls, clip := h.keyboard.snapshot()
	if len(clip) != 1 || clip[0] != "hello, world." {
		t.Fatalf("clipboard writes = %q", clip)
	}
	if got := strings.Join(calls, ","); got != "down:ctrl,tap:v,up:ctrl" {
		t.Fatalf("key calls = %s", got)
	}
	if h.app.state.OverlayVisible() {
		t.Fatal("overlay must be hidden before pasting")
	}

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	got := entries[0]
	if got.Raw != "hello comma world period" || got.Text != "hello, world." || !got.Pasted || got.Error != "" {
		t.Fatalf("history entry = %+v", got)
	}
	if !h.events.has(eventHistoryUpdated) {
		t.Fatal("history update event was not emitted")
	}
}

func TestInsertTextRecordsFailedPaste(t *testing.T) {
	h := newTestHarness(t)
	attachHistory(t, h.app)
	h.keyboard.failOn = "tap:v"

	err := h.app.InsertText("note")
	if err == nil || !strings.Contains(err.Error(), "insert text") {
		t.Fatalf("InsertText() error = %v", err)
	}

	entries, err := h.app.GetHistory(10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Pasted || !strings.Contains(entries[0].Error, inject.StepLetterTap) {
		t.Fatalf("history entries = %+v", entries)
	}
}

func TestInsertTextRejectsEmptyText(t *testing.T) {
	h := newTestHarness(t)

	if err := h.app.InsertText("  \n"); err == nil {
		t.Fatal("InsertText() expected error for blank text")
	}
	calls, clip := h.keyboard.snapshot()
	if len(calls) != 0 || len(clip) != 0 {
		t.Fatalf("blank text reached the injector: calls=%v clip=%v", calls, clip)
	}
}

func TestInsertTextWithoutVoiceCommands(t *testing.T) {
	h := newTestHarness(t)
	cfg := config.DefaultConfig()
	cfg.VoiceCommands = false
	h.app.applyConfig(cfg)

	if err := h.app.InsertText("hello comma world"); err != nil {
		t.Fatalf("InsertText() error = %v", err)
	}
	if _, clip := h.keyboard.snapshot(); len(clip) != 1 || clip[0] != "hello comma world" {
		t.Fatalf("clipboard writes = %q", clip)
	}
}

func TestHistoryCommandsWhenDisabled(t *testing.T) {
	h := newTestHarness(t)

	if _, err := h.app.GetHistory(5); !errors.Is(err, errHistoryDisabled) {
		t.Fatalf("GetHistory() error = %v, want errHistoryDisabled", err)
	}
	if err := h.app.ClearHistory(); !errors.Is(err, errHistoryDisabled) {
		t.Fatalf("ClearHistory() error = %v, want errHistoryDisabled", err)
	}
	// Inserting still works without history.
	if err := h.app.InsertText("ok"); err != nil {
		t.Fatalf("InsertText() error = %v", err)
	}
}

func TestClearHistory(t *testing.T) {
	h := newTestHarness(t)
	attachHistory(t, h.app)

	if err := h.app.InsertText("one"); err != nil {
		t.Fatal(err)
	}
	if err := h.app.ClearHistory(); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	entries, err := h.app.GetHistory(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries after clear = %d", len(entries))
	}
}

func TestGetHistoryHugeLimit(t *testing.T) {
	h := newTestHarness(t)
	attachHistory(t, h.app)

	if err := h.app.InsertText("one"); err != nil {
		t.Fatal(err)
	}
	entries, err := h.app.GetHistory(math.MaxInt)
	if err != nil {
		t.Fatalf("GetHistory(MaxInt) error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

func TestGetStatusDefaults(t *testing.T) {
	h := newTestHarness(t)

	status := h.app.GetStatus()
	if status.Combo != "Alt+Z" || status.Source != "hook" {
		t.Fatalf("status = %+v, want configured combo and source", status)
	}
	if status.ListenerRunning || status.OverlayVisible || status.Recording || status.HistoryEnabled {
		t.Fatalf("status = %+v, want everything off", status)
	}
	if status.BridgeURL != "" || h.app.GetBridgeURL() != "" {
		t.Fatal("bridge URL reported without a bridge")
	}
}
