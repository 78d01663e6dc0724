package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"vochat/internal/hotkeys"
	"vochat/internal/inject"
	"vochat/internal/input"
	"vochat/internal/overlay"
	"vochat/internal/testutil"
)

// NOTE: tests in this package override package-level function variables
// (runtimeEventsEmitFn, newOverlayWindowFn, newInjectorFn, ...). Do not use
// t.Parallel() here.

type recordingWindow struct {
	mu      sync.Mutex
	calls   []string
	showErr error
}

func (w *recordingWindow) record(call string) {
	w.mu.Lock()
	w.calls = append(w.calls, call)
	w.mu.Unlock()
}

func (w *recordingWindow) Create(g overlay.Geometry) error {
	w.record(fmt.Sprintf("create:%dx%d", g.Width, g.Height))
	return nil
}

func (w *recordingWindow) Show() error {
	w.record("show")
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.showErr
}

func (w *recordingWindow) Hide() error {
	w.record("hide")
	return nil
}

func (w *recordingWindow) Emit(name string) error {
	w.record("emit:" + name)
	return nil
}

func (w *recordingWindow) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.calls)
}

func (w *recordingWindow) has(call string) bool {
	return slices.Contains(w.snapshot(), call)
}

type recordingKeyboard struct {
	mu      sync.Mutex
	calls   []string
	failOn  string
	openErr error
	clip    []string
}

func (k *recordingKeyboard) do(call string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = append(k.calls, call)
	if call == k.failOn {
		return errors.New("synthetic " + call + " failure")
	}
	return nil
}

func (k *recordingKeyboard) KeyDown(key string) error { return k.do("down:" + key) }
func (k *recordingKeyboard) KeyUp(key string) error   { return k.do("up:" + key) }
func (k *recordingKeyboard) KeyTap(key string) error  { return k.do("tap:" + key) }

func (k *recordingKeyboard) open() (inject.Keyboard, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.openErr != nil {
		return nil, k.openErr
	}
	return k, nil
}

func (k *recordingKeyboard) writeClipboard(text string) error {
	k.mu.Lock()
	k.clip = append(k.clip, text)
	k.mu.Unlock()
	return nil
}

func (k *recordingKeyboard) snapshot() ([]string, []string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.calls), slices.Clone(k.clip)
}

type testRuntimeLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testRuntimeLogger) add(level, message string, args ...any) {
	l.mu.Lock()
	l.lines = append(l.lines, level+": "+formatRuntimeLogMessage(message, args...))
	l.mu.Unlock()
}

func (l *testRuntimeLogger) Warningf(_ context.Context, message string, args ...any) {
	l.add("warn", message, args...)
}

func (l *testRuntimeLogger) Infof(_ context.Context, message string, args ...any) {
	l.add("info", message, args...)
}

func (l *testRuntimeLogger) Errorf(_ context.Context, message string, args ...any) {
	l.add("error", message, args...)
}

func (l *testRuntimeLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

type emittedEvents struct {
	mu    sync.Mutex
	names []string
}

func (e *emittedEvents) emit(_ context.Context, name string, _ ...any) {
	e.mu.Lock()
	e.names = append(e.names, name)
	e.mu.Unlock()
}

func (e *emittedEvents) has(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Contains(e.names, name)
}

// fakeSource stands in for the OS keyboard hook. Run hands its emit
// callback to the test and blocks until cancelled.
type fakeSource struct {
	name    string
	runErr  error
	started chan func(input.Event)
	stopped chan struct{}
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{
		name:    name,
		started: make(chan func(input.Event), 4),
		stopped: make(chan struct{}, 4),
	}
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Run(ctx context.Context, emit func(input.Event)) error {
	if s.runErr != nil {
		return s.runErr
	}
	s.started <- emit
	<-ctx.Done()
	s.stopped <- struct{}{}
	return nil
}

func (s *fakeSource) waitStarted(t *testing.T) func(input.Event) {
	t.Helper()
	select {
	case emit := <-s.started:
		return emit
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for input source to start")
		return nil
	}
}

func press(emit func(input.Event), keys ...hotkeys.Key) {
	for _, key := range keys {
		emit(input.Event{Key: key, Transition: hotkeys.Press})
	}
}

func release(emit func(input.Event), keys ...hotkeys.Key) {
	for _, key := range keys {
		emit(input.Event{Key: key, Transition: hotkeys.Release})
	}
}

type testHarness struct {
	app      *App
	window   *recordingWindow
	keyboard *recordingKeyboard
	events   *emittedEvents
	logs     *testRuntimeLogger
	ctx      context.Context
}

func swapAppSeams(t *testing.T, window *recordingWindow, keyboard *recordingKeyboard, events *emittedEvents, logs *testRuntimeLogger) {
	t.Helper()
	origWindow := newOverlayWindowFn
	origInjector := newInjectorFn
	origEmit := runtimeEventsEmitFn
	origLogger := runtimeLogger
	origSource := newInputSourceFn
	origHistory := openHistoryFn
	origControl := newControlServerFn
	origWatch := watchConfigFn
	origPath := configPathFn
	t.Cleanup(func() {
		newOverlayWindowFn = origWindow
		newInjectorFn = origInjector
		runtimeEventsEmitFn = origEmit
		runtimeLogger = origLogger
		newInputSourceFn = origSource
		openHistoryFn = origHistory
		newControlServerFn = origControl
		watchConfigFn = origWatch
		configPathFn = origPath
	})

	newOverlayWindowFn = func(func() context.Context) overlay.Window { return window }
	newInjectorFn = func(opts inject.Options) *inject.Injector {
		opts.SettleDelay = 0
		opts.KeyDelay = 0
		opts.Modifier = "ctrl"
		opts.Open = keyboard.open
		opts.Clipboard = keyboard.writeClipboard
		return inject.New(opts)
	}
	runtimeEventsEmitFn = events.emit
	runtimeLogger = logs
}

// newTestHarness builds an App whose UI loop is running, as after startup,
// without starting any optional service.
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		window:   &recordingWindow{},
		keyboard: &recordingKeyboard{},
		events:   &emittedEvents{},
		logs:     &testRuntimeLogger{},
	}
	swapAppSeams(t, h.window, h.keyboard, h.events, h.logs)

	h.app = NewApp()
	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	h.app.setRuntimeContext(ctx)
	h.app.bgCtx = ctx

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.app.ui.Run(ctx)
	}()
	t.Cleanup(func() {
		h.app.stopListener()
		cancel()
		<-done
	})
	return h
}

func (h *testHarness) waitWindowCall(t *testing.T, call string) {
	t.Helper()
	testutil.WaitFor(t, 2*time.Second, "window call "+call, func() bool {
		return h.window.has(call)
	})
}
