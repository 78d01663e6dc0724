package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vochat/internal/config"
	"vochat/internal/hotkeys"
	"vochat/internal/input"
	"vochat/internal/overlay"
	"vochat/internal/workerutil"
)

// inputEventBuffer absorbs key bursts between the source callback and the
// combo tracker.
const inputEventBuffer = 256

type trackerConfig struct {
	combo        hotkeys.Combo
	stuckTimeout time.Duration
}

// comboTracker owns the hotkey Machine. run is the only goroutine that
// touches the machine; Retarget hands it a new combo through a channel.
type comboTracker struct {
	machine      *hotkeys.Machine
	stuckTimeout time.Duration
	retarget     chan trackerConfig
	dispatch     func(hotkeys.ComboTransition)
}

func newComboTracker(cfg trackerConfig, dispatch func(hotkeys.ComboTransition)) *comboTracker {
	return &comboTracker{
		machine:      hotkeys.NewMachine(cfg.combo),
		stuckTimeout: cfg.stuckTimeout,
		retarget:     make(chan trackerConfig, 1),
		dispatch:     dispatch,
	}
}

// Retarget queues a combo change without blocking. A newer pending change
// replaces an older one.
func (t *comboTracker) Retarget(cfg trackerConfig) {
	for {
		select {
		case t.retarget <- cfg:
			return
		default:
		}
		select {
		case <-t.retarget:
		default:
		}
	}
}

// run applies events until ctx is cancelled. Leaving run releases the combo
// so a stopped listener never leaves the app recording.
func (t *comboTracker) run(ctx context.Context, events <-chan input.Event) {
	var (
		watchdog *time.Timer
		expired  <-chan time.Time
	)
	disarm := func() {
		if watchdog != nil {
			watchdog.Stop()
		}
		watchdog, expired = nil, nil
	}
	handle := func(transition hotkeys.ComboTransition, fired bool) {
		if !fired {
			return
		}
		switch transition {
		case hotkeys.Activated:
			if t.stuckTimeout > 0 {
				watchdog = time.NewTimer(t.stuckTimeout)
				expired = watchdog.C
			}
		case hotkeys.Deactivated:
			disarm()
		}
		t.dispatch(transition)
	}
	defer func() {
		handle(t.machine.Reset())
		disarm()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			handle(t.machine.OnKeyEvent(ev.Key, ev.Transition))
		case next := <-t.retarget:
			handle(t.machine.Reset())
			t.machine = hotkeys.NewMachine(next.combo)
			t.stuckTimeout = next.stuckTimeout
			slog.Info("[hotkey] combo changed", "combo", next.combo.Normalized())
		case <-expired:
			slog.Warn("[hotkey] no release within stuck timeout, forcing release",
				"timeout", t.stuckTimeout)
			watchdog, expired = nil, nil
			handle(t.machine.Reset())
		}
	}
}

// startListener builds the configured input source and runs it on a
// supervised worker. A source that cannot be created or installed disables
// dictation triggering only.
func (a *App) startListener(parent context.Context, cfg config.Config) {
	if parent == nil {
		return
	}
	combo, err := hotkeys.ParseCombo(cfg.Hotkey.Combo)
	if err != nil {
		a.recordListenerFailure(nil, fmt.Errorf("hotkey combo: %w", err))
		return
	}
	source, err := newInputSourceFn(cfg.Hotkey.Source, combo)
	if err != nil {
		a.recordListenerFailure(nil, fmt.Errorf("input source: %w", err))
		return
	}

	tracker := newComboTracker(trackerConfig{
		combo:        combo,
		stuckTimeout: cfg.Hotkey.StuckTimeout(),
	}, a.dispatchComboTransition)
	ctx, cancel := context.WithCancel(parent)
	wg := &sync.WaitGroup{}

	a.listenerMu.Lock()
	a.listener = tracker
	a.listenerCancel = cancel
	a.listenerWG = wg
	a.listenerKind = source.Name()
	a.listenerCombo = combo.Normalized()
	a.listenerRunning = true
	a.listenerErr = nil
	a.listenerMu.Unlock()

	opts := a.workerRecoveryOptions()
	opts.OnError = func(_ string, err error) {
		a.recordListenerFailure(tracker, err)
	}
	opts.OnFatal = func(worker string, maxRetries int) {
		a.recordListenerFailure(tracker, fmt.Errorf("%s panicked %d times", worker, maxRetries))
	}
	workerutil.RunWithPanicRecovery(ctx, "input-listener", wg, func(ctx context.Context) error {
		return a.runListener(ctx, source, tracker)
	}, opts)
	runtimeLogger.Infof(a.runtimeContext(), "dictation hotkey %s via %s source", combo.Normalized(), source.Name())
}

// runListener pumps source events into the tracker. A tracker panic is
// re-raised here so the worker supervisor restarts both halves.
func (a *App) runListener(ctx context.Context, source input.Source, tracker *comboTracker) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan input.Event, inputEventBuffer)
	var trackerPanic any
	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		defer func() {
			if rec := recover(); rec != nil {
				trackerPanic = rec
				cancel()
			}
		}()
		tracker.run(runCtx, events)
	}()

	err := source.Run(runCtx, func(ev input.Event) {
		select {
		case events <- ev:
		default:
			slog.Warn("[input] event queue full, key event dropped", "key", ev.Key, "transition", ev.Transition)
		}
	})
	cancel()
	<-trackerDone
	if trackerPanic != nil {
		panic(trackerPanic)
	}
	if err == nil && ctx.Err() == nil {
		err = fmt.Errorf("%s source stopped unexpectedly", source.Name())
	}
	return err
}

func (a *App) recordListenerFailure(tracker *comboTracker, err error) {
	a.listenerMu.Lock()
	if tracker != nil && a.listener != tracker {
		a.listenerMu.Unlock()
		return
	}
	a.listenerRunning = false
	a.listenerErr = err
	a.listenerMu.Unlock()

	runtimeLogger.Errorf(a.runtimeContext(), "hotkey listener unavailable: %v", err)
	a.emitRuntimeEvent(eventListenerFailed, err.Error())
}

// stopListener cancels the running listener and waits for it to exit.
func (a *App) stopListener() {
	a.listenerMu.Lock()
	cancel := a.listenerCancel
	wg := a.listenerWG
	a.listener = nil
	a.listenerCancel = nil
	a.listenerWG = nil
	a.listenerRunning = false
	a.listenerMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wg != nil && !waitWithTimeout(wg.Wait, shutdownWaitTimeout) {
		slog.Warn("[input] timed out waiting for listener to stop")
	}
}

// reconfigureListener applies a changed hotkey section. The hook source sees
// every key, so a combo change is handed to the running tracker. Any other
// change restarts the listener.
func (a *App) reconfigureListener(cfg config.Config) {
	combo, err := hotkeys.ParseCombo(cfg.Hotkey.Combo)
	if err != nil {
		runtimeLogger.Warningf(a.runtimeContext(), "ignoring hotkey change: %v", err)
		return
	}

	a.listenerMu.Lock()
	tracker := a.listener
	canRetarget := a.listenerRunning && tracker != nil &&
		a.listenerKind == input.KindHook && normalizedSourceKind(cfg.Hotkey.Source) == input.KindHook
	if canRetarget {
		a.listenerCombo = combo.Normalized()
	}
	a.listenerMu.Unlock()

	if canRetarget {
		tracker.Retarget(trackerConfig{combo: combo, stuckTimeout: cfg.Hotkey.StuckTimeout()})
		return
	}
	a.stopListener()
	a.startListener(a.bgCtx, cfg)
}

func normalizedSourceKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return input.KindHook
	}
	return kind
}

// dispatchComboTransition runs on the tracker goroutine. It must not block,
// so the visible effects are posted to the UI loop.
func (a *App) dispatchComboTransition(transition hotkeys.ComboTransition) {
	var session string
	if transition == hotkeys.Activated {
		session = a.beginSession()
	} else {
		session = a.currentSession()
	}
	slog.Debug("[hotkey] combo transition", "transition", transition, "session", session)

	if !a.ui.Post("combo-"+transition.String(), func() error {
		return a.applyComboTransition(transition, session)
	}) {
		slog.Warn("[hotkey] combo transition dropped", "transition", transition)
	}
}

// applyComboTransition runs on the UI loop.
func (a *App) applyComboTransition(transition hotkeys.ComboTransition, session string) error {
	var (
		err   error
		event string
	)
	switch transition {
	case hotkeys.Activated:
		a.state.SetRecording(true)
		err = a.overlay.EnsureVisible()
		event = overlay.EventHotkeyPressed
	case hotkeys.Deactivated:
		a.state.SetRecording(false)
		event = overlay.EventHotkeyReleased
	default:
		return nil
	}
	a.overlay.Notify(event)
	if transition == hotkeys.Deactivated {
		// The page gets the release event before the window goes away.
		err = a.overlay.Hide()
	}
	a.broadcastBridgeEvent(event, session)
	return err
}

func (a *App) beginSession() string {
	id := uuid.NewString()
	a.sessionMu.Lock()
	a.session = id
	a.sessionMu.Unlock()
	return id
}

func (a *App) currentSession() string {
	a.sessionMu.Lock()
	defer a.sessionMu.Unlock()
	return a.session
}
