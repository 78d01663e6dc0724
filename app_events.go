package main

import (
	"context"
	"log/slog"
)

// Runtime events emitted to the frontend in addition to the overlay's
// hotkey-pressed and hotkey-released.
const (
	eventConfigUpdated  = "vochat:config-updated"
	eventHistoryUpdated = "vochat:history-updated"
	eventListenerFailed = "vochat:listener-failed"
	eventWorkerPanic    = "vochat:worker-panic"
)

// emitRuntimeEvent emits via the app context and delegates to emitRuntimeEventWithContext.
func (a *App) emitRuntimeEvent(name string, payload any) {
	a.emitRuntimeEventWithContext(a.runtimeContext(), name, payload)
}

// emitRuntimeEventWithContext emits a runtime event only when ctx is non-nil.
func (a *App) emitRuntimeEventWithContext(ctx context.Context, name string, payload any) {
	if ctx == nil {
		slog.Debug("[EVENT] runtime event dropped because app context is nil", "event", name)
		return
	}
	if payload == nil {
		runtimeEventsEmitFn(ctx, name)
		return
	}
	runtimeEventsEmitFn(ctx, name, payload)
}
