package main

import (
	"vochat/internal/workerutil"
)

// workerRecoveryOptions is the restart policy shared by every background
// worker. Callers override OnError and OnFatal where a failure needs a
// worker-specific reaction.
func (a *App) workerRecoveryOptions() workerutil.RecoveryOptions {
	return workerutil.RecoveryOptions{
		OnPanic: func(worker string, attempt int) {
			a.emitRuntimeEvent(eventWorkerPanic, map[string]any{
				"worker":  worker,
				"attempt": attempt,
			})
		},
		OnFatal: func(worker string, maxRetries int) {
			runtimeLogger.Errorf(a.runtimeContext(), "%s gave up after %d panics", worker, maxRetries)
		},
		IsShutdown: a.shuttingDown.Load,
	}
}
