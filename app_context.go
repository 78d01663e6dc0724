package main

import "context"

func (a *App) setRuntimeContext(ctx context.Context) {
	a.ctxMu.Lock()
	a.ctx = ctx
	a.ctxMu.Unlock()
}

// runtimeContext returns the Wails runtime context, nil before startup and
// after shutdown.
func (a *App) runtimeContext() context.Context {
	a.ctxMu.RLock()
	ctx := a.ctx
	a.ctxMu.RUnlock()
	return ctx
}

// commandContext returns a context for a bound command. Wails does not pass
// one, so commands derive from the runtime context and fall back to
// Background before startup.
func (a *App) commandContext() context.Context {
	if ctx := a.runtimeContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
