package main

import (
	"context"
	"errors"

	"vochat/internal/history"
)

var (
	errAppNotRunning   = errors.New("vochat is not running")
	errHistoryDisabled = errors.New("history is disabled")
)

func (a *App) historyStore() *history.Store {
	a.historyMu.RLock()
	defer a.historyMu.RUnlock()
	return a.history
}

func (a *App) requireHistory() (*history.Store, error) {
	if store := a.historyStore(); store != nil {
		return store, nil
	}
	return nil, errHistoryDisabled
}

// runOnUI runs fn on the UI loop and waits for it. Before startup and after
// shutdown no loop is draining, so the call fails fast.
func (a *App) runOnUI(ctx context.Context, name string, fn func() error) error {
	if a.runtimeContext() == nil {
		return errAppNotRunning
	}
	return a.ui.Do(ctx, name, fn)
}
