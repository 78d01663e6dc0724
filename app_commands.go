package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vochat/internal/history"
	"vochat/internal/ipc"
)

// ToggleOverlay flips the overlay visibility, creating the window on first use.
func (a *App) ToggleOverlay() error {
	return a.toggleOverlay(a.commandContext())
}

// HideOverlay hides the overlay. Hiding a hidden or missing overlay is a no-op.
func (a *App) HideOverlay() error {
	return a.hideOverlay(a.commandContext())
}

// ShowOverlay makes the overlay visible.
func (a *App) ShowOverlay() error {
	return a.showOverlay(a.commandContext())
}

// SimulatePaste waits for the settle delay and sends the platform paste combo
// to the focused application.
func (a *App) SimulatePaste() error {
	return a.simulatePaste(a.commandContext())
}

// PauseMedia taps the media play/pause key.
func (a *App) PauseMedia() error {
	return a.pauseMedia(a.commandContext())
}

// InsertText applies voice commands to text, puts it on the clipboard, hides
// the overlay and pastes it into the focused application.
func (a *App) InsertText(text string) error {
	return a.insertText(a.commandContext(), text)
}

// GetStatus reports the combo, listener and overlay state.
func (a *App) GetStatus() ipc.Status {
	cfg := a.getConfigSnapshot()
	snap := a.state.Snapshot()

	a.listenerMu.Lock()
	status := ipc.Status{
		Combo:           a.listenerCombo,
		Source:          a.listenerKind,
		ListenerRunning: a.listenerRunning,
		OverlayVisible:  snap.OverlayVisible,
		Recording:       snap.Recording,
	}
	if a.listenerErr != nil {
		status.ListenerError = a.listenerErr.Error()
	}
	a.listenerMu.Unlock()

	if status.Combo == "" {
		status.Combo = cfg.Hotkey.Combo
	}
	if status.Source == "" {
		status.Source = normalizedSourceKind(cfg.Hotkey.Source)
	}
	if a.hub != nil {
		status.BridgeURL = a.hub.URL()
		status.BridgeConnected = a.hub.HasActiveConnection()
	}
	status.HistoryEnabled = a.historyStore() != nil
	return status
}

// GetHistory returns up to limit recent dictations, newest first.
func (a *App) GetHistory(limit int) ([]history.Entry, error) {
	store, err := a.requireHistory()
	if err != nil {
		return nil, err
	}
	return store.Recent(a.commandContext(), limit)
}

// ClearHistory deletes every recorded dictation.
func (a *App) ClearHistory() error {
	store, err := a.requireHistory()
	if err != nil {
		return err
	}
	return store.Clear(a.commandContext())
}

// GetBridgeURL returns the transcription bridge URL, or "" when the bridge
// is not running.
func (a *App) GetBridgeURL() string {
	if a.hub == nil {
		slog.Debug("[DEBUG-WS] bridge is nil, URL unavailable")
		return ""
	}
	return a.hub.URL()
}

func (a *App) toggleOverlay(ctx context.Context) error {
	return a.runOnUI(ctx, "toggle-overlay", a.overlay.Toggle)
}

func (a *App) hideOverlay(ctx context.Context) error {
	return a.runOnUI(ctx, "hide-overlay", a.overlay.Hide)
}

func (a *App) showOverlay(ctx context.Context) error {
	return a.runOnUI(ctx, "show-overlay", a.overlay.EnsureVisible)
}

func (a *App) simulatePaste(ctx context.Context) error {
	a.injectMu.Lock()
	defer a.injectMu.Unlock()
	if err := a.injector.Paste(ctx); err != nil {
		slog.Warn("[DEBUG-PASTE] simulated paste failed", "error", err)
		return fmt.Errorf("simulate paste: %w", err)
	}
	slog.Debug("[DEBUG-PASTE] simulated paste sent")
	return nil
}

func (a *App) pauseMedia(ctx context.Context) error {
	a.injectMu.Lock()
	defer a.injectMu.Unlock()
	if err := a.injector.PauseMedia(ctx); err != nil {
		return fmt.Errorf("pause media: %w", err)
	}
	return nil
}

func (a *App) insertText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("insert text: text is empty")
	}
	processed := text
	if voice := a.voice.Load(); voice != nil {
		processed = voice.Process(text)
	}

	a.injectMu.Lock()
	defer a.injectMu.Unlock()

	err := a.injector.WriteClipboard(processed)
	if err == nil {
		// The overlay never takes focus, but hiding it first keeps it out of
		// the way of the paste target.
		err = a.runOnUI(ctx, "hide-overlay", a.overlay.Hide)
	}
	if err == nil {
		err = a.injector.Paste(ctx)
	}

	entry := history.Entry{Raw: text, Text: processed, Pasted: err == nil}
	if err != nil {
		entry.Error = err.Error()
	}
	a.recordHistory(ctx, entry)

	if err != nil {
		slog.Warn("[DEBUG-PASTE] insert text failed", "error", err)
		return fmt.Errorf("insert text: %w", err)
	}
	slog.Debug("[DEBUG-PASTE] text inserted", "chars", len(processed))
	return nil
}

// recordHistory stores entry when history is enabled. Failures are logged
// and never fail the insertion.
func (a *App) recordHistory(ctx context.Context, entry history.Entry) {
	store := a.historyStore()
	if store == nil {
		return
	}
	// A cancelled command context must not lose the record of what was pasted.
	if _, err := store.Record(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("[history] record failed", "error", err)
		return
	}
	a.emitRuntimeEvent(eventHistoryUpdated, nil)
}
