package main

import (
	"vochat/internal/config"
	"vochat/internal/inject"
	"vochat/internal/transcript"
)

// getConfigSnapshot returns the current config under cfgMu. Config holds only
// value fields, so the copy is independent of App state.
func (a *App) getConfigSnapshot() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// setConfigSnapshot stores cfg under cfgMu.
func (a *App) setConfigSnapshot(cfg config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
}

// applyConfig stores cfg and rebuilds the components derived from it.
// The overlay geometry is only read when the window is first created.
func (a *App) applyConfig(cfg config.Config) {
	a.setConfigSnapshot(cfg)

	injector := newInjectorFn(inject.Options{
		SettleDelay: cfg.Paste.SettleDelay(),
		KeyDelay:    cfg.Paste.KeyDelay(),
	})
	a.injectMu.Lock()
	a.injector = injector
	a.injectMu.Unlock()

	if cfg.VoiceCommands {
		a.voice.Store(transcript.NewProcessor(transcript.DefaultCommands))
	} else {
		a.voice.Store(nil)
	}
}

// handleConfigReload runs on the config watcher goroutine after the file
// changed on disk.
func (a *App) handleConfigReload(next config.Config) {
	prev := a.getConfigSnapshot()
	a.applyConfig(next)
	runtimeLogger.Infof(a.runtimeContext(), "config reloaded from %s", a.configPath)

	if prev.Hotkey != next.Hotkey {
		a.reconfigureListener(next)
	}
	if prev.Bridge != next.Bridge || prev.History != next.History {
		runtimeLogger.Warningf(a.runtimeContext(), "bridge and history settings take effect after restart")
	}
	a.emitRuntimeEvent(eventConfigUpdated, next)
}
