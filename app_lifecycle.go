package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vochat/internal/config"
	"vochat/internal/history"
	"vochat/internal/inject"
	"vochat/internal/input"
	"vochat/internal/ipc"
	"vochat/internal/overlay"
	"vochat/internal/workerutil"
	"vochat/internal/wsserver"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

type appRuntimeLogger interface {
	Warningf(context.Context, string, ...any)
	Infof(context.Context, string, ...any)
	Errorf(context.Context, string, ...any)
}

// wailsRuntimeLogger forwards to the Wails runtime log when a runtime
// context exists and to slog otherwise.
type wailsRuntimeLogger struct{}

func formatRuntimeLogMessage(message string, args ...any) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

func (wailsRuntimeLogger) Warningf(ctx context.Context, message string, args ...any) {
	if ctx == nil {
		slog.Warn(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogWarningf(ctx, message, args...)
}

func (wailsRuntimeLogger) Infof(ctx context.Context, message string, args ...any) {
	if ctx == nil {
		slog.Info(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogInfof(ctx, message, args...)
}

func (wailsRuntimeLogger) Errorf(ctx context.Context, message string, args ...any) {
	if ctx == nil {
		slog.Error(formatRuntimeLogMessage(message, args...))
		return
	}
	runtime.LogErrorf(ctx, message, args...)
}

var (
	runtimeEventsEmitFn                  = runtime.EventsEmit
	runtimeLogger       appRuntimeLogger = wailsRuntimeLogger{}
	newOverlayWindowFn                   = func(ctxFn func() context.Context) overlay.Window {
		return overlay.NewWailsWindow(ctxFn)
	}
	newInjectorFn      = inject.New
	newInputSourceFn   = input.NewSource
	openHistoryFn      = history.Open
	newControlServerFn = func(executor ipc.CommandExecutor) controlServer {
		return ipc.NewServer("", executor)
	}
	watchConfigFn = config.Watch
	configPathFn  = config.DefaultPath
)

// controlServer is the part of ipc.Server the app drives.
type controlServer interface {
	Start() error
	Stop() error
	Endpoint() string
}

const shutdownWaitTimeout = 5 * time.Second

func (a *App) startup(ctx context.Context) {
	a.setRuntimeContext(ctx)

	a.configPath = configPathFn()
	for _, message := range config.ConsumeDefaultPathWarnings() {
		runtimeLogger.Warningf(ctx, "%s", message)
	}
	a.initSessionLog()
	cfg, err := config.EnsureFile(a.configPath)
	if err != nil {
		// A broken config never blocks dictation; run with defaults.
		cfg = config.DefaultConfig()
		runtimeLogger.Warningf(ctx, "failed to load config from %s, using defaults: %v", a.configPath, err)
	}
	a.applyConfig(cfg)

	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCtx = bgCtx
	a.bgCancel = cancel

	// Run recovers task panics itself and cannot be restarted.
	uiOpts := a.workerRecoveryOptions()
	uiOpts.MaxRetries = 1
	workerutil.RunWithPanicRecovery(bgCtx, "ui-loop", &a.bgWG, func(ctx context.Context) error {
		a.ui.Run(ctx)
		return nil
	}, uiOpts)

	a.startHistory(cfg)
	a.startBridge(bgCtx, cfg)
	a.startControlServer()
	a.startConfigWatcher(bgCtx)
	a.startListener(bgCtx, cfg)
}

func (a *App) shutdown(_ context.Context) {
	a.shuttingDown.Store(true)
	logCtx := a.runtimeContext()

	a.stopListener()
	if a.bgCancel != nil {
		a.bgCancel()
	}
	if !waitWithTimeout(a.bgWG.Wait, shutdownWaitTimeout) {
		runtimeLogger.Warningf(logCtx, "timed out waiting for background workers during shutdown")
	}

	var errs []error
	if a.controlServer != nil {
		if err := a.controlServer.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("control server: %w", err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("bridge: %w", err))
		}
	}
	if store := a.historyStore(); store != nil {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		runtimeLogger.Warningf(logCtx, "shutdown cleanup failed: %v", err)
	}
	a.closeSessionLog()
	a.setRuntimeContext(nil)
}

func (a *App) startHistory(cfg config.Config) {
	if !cfg.History.Enabled {
		slog.Info("[history] disabled by config")
		return
	}
	path := config.HistoryPath(a.configPath, cfg)
	store, err := openHistoryFn(path, cfg.History.MaxEntries)
	if err != nil {
		runtimeLogger.Warningf(a.runtimeContext(), "history unavailable: %v", err)
		return
	}
	a.historyMu.Lock()
	a.history = store
	a.historyMu.Unlock()
	slog.Info("[history] store opened", "path", path)
}

func (a *App) startBridge(ctx context.Context, cfg config.Config) {
	if !cfg.Bridge.Enabled {
		slog.Info("[DEBUG-WS] bridge disabled by config")
		return
	}
	hub := wsserver.NewHub(wsserver.HubOptions{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Bridge.Port),
		OnTranscript: a.handleBridgeTranscript,
	})
	if err := hub.Start(ctx); err != nil {
		runtimeLogger.Errorf(a.runtimeContext(), "bridge failed to start: %v", err)
		return
	}
	a.hub = hub
}

func (a *App) startControlServer() {
	server := newControlServerFn(ipc.ExecutorFunc(a.executeControl))
	if err := server.Start(); err != nil {
		runtimeLogger.Errorf(a.runtimeContext(), "control server failed: %v", err)
		return
	}
	a.controlServer = server
	runtimeLogger.Infof(a.runtimeContext(), "control server listening: %s", server.Endpoint())
}

func (a *App) startConfigWatcher(ctx context.Context) {
	if strings.TrimSpace(a.configPath) == "" {
		return
	}
	opts := a.workerRecoveryOptions()
	opts.OnError = func(worker string, err error) {
		runtimeLogger.Warningf(a.runtimeContext(), "%s stopped, config changes need a restart: %v", worker, err)
	}
	workerutil.RunWithPanicRecovery(ctx, "config-watcher", &a.bgWG, func(ctx context.Context) error {
		return watchConfigFn(ctx, a.configPath, config.DefaultReloadDebounce, a.handleConfigReload)
	}, opts)
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	// The waiting goroutine may outlive timeout when waitFn blocks; this is
	// only used on shutdown paths.
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
