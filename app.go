package main

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"vochat/internal/appstate"
	"vochat/internal/config"
	"vochat/internal/history"
	"vochat/internal/inject"
	"vochat/internal/ipc"
	"vochat/internal/overlay"
	"vochat/internal/transcript"
	"vochat/internal/uiloop"
	"vochat/internal/wsserver"
)

// App is the Wails-bound application service.
type App struct {
	// Runtime context lifecycle.
	ctx   context.Context
	ctxMu sync.RWMutex

	// Configuration state.
	// Lock ordering (outer -> inner):
	//   cfgSaveMu -> cfgMu
	//
	// Independent locks: do not assume ordering across these.
	//   ctxMu, injectMu, listenerMu, historyMu, sessionMu
	//   appstate.State locks (never held across calls into other components)
	cfgMu      sync.RWMutex
	cfgSaveMu  sync.Mutex
	cfg        config.Config
	configPath string

	// Shared flags read by every component.
	state *appstate.State

	// ui owns every overlay window call. overlay is only touched from
	// tasks running on ui.
	ui      *uiloop.Loop
	overlay *overlay.Controller

	// injectMu serializes pastes so key sequences never interleave, and
	// guards injector replacement on config reload.
	injectMu sync.Mutex
	injector *inject.Injector

	// voice is replaced on config reload; nil disables voice commands.
	voice atomic.Pointer[transcript.Processor]

	// Input listener state. The combo tracker itself lives on the listener
	// goroutine; listenerMu only guards the handles used to reach it.
	listenerMu      sync.Mutex
	listener        *comboTracker
	listenerCancel  context.CancelFunc
	listenerWG      *sync.WaitGroup
	listenerKind    string
	listenerCombo   string
	listenerRunning bool
	listenerErr     error

	// session is the ID of the most recent combo activation, sent with
	// bridge events so clients can pair transcripts with recordings.
	sessionMu sync.Mutex
	session   string

	// Optional services. Each is nil when disabled or when it failed to
	// start; the rest of the app keeps working.
	// Set once during startup before any reader goroutine starts.
	hub           *wsserver.Hub
	controlServer controlServer
	historyMu     sync.RWMutex
	history       *history.Store

	// Warnings and errors of this run, fed by the slog tee installed in
	// main. The sink runs inside slog, so nothing here may log at warn or
	// above while sessionLogMu is held.
	sessionLogMu       sync.Mutex
	sessionLogFile     *os.File
	sessionLogPath     string
	sessionLogSeq      uint64
	sessionLogEntries  sessionLogRing
	sessionLogLastEmit time.Time

	shuttingDown atomic.Bool

	// Background worker cancellation/waits. bgCtx is set in startup and
	// parents listener restarts.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// NewApp creates the app service.
func NewApp() *App {
	state := appstate.New()
	app := &App{
		cfg:   config.DefaultConfig(),
		state: state,
		ui:    uiloop.New(uiloop.DefaultQueueSize),

		sessionLogEntries: newSessionLogRing(sessionLogMaxEntries),
	}
	app.overlay = overlay.NewController(
		newOverlayWindowFn(app.runtimeContext),
		state,
		overlayGeometry(app.cfg),
	)
	app.applyConfig(app.cfg)
	return app
}

// overlayGeometry maps the configured overlay size to a window geometry.
func overlayGeometry(cfg config.Config) overlay.Geometry {
	return overlay.Geometry{
		X:           cfg.Overlay.X,
		Y:           cfg.Overlay.Y,
		Width:       cfg.Overlay.Width,
		Height:      cfg.Overlay.Height,
		AlwaysOnTop: true,
	}
}
