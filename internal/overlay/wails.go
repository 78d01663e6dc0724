package overlay

import (
	"context"
	"errors"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrNoRuntime is returned when the Wails runtime context is not available
// yet (before startup) or anymore (after shutdown).
var ErrNoRuntime = errors.New("wails runtime context is unavailable")

var (
	runtimeWindowSetSizeFn        = runtime.WindowSetSize
	runtimeWindowSetPositionFn    = runtime.WindowSetPosition
	runtimeWindowSetAlwaysOnTopFn = runtime.WindowSetAlwaysOnTop
	runtimeWindowShowFn           = runtime.WindowShow
	runtimeWindowHideFn           = runtime.WindowHide
	runtimeEventsEmitFn           = runtime.EventsEmit
)

// WailsWindow drives the Wails application window as the overlay. The
// window is declared hidden and frameless in the app options; Create applies
// the overlay geometry the first time it is needed.
type WailsWindow struct {
	runtimeContext func() context.Context
}

// NewWailsWindow returns a Window backed by the Wails runtime. ctxFn is
// called on every operation so the adapter follows runtime context changes.
func NewWailsWindow(ctxFn func() context.Context) *WailsWindow {
	return &WailsWindow{runtimeContext: ctxFn}
}

func (w *WailsWindow) context() (context.Context, error) {
	if w.runtimeContext == nil {
		return nil, ErrNoRuntime
	}
	ctx := w.runtimeContext()
	if ctx == nil {
		return nil, ErrNoRuntime
	}
	return ctx, nil
}

// Create sizes and positions the window and pins it above other windows.
func (w *WailsWindow) Create(g Geometry) error {
	ctx, err := w.context()
	if err != nil {
		return err
	}
	runtimeWindowSetSizeFn(ctx, g.Width, g.Height)
	runtimeWindowSetPositionFn(ctx, g.X, g.Y)
	runtimeWindowSetAlwaysOnTopFn(ctx, g.AlwaysOnTop)
	return nil
}

// Show makes the window visible. Wails re-asserts always-on-top after show
// so the overlay is raised above the window that has focus.
func (w *WailsWindow) Show() error {
	ctx, err := w.context()
	if err != nil {
		return err
	}
	runtimeWindowShowFn(ctx)
	runtimeWindowSetAlwaysOnTopFn(ctx, true)
	return nil
}

// Hide hides the window without destroying it.
func (w *WailsWindow) Hide() error {
	ctx, err := w.context()
	if err != nil {
		return err
	}
	runtimeWindowHideFn(ctx)
	return nil
}

// Emit sends a payload-less event to the overlay page. Wails dispatches
// events asynchronously.
func (w *WailsWindow) Emit(name string) error {
	ctx, err := w.context()
	if err != nil {
		return err
	}
	runtimeEventsEmitFn(ctx, name)
	return nil
}
