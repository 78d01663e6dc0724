// Package overlay owns the floating indicator window shown while the dictation
// combo is held.
package overlay

import (
	"fmt"
	"log/slog"
)

// Events delivered to the overlay surface. They carry no payload.
const (
	EventHotkeyPressed  = "hotkey-pressed"
	EventHotkeyReleased = "hotkey-released"
)

// Geometry describes where the overlay window is created.
type Geometry struct {
	X           int  `json:"x"`
	Y           int  `json:"y"`
	Width       int  `json:"width"`
	Height      int  `json:"height"`
	AlwaysOnTop bool `json:"always_on_top"`
}

// DefaultGeometry is a small always-on-top strip at the origin. The overlay
// page moves itself to the bottom centre of the primary monitor.
func DefaultGeometry() Geometry {
	return Geometry{Width: 280, Height: 70, AlwaysOnTop: true}
}

// Window is the windowing capability the controller drives. Implementations
// wrap the host toolkit; they are only called from the UI loop goroutine.
type Window interface {
	Create(Geometry) error
	Show() error
	Hide() error
	Emit(name string) error
}

// VisibilityStore holds the shared overlay visibility flag.
type VisibilityStore interface {
	OverlayVisible() bool
	SetOverlayVisible(bool)
	ToggleOverlayVisible() bool
}

// Controller manages the overlay lifecycle. It is not safe for concurrent
// use; every method must run on the UI loop.
type Controller struct {
	window   Window
	state    VisibilityStore
	geometry Geometry
	created  bool
}

// NewController creates a controller. The window is not created until the
// first EnsureVisible call.
func NewController(window Window, state VisibilityStore, geometry Geometry) *Controller {
	if geometry.Width <= 0 || geometry.Height <= 0 {
		defaults := DefaultGeometry()
		geometry.Width, geometry.Height = defaults.Width, defaults.Height
	}
	return &Controller{window: window, state: state, geometry: geometry}
}

// Exists reports whether the overlay window has been created.
func (c *Controller) Exists() bool { return c.created }

// Visible reports the stored visibility flag.
func (c *Controller) Visible() bool { return c.state.OverlayVisible() }

// EnsureVisible creates the window if needed, marks it visible and brings it
// to the front.
func (c *Controller) EnsureVisible() error {
	if !c.created {
		if err := c.call("create", func() error { return c.window.Create(c.geometry) }); err != nil {
			return err
		}
		c.created = true
		slog.Debug("[overlay] window created",
			"width", c.geometry.Width, "height", c.geometry.Height,
			"x", c.geometry.X, "y", c.geometry.Y)
	}
	c.state.SetOverlayVisible(true)
	return c.call("show", c.window.Show)
}

// Toggle flips the visibility flag and applies it. Hiding never destroys the
// window. When showing fails the flag is rolled back to hidden.
func (c *Controller) Toggle() error {
	if c.state.ToggleOverlayVisible() {
		if err := c.EnsureVisible(); err != nil {
			c.state.SetOverlayVisible(false)
			return err
		}
		return nil
	}
	if !c.created {
		return nil
	}
	return c.call("hide", c.window.Hide)
}

// Hide marks the overlay hidden and hides the window if it exists.
// Calling Hide repeatedly is harmless.
func (c *Controller) Hide() error {
	c.state.SetOverlayVisible(false)
	if !c.created {
		return nil
	}
	return c.call("hide", c.window.Hide)
}

// Notify delivers a payload-less event to the overlay page. Delivery is
// fire-and-forget: the event is dropped when the window does not exist and
// failures are only logged. It reports whether the event was handed off.
func (c *Controller) Notify(name string) bool {
	if !c.created {
		slog.Debug("[overlay] event dropped, window not created", "event", name)
		return false
	}
	if err := c.call("emit "+name, func() error { return c.window.Emit(name) }); err != nil {
		slog.Warn("[overlay] event delivery failed", "event", name, "error", err)
		return false
	}
	return true
}

// call runs a windowing operation and converts both errors and panics from
// the host toolkit into a wrapped error.
func (c *Controller) call(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("overlay %s: window layer panic: %v", op, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("overlay %s: %w", op, err)
	}
	return nil
}
