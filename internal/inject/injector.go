// Package inject synthesizes keyboard input into whatever window currently
// holds OS focus.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default timings. The settle delay lets focus return to the target window
// after the overlay is hidden.
const (
	DefaultSettleDelay = 100 * time.Millisecond
	DefaultKeyDelay    = 100 * time.Millisecond
)

// Key names understood by Keyboard implementations.
const (
	KeyPasteLetter    = "v"
	KeyMediaPlayPause = "audio_play"
)

// ErrPermissionDenied is returned when the desktop session does not allow
// synthesized input.
var ErrPermissionDenied = errors.New("input injection is not permitted in this session")

// Injection steps reported in InjectionError.
const (
	StepSettle       = "settle"
	StepOpen         = "open keyboard"
	StepModifierDown = "modifier down"
	StepKeyDelay     = "key delay"
	StepLetterTap    = "letter tap"
	StepModifierUp   = "modifier up"
	StepMediaKey     = "media key"
	StepClipboard    = "clipboard write"
)

// InjectionError reports the step at which injection stopped. Steps already
// performed are not rolled back, so a failure at StepLetterTap or
// StepModifierUp can leave the modifier logically held until the user
// presses it again.
type InjectionError struct {
	Step string
	Err  error
}

func (e *InjectionError) Error() string {
	return fmt.Sprintf("paste injection failed at %s: %v", e.Step, e.Err)
}

func (e *InjectionError) Unwrap() error { return e.Err }

// Keyboard synthesizes key events.
type Keyboard interface {
	KeyDown(key string) error
	KeyUp(key string) error
	KeyTap(key string) error
}

// Opener acquires a Keyboard for one injection.
type Opener func() (Keyboard, error)

// ClipboardWriter replaces the system clipboard text.
type ClipboardWriter func(text string) error

// Options configures an Injector. Zero values select defaults.
type Options struct {
	SettleDelay time.Duration
	KeyDelay    time.Duration
	Modifier    string
	Open        Opener
	Clipboard   ClipboardWriter
}

// Injector performs the paste key combination and related keyboard actions.
// It is safe for concurrent use but concurrent pastes interleave key events;
// callers serialize through the command boundary.
type Injector struct {
	settleDelay time.Duration
	keyDelay    time.Duration
	modifier    string
	open        Opener
	clipboard   ClipboardWriter
	sleep       func(ctx context.Context, d time.Duration) error
}

// New builds an Injector from opts.
func New(opts Options) *Injector {
	inj := &Injector{
		settleDelay: opts.SettleDelay,
		keyDelay:    opts.KeyDelay,
		modifier:    opts.Modifier,
		open:        opts.Open,
		clipboard:   opts.Clipboard,
		sleep:       sleepContext,
	}
	if inj.settleDelay < 0 {
		inj.settleDelay = 0
	}
	if inj.keyDelay < 0 {
		inj.keyDelay = 0
	}
	if inj.modifier == "" {
		inj.modifier = PasteModifier()
	}
	if inj.open == nil {
		inj.open = OpenSystemKeyboard
	}
	if inj.clipboard == nil {
		inj.clipboard = writeSystemClipboard
	}
	return inj
}

// Paste waits for the settle delay and then sends modifier+V. It stops at the
// first failing step and returns an *InjectionError naming it.
func (i *Injector) Paste(ctx context.Context) error {
	slog.Debug("[DEBUG-PASTE] paste requested",
		"modifier", i.modifier, "settleDelay", i.settleDelay, "keyDelay", i.keyDelay)

	if err := i.sleep(ctx, i.settleDelay); err != nil {
		return &InjectionError{Step: StepSettle, Err: err}
	}
	kb, err := i.open()
	if err != nil {
		return &InjectionError{Step: StepOpen, Err: err}
	}

	if err := kb.KeyDown(i.modifier); err != nil {
		return &InjectionError{Step: StepModifierDown, Err: err}
	}
	if err := i.sleep(ctx, i.keyDelay); err != nil {
		// Cancelled before the letter: release the held modifier and stop.
		if upErr := kb.KeyUp(i.modifier); upErr != nil {
			err = errors.Join(err, upErr)
		}
		return &InjectionError{Step: StepKeyDelay, Err: err}
	}
	if err := kb.KeyTap(KeyPasteLetter); err != nil {
		return &InjectionError{Step: StepLetterTap, Err: err}
	}
	// The modifier is released even if ctx was cancelled meanwhile.
	_ = i.sleep(context.WithoutCancel(ctx), i.keyDelay)
	if err := kb.KeyUp(i.modifier); err != nil {
		return &InjectionError{Step: StepModifierUp, Err: err}
	}

	slog.Debug("[DEBUG-PASTE] paste combo sent", "modifier", i.modifier)
	return nil
}

// PauseMedia taps the media play/pause key once.
func (i *Injector) PauseMedia(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &InjectionError{Step: StepMediaKey, Err: err}
	}
	kb, err := i.open()
	if err != nil {
		return &InjectionError{Step: StepOpen, Err: err}
	}
	if err := kb.KeyTap(KeyMediaPlayPause); err != nil {
		return &InjectionError{Step: StepMediaKey, Err: err}
	}
	return nil
}

// WriteClipboard places text on the system clipboard.
func (i *Injector) WriteClipboard(text string) error {
	if err := i.clipboard(text); err != nil {
		return &InjectionError{Step: StepClipboard, Err: err}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
