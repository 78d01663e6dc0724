//go:build !darwin && !linux && !windows

package input

import (
	"context"

	"vochat/internal/hotkeys"
)

// ShortcutSource is unavailable on this platform.
type ShortcutSource struct{}

// NewShortcutSource always fails on this platform.
func NewShortcutSource(hotkeys.Combo) (*ShortcutSource, error) {
	return nil, ErrUnsupported
}

// Name implements Source.
func (*ShortcutSource) Name() string { return KindShortcut }

// Run implements Source.
func (*ShortcutSource) Run(context.Context, func(Event)) error { return ErrUnsupported }
