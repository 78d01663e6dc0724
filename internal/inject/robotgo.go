package inject

import (
	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

var (
	robotgoKeyToggleFn = robotgo.KeyToggle
	robotgoKeyTapFn    = robotgo.KeyTap
	clipboardWriteFn   = clipboard.WriteAll
)

// robotKeyboard injects key events through the OS input APIs.
type robotKeyboard struct{}

func (robotKeyboard) KeyDown(key string) error { return robotgoKeyToggleFn(key, "down") }

func (robotKeyboard) KeyUp(key string) error { return robotgoKeyToggleFn(key, "up") }

func (robotKeyboard) KeyTap(key string) error { return robotgoKeyTapFn(key) }

// OpenSystemKeyboard returns the OS keyboard after checking that the current
// desktop session accepts synthesized input.
func OpenSystemKeyboard() (Keyboard, error) {
	if err := checkSession(); err != nil {
		return nil, err
	}
	return robotKeyboard{}, nil
}

func writeSystemClipboard(text string) error {
	return clipboardWriteFn(text)
}
