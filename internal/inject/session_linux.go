//go:build linux

package inject

import (
	"fmt"
	"os"
	"strings"
)

var lookupEnvFn = os.LookupEnv

// checkSession rejects sessions without an X server. Synthesized input from
// XTest does not reach native Wayland clients.
func checkSession() error {
	display, _ := lookupEnvFn("DISPLAY")
	if strings.TrimSpace(display) == "" {
		sessionType, _ := lookupEnvFn("XDG_SESSION_TYPE")
		if strings.EqualFold(strings.TrimSpace(sessionType), "wayland") {
			return fmt.Errorf("%w: wayland session without XWayland display", ErrPermissionDenied)
		}
		return fmt.Errorf("%w: DISPLAY is not set", ErrPermissionDenied)
	}
	return nil
}
