//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"vochat/internal/userutil"
)

// EndpointEnvVar overrides the control endpoint.
const EndpointEnvVar = "VOCHAT_CONTROL_SOCKET"

// DefaultEndpoint returns the per-user Unix socket path, placed in
// XDG_RUNTIME_DIR when set and the temp directory otherwise. A
// VOCHAT_CONTROL_SOCKET value is used when it is an absolute .sock path.
func DefaultEndpoint() string {
	if value := strings.TrimSpace(os.Getenv(EndpointEnvVar)); value != "" {
		if filepath.IsAbs(value) && strings.HasSuffix(value, ".sock") {
			return value
		}
		slog.Warn("[ipc] control socket override rejected: must be an absolute .sock path", "value", value)
	}
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vochat-"+userutil.CurrentUsername()+".sock")
}

// listenEndpoint listens on a socket only the current user can open. A stale
// socket file left by a crashed instance is removed; a live one is an error.
func listenEndpoint(path string) (net.Listener, error) {
	if _, err := os.Lstat(path); err == nil {
		if conn, dialErr := net.DialTimeout("unix", path, 500*time.Millisecond); dialErr == nil {
			_ = conn.Close()
			return nil, fmt.Errorf("socket %s is in use by another instance", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}

func dialEndpoint(path string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", path, timeout)
}

func isPlatformConnectionError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrNotExist)
}
