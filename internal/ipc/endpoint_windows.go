//go:build windows

package ipc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/user"
	"regexp"
	"strings"
	"time"

	"github.com/Microsoft/go-winio"

	"vochat/internal/userutil"
)

var pipeNamePattern = regexp.MustCompile(`(?i)^\\\\\.\\pipe\\vochat-[a-z0-9._-]{1,128}$`)

const defaultPipePrefix = `\\.\pipe\vochat-`

// EndpointEnvVar overrides the control endpoint.
const EndpointEnvVar = "VOCHAT_CONTROL_PIPE"

// DefaultEndpoint returns the per-user named pipe. A VOCHAT_CONTROL_PIPE
// value is used only when it matches the vochat pipe pattern.
func DefaultEndpoint() string {
	if value := strings.TrimSpace(os.Getenv(EndpointEnvVar)); value != "" {
		if pipeNamePattern.MatchString(value) {
			return value
		}
		slog.Warn("[ipc] control pipe override rejected: value does not match allowed pattern", "value", value)
	}
	return defaultPipePrefix + userutil.CurrentUsername()
}

// listenEndpoint creates a named pipe restricted to the current user. The
// DACL grants full access only to SYSTEM and the current user's SID.
func listenEndpoint(pipeName string) (net.Listener, error) {
	securityDescriptor, err := pipeSecurityDescriptor()
	if err != nil {
		return nil, err
	}
	return winio.ListenPipe(pipeName, &winio.PipeConfig{
		SecurityDescriptor: securityDescriptor,
		MessageMode:        false,
		InputBufferSize:    int32(maxRequestBytes),
		OutputBufferSize:   int32(maxResponseBytes),
	})
}

func dialEndpoint(pipeName string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(pipeName, &timeout)
}

func isPlatformConnectionError(err error) bool {
	return errors.Is(err, winio.ErrTimeout) || errors.Is(err, os.ErrNotExist)
}

var validSIDPattern = regexp.MustCompile(`^S-1(-\d+)+$`)

func pipeSecurityDescriptor() (string, error) {
	current, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("resolve current user: %w", err)
	}
	sid := strings.TrimSpace(current.Uid)
	if sid == "" {
		return "", errors.New("current user SID is unavailable")
	}
	if !validSIDPattern.MatchString(sid) {
		return "", fmt.Errorf("current user SID has unexpected format: %s", sid)
	}
	// D:P protected DACL, full access for SYSTEM and the current user.
	return fmt.Sprintf("D:P(A;;GA;;;SY)(A;;GA;;;%s)", sid), nil
}
