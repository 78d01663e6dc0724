//go:build windows

package singleinstance

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"vochat/internal/userutil"
)

// Lock is an owned named mutex. Windows abandons the mutex if vochat dies
// without calling Release, so a crashed instance never blocks the next one.
type Lock struct {
	mutex windows.Handle
}

// TryLock creates and owns the named mutex, or reports ErrAlreadyRunning when
// another vochat process created it first.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("mutex name is required")
	}
	mutex, err := createOwnedMutex(name)
	switch {
	case errors.Is(err, windows.ERROR_ALREADY_EXISTS):
		return nil, ErrAlreadyRunning
	case err != nil:
		return nil, err
	}
	return &Lock{mutex: mutex}, nil
}

// createOwnedMutex never leaks the handle it may get back alongside an error.
func createOwnedMutex(name string) (windows.Handle, error) {
	ptr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, fmt.Errorf("encode mutex name %q: %w", name, err)
	}
	mutex, err := windows.CreateMutex(nil, true, ptr)
	if err == nil {
		return mutex, nil
	}
	if mutex != 0 {
		_ = windows.CloseHandle(mutex)
	}
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return 0, err
	}
	return 0, fmt.Errorf("create mutex %q: %w", name, err)
}

// Release gives up the mutex. Calling it twice, or on a nil *Lock, is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.mutex == 0 {
		return nil
	}
	mutex := l.mutex
	l.mutex = 0
	return windows.CloseHandle(mutex)
}

// DefaultName is the mutex shared by every vochat process of the current
// user. The suffix matches the control pipe name.
func DefaultName() string {
	return `Global\vochat-` + userutil.CurrentUsername()
}
