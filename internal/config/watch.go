package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce coalesces the burst of events editors produce when
// saving (truncate, write, rename).
const DefaultReloadDebounce = 250 * time.Millisecond

var newFSWatcherFn = fsnotify.NewWatcher

// Watch reloads path whenever it changes and passes the result to onChange.
// It watches the parent directory so atomic rename-based saves are seen.
// Parse failures are logged and skipped; onChange only sees configs that
// loaded cleanly. A deleted or renamed-away file keeps the current config.
// Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func(Config)) error {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch config: resolve path: %w", err)
	}

	watcher, err := newFSWatcherFn()
	if err != nil {
		return fmt.Errorf("watch config: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch config: watch directory: %w", err)
	}
	slog.Debug("[DEBUG-CONFIG] watching config file", "path", absPath)

	// The timer channel is nil until the first relevant event.
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isConfigEvent(event, absPath) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			if _, err := os.Stat(absPath); errors.Is(err, fs.ErrNotExist) {
				slog.Debug("[DEBUG-CONFIG] config file gone, keeping current config", "path", absPath)
				continue
			}
			cfg, err := Load(absPath)
			if err != nil {
				slog.Warn("[WARN-CONFIG] reload failed, keeping current config", "path", absPath, "error", err)
				continue
			}
			slog.Info("[config] reloaded", "path", absPath)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("[WARN-CONFIG] watcher error", "error", err)
		}
	}
}

func isConfigEvent(event fsnotify.Event, absPath string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return filepath.Clean(name) == filepath.Clean(absPath)
}
