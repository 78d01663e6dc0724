package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"vochat/internal/sessionlog"
)

const (
	sessionLogDir             = "logs"
	sessionLogMaxFiles        = 20
	sessionLogMaxEntries      = 500
	sessionLogEmitMinInterval = 50 * time.Millisecond
)

const eventSessionLogUpdated = "vochat:session-log-updated"

// newSessionLogHandler wraps base so warnings and errors also land in the
// app's session log.
func newSessionLogHandler(app *App, base slog.Handler) slog.Handler {
	return sessionlog.NewTeeHandler(base, slog.LevelWarn, app.writeSessionLogEntry)
}

// initSessionLog opens a JSONL file for this run next to the config file and
// prunes old ones. Failures only disable the file; the in-memory log keeps
// working.
func (a *App) initSessionLog() {
	if strings.TrimSpace(a.configPath) == "" {
		return
	}
	dir := filepath.Join(filepath.Dir(a.configPath), sessionLogDir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Warn("[session-log] failed to create log directory", "dir", dir, "error", err)
		return
	}
	name := fmt.Sprintf("session-%s-%d.jsonl", time.Now().Format("20060102-150405"), os.Getpid())
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		slog.Warn("[session-log] failed to open log file", "path", path, "error", err)
		return
	}

	a.sessionLogMu.Lock()
	a.sessionLogFile = f
	a.sessionLogPath = path
	a.sessionLogMu.Unlock()

	pruneSessionLogs(dir, name, sessionLogMaxFiles)
	slog.Info("[session-log] initialized", "path", path)
}

// pruneSessionLogs deletes the oldest session files beyond keep, never the
// current one. Names sort by start time.
func pruneSessionLogs(dir, current string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("[session-log] failed to read log directory", "dir", dir, "error", err)
		return
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && name != current && strings.HasPrefix(name, "session-") && strings.HasSuffix(name, ".jsonl") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	// The current file counts toward keep.
	for len(names) > keep-1 && len(names) > 0 {
		target := filepath.Join(dir, names[0])
		names = names[1:]
		if err := os.Remove(target); err != nil {
			slog.Warn("[session-log] failed to delete old log file", "path", target, "error", err)
		}
	}
}

// writeSessionLogEntry is the tee sink. It runs inside slog, so its own
// failures go to stderr.
func (a *App) writeSessionLogEntry(e sessionlog.Entry) {
	level := "warn"
	if e.Level >= slog.LevelError {
		level = "error"
	}
	entry := SessionLogEntry{
		Timestamp: e.Time.UTC().Format(time.RFC3339),
		Level:     level,
		Message:   e.Message,
		Source:    e.Group,
		Error:     e.Error,
	}

	var writeErr error
	a.sessionLogMu.Lock()
	a.sessionLogSeq++
	entry.Seq = a.sessionLogSeq
	a.sessionLogEntries.push(entry)
	if a.sessionLogFile != nil {
		raw, err := json.Marshal(entry)
		if err == nil {
			_, err = a.sessionLogFile.Write(append(raw, '\n'))
		}
		writeErr = err
	}
	now := time.Now()
	emit := now.Sub(a.sessionLogLastEmit) >= sessionLogEmitMinInterval
	if emit {
		a.sessionLogLastEmit = now
	}
	a.sessionLogMu.Unlock()

	if writeErr != nil {
		fmt.Fprintf(os.Stderr, "[session-log] failed to write entry: %v\n", writeErr)
	}
	// The ping carries no data; the overlay fetches GetSessionLog, so a
	// throttled ping loses nothing.
	if emit {
		a.emitRuntimeEvent(eventSessionLogUpdated, nil)
	}
}

func (a *App) closeSessionLog() {
	a.sessionLogMu.Lock()
	f := a.sessionLogFile
	a.sessionLogFile = nil
	a.sessionLogMu.Unlock()
	if f == nil {
		return
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "[session-log] failed to close log file: %v\n", err)
	}
}

// GetSessionLog returns this run's warnings and errors, oldest first.
func (a *App) GetSessionLog() []SessionLogEntry {
	a.sessionLogMu.Lock()
	defer a.sessionLogMu.Unlock()
	return a.sessionLogEntries.snapshot()
}

// GetSessionLogPath returns the JSONL file of this run, or "" when none
// could be opened.
func (a *App) GetSessionLogPath() string {
	a.sessionLogMu.Lock()
	defer a.sessionLogMu.Unlock()
	return a.sessionLogPath
}
