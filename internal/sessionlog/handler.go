// Package sessionlog tees warning and error records from slog to an
// in-process sink, so the app can show what went wrong during this run.
package sessionlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"
)

// Entry is the part of a log record handed to the sink.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	// Group is the dot-separated slog group path, empty at the top level.
	Group string
	// Error is the value of an "error" attribute, when the record has one.
	Error string
}

// Sink receives teed entries. It runs on the logging goroutine and must not
// log through slog at warn level or above, or it re-enters itself.
type Sink func(Entry)

// TeeHandler forwards every record to base and hands records at or above
// minLevel to sink.
type TeeHandler struct {
	base     slog.Handler
	sink     Sink
	minLevel slog.Level
	group    string
	// errText is an "error" attribute bound through WithAttrs.
	errText string
}

// NewTeeHandler wraps base. A nil sink makes the handler a plain pass-through.
func NewTeeHandler(base slog.Handler, minLevel slog.Level, sink Sink) *TeeHandler {
	return &TeeHandler{base: base, sink: sink, minLevel: minLevel}
}

// Enabled defers to base; minLevel only gates the sink.
func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle writes to base first. The sink still sees the record when base
// fails, and the base error is returned so slog reports it.
func (h *TeeHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)
	if h.sink == nil || record.Level < h.minLevel {
		return err
	}

	entry := Entry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Group:   h.group,
		Error:   h.errText,
	}
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "error" {
			entry.Error = attr.Value.String()
			return false
		}
		return true
	})
	h.deliver(entry)
	return err
}

func (h *TeeHandler) deliver(entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			// stderr, not slog: logging here would come straight back.
			fmt.Fprintf(os.Stderr, "[session-log] sink panicked: %v\n%s\n", r, debug.Stack())
		}
	}()
	h.sink(entry)
}

// WithAttrs binds attrs on base and keeps the sink settings.
func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.base = h.base.WithAttrs(attrs)
	for _, attr := range attrs {
		if attr.Key == "error" && h.group == "" {
			next.errText = attr.Value.String()
		}
	}
	return &next
}

// WithGroup opens a group on base and appends name to the group path.
func (h *TeeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.base = h.base.WithGroup(name)
	next.group = name
	if h.group != "" {
		next.group = h.group + "." + name
	}
	return &next
}
