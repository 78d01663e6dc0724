// Package uiloop serializes every windowing call onto one goroutine.
//
// The input listener posts work without blocking; command handlers submit
// work and wait for its result. Only tasks running inside the loop may touch
// overlay window state.
package uiloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned by Do once the loop has stopped running.
var ErrStopped = errors.New("ui loop stopped")

// DefaultQueueSize is the task buffer used by New when size <= 0.
const DefaultQueueSize = 64

type task struct {
	name string
	fn   func() error
	done chan error // nil for posted tasks
}

// Loop is a single-consumer task queue.
type Loop struct {
	tasks    chan task
	stopped  chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	dropped  atomic.Uint64
}

// New creates a loop with the given queue size.
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		tasks:   make(chan task, queueSize),
		stopped: make(chan struct{}),
	}
}

// Run executes queued tasks until ctx is cancelled. Run must be called at
// most once; after it returns the loop rejects new work.
func (l *Loop) Run(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		slog.Warn("[uiloop] Run called twice, ignoring")
		return
	}
	defer l.stopOnce.Do(func() { close(l.stopped) })

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-l.tasks:
			err := runTask(t)
			if t.done != nil {
				t.done <- err
				continue
			}
			if err != nil {
				slog.Warn("[uiloop] posted task failed", "task", t.name, "error", err)
			}
		}
	}
}

// Post queues fn without waiting. It never blocks: when the queue is full or
// the loop has stopped the task is dropped and Post returns false.
func (l *Loop) Post(name string, fn func() error) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.tasks <- task{name: name, fn: fn}:
		return true
	default:
		l.dropped.Add(1)
		slog.Warn("[uiloop] queue full, task dropped", "task", name)
		return false
	}
}

// Do queues fn and waits for its result. Do must not be called from inside
// a task, since the loop would wait on itself.
func (l *Loop) Do(ctx context.Context, name string, fn func() error) error {
	done := make(chan error, 1)
	select {
	case l.tasks <- task{name: name, fn: fn, done: done}:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many posted tasks were discarded because the queue was full.
func (l *Loop) Dropped() uint64 {
	return l.dropped.Load()
}

func runTask(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] ui task recovered from panic",
				"task", t.name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%s: panic: %v", t.name, r)
		}
	}()
	return t.fn()
}
