// Package workerutil runs long-lived background goroutines (input listener,
// UI loop, bridge server) with panic recovery.
package workerutil

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	// 10 attempts at 100ms doubling to 5s spans roughly 30s before giving up.
	defaultMaxRetries = 10
)

// RecoveryOptions configures RunWithPanicRecovery. Zero numeric fields select
// the defaults; nil callbacks are skipped. MaxRetries=1 runs the worker once.
type RecoveryOptions struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int

	// OnPanic runs after each recovered panic, before the backoff wait.
	// attempt is 1-based.
	OnPanic func(worker string, attempt int)

	// OnFatal runs once the worker panicked MaxRetries times.
	OnFatal func(worker string, maxRetries int)

	// OnError runs when the worker returns a non-nil error while its context
	// is still live. Errors are not retried: they report conditions such as a
	// keyboard hook that could not be installed.
	OnError func(worker string, err error)

	// IsShutdown stops restarts while the application tears down.
	IsShutdown func() bool
}

func (opts RecoveryOptions) withDefaults() RecoveryOptions {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		slog.Warn("[DEBUG-PANIC] MaxBackoff < InitialBackoff, using InitialBackoff as MaxBackoff",
			"initialBackoff", opts.InitialBackoff, "maxBackoff", opts.MaxBackoff)
		opts.MaxBackoff = opts.InitialBackoff
	}
	return opts
}

// RunWithPanicRecovery starts fn on a goroutine tracked by wg. A panic is
// logged with its stack and fn is restarted with exponential backoff until
// it returns, ctx is cancelled, IsShutdown reports true or MaxRetries panics
// have happened.
func RunWithPanicRecovery(
	ctx context.Context,
	name string,
	wg *sync.WaitGroup,
	fn func(ctx context.Context) error,
	opts RecoveryOptions,
) {
	opts = opts.withDefaults()
	wg.Go(func() {
		superviseWorker(ctx, name, fn, opts)
	})
}

func superviseWorker(ctx context.Context, name string, fn func(ctx context.Context) error, opts RecoveryOptions) {
	delay := opts.InitialBackoff

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		panicked, err := runGuarded(ctx, name, fn)
		if !panicked {
			if err != nil && ctx.Err() == nil {
				slog.Warn("[worker] worker stopped with error", "worker", name, "error", err)
				if opts.OnError != nil {
					opts.OnError(name, err)
				}
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		// The runtime context may already be gone during teardown, so
		// OnPanic is skipped as well.
		if opts.IsShutdown != nil && opts.IsShutdown() {
			slog.Info("[DEBUG-PANIC] shutdown in progress, not restarting worker", "worker", name)
			return
		}
		if opts.OnPanic != nil {
			opts.OnPanic(name, attempt)
		}
		if attempt == opts.MaxRetries {
			break
		}

		slog.Warn("[DEBUG-PANIC] restarting worker after panic",
			"worker", name, "attempt", attempt, "restartDelay", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = nextBackoff(delay, opts.MaxBackoff)
	}

	slog.Error("[DEBUG-PANIC] worker exceeded max retries, giving up",
		"worker", name, "maxRetries", opts.MaxRetries)
	if opts.OnFatal != nil {
		opts.OnFatal(name, opts.MaxRetries)
	}
}

func runGuarded(ctx context.Context, name string, fn func(ctx context.Context) error) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] background goroutine recovered from panic",
				"worker", name, "panic", r, "stack", string(debug.Stack()))
			panicked = true
		}
	}()
	return false, fn(ctx)
}

// nextBackoff doubles current, capped at maxBackoff and guarded against
// overflow.
func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	if current <= 0 {
		return defaultInitialBackoff
	}
	next := current * 2
	if current >= maxBackoff || next > maxBackoff || next < current {
		return maxBackoff
	}
	return next
}
