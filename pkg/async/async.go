// Package async runs a function in the background and hands back a future
// the caller can await. The commerce stores use it to run reconciliation off
// the auth-transition callback without blocking the notifier, and tests use
// it to wait for that work deterministically.
package async

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned when AwaitWithTimeout exceeds its duration.
	ErrTimeout = errors.New("async: await timed out")
)

// Future is the handle to a background computation that returns an error.
type Future struct {
	err  error
	done chan struct{}
}

// Run executes fn in a new goroutine and returns a Future for its result.
// If ctx is already cancelled the function is never invoked and the future
// resolves with the context error.
func Run(ctx context.Context, fn func(context.Context) error) *Future {
	f := &Future{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		select {
		case <-ctx.Done():
			f.err = ctx.Err()
			return
		default:
		}

		f.err = fn(ctx)
	}()

	return f
}

// Await blocks until the computation finishes and returns its error.
func (f *Future) Await() error {
	<-f.done
	return f.err
}

// AwaitWithTimeout waits for completion up to the given duration.
func (f *Future) AwaitWithTimeout(d time.Duration) error {
	select {
	case <-f.done:
		return f.err
	case <-time.After(d):
		return ErrTimeout
	}
}

// Done reports whether the computation has finished without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
