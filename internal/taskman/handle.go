package taskman

import (
	"context"
	"errors"
)

// ErrCanceled settles the Handle of a task that CancelPending removed from
// its queue before it ever started. Callers branch on it with errors.Is to
// tell "canceled" apart from "failed".
var ErrCanceled = errors.New("task canceled before start")

// Handle is the caller's view of a submitted task. It settles exactly once:
// with the work function's result, with its error, or with ErrCanceled.
// The Handle is the only synchronization primitive the manager offers —
// callers must never assume a task has started just because Submit returned.
type Handle struct {
	done   chan struct{}
	result any
	err    error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Done is closed once the task has settled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task settles or ctx expires.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle is called exactly once, always under the manager lock; the channel
// close publishes result and err to waiters.
func (h *Handle) settle(result any, err error) {
	h.result = result
	h.err = err
	close(h.done)
}
