// Package control provides the executor pool's cooperative cancellation
// token: a single shared signal that aborts every in-flight task body at
// its next suspension point.
package control

import (
	"sync"
	"sync/atomic"

	"github.com/hugo-lorenzo-mato/merlin/internal/core"
)

// CancelToken is passed down to every running task body. Task bodies check
// it at each suspension point (provider call, file I/O, validation
// shell-out) and unwind with a partial TaskResult when it fires.
type CancelToken struct {
	cancelled atomic.Bool
	doneCh    chan struct{}
	once      sync.Once
}

// NewCancelToken returns a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{doneCh: make(chan struct{})}
}

// Cancel fires the token. Safe to call more than once or concurrently.
func (c *CancelToken) Cancel() {
	c.cancelled.Store(true)
	c.once.Do(func() { close(c.doneCh) })
}

// Cancelled reports whether Cancel has been called.
func (c *CancelToken) Cancelled() bool {
	return c.cancelled.Load()
}

// Done returns a channel that's closed once Cancel fires, for use in select
// statements alongside provider calls and I/O.
func (c *CancelToken) Done() <-chan struct{} {
	return c.doneCh
}

// CheckCancelled returns a Cancelled DomainError if the token has fired, nil
// otherwise. Task bodies call this at each suspension point instead of
// inspecting Cancelled directly, so the resulting error is already typed.
func (c *CancelToken) CheckCancelled() error {
	if c.cancelled.Load() {
		return core.NewError(core.KindCancelled, "execution cancelled")
	}
	return nil
}
