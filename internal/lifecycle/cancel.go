package lifecycle

import (
	"sync"
	"sync/atomic"
)

// CancelToken is a cooperative stop signal for one workflow execution.
//
// The poll loop checks it at the top of every iteration and while sleeping
// between polls, so a cancel takes effect without waiting out the interval.
// A nil *CancelToken is valid and never cancels.
type CancelToken struct {
	cancelled atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// NewCancelToken returns a token that has not been cancelled.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel sets the token. Calling it more than once is a no-op.
func (t *CancelToken) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.done)
	})
}

// Cancelled reports whether [CancelToken.Cancel] has been called.
func (t *CancelToken) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}

// Done returns a channel closed on cancel. A nil token returns a nil
// channel, which blocks forever in a select.
func (t *CancelToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}
