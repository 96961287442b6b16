package jobs

import "sync"

// CancelToken coordinates cooperative cancellation for one claimed job. The
// processing goroutine checks it at batch and item boundaries; in-flight
// items are allowed to finish but their outcomes are discarded once the
// token is set, so a cancelled job's progress snapshot stays frozen.
//
// The token's lock also serializes every store write for the job, which is
// what makes cancel-versus-outcome races safe: whichever side takes the lock
// first wins and the other side observes the flag.
type CancelToken struct {
	mu        sync.Mutex
	cancelled bool
}

// Cancelled reports whether the token has been set.
func (t *CancelToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// trip sets the token while running fn under the lock. It returns false
// without running fn when the token was already set.
func (t *CancelToken) trip(fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cancelled = true
	if fn != nil {
		fn()
	}
	return true
}

// unlessCancelled runs fn under the lock only when the token has not been
// set, and reports whether fn ran.
func (t *CancelToken) unlessCancelled(fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return false
	}
	if fn != nil {
		fn()
	}
	return true
}
