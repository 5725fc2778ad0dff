// Package retry implements a bounded retry with a fixed backoff on top of an
// event loop, for resources that may not be ready yet (a freshly turned page,
// a root that has not been scanned).
package retry

import (
	"time"

	"readaloud/internal/narration/eventloop"
)

type Policy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Attempt runs op on the loop until it succeeds or MaxRetries attempts have
// failed, waiting Backoff between attempts. done receives the outcome. The
// first attempt runs immediately, so Attempt must be called from the loop.
// The returned function abandons the remaining attempts; done is then never
// called.
func Attempt(l *eventloop.Loop, p Policy, op func(attempt int) bool, done func(ok bool)) (cancel func()) {
	maxAttempts := max(p.MaxRetries, 1)

	var (
		timer     *eventloop.Timer
		cancelled bool
		try       func(n int)
	)

	try = func(n int) {
		if cancelled {
			return
		}
		if op(n) {
			done(true)
			return
		}
		if n+1 >= maxAttempts {
			done(false)
			return
		}
		timer = l.After(p.Backoff, func() { try(n + 1) })
	}
	try(0)

	return func() {
		cancelled = true
		timer.Stop()
	}
}
