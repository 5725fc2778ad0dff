// Package eventloop serialises narration work onto a single owner.
//
// Every piece of mutable narration state (cursor, playback state, highlight)
// is touched only from callbacks run by a Loop, so none of it needs locking.
// Blocking calls to collaborators run elsewhere via Go and report back by
// posting a continuation; timers do the same via After.
package eventloop

import (
	"context"
	"sync"
	"time"
)

type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	// counts work started by Go and After that has not posted back yet
	inflight sync.WaitGroup
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn to run on the loop. Safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on its own goroutine and posts then once work returns.
func (l *Loop) Go(work func(), then func()) {
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		work()
		l.Post(then)
	}()
}

// Timer is a pending After callback.
type Timer struct {
	t    *time.Timer
	once sync.Once
	l    *Loop
}

// Stop cancels the timer. It reports whether the callback was prevented.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	stopped := false
	t.once.Do(func() {
		t.t.Stop()
		stopped = true
		t.l.inflight.Done()
	})
	return stopped
}

// After posts fn to the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	tm := &Timer{l: l}
	l.inflight.Add(1)
	tm.t = time.AfterFunc(d, func() {
		tm.once.Do(func() {
			l.Post(fn)
			l.inflight.Done()
		})
	})
	return tm
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queue
	l.queue = nil
	return q
}

// RunPending runs queued callbacks, including ones they queue, until the
// queue is empty. It returns the number of callbacks run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		q := l.take()
		if len(q) == 0 {
			return n
		}
		for _, fn := range q {
			fn()
			n++
		}
	}
}

// Run processes callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Settle runs callbacks until no work is queued or in flight. It must be
// called from the goroutine that owns the loop and never alongside Run.
func (l *Loop) Settle() {
	for {
		l.RunPending()
		l.inflight.Wait()

		l.mu.Lock()
		empty := len(l.queue) == 0
		l.mu.Unlock()
		if empty {
			return
		}
	}
}
