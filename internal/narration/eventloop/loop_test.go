package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestPostRunsInOrder(t *testing.T) {
	l := New()
	var got []int
	l.Post(func() {
		got = append(got, 1)
		l.Post(func() { got = append(got, 3) })
	})
	l.Post(func() { got = append(got, 2) })

	if n := l.RunPending(); n != 3 {
		t.Errorf("RunPending() = %d, want 3", n)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestGoPostsContinuation(t *testing.T) {
	l := New()
	var worker atomic.Bool
	done := false

	l.Go(func() { worker.Store(true) }, func() {
		if !worker.Load() {
			t.Error("continuation ran before work")
		}
		done = true
	})
	l.Settle()

	if !done {
		t.Error("continuation did not run")
	}
}

func TestAfterAndStop(t *testing.T) {
	l := New()
	fired := 0
	l.After(time.Millisecond, func() { fired++ })
	stopped := l.After(time.Hour, func() { fired += 10 })
	if !stopped.Stop() {
		t.Error("Stop() on a pending timer = false")
	}
	if stopped.Stop() {
		t.Error("second Stop() = true")
	}

	l.Settle()
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	l.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("posted callback never ran")
	}

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}
