package speech

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

type fakeClip struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeClip) Stream(samples [][2]float64) (int, bool) { return 0, false }
func (c *fakeClip) Err() error                              { return nil }
func (c *fakeClip) Len() int                                { return 0 }
func (c *fakeClip) Position() int                           { return 0 }
func (c *fakeClip) Seek(int) error                          { return nil }

func (c *fakeClip) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClip) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newIdleGoogle() *GoogleClassicEngine {
	log, _ := test.NewNullLogger()
	return &GoogleClassicEngine{log: log}
}

func TestGoogleCancel_ClosesAttachedClips(t *testing.T) {
	g := newIdleGoogle()
	gu := &googleUtterance{id: 1, cancel: func() {}}
	g.active = gu

	first := &fakeClip{}
	if !g.attach(gu, first) {
		t.Fatal("attach() = false for the active utterance")
	}
	if err := g.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !first.isClosed() {
		t.Error("clip attached before Cancel was not closed")
	}

	late := &fakeClip{}
	if g.attach(gu, late) {
		t.Error("attach() = true after Cancel")
	}
	if !late.isClosed() {
		t.Error("clip attached after Cancel was not closed")
	}
	if g.IsSpeaking() {
		t.Error("IsSpeaking() = true after Cancel")
	}
}

func TestGoogleCancel_ConcurrentWithAttach(t *testing.T) {
	g := newIdleGoogle()
	gu := &googleUtterance{id: 2, cancel: func() {}}
	g.active = gu

	clips := make([]*fakeClip, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range clips {
			clips[i] = &fakeClip{}
			g.attach(gu, clips[i])
		}
	}()
	_ = g.Cancel()
	wg.Wait()

	for i, c := range clips {
		if !c.isClosed() {
			t.Errorf("clip %d leaked", i)
		}
	}
}
