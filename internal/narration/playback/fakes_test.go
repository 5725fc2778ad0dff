package playback

import (
	"context"
	"sync"

	"readaloud/internal/domain/book"
	"readaloud/internal/domain/surface"
	"readaloud/internal/render"
	"readaloud/internal/speech"
)

// page builds a root whose paragraphs all sit inside the viewport.
func page(name string, texts ...string) *surface.Root {
	body := &surface.Node{Tag: "body"}
	for i, t := range texts {
		body.Append(&surface.Node{
			Tag:    "p",
			Text:   t,
			Bounds: surface.Rect{Top: float64(i * 2), Bottom: float64(i*2 + 1), Right: 40},
		})
	}
	return &surface.Root{Name: name, Body: body, Viewport: surface.Rect{Bottom: 20, Right: 80}}
}

type fakeRenderer struct {
	mu       sync.Mutex
	pages    []*surface.Root
	page     int
	sections map[string]*surface.Root
	spine    []string
	section  int
	nexts    int
	displays []string
	ready    []func()
	reveals  []surface.Rect

	// gate, when set, holds Next until it receives or is closed
	gate chan struct{}
}

func newFakeRenderer(pages ...*surface.Root) *fakeRenderer {
	return &fakeRenderer{pages: pages, sections: map[string]*surface.Root{}}
}

func (f *fakeRenderer) Root() *surface.Root {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pages) == 0 {
		return nil
	}
	return f.pages[f.page]
}

func (f *fakeRenderer) Next(context.Context) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nexts++
	if f.page+1 >= len(f.pages) {
		return render.ErrNoNextPage
	}
	f.page++
	return nil
}

func (f *fakeRenderer) Prev(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.page == 0 {
		return render.ErrNoPrevPage
	}
	f.page--
	return nil
}

func (f *fakeRenderer) Display(_ context.Context, href string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.displays = append(f.displays, href)
	root, ok := f.sections[href]
	if !ok {
		return render.ErrUnknownLocation
	}
	f.pages = []*surface.Root{root}
	f.page = 0
	for i, s := range f.spine {
		if s == href {
			f.section = i
		}
	}
	return nil
}

func (f *fakeRenderer) CurrentLocation() render.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc := render.Location{Section: f.section, Page: f.page, Pages: len(f.pages)}
	if f.section < len(f.spine) {
		loc.Href = f.spine[f.section]
	}
	return loc
}

func (f *fakeRenderer) Reveal(_ context.Context, bounds surface.Rect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reveals = append(f.reveals, bounds)
	return nil
}

func (f *fakeRenderer) TOC() []book.TOCEntry { return nil }

func (f *fakeRenderer) Spine() []string { return f.spine }

func (f *fakeRenderer) OnContentReady(fn func()) {
	f.mu.Lock()
	f.ready = append(f.ready, fn)
	f.mu.Unlock()
}

// scriptedEngine voices nothing on its own; tests finish or fail the active
// utterance explicitly.
type scriptedEngine struct {
	mu       sync.Mutex
	listener speech.Listener
	active   *speech.Utterance
	paused   bool
	busy     bool
	spoken   []speech.Utterance
	cancels  int
	pauseErr error
}

func (e *scriptedEngine) Speak(u speech.Utterance) error {
	e.mu.Lock()
	if e.active != nil || e.busy {
		e.mu.Unlock()
		return speech.ErrBusy
	}
	e.active = &u
	e.spoken = append(e.spoken, u)
	l := e.listener
	e.mu.Unlock()

	l(speech.Event{Kind: speech.EventStart, Utterance: u.ID})
	return nil
}

// finish ends the active utterance normally.
func (e *scriptedEngine) finish() {
	e.mu.Lock()
	u := e.active
	e.active = nil
	e.paused = false
	l := e.listener
	e.mu.Unlock()
	if u != nil {
		l(speech.Event{Kind: speech.EventEnd, Utterance: u.ID})
	}
}

// fail reports a synthesis error for the active utterance.
func (e *scriptedEngine) fail(err error) {
	e.mu.Lock()
	u := e.active
	e.active = nil
	l := e.listener
	e.mu.Unlock()
	if u != nil {
		l(speech.Event{Kind: speech.EventError, Utterance: u.ID, Code: speech.CodeSynthesisFailed, Err: err})
	}
}

// emit sends an arbitrary event, e.g. a late one for a cancelled utterance.
func (e *scriptedEngine) emit(ev speech.Event) {
	e.mu.Lock()
	l := e.listener
	e.mu.Unlock()
	l(ev)
}

func (e *scriptedEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pauseErr != nil {
		return e.pauseErr
	}
	if e.active != nil {
		e.paused = true
	}
	return nil
}

func (e *scriptedEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	return nil
}

func (e *scriptedEngine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = nil
	e.paused = false
	e.cancels++
	return nil
}

func (e *scriptedEngine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil || e.busy
}

func (e *scriptedEngine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *scriptedEngine) SetListener(l speech.Listener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

func (e *scriptedEngine) Voices() ([]speech.Voice, error) { return nil, nil }

func (e *scriptedEngine) Close() error { return nil }

func (e *scriptedEngine) texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.spoken))
	for _, u := range e.spoken {
		out = append(out, u.Text)
	}
	return out
}
