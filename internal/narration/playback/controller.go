// Package playback owns the narration state machine: it drives the speech
// engine one utterance at a time, keeps the highlight and cursor in step with
// what is audible, and turns pages when the current content is exhausted.
//
// A Controller belongs to an event loop. Its methods must be called from the
// loop, typically via loop.Post.
package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"readaloud/internal/narration/cursor"
	"readaloud/internal/narration/eventloop"
	"readaloud/internal/narration/highlight"
	"readaloud/internal/narration/locator"
	"readaloud/internal/narration/retry"
	"readaloud/internal/render"
	"readaloud/internal/speech"
)

type State int

const (
	Idle State = iota
	Speaking
	Paused
	// Turning waits for the advancer while narration is active.
	Turning
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	case Paused:
		return "paused"
	case Turning:
		return "turning"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultSettleDelay      = 500 * time.Millisecond
	DefaultRetryBackoff     = 300 * time.Millisecond
	DefaultMaxRetries       = 5
	DefaultStartMinLength   = 6
	DefaultRelaxedMinLength = 3
)

type Config struct {
	SettleDelay      time.Duration
	Retry            retry.Policy
	StartMinLength   int
	RelaxedMinLength int
	// Voice is applied to every utterance; the locale comes from the unit.
	Voice speech.Options
}

// DefaultConfig returns the timings the renderer usually needs.
func DefaultConfig() Config {
	return Config{
		SettleDelay:      DefaultSettleDelay,
		Retry:            retry.Policy{MaxRetries: DefaultMaxRetries, Backoff: DefaultRetryBackoff},
		StartMinLength:   DefaultStartMinLength,
		RelaxedMinLength: DefaultRelaxedMinLength,
		Voice:            speech.Options{Pitch: 1, Rate: 1, Volume: 1},
	}
}

func (c Config) withDefaults() Config {
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry.MaxRetries = DefaultMaxRetries
	}
	if c.Retry.Backoff < 0 {
		c.Retry.Backoff = 0
	}
	if c.StartMinLength <= 0 {
		c.StartMinLength = DefaultStartMinLength
	}
	if c.RelaxedMinLength <= 0 {
		c.RelaxedMinLength = DefaultRelaxedMinLength
	}
	return c
}

// Snapshot is what a view needs to paint the session.
type Snapshot struct {
	State       State
	UnitID      string
	Nested      bool
	Highlighted string
	Location    render.Location
}

type Controller struct {
	ctx       context.Context
	loop      *eventloop.Loop
	renderer  render.Renderer
	engine    speech.Engine
	locator   *locator.Locator
	oracle    locator.Visibility
	highlight *highlight.Manager
	advancer  *Advancer
	cfg       Config
	log       logrus.FieldLogger

	state  State
	cursor cursor.Cursor
	// speaking is the unit voiced by the utterance in flight.
	speaking locator.Unit
	// utterance is the id of the utterance in flight, 0 when none.
	utterance     uint64
	lastUtterance uint64
	// turn identifies the advance whose result is still wanted.
	turn       uint64
	cancelTurn func()
	// restart is set when pausing had to cancel the utterance.
	restart bool

	onChange func(Snapshot)
	onError  func(error)
}

func New(ctx context.Context, loop *eventloop.Loop, r render.Renderer, engine speech.Engine,
	loc *locator.Locator, oracle locator.Visibility, cfg Config, log logrus.FieldLogger) *Controller {

	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg = cfg.withDefaults()

	c := &Controller{
		ctx:       ctx,
		loop:      loop,
		renderer:  r,
		engine:    engine,
		locator:   loc,
		oracle:    oracle,
		highlight: highlight.New(log),
		advancer:  NewAdvancer(ctx, loop, r, loc, oracle, cfg, log),
		cfg:       cfg,
		log:       log,
	}

	engine.SetListener(func(ev speech.Event) {
		loop.Post(func() { c.handleEvent(ev) })
	})
	r.OnContentReady(func() {
		loop.Post(c.notify)
	})
	return c
}

// OnChange registers fn to receive a snapshot after every state change.
func (c *Controller) OnChange(fn func(Snapshot)) { c.onChange = fn }

// OnError registers fn to receive errors the user has to see.
func (c *Controller) OnError(fn func(error)) { c.onError = fn }

func (c *Controller) State() State { return c.state }

func (c *Controller) Snapshot() Snapshot {
	id, nested, _ := c.cursor.Current()
	s := Snapshot{
		State:    c.state,
		UnitID:   id,
		Nested:   nested,
		Location: c.renderer.CurrentLocation(),
	}
	if n := c.highlight.Current(); n != nil {
		s.Highlighted = n.ID
	}
	return s
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}

func (c *Controller) setState(s State) {
	if c.state != s {
		c.log.WithFields(logrus.Fields{"from": c.state, "to": s}).Debug("Playback state")
	}
	c.state = s
	c.notify()
}

// TogglePlayPause pauses while speaking, resumes while paused and starts
// from the cursor, or the first unit of the page, while idle. A toggle while
// a page turn is in flight stops narration; the turn then only moves the
// cursor.
func (c *Controller) TogglePlayPause() {
	switch c.state {
	case Speaking:
		c.pause()
	case Paused:
		c.resume()
	case Turning:
		c.setState(Idle)
	default:
		c.start()
	}
}

func (c *Controller) pause() {
	if err := c.engine.Pause(); err != nil {
		if !errors.Is(err, speech.ErrPauseUnsupported) {
			c.log.WithError(err).Warn("Failed to pause speech")
			return
		}
		// the unit is spoken again from its start on resume
		c.cancelUtterance()
		c.restart = true
	}
	c.highlight.Clear()
	c.setState(Paused)
}

func (c *Controller) resume() {
	if c.restart {
		c.restart = false
		c.state = Idle
		c.start()
		return
	}
	if err := c.engine.Resume(); err != nil {
		c.log.WithError(err).Warn("Failed to resume speech")
		return
	}
	c.state = Speaking
	if id, nested, ok := c.cursor.Current(); ok {
		if u, err := c.locator.Resolve(c.renderer.Root(), id, nested); err == nil {
			c.speaking = u
			c.highlight.Apply(u.Node)
		}
	}
	c.notify()
}

func (c *Controller) start() {
	c.abandonTurn()

	u, ok := c.resolveStart()
	if !ok {
		c.log.Info("Nothing to read on this page, turning")
		c.turnPage()
		return
	}
	c.speak(u)
}

// resolveStart finds the unit to start from: the cursor's unit, the unit
// after it when it no longer resolves, or the start of the page.
func (c *Controller) resolveStart() (locator.Unit, bool) {
	root := c.renderer.Root()
	if root == nil {
		return locator.Unit{}, false
	}

	id, nested, ok := c.cursor.Current()
	if !ok {
		return c.advancer.PickStart()
	}
	u, err := c.locator.Resolve(root, id, nested)
	if err == nil {
		return u, true
	}
	c.log.WithError(err).Warn("Cursor did not resolve, moving to the next unit")
	return c.locator.FindNext(root, id, nested, c.oracle)
}

// Stop cancels speech and any page turn, clears the highlight and cursor.
// It is safe in every state.
func (c *Controller) Stop() {
	c.abandonTurn()
	c.cancelUtterance()
	c.restart = false
	c.highlight.Clear()
	c.cursor.Clear()
	c.setState(Idle)
}

// NextPage turns the page. Narration continues on the new page if it was
// active. On the last page of the book nothing changes.
func (c *Controller) NextPage() {
	if c.advancer.AtBoundary(1) {
		c.log.Info("Already on the last page")
		return
	}
	c.navigate(c.advancer.Advance, false)
}

// PrevPage turns back a page. Narration continues on the new page if it was
// active. On the first page of the book nothing changes.
func (c *Controller) PrevPage() {
	if c.advancer.AtBoundary(-1) {
		c.log.Info("Already on the first page")
		return
	}
	c.navigate(c.advancer.Retreat, false)
}

// JumpTo displays a table of contents location. The cursor is reseeded from
// the new content and narration resumes only if it was active.
func (c *Controller) JumpTo(href string) {
	c.navigate(func(done Done) func() { return c.advancer.Jump(href, done) }, true)
}

func (c *Controller) navigate(move func(Done) func(), clearCursor bool) {
	active := c.state == Speaking || c.state == Turning
	c.abandonTurn()
	c.cancelUtterance()
	c.restart = false
	c.highlight.Clear()
	if clearCursor {
		c.cursor.Clear()
	}

	token := c.turn
	next := Idle
	if active {
		next = Turning
	}
	c.setState(next)

	c.cancelTurn = move(func(u locator.Unit, err error) {
		if token != c.turn {
			c.log.Debug("Ignoring result of an abandoned navigation")
			return
		}
		c.cancelTurn = nil
		if err != nil {
			c.log.WithError(err).Info("Navigation did not move")
			if c.state == Turning {
				c.setState(Idle)
			}
			if !isEnd(err) {
				c.report(err)
			}
			return
		}
		c.reseed(u)
	})
}

// PlayFrom cancels current speech and narrates from the unit with the given
// id, searching the top-level root before nested roots.
func (c *Controller) PlayFrom(id string) error {
	root := c.renderer.Root()
	if root == nil {
		return ErrNotFound
	}

	u, err := c.locator.ResolveAny(root, id)
	if errors.Is(err, ErrEmptyContent) {
		c.log.WithField("unit", id).Warn("Unit is empty, moving to the next unit")
		nested := root.ElementByID(id) == nil
		var ok bool
		if u, ok = c.locator.FindNext(root, id, nested, c.oracle); !ok {
			return err
		}
	} else if err != nil {
		return err
	}

	c.abandonTurn()
	c.cancelUtterance()
	c.restart = false
	c.highlight.Clear()
	c.state = Idle
	c.speak(u)
	return nil
}

// speak starts an utterance for u. A request while the engine is busy is
// dropped.
func (c *Controller) speak(u locator.Unit) {
	log := c.log.WithField("unit", u.ID)
	if c.engine.IsSpeaking() || c.engine.IsPaused() {
		log.WithError(ErrEngineBusy).Warn("Dropping start request")
		return
	}

	c.cursor.AdvanceTo(u)
	c.lastUtterance++
	id := c.lastUtterance

	opts := c.cfg.Voice
	opts.VoiceLocale = u.Language
	err := c.engine.Speak(speech.Utterance{ID: id, Text: u.Text, Options: opts})
	switch {
	case errors.Is(err, speech.ErrBusy):
		log.WithError(ErrEngineBusy).Warn("Dropping start request")
		c.setState(Idle)
		return
	case err != nil:
		c.fail(fmt.Errorf("%w: %w", ErrEngineError, err))
		return
	}

	log.WithField("utterance", id).Debug("Speaking")
	c.utterance = id
	c.speaking = u
	c.setState(Speaking)
}

func (c *Controller) handleEvent(ev speech.Event) {
	if ev.Utterance == 0 || ev.Utterance != c.utterance {
		c.log.WithFields(logrus.Fields{"utterance": ev.Utterance, "event": ev.Kind}).Debug("Ignoring stale speech event")
		return
	}

	switch ev.Kind {
	case speech.EventStart:
		if c.state != Speaking {
			return
		}
		c.highlight.Apply(c.speaking.Node)
		c.reveal(c.speaking)
		c.notify()

	case speech.EventEnd:
		c.utterance = 0
		c.highlight.Clear()
		if c.state != Speaking {
			c.notify()
			return
		}
		if c.engine.IsPaused() || c.engine.IsSpeaking() {
			c.log.Debug("Utterance interrupted, not advancing")
			c.notify()
			return
		}
		c.speakNext()

	case speech.EventError:
		c.utterance = 0
		c.fail(fmt.Errorf("%w: %s: %w", ErrEngineError, ev.Code, ev.Err))
	}
}

// speakNext narrates the unit after the cursor or turns the page.
func (c *Controller) speakNext() {
	id, nested, _ := c.cursor.Current()
	root := c.renderer.Root()
	if root != nil {
		if u, ok := c.locator.FindNext(root, id, nested, c.oracle); ok {
			c.speak(u)
			return
		}
	}
	c.turnPage()
}

func (c *Controller) turnPage() {
	c.abandonTurn()
	token := c.turn
	c.setState(Turning)

	c.cancelTurn = c.advancer.Advance(func(u locator.Unit, err error) {
		if token != c.turn {
			c.log.Debug("Ignoring result of an abandoned page turn")
			return
		}
		c.cancelTurn = nil
		if err != nil {
			if isEnd(err) {
				c.log.WithError(err).Info("Narration finished")
			} else {
				c.log.WithError(err).Error("Page turn failed")
			}
			c.cursor.Clear()
			c.highlight.Clear()
			c.setState(Idle)
			return
		}
		c.reseed(u)
	})
}

// reseed points the cursor at the start of new content and keeps speaking
// if narration is still active.
func (c *Controller) reseed(u locator.Unit) {
	c.cursor.AdvanceTo(u)
	if c.state == Turning {
		c.state = Idle
		c.speak(u)
		return
	}
	c.notify()
}

// reveal scrolls the renderer to u when it is off screen.
func (c *Controller) reveal(u locator.Unit) {
	rv, ok := c.renderer.(render.Revealer)
	if !ok || u.Node == nil || c.oracle == nil || c.oracle.IsVisible(u) {
		return
	}
	bounds := u.Node.Bounds
	var err error
	c.loop.Go(func() { err = rv.Reveal(c.ctx, bounds) }, func() {
		if err != nil {
			c.log.WithError(err).Debug("Failed to reveal unit")
		}
		c.notify()
	})
}

func (c *Controller) fail(err error) {
	c.log.WithError(err).Error("Narration halted")
	c.highlight.Clear()
	c.setState(Idle)
	c.report(err)
}

func (c *Controller) report(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

func (c *Controller) cancelUtterance() {
	if err := c.engine.Cancel(); err != nil {
		c.log.WithError(err).Warn("Failed to cancel speech")
	}
	c.utterance = 0
}

// abandonTurn makes any page turn in flight irrelevant.
func (c *Controller) abandonTurn() {
	c.turn++
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
}

func isEnd(err error) bool {
	return errors.Is(err, ErrEndOfDocument)
}
