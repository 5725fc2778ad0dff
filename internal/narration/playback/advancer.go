package playback

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"readaloud/internal/narration/eventloop"
	"readaloud/internal/narration/locator"
	"readaloud/internal/narration/retry"
	"readaloud/internal/render"
)

// Advancer moves the renderer to new content and picks the unit to start
// from once the content has settled. All methods run on the loop.
type Advancer struct {
	ctx      context.Context
	loop     *eventloop.Loop
	renderer render.Renderer
	locator  *locator.Locator
	oracle   locator.Visibility
	cfg      Config
	log      logrus.FieldLogger
}

// Done receives the start unit of the new content, or an error wrapping
// ErrEndOfDocument when there is nothing further to narrate.
type Done func(u locator.Unit, err error)

// pending is one advance in progress.
type pending struct {
	cancelled bool
	timer     *eventloop.Timer
	stopRetry func()
}

func (p *pending) cancel() {
	p.cancelled = true
	p.timer.Stop()
	if p.stopRetry != nil {
		p.stopRetry()
	}
}

func NewAdvancer(ctx context.Context, loop *eventloop.Loop, r render.Renderer, loc *locator.Locator, oracle locator.Visibility, cfg Config, log logrus.FieldLogger) *Advancer {
	return &Advancer{ctx: ctx, loop: loop, renderer: r, locator: loc, oracle: oracle, cfg: cfg, log: log}
}

// Advance turns to the next page. When the renderer cannot turn, it
// displays the next section instead. The returned function abandons the
// advance; a renderer call already in flight still completes but done is
// not called.
func (a *Advancer) Advance(done Done) (cancel func()) {
	p := &pending{}
	from := a.renderer.CurrentLocation()

	var err error
	a.loop.Go(func() { err = a.renderer.Next(a.ctx) }, func() {
		if p.cancelled {
			return
		}
		if err == nil {
			a.log.WithField("from", from.Href).Info("Turned page")
			a.settleAndScan(p, done)
			return
		}

		a.log.WithError(err).Info("Page turn failed, trying next section")
		href, ok := a.neighbour(from, 1)
		if !ok {
			done(locator.Unit{}, fmt.Errorf("%w: %w", ErrEndOfDocument, err))
			return
		}
		a.display(p, href, func(derr error) {
			a.log.WithError(derr).WithField("href", href).Error("Advance failed")
			done(locator.Unit{}, fmt.Errorf("%w: %w: %w", ErrEndOfDocument, ErrAdvanceFailed, derr))
		}, done)
	})
	return p.cancel
}

// Retreat turns to the previous page, falling back to the previous section.
func (a *Advancer) Retreat(done Done) (cancel func()) {
	p := &pending{}
	from := a.renderer.CurrentLocation()

	var err error
	a.loop.Go(func() { err = a.renderer.Prev(a.ctx) }, func() {
		if p.cancelled {
			return
		}
		if err == nil {
			a.settleAndScan(p, done)
			return
		}

		href, ok := a.neighbour(from, -1)
		if !ok {
			done(locator.Unit{}, fmt.Errorf("%w: %w", ErrAdvanceFailed, err))
			return
		}
		a.display(p, href, func(derr error) {
			done(locator.Unit{}, fmt.Errorf("%w: %w", ErrAdvanceFailed, derr))
		}, done)
	})
	return p.cancel
}

// Jump displays href and picks a start unit on the new content.
func (a *Advancer) Jump(href string, done Done) (cancel func()) {
	p := &pending{}
	a.display(p, href, func(err error) {
		done(locator.Unit{}, fmt.Errorf("jump to %q: %w", href, err))
	}, done)
	return p.cancel
}

func (a *Advancer) display(p *pending, href string, fail func(error), done Done) {
	var err error
	a.loop.Go(func() { err = a.renderer.Display(a.ctx, href) }, func() {
		if p.cancelled {
			return
		}
		if err != nil {
			fail(err)
			return
		}
		a.settleAndScan(p, done)
	})
}

// AtBoundary reports whether the renderer has no page and no section in the
// direction of step (1 forward, -1 back).
func (a *Advancer) AtBoundary(step int) bool {
	loc := a.renderer.CurrentLocation()
	if step < 0 && loc.Page > 0 || step > 0 && loc.Page+1 < loc.Pages {
		return false
	}
	_, ok := a.neighbour(loc, step)
	return !ok
}

// neighbour returns the spine href step sections away from loc.
func (a *Advancer) neighbour(loc render.Location, step int) (string, bool) {
	spine := a.renderer.Spine()
	idx := loc.Section
	if idx < 0 || idx >= len(spine) || spine[idx] != loc.Href {
		idx = -1
		for i, href := range spine {
			if href == loc.Href {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return "", false
	}
	next := idx + step
	if next < 0 || next >= len(spine) {
		return "", false
	}
	return spine[next], true
}

// settleAndScan waits for the new content to materialise, then looks for a
// start unit with bounded retries.
func (a *Advancer) settleAndScan(p *pending, done Done) {
	p.timer = a.loop.After(a.cfg.SettleDelay, func() {
		if p.cancelled {
			return
		}

		var found locator.Unit
		p.stopRetry = retry.Attempt(a.loop, a.cfg.Retry, func(attempt int) bool {
			u, ok := a.PickStart()
			if !ok {
				a.log.WithField("attempt", attempt+1).Debug("No content yet")
				return false
			}
			found = u
			return true
		}, func(ok bool) {
			if ok {
				done(found, nil)
				return
			}
			a.log.WithField("attempts", max(a.cfg.Retry.MaxRetries, 1)).Warn("No speakable content found")
			done(locator.Unit{}, fmt.Errorf("%w: no speakable content found", ErrEndOfDocument))
		})
	})
}

// PickStart chooses where narration begins on the current content: the
// first unit long enough to be worth reading, or the first visible unit when
// that one is off screen.
func (a *Advancer) PickStart() (locator.Unit, bool) {
	root := a.renderer.Root()
	if root == nil {
		return locator.Unit{}, false
	}

	u, ok := a.locator.FindFirst(root, a.cfg.StartMinLength, a.cfg.RelaxedMinLength)
	if !ok {
		return locator.Unit{}, false
	}
	if a.oracle == nil || a.oracle.IsVisible(u) {
		return u, true
	}
	if v, ok := a.locator.FindNext(root, "", u.Nested, a.oracle); ok && a.oracle.IsVisible(v) {
		return v, true
	}
	return u, true
}
