// Package paged lays a book out into fixed-size text pages and publishes each
// page as a rendering root.
package paged

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"

	"readaloud/internal/domain/book"
	"readaloud/internal/domain/surface"
	"readaloud/internal/render"
)

const (
	DefaultLines   = 20
	DefaultColumns = 80
)

type Options struct {
	PageLines   int
	PageColumns int
	// IsolateSections places section content in a nested root under an
	// iframe node of the top-level root.
	IsolateSections bool
	// CrossSections lets Next and Prev move into neighbouring sections.
	CrossSections bool
}

// Renderer paginates one section at a time. Moving within a section keeps
// the section's nodes and moves the viewport; displaying a section always
// builds fresh nodes.
type Renderer struct {
	book *book.Book
	opts Options
	log  logrus.FieldLogger

	mu     sync.Mutex
	layout *layout
	page   int
	root   *surface.Root
	ready  []func()
}

type layout struct {
	section int
	body    *surface.Node
	// pages holds the first line of every page
	pages   []int
	lines   int
	anchors map[string]int
}

func New(b *book.Book, opts Options, log logrus.FieldLogger) *Renderer {
	if opts.PageLines <= 0 {
		opts.PageLines = DefaultLines
	}
	if opts.PageColumns <= 0 {
		opts.PageColumns = DefaultColumns
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Renderer{book: b, opts: opts, log: log}
}

// Root returns the current top-level root, nil before the first Display.
func (r *Renderer) Root() *surface.Root {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

func (r *Renderer) OnContentReady(fn func()) {
	r.mu.Lock()
	r.ready = append(r.ready, fn)
	r.mu.Unlock()
}

func (r *Renderer) TOC() []book.TOCEntry {
	if len(r.book.TOC) > 0 {
		return r.book.TOC
	}
	toc := make([]book.TOCEntry, 0, len(r.book.Sections))
	for i, s := range r.book.Sections {
		label := s.Title
		if label == "" {
			label = "Section " + strconv.Itoa(i+1)
		}
		toc = append(toc, book.TOCEntry{Label: label, Href: s.Href})
	}
	return toc
}

func (r *Renderer) Spine() []string {
	spine := make([]string, 0, len(r.book.Sections))
	for _, s := range r.book.Sections {
		spine = append(spine, s.Href)
	}
	return spine
}

func (r *Renderer) CurrentLocation() render.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.layout == nil {
		return render.Location{Section: -1}
	}
	return render.Location{
		Href:    r.book.Sections[r.layout.section].Href,
		Section: r.layout.section,
		Page:    r.page,
		Pages:   len(r.layout.pages),
	}
}

func (r *Renderer) Next(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	switch {
	case r.layout == nil:
		r.mu.Unlock()
		return render.ErrNoNextPage
	case r.page+1 < len(r.layout.pages):
		r.page++
	case r.opts.CrossSections && r.layout.section+1 < len(r.book.Sections):
		r.layout = r.build(r.layout.section + 1)
		r.page = 0
	default:
		r.mu.Unlock()
		return render.ErrNoNextPage
	}
	ready := r.publish()
	r.mu.Unlock()

	notify(ready)
	return nil
}

func (r *Renderer) Prev(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	switch {
	case r.layout == nil:
		r.mu.Unlock()
		return render.ErrNoPrevPage
	case r.page > 0:
		r.page--
	case r.opts.CrossSections && r.layout.section > 0:
		r.layout = r.build(r.layout.section - 1)
		r.page = len(r.layout.pages) - 1
	default:
		r.mu.Unlock()
		return render.ErrNoPrevPage
	}
	ready := r.publish()
	r.mu.Unlock()

	notify(ready)
	return nil
}

// Display shows the section with the given href. A "#fragment" selects the
// page holding the block with that id. An empty href shows the first section.
func (r *Renderer) Display(ctx context.Context, href string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(r.book.Sections) == 0 {
		return fmt.Errorf("book has no sections: %w", render.ErrUnknownLocation)
	}

	path, frag := book.SplitHref(href)
	idx := 0
	if path != "" {
		if idx = r.book.SectionIndex(path); idx < 0 {
			return fmt.Errorf("%q: %w", href, render.ErrUnknownLocation)
		}
	}

	r.mu.Lock()
	r.layout = r.build(idx)
	r.page = 0
	if frag != "" {
		if line, ok := r.layout.anchors[frag]; ok {
			r.page = r.layout.pageOf(line)
		} else {
			r.log.WithField("fragment", frag).Debug("Fragment not found, showing first page")
		}
	}
	ready := r.publish()
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"section": idx, "href": href}).Info("Displayed section")
	notify(ready)
	return nil
}

// Reveal turns to the page holding bounds within the current section.
func (r *Renderer) Reveal(ctx context.Context, bounds surface.Rect) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.layout == nil {
		r.mu.Unlock()
		return render.ErrUnknownLocation
	}
	page := r.layout.pageOf(int(bounds.Top))
	if page == r.page {
		r.mu.Unlock()
		return nil
	}
	r.page = page
	ready := r.publish()
	r.mu.Unlock()

	notify(ready)
	return nil
}

// publish builds the root for the current page. Callers hold r.mu and call
// the returned callbacks after unlocking.
func (r *Renderer) publish() []func() {
	l := r.layout
	sec := r.book.Sections[l.section]

	start := l.pages[r.page]
	end := start + r.opts.PageLines
	if r.page+1 < len(l.pages) && l.pages[r.page+1] < end {
		end = l.pages[r.page+1]
	}
	viewport := surface.Rect{Top: float64(start), Bottom: float64(end), Right: float64(r.opts.PageColumns)}
	screen := surface.Rect{Bottom: float64(r.opts.PageLines), Right: float64(r.opts.PageColumns)}

	lang := sec.Lang
	if lang == "" {
		lang = r.book.Lang
	}

	content := &surface.Root{Name: sec.Href, Lang: lang, Body: l.body, Viewport: viewport}
	if r.opts.IsolateSections {
		frame := &surface.Node{Tag: "iframe", Bounds: screen, Frame: content}
		r.root = &surface.Root{
			Name:     "reader",
			Lang:     r.book.Lang,
			Body:     &surface.Node{Tag: "body", Children: []*surface.Node{frame}, Bounds: screen},
			Viewport: screen,
		}
	} else {
		r.root = content
	}

	return append([]func(){}, r.ready...)
}

func notify(ready []func()) {
	for _, fn := range ready {
		fn()
	}
}

// build lays out a section into nodes with line-based bounds.
func (r *Renderer) build(section int) *layout {
	sec := r.book.Sections[section]
	l := &layout{
		section: section,
		body:    &surface.Node{Tag: "body", Lang: sec.Lang},
		anchors: make(map[string]int),
	}

	pageStart, line := 0, 0
	l.pages = []int{0}
	for i, blk := range sec.Blocks {
		lines := Wrap(blk.Text, r.opts.PageColumns)
		height := len(lines)

		if i > 0 {
			line++ // blank line between blocks
		}
		// a block that does not fit starts a new page, unless it is alone
		if line > pageStart && line+height > pageStart+r.opts.PageLines {
			pageStart = line
			l.pages = append(l.pages, pageStart)
		}
		// blocks taller than a page span several pages
		for line+height > pageStart+r.opts.PageLines && pageStart+r.opts.PageLines > line {
			pageStart += r.opts.PageLines
			l.pages = append(l.pages, pageStart)
		}

		width := 1
		for _, s := range lines {
			width = max(width, runewidth.StringWidth(s))
		}
		node := &surface.Node{
			Tag:    strings.ToLower(blk.Tag),
			ID:     blk.ID,
			Lang:   blk.Lang,
			Text:   blk.Text,
			Bounds: surface.Rect{Top: float64(line), Bottom: float64(line + height), Right: float64(width)},
		}
		l.body.Append(node)
		if blk.ID != "" {
			l.anchors[blk.ID] = line
		}
		line += height
	}
	l.lines = line

	r.log.WithFields(logrus.Fields{"section": section, "pages": len(l.pages), "lines": l.lines}).Debug("Laid out section")
	return l
}

// pageOf returns the page whose range holds line.
func (l *layout) pageOf(line int) int {
	page := 0
	for i, start := range l.pages {
		if start <= line {
			page = i
		}
	}
	return page
}
