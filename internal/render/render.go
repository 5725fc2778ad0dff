// Package render defines the renderer collaborator the narration core reads
// from: it owns the current rendering root and moves between pages and
// sections.
package render

import (
	"context"
	"errors"

	"readaloud/internal/domain/book"
	"readaloud/internal/domain/surface"
)

var (
	ErrNoNextPage      = errors.New("no next page")
	ErrNoPrevPage      = errors.New("no previous page")
	ErrUnknownLocation = errors.New("unknown location")
)

// Location describes what is on screen.
type Location struct {
	Href    string `json:"href"`
	Section int    `json:"section"`
	Page    int    `json:"page"`
	Pages   int    `json:"pages"`
}

// Renderer may be called from any goroutine. Next, Prev and Display block
// until the new content is laid out or the move failed.
type Renderer interface {
	// Root returns the current top-level rendering root. A new root is
	// published whenever page content is replaced.
	Root() *surface.Root
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	Display(ctx context.Context, href string) error
	CurrentLocation() Location
	TOC() []book.TOCEntry
	// Spine lists section hrefs in reading order.
	Spine() []string
	// OnContentReady registers fn to be called after layout. It is not
	// guaranteed to fire on every page turn.
	OnContentReady(fn func())
}

// Revealer is implemented by renderers that can scroll a node into view.
// bounds are in the coordinate space of the node's owning root.
type Revealer interface {
	Reveal(ctx context.Context, bounds surface.Rect) error
}
