// Package visibility decides whether a text unit is sufficiently inside the
// viewport of its rendering root.
package visibility

import (
	"readaloud/internal/domain/surface"
	"readaloud/internal/narration/locator"
)

// DefaultRatio is the share of a unit's height and width that must be inside
// the viewport.
const DefaultRatio = 0.8

type Oracle struct {
	Ratio float64
}

func New(ratio float64) *Oracle {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultRatio
	}
	return &Oracle{Ratio: ratio}
}

// IsVisible implements locator.Visibility.
func (o *Oracle) IsVisible(u locator.Unit) bool {
	if u.Node == nil || u.Owner == nil {
		return false
	}
	return o.Within(u.Node.Bounds, u.Owner.Viewport)
}

// Within reports whether bounds intersects viewport by at least the ratio in
// both dimensions with at least one edge inside the viewport extent.
func (o *Oracle) Within(bounds, viewport surface.Rect) bool {
	if bounds.Height() <= 0 || bounds.Width() <= 0 {
		return false
	}

	visibleHeight := min(bounds.Bottom, viewport.Bottom) - max(bounds.Top, viewport.Top)
	visibleWidth := min(bounds.Right, viewport.Right) - max(bounds.Left, viewport.Left)

	return visibleHeight/bounds.Height() >= o.Ratio &&
		visibleWidth/bounds.Width() >= o.Ratio &&
		bounds.Top < viewport.Bottom &&
		bounds.Bottom > viewport.Top &&
		bounds.Left < viewport.Right &&
		bounds.Right > viewport.Left
}
