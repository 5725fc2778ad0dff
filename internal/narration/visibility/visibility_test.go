package visibility

import (
	"testing"

	"readaloud/internal/domain/surface"
	"readaloud/internal/narration/locator"
)

func TestWithin(t *testing.T) {
	viewport := surface.Rect{Top: 0, Left: 0, Bottom: 100, Right: 100}
	o := New(DefaultRatio)

	tests := []struct {
		name   string
		bounds surface.Rect
		want   bool
	}{
		{"fully inside", surface.Rect{Top: 10, Left: 10, Bottom: 20, Right: 90}, true},
		{"half of height inside", surface.Rect{Top: 90, Left: 0, Bottom: 110, Right: 50}, false},
		{"exactly 80% inside", surface.Rect{Top: 92, Left: 0, Bottom: 102, Right: 50}, true},
		{"sliver at bottom", surface.Rect{Top: 98, Left: 0, Bottom: 120, Right: 50}, false},
		{"below viewport", surface.Rect{Top: 120, Left: 0, Bottom: 130, Right: 50}, false},
		{"too wide", surface.Rect{Top: 10, Left: -50, Bottom: 20, Right: 100}, false},
		{"empty box", surface.Rect{Top: 10, Left: 10, Bottom: 10, Right: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.Within(tt.bounds, viewport); got != tt.want {
				t.Errorf("Within(%+v) = %v, want %v", tt.bounds, got, tt.want)
			}
		})
	}
}

func TestIsVisible_UsesOwnerViewport(t *testing.T) {
	node := &surface.Node{Tag: "p", Bounds: surface.Rect{Top: 30, Bottom: 32, Right: 10}}
	owner := &surface.Root{Viewport: surface.Rect{Top: 20, Bottom: 40, Right: 80}}
	o := New(0)

	if !o.IsVisible(locator.Unit{Node: node, Owner: owner}) {
		t.Error("unit inside the scrolled viewport reported invisible")
	}
	owner.Viewport = surface.Rect{Top: 0, Bottom: 20, Right: 80}
	if o.IsVisible(locator.Unit{Node: node, Owner: owner}) {
		t.Error("unit below the viewport reported visible")
	}
	if o.IsVisible(locator.Unit{}) {
		t.Error("unit without node reported visible")
	}
}

func TestScenarioE_VisibleBeatsLowerOrdinal(t *testing.T) {
	root := &surface.Root{
		Viewport: surface.Rect{Bottom: 20, Right: 80},
		Body: (&surface.Node{Tag: "body"}).Append(
			&surface.Node{Tag: "p", Text: "current", Bounds: surface.Rect{Top: 0, Bottom: 1, Right: 10}},
			&surface.Node{Tag: "p", Text: "scrolled away", Bounds: surface.Rect{Top: -10, Bottom: -9, Right: 10}},
			&surface.Node{Tag: "p", Text: "on screen", Bounds: surface.Rect{Top: 5, Bottom: 6, Right: 10}},
		),
	}
	loc := locator.New(nil, "en-US", nil)

	u, ok := loc.FindNext(root, "p0", false, New(DefaultRatio))
	if !ok || u.Text != "on screen" {
		t.Errorf("FindNext() = %q, want the visible unit", u.Text)
	}
}
