package view

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus/hooks/test"

	"readaloud/internal/domain/book"
	"readaloud/internal/domain/surface"
	"readaloud/internal/render/paged"
)

func TestLinesPaintsVisibleFrameContent(t *testing.T) {
	color.NoColor = true
	log, _ := test.NewNullLogger()

	b := &book.Book{Sections: []book.Section{{Href: "s1", Blocks: []book.Block{
		{Tag: "h1", Text: "Title"},
		{Tag: "p", Text: "first paragraph"},
		{Tag: "p", Text: "second paragraph"},
	}}}}
	r := paged.New(b, paged.Options{PageLines: 3, PageColumns: 40, IsolateSections: true}, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := r.Display(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	p := NewPainter(&bytes.Buffer{}, 40, "normal", false)
	got := p.Lines(r.Root())
	want := []string{"Title", "", "first paragraph"}
	if len(got) != len(want) {
		t.Fatalf("lines = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPaintUsesHighlightAndRawLineEndings(t *testing.T) {
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = true })

	node := &surface.Node{Tag: "p", Text: "spoken", Bounds: surface.Rect{Top: 0, Bottom: 1, Right: 6}}
	node.Style = surface.Style{Background: "rgba(255, 255, 0, 0.3)"}
	root := &surface.Root{
		Body:     &surface.Node{Tag: "body", Children: []*surface.Node{node}},
		Viewport: surface.Rect{Top: 0, Bottom: 1, Right: 40},
	}

	var out bytes.Buffer
	p := NewPainter(&out, 40, "dark", true)
	p.Paint(root, Status{Title: "Book", Sections: 3, State: "Speaking", Mode: "dark"})

	s := out.String()
	if !strings.Contains(s, p.palette.Highlight.Sprint("spoken")) {
		t.Errorf("highlighted node not painted with highlight colour: %q", s)
	}
	if !strings.Contains(s, "section 1/3") || !strings.Contains(s, "\r\n") {
		t.Errorf("status or line endings missing: %q", s)
	}
}

func TestPageGeometryPrefersConfiguredValues(t *testing.T) {
	lines, cols := PageGeometry(-1, 12, 60)
	if lines != 12 || cols != 60 {
		t.Errorf("geometry = %d x %d", lines, cols)
	}
	lines, cols = PageGeometry(-1, 0, 0)
	if lines != paged.DefaultLines || cols != paged.DefaultColumns {
		t.Errorf("fallback geometry = %d x %d", lines, cols)
	}
}
