package paged

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus/hooks/test"

	"readaloud/internal/domain/book"
	"readaloud/internal/domain/surface"
	"readaloud/internal/render"
)

func testBook() *book.Book {
	return &book.Book{
		Title: "Test",
		Lang:  "en",
		Sections: []book.Section{
			{Href: "one.xhtml", Title: "One", Blocks: []book.Block{
				{Tag: "h1", Text: "Chapter one"},
				{Tag: "p", ID: "a", Text: "alpha beta gamma"},
				{Tag: "p", ID: "b", Text: "delta epsilon"},
				{Tag: "p", ID: "c", Text: "zeta eta theta"},
			}},
			{Href: "two.xhtml", Title: "Two", Lang: "fr", Blocks: []book.Block{
				{Tag: "P", Text: "un deux trois"},
			}},
		},
	}
}

func newTestRenderer(opts Options) *Renderer {
	log, _ := test.NewNullLogger()
	return New(testBook(), opts, log)
}

func contentRoot(t *testing.T, r *Renderer) *surface.Root {
	t.Helper()
	root := r.Root()
	if root == nil {
		t.Fatal("Root() = nil")
	}
	if frames := root.Frames(); len(frames) > 0 {
		return frames[0]
	}
	return root
}

func TestWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"alpha beta gamma", 10, []string{"alpha beta", "gamma"}},
		{"  spaced   out  ", 80, []string{"spaced out"}},
		{"", 10, []string{""}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"中文段落没有空格", 6, []string{"中文段", "落没有", "空格"}},
		{"读 ok 书", 5, []string{"读 ok", "书"}},
		{"Go语言", 4, []string{"Go语", "言"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Wrap(tt.text, tt.width)); diff != "" {
			t.Errorf("Wrap(%q, %d) mismatch (-want +got):\n%s", tt.text, tt.width, diff)
		}
	}
}

func TestWrap_WideCharactersFitColumns(t *testing.T) {
	lines := Wrap(strings.Repeat("中文段落没有空格", 20), 40)
	if len(lines) != 8 {
		t.Errorf("Wrap() = %d lines, want 8", len(lines))
	}
	for i, l := range lines {
		if w := runewidth.StringWidth(l); w > 40 {
			t.Errorf("line %d occupies %d columns, page is 40", i, w)
		}
	}
}

func TestDisplay_Isolated(t *testing.T) {
	r := newTestRenderer(Options{PageLines: 3, PageColumns: 40, IsolateSections: true})
	ready := 0
	r.OnContentReady(func() { ready++ })

	if err := r.Display(context.Background(), ""); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	if ready != 1 {
		t.Errorf("content ready fired %d times, want 1", ready)
	}

	root := r.Root()
	frames := root.Frames()
	if len(frames) != 1 {
		t.Fatalf("Frames() = %d, want 1", len(frames))
	}
	if frames[0].Name != "one.xhtml" || frames[0].Lang != "en" {
		t.Errorf("frame = %q lang %q", frames[0].Name, frames[0].Lang)
	}
	if got := len(frames[0].Body.Children); got != 4 {
		t.Errorf("frame blocks = %d, want 4", got)
	}

	loc := r.CurrentLocation()
	want := render.Location{Href: "one.xhtml", Section: 0, Page: 0, Pages: 2}
	if diff := cmp.Diff(want, loc); diff != "" {
		t.Errorf("CurrentLocation() mismatch (-want +got):\n%s", diff)
	}
}

func TestNext_StopsAtSectionEnd(t *testing.T) {
	r := newTestRenderer(Options{PageLines: 3, PageColumns: 40})
	ctx := context.Background()
	if err := r.Display(ctx, "one.xhtml"); err != nil {
		t.Fatalf("Display() error = %v", err)
	}

	first := r.Root()
	for i := 1; i < 2; i++ {
		if err := r.Next(ctx); err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
	}
	if err := r.Next(ctx); !errors.Is(err, render.ErrNoNextPage) {
		t.Fatalf("Next() at section end error = %v, want ErrNoNextPage", err)
	}

	last := r.Root()
	if last == first {
		t.Error("Next() did not publish a new root")
	}
	if last.Body != first.Body {
		t.Error("pages of one section should share nodes")
	}
	if last.Viewport.Top != 4 || last.Viewport.Bottom != 7 {
		t.Errorf("last viewport = %+v, want lines 4-7", last.Viewport)
	}
}

func TestNext_CrossSections(t *testing.T) {
	r := newTestRenderer(Options{PageLines: 20, PageColumns: 40, CrossSections: true})
	ctx := context.Background()
	if err := r.Display(ctx, ""); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	if err := r.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if loc := r.CurrentLocation(); loc.Section != 1 {
		t.Fatalf("section = %d, want 1", loc.Section)
	}
	root := contentRoot(t, r)
	if root.Lang != "fr" || root.Body.Children[0].Tag != "p" {
		t.Errorf("second section root lang %q tag %q", root.Lang, root.Body.Children[0].Tag)
	}
	if err := r.Next(ctx); !errors.Is(err, render.ErrNoNextPage) {
		t.Errorf("Next() at book end error = %v, want ErrNoNextPage", err)
	}
	if err := r.Prev(ctx); err != nil {
		t.Fatalf("Prev() error = %v", err)
	}
	if loc := r.CurrentLocation(); loc.Section != 0 {
		t.Errorf("section after Prev = %d, want 0", loc.Section)
	}
}

func TestDisplay_Fragment(t *testing.T) {
	r := newTestRenderer(Options{PageLines: 3, PageColumns: 40})
	if err := r.Display(context.Background(), "one.xhtml#c"); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	if loc := r.CurrentLocation(); loc.Page != 1 {
		t.Errorf("page = %d, want 1", loc.Page)
	}

	if err := r.Display(context.Background(), "missing.xhtml"); !errors.Is(err, render.ErrUnknownLocation) {
		t.Errorf("Display(missing) error = %v, want ErrUnknownLocation", err)
	}
}

func TestDisplay_BuildsFreshNodes(t *testing.T) {
	r := newTestRenderer(Options{})
	ctx := context.Background()
	if err := r.Display(ctx, "one.xhtml"); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	before := r.Root().Body
	if err := r.Display(ctx, "one.xhtml"); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	if r.Root().Body == before {
		t.Error("Display() reused nodes of the previous layout")
	}
}

func TestReveal(t *testing.T) {
	r := newTestRenderer(Options{PageLines: 3, PageColumns: 40})
	ctx := context.Background()
	if err := r.Display(ctx, ""); err != nil {
		t.Fatalf("Display() error = %v", err)
	}
	target := r.Root().ElementByID("b")
	if err := r.Reveal(ctx, target.Bounds); err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	if loc := r.CurrentLocation(); loc.Page != 1 {
		t.Errorf("page after Reveal = %d, want 1", loc.Page)
	}
}

func TestBuild_TallBlockSpansPages(t *testing.T) {
	b := &book.Book{Sections: []book.Section{{Href: "x", Blocks: []book.Block{
		{Tag: "p", Text: strings.Repeat("word ", 50)},
		{Tag: "p", Text: "after"},
	}}}}
	log, _ := test.NewNullLogger()
	r := New(b, Options{PageLines: 4, PageColumns: 20}, log)
	l := r.build(0)

	// 50 words wrap into 13 lines of four words
	want := []int{0, 4, 8, 12}
	if diff := cmp.Diff(want, l.pages); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
	if got := l.body.Children[1].Bounds.Top; got != 14 {
		t.Errorf("second block top = %v, want 14", got)
	}
}

func TestTOC_FallsBackToSections(t *testing.T) {
	r := newTestRenderer(Options{})
	want := []book.TOCEntry{{Label: "One", Href: "one.xhtml"}, {Label: "Two", Href: "two.xhtml"}}
	if diff := cmp.Diff(want, r.TOC()); diff != "" {
		t.Errorf("TOC() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"one.xhtml", "two.xhtml"}, r.Spine()); diff != "" {
		t.Errorf("Spine() mismatch (-want +got):\n%s", diff)
	}
}
