package markdown

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"readaloud/internal/domain/book"
)

const sample = `Some words before the first chapter.

# Chapter One

It was a **bright** cold day
in April.

## The Clocks

- striking
- thirteen

` + "```go\nfmt.Println(\"skip me\")\n```" + `

# Chapter Two

> A quoted [line](http://example.com).
`

func TestParse(t *testing.T) {
	log, _ := test.NewNullLogger()
	b, err := Parse("books/nineteen.md", []byte(sample), log)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if b.Title != "Chapter One" {
		t.Errorf("title = %q", b.Title)
	}

	want := []book.Section{
		{Href: "section-1", Title: "Chapter One", Blocks: []book.Block{
			{Tag: "p", Text: "Some words before the first chapter."},
		}},
		{Href: "section-2", Title: "Chapter One", Blocks: []book.Block{
			{Tag: "h1", ID: "chapter-one", Text: "Chapter One"},
			{Tag: "p", Text: "It was a bright cold day in April."},
			{Tag: "h2", ID: "the-clocks", Text: "The Clocks"},
			{Tag: "p", Text: "striking"},
			{Tag: "p", Text: "thirteen"},
		}},
		{Href: "section-3", Title: "Chapter Two", Blocks: []book.Block{
			{Tag: "h1", ID: "chapter-two", Text: "Chapter Two"},
			{Tag: "p", Text: "A quoted line."},
		}},
	}
	if diff := cmp.Diff(want, b.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}

	wantTOC := []book.TOCEntry{
		{Label: "Chapter One", Href: "section-2"},
		{Label: "The Clocks", Href: "section-2#the-clocks"},
		{Label: "Chapter Two", Href: "section-3"},
	}
	if diff := cmp.Diff(wantTOC, b.TOC); diff != "" {
		t.Errorf("toc mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWithoutHeadings(t *testing.T) {
	log, _ := test.NewNullLogger()
	b, err := Parse("notes/todo.markdown", []byte("just one paragraph\n"), log)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Title != "todo" || len(b.Sections) != 1 || b.Sections[0].Title != "todo" {
		t.Errorf("book = %+v", b)
	}
}

func TestParseEmpty(t *testing.T) {
	log, _ := test.NewNullLogger()
	if _, err := Parse("empty.md", []byte("```\ncode only\n```\n"), log); err == nil {
		t.Fatal("expected error for document without prose")
	}
}
