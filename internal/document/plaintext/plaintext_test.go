package plaintext

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"readaloud/internal/domain/book"
)

func TestParse(t *testing.T) {
	log, _ := test.NewNullLogger()
	src := "Title page words.\n\n" +
		"CHAPTER I. The Start\n\n" +
		"First line of a paragraph\ncontinues here.\n\n\n" +
		"Second paragraph.\n" +
		"Chapter 2\n" +
		"Closing words.\f\nAfter the break.\n"

	b, err := Parse("library/story.txt", []byte(src), log)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []book.Section{
		{Href: "section-1", Title: "story", Blocks: []book.Block{
			{Tag: "p", Text: "Title page words."},
		}},
		{Href: "section-2", Title: "CHAPTER I. The Start", Blocks: []book.Block{
			{Tag: "h2", Text: "CHAPTER I. The Start"},
			{Tag: "p", Text: "First line of a paragraph continues here."},
			{Tag: "p", Text: "Second paragraph. Chapter 2 Closing words."},
		}},
		{Href: "section-3", Title: "story", Blocks: []book.Block{
			{Tag: "p", Text: "After the break."},
		}},
	}
	if diff := cmp.Diff(want, b.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
	if len(b.TOC) != 1 || b.TOC[0].Href != "section-2" {
		t.Errorf("toc = %+v", b.TOC)
	}
}

func TestParseEmpty(t *testing.T) {
	log, _ := test.NewNullLogger()
	if _, err := Parse("blank.txt", []byte("\n \n\t\n"), log); err == nil {
		t.Fatal("expected error for blank file")
	}
}
