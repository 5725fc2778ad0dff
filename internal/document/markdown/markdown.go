// Package markdown loads Markdown files as books. Each level-1 heading
// starts a section; level-1 and level-2 headings form the table of contents.
package markdown

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"readaloud/internal/domain/book"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Parse converts source into a book stored at path.
func Parse(path string, source []byte, log logrus.FieldLogger) (*book.Book, error) {
	doc := md.Parser().Parse(text.NewReader(source))

	b := &book.Book{Path: path}
	c := &collector{source: source, book: b}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		c.block(n)
	}
	c.flush()

	if len(b.Sections) == 0 {
		return nil, fmt.Errorf("%s: no readable content", path)
	}
	if b.Title == "" {
		b.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	for i := range b.Sections {
		if b.Sections[i].Title == "" {
			b.Sections[i].Title = b.Title
		}
	}
	log.WithFields(logrus.Fields{"sections": len(b.Sections), "toc": len(b.TOC)}).Debug("Parsed markdown")
	return b, nil
}

type collector struct {
	source  []byte
	book    *book.Book
	current *book.Section
}

func (c *collector) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		label := c.inline(n)
		if label == "" {
			return
		}
		id := headingID(n)
		if n.Level == 1 {
			c.flush()
			c.current = &book.Section{Href: fmt.Sprintf("section-%d", len(c.book.Sections)+1), Title: label}
			if c.book.Title == "" {
				c.book.Title = label
			}
		}
		sec := c.section()
		if n.Level <= 2 {
			href := sec.Href
			if n.Level == 2 && id != "" {
				href += "#" + id
			}
			c.book.TOC = append(c.book.TOC, book.TOCEntry{Label: label, Href: href})
		}
		sec.Blocks = append(sec.Blocks, book.Block{Tag: fmt.Sprintf("h%d", n.Level), ID: id, Text: label})

	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		// not narrated

	case *ast.Paragraph, *ast.TextBlock:
		c.paragraph(n)

	default:
		if n.HasChildren() && n.FirstChild().Type() == ast.TypeInline {
			c.paragraph(n)
			return
		}
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			c.block(child)
		}
	}
}

func (c *collector) paragraph(n ast.Node) {
	if t := c.inline(n); t != "" {
		sec := c.section()
		sec.Blocks = append(sec.Blocks, book.Block{Tag: "p", Text: t})
	}
}

func (c *collector) section() *book.Section {
	if c.current == nil {
		c.current = &book.Section{Href: fmt.Sprintf("section-%d", len(c.book.Sections)+1)}
	}
	return c.current
}

func (c *collector) flush() {
	if c.current != nil && len(c.current.Blocks) > 0 {
		c.book.Sections = append(c.book.Sections, *c.current)
	}
	c.current = nil
}

// inline returns the plain text of n's inline descendants.
func (c *collector) inline(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(c.source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.AutoLink:
			b.Write(n.Label(c.source))
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func headingID(n *ast.Heading) string {
	v, ok := n.AttributeString("id")
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case []byte:
		return string(id)
	case string:
		return id
	}
	return ""
}
