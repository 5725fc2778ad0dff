// Package xhtml extracts paragraph-level blocks from XHTML chapter files.
// Documents that are not well-formed XML are repaired through an HTML5
// parser first.
package xhtml

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"readaloud/internal/domain/book"
)

// Chapter is the content of one XHTML file.
type Chapter struct {
	Title  string
	Lang   string
	Blocks []book.Block
}

// Parse reads an XHTML or tag-soup HTML document.
func Parse(data []byte, log logrus.FieldLogger) (*Chapter, error) {
	doc, err := readXML(data)
	if err != nil {
		log.WithError(err).Debug("Not well-formed XHTML, repairing")
		if doc, err = repair(data); err != nil {
			return nil, fmt.Errorf("unable to parse chapter: %w", err)
		}
	}
	return extract(doc), nil
}

func readXML(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
		Entity:        entities,
	}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return doc, nil
}

// repair parses data as HTML5 and re-reads the serialised tree as XML.
func repair(data []byte) (*etree.Document, error) {
	node, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dropNodes(node, "script", "style")

	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return nil, err
	}
	return readXML(buf.Bytes())
}

func dropNodes(n *html.Node, tags ...string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && contains(tags, c.Data) {
			n.RemoveChild(c)
		} else {
			dropNodes(c, tags...)
		}
		c = next
	}
}

// entities covers the HTML named references common in ebooks.
var entities = map[string]string{
	"nbsp":   " ",
	"mdash":  "—",
	"ndash":  "–",
	"hellip": "…",
	"lsquo":  "‘",
	"rsquo":  "’",
	"ldquo":  "“",
	"rdquo":  "”",
	"laquo":  "«",
	"raquo":  "»",
	"copy":   "©",
	"shy":    "­",
}

var (
	unitTags = []string{"p", "h1", "h2", "h3", "h4", "h5", "h6"}
	skipTags = []string{"head", "script", "style", "svg", "math", "img", "nav"}
	// text of these is read as a paragraph when it has no block children
	blockTags = []string{
		"div", "section", "article", "aside", "header", "footer", "main", "blockquote",
		"ul", "ol", "li", "dl", "dt", "dd", "table", "thead", "tbody", "tr", "td", "th",
		"figure", "figcaption", "pre", "address", "center", "body",
	}
)

func extract(doc *etree.Document) *Chapter {
	ch := &Chapter{}
	root := doc.Root()
	ch.Lang = Lang(root)

	if t := root.FindElement("//head/title"); t != nil {
		ch.Title = Text(t)
	}

	body := root.FindElement("//body")
	if body == nil {
		body = root
	}
	if l := Lang(body); l != "" {
		ch.Lang = l
	}

	collect(body, "", &ch.Blocks)

	if ch.Title == "" {
		for _, b := range ch.Blocks {
			if b.Tag != "p" {
				ch.Title = b.Text
				break
			}
		}
	}
	return ch
}

func collect(el *etree.Element, lang string, out *[]book.Block) {
	for _, child := range el.ChildElements() {
		tag := strings.ToLower(child.Tag)
		childLang := lang
		if l := Lang(child); l != "" {
			childLang = l
		}

		switch {
		case contains(skipTags, tag):
			continue
		case contains(unitTags, tag):
			appendBlock(out, tag, child, childLang)
		case contains(blockTags, tag):
			if hasBlockChildren(child) {
				collect(child, childLang, out)
			} else {
				appendBlock(out, "p", child, childLang)
			}
		}
	}
}

func appendBlock(out *[]book.Block, tag string, el *etree.Element, lang string) {
	text := Text(el)
	if text == "" {
		return
	}
	*out = append(*out, book.Block{
		Tag:  tag,
		ID:   el.SelectAttrValue("id", ""),
		Lang: lang,
		Text: text,
	})
}

func hasBlockChildren(el *etree.Element) bool {
	for _, c := range el.ChildElements() {
		tag := strings.ToLower(c.Tag)
		if contains(unitTags, tag) || contains(blockTags, tag) {
			return true
		}
	}
	return false
}

// Text returns the element's text content with whitespace collapsed.
func Text(el *etree.Element) string {
	var b strings.Builder
	text(el, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func text(el *etree.Element, b *strings.Builder) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			tag := strings.ToLower(t.Tag)
			if contains(skipTags, tag) {
				continue
			}
			if tag == "br" {
				b.WriteByte(' ')
				continue
			}
			text(t, b)
		}
	}
}

// Lang returns the xml:lang or lang attribute of el.
func Lang(el *etree.Element) string {
	for _, attr := range el.Attr {
		if attr.Key != "lang" {
			continue
		}
		if attr.Space == "xml" || strings.HasSuffix(attr.NamespaceURI(), "/xml") || attr.Space == "" {
			return strings.TrimSpace(attr.Value)
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
