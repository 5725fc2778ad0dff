// Package document opens book files of the supported formats.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"readaloud/internal/document/epub"
	"readaloud/internal/document/markdown"
	"readaloud/internal/document/plaintext"
	"readaloud/internal/document/xhtml"
	"readaloud/internal/domain/book"
)

var ErrUnsupported = errors.New("unsupported document format")

// Extensions lists the file extensions Open understands.
var Extensions = []string{".epub", ".md", ".markdown", ".txt", ".xhtml", ".html", ".htm"}

// Supported reports whether path has a known extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Open loads the document at path.
func Open(path string, log logrus.FieldLogger) (*book.Book, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("document", filepath.Base(path))

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".epub" {
		return epub.Load(path, log)
	}
	if !Supported(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read document: %w", err)
	}

	switch ext {
	case ".md", ".markdown":
		return markdown.Parse(path, data, log)
	case ".txt":
		return plaintext.Parse(path, data, log)
	default:
		return openHTML(path, data, log)
	}
}

func openHTML(path string, data []byte, log logrus.FieldLogger) (*book.Book, error) {
	ch, err := xhtml.Parse(data, log)
	if err != nil {
		return nil, err
	}
	if len(ch.Blocks) == 0 {
		return nil, fmt.Errorf("%s: no readable content", path)
	}

	href := filepath.Base(path)
	title := ch.Title
	if title == "" {
		title = strings.TrimSuffix(href, filepath.Ext(href))
	}

	b := &book.Book{
		Path:     path,
		Title:    title,
		Lang:     ch.Lang,
		Sections: []book.Section{{Href: href, Title: title, Lang: ch.Lang, Blocks: ch.Blocks}},
	}
	for _, blk := range ch.Blocks {
		if blk.ID != "" && (blk.Tag == "h1" || blk.Tag == "h2") {
			b.TOC = append(b.TOC, book.TOCEntry{Label: blk.Text, Href: href + "#" + blk.ID})
		}
	}
	return b, nil
}
