// Package plaintext loads .txt files. Paragraphs are separated by blank
// lines; a form feed or a "Chapter ..." line starts a new section.
package plaintext

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"readaloud/internal/domain/book"
)

var chapterLine = regexp.MustCompile(`(?i)^(chapter|book|part)\s+([0-9]+|[ivxlcdm]+)\b.{0,60}$`)

// Parse converts source into a book stored at path.
func Parse(path string, source []byte, log logrus.FieldLogger) (*book.Book, error) {
	b := &book.Book{
		Path:  path,
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	var (
		sec  *book.Section
		para []string
	)
	section := func() *book.Section {
		if sec == nil {
			sec = &book.Section{Href: fmt.Sprintf("section-%d", len(b.Sections)+1)}
		}
		return sec
	}
	endParagraph := func() {
		if len(para) > 0 {
			s := section()
			s.Blocks = append(s.Blocks, book.Block{Tag: "p", Text: strings.Join(para, " ")})
			para = nil
		}
	}
	endSection := func() {
		endParagraph()
		if sec != nil && len(sec.Blocks) > 0 {
			if sec.Title == "" {
				sec.Title = b.Title
			}
			b.Sections = append(b.Sections, *sec)
		}
		sec = nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")

		if strings.Contains(line, "\f") {
			parts := strings.Split(line, "\f")
			for i, part := range parts {
				if i > 0 {
					endSection()
				}
				if p := strings.TrimSpace(part); p != "" {
					para = append(para, p)
				}
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			endParagraph()
		case chapterLine.MatchString(trimmed) && len(para) == 0:
			endSection()
			s := section()
			s.Title = trimmed
			s.Blocks = append(s.Blocks, book.Block{Tag: "h2", Text: trimmed})
			b.TOC = append(b.TOC, book.TOCEntry{Label: trimmed, Href: s.Href})
		default:
			para = append(para, trimmed)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	endSection()

	if len(b.Sections) == 0 {
		return nil, fmt.Errorf("%s: no readable content", path)
	}
	log.WithField("sections", len(b.Sections)).Debug("Parsed plain text")
	return b, nil
}
