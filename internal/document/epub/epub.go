// Package epub loads EPUB 2 and 3 archives into a book.
package epub

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"readaloud/internal/document/xhtml"
	"readaloud/internal/domain/book"
)

type manifestItem struct {
	href       string
	mediaType  string
	properties string
}

type archive struct {
	files map[string]*fixzip.File
	log   logrus.FieldLogger
}

// Load reads the archive at path.
func Load(file string, log logrus.FieldLogger) (*book.Book, error) {
	r, err := fixzip.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read archive file (%s): %w", file, err)
	}
	defer r.Close()

	a := &archive{files: make(map[string]*fixzip.File, len(r.File)), log: log}
	for _, f := range r.File {
		a.files[f.Name] = f
	}

	opfPath, err := a.rootfile()
	if err != nil {
		return nil, err
	}
	opf, err := a.xml(opfPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read package document (%s): %w", opfPath, err)
	}

	b := &book.Book{Path: file}
	if err := a.populate(b, opf, path.Dir(opfPath)); err != nil {
		return nil, err
	}
	return b, nil
}

func (a *archive) rootfile() (string, error) {
	doc, err := a.xml("META-INF/container.xml")
	if err != nil {
		return "", fmt.Errorf("unable to read container: %w", err)
	}
	rf := doc.FindElement("//rootfiles/rootfile")
	if rf == nil {
		return "", fmt.Errorf("container has no rootfile")
	}
	p := rf.SelectAttrValue("full-path", "")
	if p == "" {
		return "", fmt.Errorf("rootfile has no full-path")
	}
	return p, nil
}

func (a *archive) populate(b *book.Book, opf *etree.Document, base string) error {
	if md := opf.FindElement("//metadata"); md != nil {
		if el := md.SelectElement("title"); el != nil {
			b.Title = strings.TrimSpace(el.Text())
		}
		if el := md.SelectElement("creator"); el != nil {
			b.Author = strings.TrimSpace(el.Text())
		}
		if el := md.SelectElement("language"); el != nil {
			b.Lang = strings.TrimSpace(el.Text())
		}
	}

	manifest := make(map[string]manifestItem)
	for _, item := range opf.FindElements("//manifest/item") {
		manifest[item.SelectAttrValue("id", "")] = manifestItem{
			href:       resolve(base, item.SelectAttrValue("href", "")),
			mediaType:  item.SelectAttrValue("media-type", ""),
			properties: item.SelectAttrValue("properties", ""),
		}
	}

	spine := opf.FindElement("//spine")
	if spine == nil {
		return fmt.Errorf("package document has no spine")
	}
	for _, ref := range spine.SelectElements("itemref") {
		if ref.SelectAttrValue("linear", "yes") == "no" {
			continue
		}
		item, ok := manifest[ref.SelectAttrValue("idref", "")]
		if !ok {
			a.log.WithField("idref", ref.SelectAttrValue("idref", "")).Warn("Spine item missing from manifest")
			continue
		}
		sec, err := a.section(item.href, b.Lang)
		if err != nil {
			a.log.WithError(err).WithField("href", item.href).Warn("Skipping unreadable chapter")
			continue
		}
		b.Sections = append(b.Sections, *sec)
	}
	if len(b.Sections) == 0 {
		return fmt.Errorf("book has no readable chapters")
	}

	b.TOC = a.toc(manifest, spine.SelectAttrValue("toc", ""))
	return nil
}

func (a *archive) section(href, lang string) (*book.Section, error) {
	data, err := a.read(href)
	if err != nil {
		return nil, err
	}
	ch, err := xhtml.Parse(data, a.log)
	if err != nil {
		return nil, err
	}
	sec := &book.Section{Href: href, Title: ch.Title, Lang: ch.Lang, Blocks: ch.Blocks}
	if sec.Lang == "" {
		sec.Lang = lang
	}
	return sec, nil
}

// toc prefers the EPUB 3 navigation document and falls back to the NCX.
func (a *archive) toc(manifest map[string]manifestItem, ncxID string) []book.TOCEntry {
	for _, item := range manifest {
		if hasProperty(item.properties, "nav") {
			if entries := a.navTOC(item.href); len(entries) > 0 {
				return entries
			}
		}
	}
	if item, ok := manifest[ncxID]; ok {
		return a.ncxTOC(item.href)
	}
	for _, item := range manifest {
		if item.mediaType == "application/x-dtbncx+xml" {
			return a.ncxTOC(item.href)
		}
	}
	return nil
}

func (a *archive) navTOC(href string) []book.TOCEntry {
	doc, err := a.xml(href)
	if err != nil {
		a.log.WithError(err).Debug("Unable to read navigation document")
		return nil
	}
	base := path.Dir(href)
	for _, nav := range doc.FindElements("//nav") {
		if nav.SelectAttrValue("epub:type", nav.SelectAttrValue("type", "")) != "toc" {
			continue
		}
		var out []book.TOCEntry
		walk(nav, "a", func(link *etree.Element) {
			label := xhtml.Text(link)
			target := link.SelectAttrValue("href", "")
			if label == "" || target == "" {
				return
			}
			out = append(out, book.TOCEntry{Label: label, Href: resolve(base, target)})
		})
		return out
	}
	return nil
}

func (a *archive) ncxTOC(href string) []book.TOCEntry {
	doc, err := a.xml(href)
	if err != nil {
		a.log.WithError(err).Debug("Unable to read NCX")
		return nil
	}
	base := path.Dir(href)
	var out []book.TOCEntry
	walk(doc.Root(), "navPoint", func(np *etree.Element) {
		label := np.FindElement("./navLabel/text")
		content := np.SelectElement("content")
		if label == nil || content == nil {
			return
		}
		out = append(out, book.TOCEntry{
			Label: strings.Join(strings.Fields(label.Text()), " "),
			Href:  resolve(base, content.SelectAttrValue("src", "")),
		})
	})
	return out
}

// walk visits descendants of el named tag in document order. Path
// queries in etree are breadth first, which scrambles nested entries.
func walk(el *etree.Element, tag string, fn func(*etree.Element)) {
	if el == nil {
		return
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			fn(c)
		}
		walk(c, tag, fn)
	}
}

func (a *archive) xml(name string) (*etree.Document, error) {
	data, err := a.read(name)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{CharsetReader: charset.NewReaderLabel, Permissive: true}
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *archive) read(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: not in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// resolve joins a document-relative href to base, keeping its fragment.
func resolve(base, href string) string {
	p, frag := book.SplitHref(href)
	if u, err := url.PathUnescape(p); err == nil {
		p = u
	}
	if p != "" && !strings.HasPrefix(p, "/") {
		p = path.Join(base, p)
	}
	p = strings.TrimPrefix(p, "/")
	if frag != "" {
		return p + "#" + frag
	}
	return p
}

func hasProperty(props, want string) bool {
	for _, p := range strings.Fields(props) {
		if p == want {
			return true
		}
	}
	return false
}
