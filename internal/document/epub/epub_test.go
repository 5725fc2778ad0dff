package epub

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

const container = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

const opf = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>A Test Book</dc:title>
    <dc:creator>Jane Writer</dc:creator>
    <dc:language>en-GB</dc:language>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="cover" href="Text/cover.xhtml" media-type="application/xhtml+xml"/>
    <item id="c1" href="Text/chapter%201.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="Text/chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="cover" linear="no"/>
    <itemref idref="c1"/>
    <itemref idref="c2"/>
  </spine>
</package>`

const nav = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body>
  <nav epub:type="landmarks"><ol><li><a href="Text/cover.xhtml">Cover</a></li></ol></nav>
  <nav epub:type="toc"><ol>
    <li><a href="Text/chapter%201.xhtml">Chapter 1</a>
      <ol><li><a href="Text/chapter%201.xhtml#part">Part A</a></li></ol>
    </li>
    <li><a href="Text/chapter2.xhtml">Chapter 2</a></li>
  </ol></nav>
</body>
</html>`

const ncx = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/">
  <navMap>
    <navPoint id="n1"><navLabel><text>One</text></navLabel><content src="Text/chapter%201.xhtml"/>
      <navPoint id="n2"><navLabel><text>One, part A</text></navLabel><content src="Text/chapter%201.xhtml#part"/></navPoint>
    </navPoint>
    <navPoint id="n3"><navLabel><text>Two</text></navLabel><content src="Text/chapter2.xhtml"/></navPoint>
  </navMap>
</ncx>`

const chapter1 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Chapter 1</title></head>
<body><h1>Chapter 1</h1><p>First paragraph.</p><p id="part">Second paragraph.</p></body></html>`

const chapter2 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="fr"><body><p>Troisième paragraphe.</p></body></html>`

func writeEPUB(t *testing.T, files map[string]string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "book.epub")
	out, err := os.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(out)
	for n, body := range files {
		f, err := w.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	return name
}

func files(withNav bool) map[string]string {
	m := map[string]string{
		"mimetype":                   "application/epub+zip",
		"META-INF/container.xml":     container,
		"OEBPS/content.opf":          opf,
		"OEBPS/toc.ncx":              ncx,
		"OEBPS/Text/cover.xhtml":     `<html><body><p>Cover</p></body></html>`,
		"OEBPS/Text/chapter 1.xhtml": chapter1,
		"OEBPS/Text/chapter2.xhtml":  chapter2,
	}
	if withNav {
		m["OEBPS/nav.xhtml"] = nav
	}
	return m
}

func TestLoad(t *testing.T) {
	log, _ := test.NewNullLogger()
	b, err := Load(writeEPUB(t, files(true)), log)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if b.Title != "A Test Book" || b.Author != "Jane Writer" || b.Lang != "en-GB" {
		t.Errorf("metadata = %q/%q/%q", b.Title, b.Author, b.Lang)
	}
	if len(b.Sections) != 2 {
		t.Fatalf("got %d sections, want 2 (non-linear cover skipped)", len(b.Sections))
	}

	s1, s2 := b.Sections[0], b.Sections[1]
	if s1.Href != "OEBPS/Text/chapter 1.xhtml" {
		t.Errorf("section href = %q", s1.Href)
	}
	if s1.Lang != "en-GB" || len(s1.Blocks) != 3 || s1.Blocks[2].ID != "part" {
		t.Errorf("section 1 = %+v", s1)
	}
	if s2.Lang != "fr" {
		t.Errorf("section 2 lang = %q", s2.Lang)
	}

	want := []string{"Chapter 1", "Part A", "Chapter 2"}
	if len(b.TOC) != len(want) {
		t.Fatalf("toc = %+v", b.TOC)
	}
	for i, label := range want {
		if b.TOC[i].Label != label {
			t.Errorf("toc[%d] = %q, want %q", i, b.TOC[i].Label, label)
		}
	}
	if b.TOC[1].Href != "OEBPS/Text/chapter 1.xhtml#part" {
		t.Errorf("toc href = %q", b.TOC[1].Href)
	}
	if b.SectionIndex(b.TOC[1].Href) != 0 {
		t.Errorf("toc entry does not resolve to a section")
	}
}

func TestLoadFallsBackToNCX(t *testing.T) {
	log, _ := test.NewNullLogger()
	b, err := Load(writeEPUB(t, files(false)), log)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"One", "One, part A", "Two"}
	if len(b.TOC) != len(want) {
		t.Fatalf("toc = %+v", b.TOC)
	}
	for i, label := range want {
		if b.TOC[i].Label != label {
			t.Errorf("toc[%d] = %q, want %q", i, b.TOC[i].Label, label)
		}
	}
}

func TestLoadRejectsMissingContainer(t *testing.T) {
	log, _ := test.NewNullLogger()
	if _, err := Load(writeEPUB(t, map[string]string{"mimetype": "application/epub+zip"}), log); err == nil {
		t.Fatal("expected error for archive without container")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct{ base, href, want string }{
		{".", "ch1.xhtml", "ch1.xhtml"},
		{"OEBPS", "Text/a%20b.xhtml#x", "OEBPS/Text/a b.xhtml#x"},
		{"OEBPS/Text", "../Images/i.png", "OEBPS/Images/i.png"},
		{"OEBPS", "/abs.xhtml", "abs.xhtml"},
	}
	for _, tt := range tests {
		if got := resolve(tt.base, tt.href); got != tt.want {
			t.Errorf("resolve(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
