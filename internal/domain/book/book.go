package book

// TOCEntry is one line of a table of contents.
type TOCEntry struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Block is a paragraph-level piece of content.
type Block struct {
	Tag  string `json:"tag"`
	ID   string `json:"id,omitempty"`
	Lang string `json:"lang,omitempty"`
	Text string `json:"text"`
}

// Section is one spine item: a chapter file or a markdown part.
type Section struct {
	Href   string  `json:"href"`
	Title  string  `json:"title"`
	Lang   string  `json:"lang,omitempty"`
	Blocks []Block `json:"blocks"`
}

type Book struct {
	Path     string     `json:"path"`
	Title    string     `json:"title"`
	Author   string     `json:"author"`
	Lang     string     `json:"lang,omitempty"`
	Sections []Section  `json:"sections"`
	TOC      []TOCEntry `json:"toc"`
}

// SectionIndex returns the index of the section with the given href,
// ignoring any fragment, or -1.
func (b *Book) SectionIndex(href string) int {
	href, _ = SplitHref(href)
	for i, s := range b.Sections {
		if s.Href == href {
			return i
		}
	}
	return -1
}

// SplitHref separates "chapter.xhtml#frag" into its path and fragment.
func SplitHref(href string) (string, string) {
	for i := 0; i < len(href); i++ {
		if href[i] == '#' {
			return href[:i], href[i+1:]
		}
	}
	return href, ""
}
