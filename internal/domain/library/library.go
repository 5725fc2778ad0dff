package library

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry describes one book file in the books directory.
type Entry struct {
	File     string    `json:"file"`
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Lang     string    `json:"lang,omitempty"`
	Sections int       `json:"sections"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Error    string    `json:"error,omitempty"`
}

// BookLibrary is the indexed content of a books directory.
type BookLibrary struct {
	Dir   string  `json:"dir"`
	Books []Entry `json:"books"`
}

// Path returns the full path of e inside the library directory.
func (l *BookLibrary) Path(e Entry) string {
	return filepath.Join(l.Dir, e.File)
}

// Lookup finds a book by 1-based index, file name, or file name without
// extension (case-insensitive).
func (l *BookLibrary) Lookup(ref string) (Entry, bool) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(l.Books) {
			return l.Books[n-1], true
		}
		return Entry{}, false
	}
	for _, e := range l.Books {
		stem := strings.TrimSuffix(e.File, filepath.Ext(e.File))
		if strings.EqualFold(e.File, ref) || strings.EqualFold(stem, ref) {
			return e, true
		}
	}
	return Entry{}, false
}
