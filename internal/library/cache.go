package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/maruel/natural"
	"github.com/sirupsen/logrus"

	"readaloud/internal/document"
	domain "readaloud/internal/domain/library"
)

// Cache indexes a books directory and keeps the index as JSON
type Cache struct {
	booksDir  string
	cacheFile string
	maxAge    time.Duration
	log       logrus.FieldLogger
}

// CachedLibraryData represents the cached library data
type CachedLibraryData struct {
	Library     domain.BookLibrary `json:"library"`
	LastUpdated time.Time          `json:"last_updated"`
	TotalBooks  int                `json:"total_books"`
}

// Status describes the cache file.
type Status struct {
	File         string
	Exists       bool
	Size         int64
	LastModified time.Time
	Fresh        bool
	MaxAge       time.Duration
}

// NewCache creates a cache for booksDir stored under cacheDir
func NewCache(booksDir, cacheDir string, maxAge time.Duration, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	// Create cache directory if it doesn't exist
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.WithError(err).Warn("Failed to create cache directory")
	}

	return &Cache{
		booksDir:  booksDir,
		cacheFile: filepath.Join(cacheDir, "library_cache.json"),
		maxAge:    maxAge,
		log:       log,
	}
}

// GetLibrary returns the library index, from cache when fresh
func (c *Cache) GetLibrary() (*domain.BookLibrary, error) {
	if c.isCacheFresh() {
		c.log.Debug("Loading library from cache")
		if lib, err := c.loadFromCache(); err == nil {
			return lib, nil
		}
	}
	return c.Refresh()
}

// Refresh rescans the books directory and rewrites the cache. When the
// scan fails a stale cache is returned instead.
func (c *Cache) Refresh() (*domain.BookLibrary, error) {
	c.log.WithField("dir", c.booksDir).Info("Scanning books directory")
	lib, err := c.scan()
	if err != nil {
		// If the scan fails, try to load from cache even if stale
		c.log.WithError(err).Warn("Scan failed, trying stale cache")
		if cached, cacheErr := c.loadFromCache(); cacheErr == nil {
			return cached, nil
		}
		return nil, fmt.Errorf("failed to scan library and no cache available: %w", err)
	}

	if err := c.saveToCache(lib); err != nil {
		c.log.WithError(err).Warn("Failed to save to cache")
	}
	return lib, nil
}

// isCacheFresh checks the cache age and that the directory has not
// changed since it was written
func (c *Cache) isCacheFresh() bool {
	info, err := os.Stat(c.cacheFile)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) >= c.maxAge {
		return false
	}
	if dir, err := os.Stat(c.booksDir); err == nil && dir.ModTime().After(info.ModTime()) {
		return false
	}
	return true
}

func (c *Cache) loadFromCache() (*domain.BookLibrary, error) {
	file, err := os.Open(c.cacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	var cached CachedLibraryData
	if err := json.NewDecoder(file).Decode(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}
	if abs(cached.Library.Dir) != abs(c.booksDir) {
		return nil, fmt.Errorf("cache belongs to %s", cached.Library.Dir)
	}

	c.log.WithFields(logrus.Fields{
		"books":        len(cached.Library.Books),
		"last_updated": cached.LastUpdated.Format(time.RFC3339),
	}).Debug("Loaded library from cache")

	return &cached.Library, nil
}

func (c *Cache) saveToCache(lib *domain.BookLibrary) error {
	cached := CachedLibraryData{
		Library:     *lib,
		LastUpdated: time.Now(),
		TotalBooks:  len(lib.Books),
	}

	file, err := os.Create(c.cacheFile)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cached); err != nil {
		return fmt.Errorf("failed to encode cache data: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"books": len(lib.Books),
		"file":  c.cacheFile,
	}).Debug("Saved library to cache")
	return nil
}

// scan lists supported files in natural order and reads their metadata.
func (c *Cache) scan() (*domain.BookLibrary, error) {
	entries, err := os.ReadDir(c.booksDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read books directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && document.Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(natural.StringSlice(names))

	lib := &domain.BookLibrary{Dir: c.booksDir, Books: make([]domain.Entry, 0, len(names))}
	for _, name := range names {
		lib.Books = append(lib.Books, c.describe(filepath.Join(c.booksDir, name)))
	}
	return lib, nil
}

func (c *Cache) describe(path string) domain.Entry {
	entry := domain.Entry{File: filepath.Base(path), Title: filepath.Base(path)}
	if info, err := os.Stat(path); err == nil {
		entry.Size = info.Size()
		entry.Modified = info.ModTime()
	}

	b, err := document.Open(path, c.log)
	if err != nil {
		c.log.WithError(err).WithField("file", entry.File).Warn("Unable to read book")
		entry.Error = err.Error()
		return entry
	}
	if b.Title != "" {
		entry.Title = b.Title
	}
	entry.Author = b.Author
	entry.Lang = b.Lang
	entry.Sections = len(b.Sections)
	return entry
}

// ClearCache removes the cache file
func (c *Cache) ClearCache() error {
	if err := os.Remove(c.cacheFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	c.log.Info("Cleared library cache")
	return nil
}

// Status returns information about the cache file
func (c *Cache) Status() Status {
	st := Status{File: c.cacheFile, MaxAge: c.maxAge}
	if info, err := os.Stat(c.cacheFile); err == nil {
		st.Exists = true
		st.Size = info.Size()
		st.LastModified = info.ModTime()
		st.Fresh = c.isCacheFresh()
	}
	return st
}

func abs(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}
