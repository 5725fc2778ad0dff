// Package reader wires documents, the renderer, a speech engine and the
// narration controller into the readaloud commands.
package reader

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"readaloud/internal/cli/scheme/colours"
	"readaloud/internal/config"
	"readaloud/internal/document"
	"readaloud/internal/domain/book"
	domain "readaloud/internal/domain/library"
	"readaloud/internal/library"
	"readaloud/internal/render/paged"
	"readaloud/internal/speech"
)

// App is the readaloud application.
type App struct {
	settings *config.Settings
	library  *library.Cache
	log      *logrus.Logger

	in  io.Reader
	out io.Writer

	mu     sync.Mutex
	engine speech.Engine
	// restore puts the terminal back after a raw-mode session
	restore func() error

	ctx    context.Context
	Cancel context.CancelFunc
}

func NewApp(settings *config.Settings) *App {
	log := logrus.StandardLogger()
	configureLogging(log, settings.Log)

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		settings: settings,
		library:  library.NewCache(settings.Library.Dir, settings.Library.CacheDir, settings.Library.CacheMaxAge, log),
		log:      log,
		in:       os.Stdin,
		out:      os.Stdout,
		ctx:      ctx,
		Cancel:   cancel,
	}
}

func configureLogging(log *logrus.Logger, cfg config.Log) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.WithError(err).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Shutdown stops speech, releases the engine and restores the terminal.
// It is safe to call more than once and from a signal handler.
func (a *App) Shutdown() error {
	a.Cancel()

	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.engine != nil {
		err = multierr.Combine(a.engine.Cancel(), a.engine.Close())
		a.engine = nil
	}
	if a.restore != nil {
		err = multierr.Append(err, a.restore())
		a.restore = nil
	}
	return err
}

func (a *App) setRestore(fn func() error) {
	a.mu.Lock()
	a.restore = fn
	a.mu.Unlock()
}

func (a *App) ShowWelcome() {
	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "Welcome to readaloud")
	fmt.Fprintln(a.out)
	colours.Info.Fprintln(a.out, "Available commands:")
	fmt.Fprintln(a.out, "  • readaloud read [book]  - Narrate a book")
	fmt.Fprintln(a.out, "  • readaloud toc [book]   - Show a table of contents")
	fmt.Fprintln(a.out, "  • readaloud library      - Browse the books directory")
	fmt.Fprintln(a.out, "  • readaloud voices       - List voices of the speech engine")
	fmt.Fprintln(a.out, "  • readaloud settings     - Show or change settings")
}

// Read opens a book and runs an interactive narration session.
func (a *App) Read(cmd *cobra.Command, args []string) {
	applyReadFlags(cmd, a.settings)

	b, err := a.openBook(args)
	if err != nil {
		colours.Error.Fprintf(a.out, "Error: %v\n", err)
		return
	}

	engine, err := a.speechEngine()
	if err != nil {
		colours.Error.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	if s, ok := engine.(speech.BookContextSetter); ok {
		s.SetBookContext(b.Title)
	}

	chapter, _ := cmd.Flags().GetString("chapter")
	autoplay, _ := cmd.Flags().GetBool("autoplay")

	sess, err := newSession(a.ctx, b, engine, a.settings, a.log, a.in, a.out)
	if err != nil {
		colours.Error.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	sess.onRaw = a.setRestore
	if err := sess.run(chapter, autoplay); err != nil {
		colours.Error.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	colours.Success.Fprintln(a.out, "Finished reading. Goodbye!")
}

// ShowTOC prints the table of contents of a book.
func (a *App) ShowTOC(cmd *cobra.Command, args []string) {
	b, err := a.openBook(args)
	if err != nil {
		colours.Error.Fprintf(a.out, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, b.Title)
	if b.Author != "" {
		colours.Author.Fprintf(a.out, "by %s\n", b.Author)
	}
	fmt.Fprintln(a.out)
	for i, e := range paged.New(b, paged.Options{}, a.log).TOC() {
		fmt.Fprintf(a.out, "  %2d. %s ", i+1, e.Label)
		colours.Info.Fprintf(a.out, "(%s)\n", e.Href)
	}
}

// ListLibrary prints the books directory index.
func (a *App) ListLibrary(cmd *cobra.Command, args []string) {
	lib, err := a.library.GetLibrary()
	if err != nil {
		colours.Error.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	a.printLibrary(lib)
}

// RefreshLibrary rescans the books directory.
func (a *App) RefreshLibrary(cmd *cobra.Command, args []string) {
	colours.Info.Fprintln(a.out, "Refreshing library cache...")
	if err := a.library.ClearCache(); err != nil {
		colours.Error.Fprintf(a.out, "Failed to clear cache: %v\n", err)
		return
	}
	lib, err := a.library.Refresh()
	if err != nil {
		colours.Error.Fprintf(a.out, "Failed to refresh cache: %v\n", err)
		return
	}
	colours.Success.Fprintf(a.out, "Cache refreshed, %d books indexed\n", len(lib.Books))
}

// ShowCacheStatus displays information about the library cache.
func (a *App) ShowCacheStatus(cmd *cobra.Command, args []string) {
	colours.Title.Fprintln(a.out, "Library Cache Status")

	st := a.library.Status()
	if !st.Exists {
		colours.Warning.Fprintln(a.out, "Cache does not exist")
		colours.Info.Fprintln(a.out, "Run 'readaloud library refresh' to create it")
		return
	}
	colours.Success.Fprintln(a.out, "Cache exists")
	colours.Info.Fprintf(a.out, "Location: %s\n", st.File)
	colours.Info.Fprintf(a.out, "Size: %d bytes\n", st.Size)
	colours.Info.Fprintf(a.out, "Last modified: %s\n", st.LastModified.Format("2006-01-02 15:04:05"))
	if st.Fresh {
		colours.Success.Fprintln(a.out, "Cache is fresh")
	} else {
		colours.Warning.Fprintln(a.out, "Cache is stale")
	}
	colours.Info.Fprintf(a.out, "Max age: %.1f hours\n", st.MaxAge.Hours())

	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "Audio Cache")
	files, size, err := speech.CacheStats(a.settings.Speech.CachePath)
	if err != nil {
		colours.Error.Fprintf(a.out, "Unable to read audio cache: %v\n", err)
		return
	}
	colours.Info.Fprintf(a.out, "Location: %s\n", a.settings.Speech.CachePath)
	colours.Info.Fprintf(a.out, "Clips: %d (%.1f MB)\n", files, float64(size)/(1<<20))
}

// ListVoices prints the voices of the configured engine.
func (a *App) ListVoices(cmd *cobra.Command, args []string) {
	applyReadFlags(cmd, a.settings)

	colours.Title.Fprintln(a.out, "Engines")
	for _, e := range speech.GetAvailableEngines() {
		if e.String() == a.settings.Speech.Engine {
			colours.Success.Fprintf(a.out, "  %s (selected)\n", e)
			continue
		}
		fmt.Fprintf(a.out, "  %s\n", e)
	}
	fmt.Fprintln(a.out)

	engine, err := a.speechEngine()
	if err != nil {
		colours.Error.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	voices, err := engine.Voices()
	if err != nil {
		colours.Error.Fprintf(a.out, "Unable to list voices: %v\n", err)
		return
	}

	colours.Title.Fprintf(a.out, "Voices (%s)\n", a.settings.Speech.Engine)
	for _, v := range voices {
		fmt.Fprintf(a.out, "  %-32s %-8s", v.Name, v.LanguageCode)
		if v.Gender != "" {
			colours.Author.Fprintf(a.out, " %s", v.Gender)
		}
		if v.Natural {
			colours.Success.Fprint(a.out, " natural")
		}
		fmt.Fprintln(a.out)
	}
}

// ConfigureSettings shows the effective settings, persists the reading
// mode or clears cached audio.
func (a *App) ConfigureSettings(cmd *cobra.Command, args []string) {
	wipe, _ := cmd.Flags().GetBool("clear-audio-cache")
	if wipe {
		if err := speech.ClearCache(a.settings.Speech.CachePath); err != nil {
			colours.Error.Fprintf(a.out, "Error: %v\n", err)
			return
		}
		colours.Success.Fprintln(a.out, "Audio cache cleared")
	}
	mode, _ := cmd.Flags().GetString("reading-mode")
	if mode != "" {
		if err := config.SaveReadingMode(mode); err != nil {
			colours.Error.Fprintf(a.out, "Error: %v\n", err)
			return
		}
		a.settings.UI.ReadingMode = mode
		colours.Success.Fprintf(a.out, "Reading mode set to %s\n", mode)
		return
	}
	if wipe {
		return
	}

	out, err := config.Dump(a.settings)
	if err != nil {
		colours.Error.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	colours.Title.Fprintln(a.out, "Settings")
	fmt.Fprint(a.out, string(out))
}

func (a *App) printLibrary(lib *domain.BookLibrary) {
	fmt.Fprintln(a.out)
	colours.Title.Fprintf(a.out, "Books in %s\n", lib.Dir)
	fmt.Fprintln(a.out)

	for i, e := range lib.Books {
		fmt.Fprintf(a.out, "  %d. ", i+1)
		colours.Title.Fprint(a.out, e.Title)
		if e.Author != "" {
			fmt.Fprint(a.out, " by ")
			colours.Author.Fprint(a.out, e.Author)
		}
		fmt.Fprintln(a.out)
		if e.Error != "" {
			colours.Warning.Fprintf(a.out, "     %s: %s\n", e.File, e.Error)
			continue
		}
		colours.Info.Fprintf(a.out, "     %s, %d sections\n", e.File, e.Sections)
	}
	if len(lib.Books) == 0 {
		colours.Warning.Fprintln(a.out, "No books found.")
	}
}

// openBook resolves a path, a library index or a library file name. With no
// argument the user picks from the library.
func (a *App) openBook(args []string) (*book.Book, error) {
	if len(args) == 0 {
		return a.selectBook()
	}

	ref := args[0]
	if _, err := os.Stat(ref); err == nil {
		return document.Open(ref, a.log)
	}

	lib, err := a.library.GetLibrary()
	if err != nil {
		return nil, err
	}
	e, ok := lib.Lookup(ref)
	if !ok {
		return nil, fmt.Errorf("book %q not found", ref)
	}
	return document.Open(lib.Path(e), a.log)
}

func (a *App) selectBook() (*book.Book, error) {
	lib, err := a.library.GetLibrary()
	if err != nil {
		return nil, err
	}
	if len(lib.Books) == 0 {
		return nil, fmt.Errorf("no books in %s", lib.Dir)
	}
	a.printLibrary(lib)

	fmt.Fprintln(a.out)
	colours.Prompt.Fprint(a.out, "Enter the number of a book (or 'q' to quit): ")
	input, _ := bufio.NewReader(a.in).ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "q" || input == "quit" {
		return nil, fmt.Errorf("no book selected")
	}

	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > len(lib.Books) {
		return nil, fmt.Errorf("invalid selection %q", input)
	}
	return document.Open(lib.Path(lib.Books[choice-1]), a.log)
}

func (a *App) speechEngine() (speech.Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine != nil {
		return a.engine, nil
	}
	s := a.settings.Speech
	engine, err := speech.NewEngine(speech.Config{
		Type:          s.Engine,
		Rate:          s.Rate,
		Pitch:         s.Pitch,
		Volume:        s.Volume,
		Voice:         s.Voice,
		DefaultLocale: s.DefaultLocale,
		CachePath:     s.CachePath,
	}, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech engine: %w", err)
	}
	a.engine = engine
	return engine, nil
}

func applyReadFlags(cmd *cobra.Command, s *config.Settings) {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		s.Speech.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("voice") {
		s.Speech.Voice, _ = flags.GetString("voice")
	}
	if flags.Changed("rate") {
		s.Speech.Rate, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("pitch") {
		s.Speech.Pitch, _ = flags.GetFloat64("pitch")
	}
}
