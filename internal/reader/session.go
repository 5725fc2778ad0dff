package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"readaloud/internal/cli/view"
	"readaloud/internal/config"
	"readaloud/internal/domain/book"
	"readaloud/internal/narration/eventloop"
	"readaloud/internal/narration/locator"
	"readaloud/internal/narration/playback"
	"readaloud/internal/narration/retry"
	"readaloud/internal/narration/visibility"
	"readaloud/internal/render/paged"
	"readaloud/internal/speech"
)

const (
	keyCtrlC     = 3
	keyEscape    = 27
	keyBackspace = 127
)

// session is one interactive narration of a book. Everything except the
// key reader runs on loop.
type session struct {
	id       string
	book     *book.Book
	settings *config.Settings
	log      logrus.FieldLogger

	in  io.Reader
	out io.Writer

	ctx    context.Context
	cancel context.CancelFunc

	loop     *eventloop.Loop
	renderer *paged.Renderer
	engine   speech.Engine
	ctrl     *playback.Controller
	painter  *view.Painter
	raw      bool
	// onRaw receives the terminal restore function while raw mode is on
	onRaw func(restore func() error)

	mode     string
	toc      []book.TOCEntry
	choosing bool
	choice   string
	notice   string
}

func newSession(ctx context.Context, b *book.Book, engine speech.Engine, settings *config.Settings,
	log logrus.FieldLogger, in io.Reader, out io.Writer) (*session, error) {

	if len(b.Sections) == 0 {
		return nil, fmt.Errorf("%s has no sections", b.Title)
	}

	id := uuid.NewString()
	log = log.WithFields(logrus.Fields{"session": id, "book": b.Title})

	fd := -1
	if f, ok := out.(*os.File); ok {
		fd = int(f.Fd())
	}
	lines, columns := view.PageGeometry(fd, settings.Render.PageLines, settings.Render.PageColumns)

	renderer := paged.New(b, paged.Options{
		PageLines:       lines,
		PageColumns:     columns,
		IsolateSections: settings.Render.IsolateSections,
		CrossSections:   settings.Render.CrossSections,
	}, log)

	n := settings.Narration
	voice := speech.Options{
		Pitch:  settings.Speech.Pitch,
		Rate:   settings.Speech.Rate,
		Volume: settings.Speech.Volume,
	}
	if settings.Speech.Voice != "default" {
		voice.Voice = settings.Speech.Voice
	}
	cfg := playback.Config{
		SettleDelay:      n.SettleDelay,
		Retry:            retry.Policy{MaxRetries: n.MaxRetries, Backoff: n.RetryBackoff},
		StartMinLength:   n.StartMinLength,
		RelaxedMinLength: n.RelaxedMinLength,
		Voice:            voice,
	}

	ctx, cancel := context.WithCancel(ctx)
	loop := eventloop.New()
	loc := locator.New(n.UnitTags, settings.Speech.DefaultLocale, log)
	ctrl := playback.New(ctx, loop, renderer, engine, loc, visibility.New(n.VisibilityRatio), cfg, log)

	s := &session{
		id:       id,
		book:     b,
		settings: settings,
		log:      log,
		in:       in,
		out:      out,
		ctx:      ctx,
		cancel:   cancel,
		loop:     loop,
		renderer: renderer,
		engine:   engine,
		ctrl:     ctrl,
		mode:     settings.UI.ReadingMode,
		toc:      renderer.TOC(),
	}
	s.raw = isTerminal(in)
	s.painter = view.NewPainter(out, columns, s.mode, s.raw)

	ctrl.OnChange(func(playback.Snapshot) { s.paint() })
	ctrl.OnError(func(err error) {
		s.notice = err.Error()
		s.paint()
	})
	return s, nil
}

// run displays the starting chapter and processes keys until the user
// quits or the context ends.
func (s *session) run(chapter string, autoplay bool) error {
	defer s.cancel()

	href := ""
	if chapter != "" {
		var ok bool
		if href, ok = s.findChapter(chapter); !ok {
			return fmt.Errorf("chapter %q not found", chapter)
		}
	}
	if err := s.renderer.Display(s.ctx, href); err != nil {
		return err
	}

	if s.raw {
		fd := int(s.in.(*os.File).Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("unable to switch terminal to raw mode: %w", err)
		}
		restore := func() error { return term.Restore(fd, state) }
		if s.onRaw != nil {
			s.onRaw(restore)
			defer s.onRaw(nil)
		}
		defer restore()
	}

	s.log.Info("Narration session started")
	go s.readKeys()

	s.loop.Post(s.paint)
	if autoplay {
		s.loop.Post(s.ctrl.TogglePlayPause)
	}

	err := s.loop.Run(s.ctx)
	// the loop has stopped, so this goroutine owns the controller again
	s.ctrl.Stop()
	s.log.Info("Narration session ended")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *session) readKeys() {
	buf := make([]byte, 1)
	for {
		n, err := s.in.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.WithError(err).Warn("Failed to read key")
			}
			s.cancel()
			return
		}
		if n == 0 {
			continue
		}
		key := buf[0]
		s.loop.Post(func() { s.handleKey(key) })
	}
}

// handleKey maps a key press to one controller operation.
func (s *session) handleKey(key byte) {
	if s.choosing {
		s.handleMenuKey(key)
		return
	}

	switch key {
	case ' ', 'p':
		s.notice = ""
		s.ctrl.TogglePlayPause()
	case 's':
		s.ctrl.Stop()
	case 'n':
		s.ctrl.NextPage()
	case 'b':
		s.ctrl.PrevPage()
	case 't':
		s.choosing = true
		s.choice = ""
		s.paint()
	case 'm':
		s.cycleMode()
	case 'q', keyCtrlC:
		s.cancel()
	}
}

func (s *session) handleMenuKey(key byte) {
	switch {
	case key >= '0' && key <= '9':
		s.choice += string(key)
	case key == keyBackspace && s.choice != "":
		s.choice = s.choice[:len(s.choice)-1]
	case key == '\r' || key == '\n':
		s.choosing = false
		n, err := strconv.Atoi(s.choice)
		if err != nil || n < 1 || n > len(s.toc) {
			s.notice = fmt.Sprintf("No chapter %q", s.choice)
			break
		}
		s.notice = ""
		s.ctrl.JumpTo(s.toc[n-1].Href)
	case key == keyEscape || key == 't' || key == 'q':
		s.choosing = false
	}
	s.paint()
}

func (s *session) cycleMode() {
	s.mode = config.NextReadingMode(s.mode)
	s.painter.SetMode(s.mode)
	if err := config.SaveReadingMode(s.mode); err != nil {
		s.log.WithError(err).Warn("Unable to persist reading mode")
	}
	s.paint()
}

func (s *session) paint() {
	if s.choosing {
		items := make([]string, 0, len(s.toc))
		for _, e := range s.toc {
			items = append(items, e.Label)
		}
		s.painter.PaintMenu(s.book.Title, items, s.choice)
		return
	}
	s.painter.Paint(s.renderer.Root(), view.Status{
		Title:    s.book.Title,
		Sections: len(s.book.Sections),
		Location: s.renderer.CurrentLocation(),
		State:    s.ctrl.State().String(),
		Mode:     s.mode,
		Notice:   s.notice,
	})
}

// findChapter matches a TOC label (case-insensitive) or a spine href.
func (s *session) findChapter(ref string) (string, bool) {
	for _, e := range s.toc {
		if strings.EqualFold(e.Label, ref) || e.Href == ref {
			return e.Href, true
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(s.toc) {
		return s.toc[n-1].Href, true
	}
	if s.book.SectionIndex(ref) >= 0 {
		return ref, true
	}
	return "", false
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
