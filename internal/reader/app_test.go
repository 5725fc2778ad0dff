package reader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/cobra"

	"readaloud/internal/config"
	"readaloud/internal/library"
)

func newTestApp(t *testing.T, settings *config.Settings) (*App, *bytes.Buffer) {
	t.Helper()
	log, _ := test.NewNullLogger()

	dir := t.TempDir()
	settings.Library.Dir = filepath.Join(dir, "books")
	settings.Library.CacheDir = filepath.Join(dir, "cache")
	settings.Speech.CachePath = filepath.Join(dir, "audio")

	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		settings: settings,
		library:  library.NewCache(settings.Library.Dir, settings.Library.CacheDir, settings.Library.CacheMaxAge, log),
		log:      log,
		in:       strings.NewReader(""),
		out:      &out,
		ctx:      ctx,
		Cancel:   cancel,
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return a, &out
}

func writeClip(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListVoices_ShowsEngines(t *testing.T) {
	a, out := newTestApp(t, testSettings(t))

	cmd := &cobra.Command{}
	cmd.Flags().String("engine", "", "")
	cmd.Flags().String("voice", "", "")
	a.ListVoices(cmd, nil)

	got := out.String()
	for _, want := range []string{"Engines", "mock (selected)", "espeak", "Voices (mock)"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestShowCacheStatus_ReportsAudioCache(t *testing.T) {
	a, out := newTestApp(t, testSettings(t))
	if err := os.MkdirAll(a.settings.Library.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := a.library.Refresh(); err != nil {
		t.Fatal(err)
	}
	clips := filepath.Join(a.settings.Speech.CachePath, "google_classic", "test-book")
	writeClip(t, clips, "a_0.mp3", 1024)
	writeClip(t, clips, "a_1.mp3", 1024)

	a.ShowCacheStatus(&cobra.Command{}, nil)

	got := out.String()
	for _, want := range []string{"Cache exists", "Audio Cache", "Clips: 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestConfigureSettings_ClearAudioCache(t *testing.T) {
	a, out := newTestApp(t, testSettings(t))
	clips := filepath.Join(a.settings.Speech.CachePath, "google_classic")
	writeClip(t, clips, "a_0.mp3", 16)

	cmd := &cobra.Command{}
	cmd.Flags().String("reading-mode", "", "")
	cmd.Flags().Bool("clear-audio-cache", false, "")
	if err := cmd.Flags().Set("clear-audio-cache", "true"); err != nil {
		t.Fatal(err)
	}
	a.ConfigureSettings(cmd, nil)

	if _, err := os.Stat(clips); !os.IsNotExist(err) {
		t.Errorf("audio cache still present: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "Audio cache cleared") || strings.Contains(got, "Settings") {
		t.Errorf("output = %q", got)
	}
}
