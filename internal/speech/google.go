package speech

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/texttospeech/apiv1"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/gosimple/slug"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"github.com/sirupsen/logrus"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

const (
	defaultGoogleVoice = "en-US-Chirp3-HD-Charon"
	// bytes, a little under the 5000 byte request limit
	chunkLimit = 4800
	engineDir  = "google_classic"
)

// GoogleClassicEngine synthesises MP3 audio with Cloud Text-to-Speech, caches
// it on disk and plays it through the speaker.
type GoogleClassicEngine struct {
	events
	client    *texttospeech.Client
	log       logrus.FieldLogger
	config    Config
	tokenizer *sentences.DefaultSentenceTokenizer

	mu           sync.Mutex
	cacheRootDir string
	book         string
	voices       []Voice
	active       *googleUtterance
	sampleRate   beep.SampleRate
}

type googleUtterance struct {
	id        uint64
	cancel    context.CancelFunc
	ctrl      *beep.Ctrl
	streamers []beep.StreamSeekCloser
	paused    bool
}

func newGoogleClassicEngine(config Config, log logrus.FieldLogger) (*GoogleClassicEngine, error) {
	ctx := context.Background()
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	if err := os.MkdirAll(config.CachePath, 0755); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to load sentence tokenizer: %w", err)
	}

	return &GoogleClassicEngine{
		client:       client,
		log:          log.WithField("engine", EngineTypeGoogleClassic.String()),
		config:       config,
		tokenizer:    tokenizer,
		cacheRootDir: config.CachePath,
	}, nil
}

// SetBookContext groups cached audio under a directory named after the book.
func (g *GoogleClassicEngine) SetBookContext(title string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.book = slug.Make(title)
}

// getCacheDirectory returns the cache directory for the current book
func (g *GoogleClassicEngine) getCacheDirectory() string {
	if g.book == "" {
		return filepath.Join(g.cacheRootDir, engineDir)
	}
	return filepath.Join(g.cacheRootDir, engineDir, g.book)
}

func (g *GoogleClassicEngine) Speak(u Utterance) error {
	g.mu.Lock()
	if g.active != nil {
		g.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	gu := &googleUtterance{id: u.ID, cancel: cancel}
	g.active = gu
	cacheDir := g.getCacheDirectory()
	g.mu.Unlock()

	g.emit(Event{Kind: EventStart, Utterance: u.ID})
	go g.play(ctx, gu, u, cacheDir)
	return nil
}

func (g *GoogleClassicEngine) play(ctx context.Context, gu *googleUtterance, u Utterance, cacheDir string) {
	paths, err := g.synthesize(ctx, u, cacheDir)
	if err != nil {
		g.fail(gu, CodeSynthesisFailed, err)
		return
	}

	streamers := make([]beep.Streamer, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			g.fail(gu, CodePlaybackFailed, fmt.Errorf("failed to open cached MP3 %s: %w", path, err))
			return
		}
		streamer, format, err := mp3.Decode(f)
		if err != nil {
			f.Close()
			g.fail(gu, CodePlaybackFailed, fmt.Errorf("failed to decode MP3 %s: %w", path, err))
			return
		}

		rate, err := g.initSpeaker(format)
		if err != nil {
			streamer.Close()
			g.fail(gu, CodeAudioBusy, err)
			return
		}

		if !g.attach(gu, streamer) {
			return
		}

		if format.SampleRate != rate {
			streamers = append(streamers, beep.Resample(4, format.SampleRate, rate, streamer))
		} else {
			streamers = append(streamers, streamer)
		}
	}

	g.mu.Lock()
	if g.active != gu {
		g.mu.Unlock()
		return
	}
	gu.ctrl = &beep.Ctrl{Streamer: beep.Seq(streamers...), Paused: gu.paused}
	ctrl := gu.ctrl
	g.mu.Unlock()

	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// the callback runs under the speaker lock
		go g.finished(gu)
	})))
}

// initSpeaker initialises the speaker once, at the rate of the first clip.
func (g *GoogleClassicEngine) initSpeaker(format beep.Format) (beep.SampleRate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sampleRate != 0 {
		return g.sampleRate, nil
	}
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return 0, fmt.Errorf("failed to initialise speaker: %w", err)
	}
	g.sampleRate = format.SampleRate
	return g.sampleRate, nil
}

// attach records streamer for closing with gu. When gu was cancelled in the
// meantime the streamer is closed at once and attach reports false.
func (g *GoogleClassicEngine) attach(gu *googleUtterance, streamer beep.StreamSeekCloser) bool {
	g.mu.Lock()
	if g.active != gu {
		g.mu.Unlock()
		streamer.Close()
		return false
	}
	gu.streamers = append(gu.streamers, streamer)
	g.mu.Unlock()
	return true
}

// release clears gu as the active utterance and hands back its streamers.
// It reports false when gu is no longer active.
func (g *GoogleClassicEngine) release(gu *googleUtterance) ([]beep.StreamSeekCloser, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active != gu {
		return nil, false
	}
	g.active = nil
	streamers := gu.streamers
	gu.streamers = nil
	return streamers, true
}

func (g *GoogleClassicEngine) finished(gu *googleUtterance) {
	streamers, ok := g.release(gu)
	if !ok {
		return
	}
	closeStreamers(streamers)
	g.emit(Event{Kind: EventEnd, Utterance: gu.id})
}

func (g *GoogleClassicEngine) fail(gu *googleUtterance, code string, err error) {
	streamers, ok := g.release(gu)
	if !ok {
		return
	}
	closeStreamers(streamers)
	g.log.WithError(err).WithField("code", code).Warn("Utterance failed")
	g.emit(Event{Kind: EventError, Utterance: gu.id, Code: code, Err: err})
}

// synthesize returns the cached MP3 chunks for u, requesting any that are missing.
func (g *GoogleClassicEngine) synthesize(ctx context.Context, u Utterance, cacheDir string) ([]string, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}

	voice, languageCode := g.selectVoice(ctx, u.Options)
	audioCfg := g.audioConfig(voice, u.Options)

	contentHash := md5Sum(fmt.Sprintf("%s|%s|%v", u.Text, voice, audioCfg))[:12]
	chunks := splitIntoChunks(g.tokenizer, u.Text, chunkLimit)

	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		chunkPath := filepath.Join(cacheDir, fmt.Sprintf("%s_%d.mp3", contentHash, i))
		paths = append(paths, chunkPath)

		if _, err := os.Stat(chunkPath); err == nil {
			g.log.WithField("path", chunkPath).Debug("Using cached audio")
			continue
		}

		req := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: languageCode,
				Name:         voice,
			},
			AudioConfig: audioCfg,
		}
		resp, err := g.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d: %w", i, err)
		}

		if err := os.WriteFile(chunkPath, resp.AudioContent, 0644); err != nil {
			return nil, fmt.Errorf("failed to write MP3 chunk %d to %s: %w", i, chunkPath, err)
		}
		g.log.WithFields(logrus.Fields{"chunk": i + 1, "chunks": len(chunks), "path": chunkPath}).Debug("Cached audio chunk")
	}
	return paths, nil
}

// selectVoice resolves the voice name and its language code.
func (g *GoogleClassicEngine) selectVoice(ctx context.Context, opts Options) (string, string) {
	voice := opts.Voice
	if voice == "" && g.config.Voice != "" && g.config.Voice != "default" {
		voice = g.config.Voice
	}

	locale := NormalizeLocale(opts.VoiceLocale, NormalizeLocale(g.config.DefaultLocale, "en-US"))
	if voice == "" {
		voices, err := g.cachedVoices(ctx)
		if err != nil {
			g.log.WithError(err).Warn("Failed to list voices")
		}
		voice = MatchVoice(voices, locale, defaultGoogleVoice)
	}

	// Voice names start with their language code, e.g. en-GB-Chirp3-HD-Umbriel
	if parts := strings.SplitN(voice, "-", 3); len(parts) == 3 {
		return voice, parts[0] + "-" + parts[1]
	}
	return voice, locale
}

func (g *GoogleClassicEngine) audioConfig(voice string, opts Options) *texttospeechpb.AudioConfig {
	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}

	// Chirp voices don't support speakingRate/pitch
	if strings.Contains(strings.ToLower(voice), "chirp") {
		return audioCfg
	}

	audioCfg.SpeakingRate = clamp(orDefault(opts.Rate, orDefault(g.config.Rate, 1)), 0.25, 4)
	// pitch 1 is neutral, the API takes semitones in [-20, 20]
	audioCfg.Pitch = clamp((orDefault(opts.Pitch, orDefault(g.config.Pitch, 1))-1)*20, -20, 20)
	// volume is linear gain, the API takes dB in [-96, 16]
	audioCfg.VolumeGainDb = clamp(20*math.Log10(orDefault(opts.Volume, orDefault(g.config.Volume, 1))), -96, 16)
	return audioCfg
}

func (g *GoogleClassicEngine) cachedVoices(ctx context.Context) ([]Voice, error) {
	g.mu.Lock()
	voices := g.voices
	g.mu.Unlock()
	if voices != nil {
		return voices, nil
	}

	voices, err := g.listVoices(ctx)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.voices = voices
	g.mu.Unlock()
	return voices, nil
}

func (g *GoogleClassicEngine) listVoices(ctx context.Context) ([]Voice, error) {
	resp, err := g.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, err
	}
	voices := make([]Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voice := Voice{
			Name:    v.Name,
			Gender:  strings.ToLower(v.SsmlGender.String()),
			Natural: strings.Contains(v.Name, "Chirp") || strings.Contains(v.Name, "Neural2") || strings.Contains(v.Name, "Wavenet"),
		}
		if len(v.LanguageCodes) > 0 {
			voice.LanguageCode = v.LanguageCodes[0]
		}
		voices = append(voices, voice)
	}
	return voices, nil
}

func (g *GoogleClassicEngine) Voices() ([]Voice, error) {
	return g.cachedVoices(context.Background())
}

func (g *GoogleClassicEngine) Pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	gu := g.active
	if gu == nil {
		return nil
	}
	gu.paused = true
	if gu.ctrl != nil {
		speaker.Lock()
		gu.ctrl.Paused = true
		speaker.Unlock()
	}
	return nil
}

func (g *GoogleClassicEngine) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	gu := g.active
	if gu == nil {
		return nil
	}
	gu.paused = false
	if gu.ctrl != nil {
		speaker.Lock()
		gu.ctrl.Paused = false
		speaker.Unlock()
	}
	return nil
}

func (g *GoogleClassicEngine) Cancel() error {
	g.mu.Lock()
	gu := g.active
	if gu == nil {
		g.mu.Unlock()
		return nil
	}
	g.active = nil
	ctrl, streamers := gu.ctrl, gu.streamers
	gu.streamers = nil
	g.mu.Unlock()

	gu.cancel()
	if ctrl != nil {
		speaker.Lock()
		ctrl.Streamer = nil
		speaker.Unlock()
	}
	closeStreamers(streamers)
	return nil
}

func (g *GoogleClassicEngine) IsSpeaking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active != nil
}

func (g *GoogleClassicEngine) IsPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active != nil && g.active.paused
}

func (g *GoogleClassicEngine) Close() error {
	_ = g.Cancel()
	return g.client.Close()
}

// CacheStats reports the number and total size of MP3 files cached under
// cachePath by the googleclassic engine.
func CacheStats(cachePath string) (files int64, size int64, err error) {
	root := filepath.Join(cachePath, engineDir)
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Continue walking despite errors
		}
		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".mp3") {
			files++
			size += info.Size()
		}
		return nil
	})
	return files, size, err
}

// ClearCache removes all audio cached under cachePath.
func ClearCache(cachePath string) error {
	if err := os.RemoveAll(filepath.Join(cachePath, engineDir)); err != nil {
		return fmt.Errorf("failed to clear audio cache: %w", err)
	}
	return nil
}

func closeStreamers(streamers []beep.StreamSeekCloser) {
	for _, s := range streamers {
		s.Close()
	}
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
