package speech

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultWordDuration is how long the mock engine takes per word at rate 1.
const DefaultWordDuration = 400 * time.Millisecond

// MockEngine simulates speech with timers so the narrator can run without
// audio hardware.
type MockEngine struct {
	events
	log logrus.FieldLogger

	mu           sync.Mutex
	wordDuration time.Duration
	rate         float64
	active       *mockUtterance
	spoken       []Utterance
}

type mockUtterance struct {
	u         Utterance
	timer     *time.Timer
	started   time.Time
	remaining time.Duration
	paused    bool
}

func NewMockEngine(c Config, log logrus.FieldLogger) *MockEngine {
	rate := c.Rate
	if rate <= 0 {
		rate = 1
	}
	return &MockEngine{
		log:          log,
		wordDuration: DefaultWordDuration,
		rate:         rate,
	}
}

// SetWordDuration changes the simulated time per word.
func (m *MockEngine) SetWordDuration(d time.Duration) {
	m.mu.Lock()
	m.wordDuration = d
	m.mu.Unlock()
}

func (m *MockEngine) Speak(u Utterance) error {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return ErrBusy
	}

	rate := u.Options.Rate
	if rate <= 0 {
		rate = m.rate
	}
	words := len(strings.Fields(u.Text))
	if words == 0 {
		words = 1
	}
	d := time.Duration(float64(words) * float64(m.wordDuration) / rate)

	mu := &mockUtterance{u: u, started: time.Now(), remaining: d}
	m.active = mu
	m.spoken = append(m.spoken, u)
	mu.timer = time.AfterFunc(d, func() { m.finish(mu) })
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"utterance": u.ID, "duration": d}).Debug("Mock speaking")
	m.emit(Event{Kind: EventStart, Utterance: u.ID})
	return nil
}

func (m *MockEngine) finish(mu *mockUtterance) {
	m.mu.Lock()
	if m.active != mu || mu.paused {
		m.mu.Unlock()
		return
	}
	m.active = nil
	m.mu.Unlock()

	m.emit(Event{Kind: EventEnd, Utterance: mu.u.ID})
}

func (m *MockEngine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mu := m.active; mu != nil && !mu.paused {
		mu.pause()
	}
	return nil
}

// pause stops the timer and keeps what is left of the utterance. A timer
// that already fired leaves nothing; its finish call sees paused and waits
// for Resume. Callers hold m.mu.
func (mu *mockUtterance) pause() {
	mu.timer.Stop()
	mu.remaining = max(mu.remaining-time.Since(mu.started), 0)
	mu.paused = true
}

func (m *MockEngine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mu := m.active
	if mu == nil || !mu.paused {
		return nil
	}
	mu.paused = false
	mu.started = time.Now()
	mu.timer = time.AfterFunc(mu.remaining, func() { m.finish(mu) })
	return nil
}

func (m *MockEngine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.active.timer.Stop()
		m.active = nil
	}
	return nil
}

func (m *MockEngine) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

func (m *MockEngine) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && m.active.paused
}

// Spoken returns every utterance accepted so far.
func (m *MockEngine) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.spoken...)
}

func (m *MockEngine) Voices() ([]Voice, error) {
	return []Voice{{Name: "mock-voice", LanguageCode: "en-US"}}, nil
}

func (m *MockEngine) Close() error {
	return m.Cancel()
}
