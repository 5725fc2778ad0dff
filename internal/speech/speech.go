// Package speech drives text-to-speech engines one utterance at a time and
// reports each utterance's lifecycle as events.
package speech

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrBusy is returned by Speak while another utterance is active.
	ErrBusy             = errors.New("speech engine is busy")
	ErrPauseUnsupported = errors.New("pause is not supported by this engine")
)

type Config struct {
	Type          string
	Rate          float64
	Pitch         float64
	Volume        float64
	Voice         string
	DefaultLocale string
	CachePath     string
}

// Options are applied to a single utterance.
type Options struct {
	Pitch       float64
	Rate        float64
	Volume      float64
	VoiceLocale string
	Voice       string
}

// Utterance is one request to voice a piece of text.
type Utterance struct {
	ID      uint64
	Text    string
	Options Options
}

type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event reports the lifecycle of the utterance with the given ID.
type Event struct {
	Kind      EventKind
	Utterance uint64
	Code      string
	Err       error
}

// Listener receives events. It is called from engine goroutines and must not
// block or call back into the engine.
type Listener func(Event)

// Engine voices one utterance at a time. IsSpeaking stays true while an
// utterance is paused. Cancel silences the active utterance without emitting
// EventEnd.
type Engine interface {
	Speak(u Utterance) error
	Pause() error
	Resume() error
	Cancel() error
	IsSpeaking() bool
	IsPaused() bool
	SetListener(l Listener)
	Voices() ([]Voice, error)
	Close() error
}

// BookContextSetter is implemented by engines that organise caches per book.
type BookContextSetter interface {
	SetBookContext(title string)
}

// Voice provides information about an available voice.
type Voice struct {
	Name         string `json:"name"`
	LanguageCode string `json:"language_code"`
	Gender       string `json:"gender,omitempty"`
	Natural      bool   `json:"natural,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Error codes carried by EventError.
const (
	CodeSynthesisFailed = "synthesis-failed"
	CodeAudioBusy       = "audio-busy"
	CodePlaybackFailed  = "playback-failed"
)

// events fans engine events out to the registered listener.
type events struct {
	mu       sync.RWMutex
	listener Listener
}

func (e *events) SetListener(l Listener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

func (e *events) emit(ev Event) {
	e.mu.RLock()
	l := e.listener
	e.mu.RUnlock()
	if l != nil {
		l(ev)
	}
}
