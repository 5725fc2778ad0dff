package playback

import (
	"errors"

	"readaloud/internal/narration/locator"
	"readaloud/internal/speech"
)

var (
	// ErrNotFound and ErrEmptyContent are recovered by moving to the next
	// qualifying unit and are never surfaced.
	ErrNotFound     = locator.ErrNotFound
	ErrEmptyContent = locator.ErrEmptyContent
	// ErrEngineBusy marks a start request dropped because an utterance is
	// already active.
	ErrEngineBusy = speech.ErrBusy

	ErrEngineError   = errors.New("speech engine error")
	ErrAdvanceFailed = errors.New("advance failed")
	// ErrEndOfDocument is the normal terminal transition, not a failure.
	ErrEndOfDocument = errors.New("end of document")
)
