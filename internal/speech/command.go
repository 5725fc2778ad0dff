package speech

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// commandSpec describes a speech synthesiser driven as an external process.
// The utterance text is fed on stdin so it is never parsed as a flag.
type commandSpec struct {
	name        string
	executables []string
	args        func(c Config, u Utterance) []string
	voices      func(path string) ([]Voice, error)
}

// commandEngine runs one synthesiser process per utterance. Pausing stops the
// process where the platform allows it.
type commandEngine struct {
	events
	spec   commandSpec
	path   string
	config Config
	log    logrus.FieldLogger

	mu     sync.Mutex
	cmd    *exec.Cmd
	active uint64
	paused bool
}

func newCommandEngine(spec commandSpec, config Config, log logrus.FieldLogger) (*commandEngine, error) {
	path, err := findExecutable(spec.executables)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", spec.name, err)
	}

	return &commandEngine{
		spec:   spec,
		path:   path,
		config: config,
		log:    log.WithField("engine", spec.name),
	}, nil
}

func findExecutable(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %s found in PATH", strings.Join(candidates, ", "))
}

func (e *commandEngine) Speak(u Utterance) error {
	e.mu.Lock()
	if e.cmd != nil {
		e.mu.Unlock()
		return ErrBusy
	}

	cmd := exec.Command(e.path, e.spec.args(e.config, u)...)
	cmd.Stdin = strings.NewReader(u.Text)
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to start %s: %w", e.spec.name, err)
	}
	e.cmd = cmd
	e.active = u.ID
	e.paused = false
	e.mu.Unlock()

	e.emit(Event{Kind: EventStart, Utterance: u.ID})
	go e.wait(cmd, u.ID)
	return nil
}

func (e *commandEngine) wait(cmd *exec.Cmd, id uint64) {
	err := cmd.Wait()

	e.mu.Lock()
	if e.cmd != cmd {
		// cancelled
		e.mu.Unlock()
		return
	}
	e.cmd = nil
	e.paused = false
	e.mu.Unlock()

	if err != nil {
		e.log.WithError(err).Warn("Synthesiser exited with error")
		e.emit(Event{Kind: EventError, Utterance: id, Code: CodePlaybackFailed, Err: err})
		return
	}
	e.emit(Event{Kind: EventEnd, Utterance: id})
}

func (e *commandEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || e.paused {
		return nil
	}
	if err := suspendProcess(e.cmd.Process); err != nil {
		return err
	}
	e.paused = true
	return nil
}

func (e *commandEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || !e.paused {
		return nil
	}
	if err := continueProcess(e.cmd.Process); err != nil {
		return err
	}
	e.paused = false
	return nil
}

func (e *commandEngine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil {
		return nil
	}
	cmd := e.cmd
	e.cmd = nil
	e.paused = false
	if cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to stop %s: %w", e.spec.name, err)
		}
	}
	return nil
}

func (e *commandEngine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cmd != nil
}

func (e *commandEngine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *commandEngine) Voices() ([]Voice, error) {
	if e.spec.voices == nil {
		return nil, nil
	}
	return e.spec.voices(e.path)
}

func (e *commandEngine) Close() error {
	return e.Cancel()
}

// orDefault returns v, or def when v is not positive.
func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
