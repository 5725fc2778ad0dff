// Package highlight keeps a single "currently speaking" marker.
package highlight

import (
	"github.com/sirupsen/logrus"

	"readaloud/internal/domain/surface"
)

// Treatment is the fixed highlight style: translucent yellow background,
// inherited foreground.
var Treatment = surface.Style{
	Background: "rgba(255, 255, 0, 0.3)",
	Foreground: "inherit",
}

type Manager struct {
	treatment surface.Style
	log       logrus.FieldLogger

	current  *surface.Node
	original surface.Style
}

func New(log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{treatment: Treatment, log: log}
}

// Apply marks n, clearing any previous highlight first.
func (m *Manager) Apply(n *surface.Node) {
	m.Clear()
	if n == nil {
		return
	}
	m.original = n.Style
	n.Style = m.treatment
	m.current = n
	m.log.WithField("unit", n.ID).Debug("Highlighted")
}

// Clear restores the highlighted node's original style.
func (m *Manager) Clear() {
	if m.current == nil {
		return
	}
	m.current.Style = m.original
	m.current = nil
	m.original = surface.Style{}
}

// Current returns the highlighted node or nil.
func (m *Manager) Current() *surface.Node {
	return m.current
}
