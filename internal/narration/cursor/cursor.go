// Package cursor holds the narration position. It stores an identifier and
// a scope, never a node: nodes are invalidated whenever the renderer replaces
// page content, so every use re-resolves through the locator.
package cursor

import "readaloud/internal/narration/locator"

type Cursor struct {
	unitID string
	nested bool
}

// AdvanceTo points the cursor at u.
func (c *Cursor) AdvanceTo(u locator.Unit) {
	c.unitID = u.ID
	c.nested = u.Nested
}

// Clear unsets the cursor.
func (c *Cursor) Clear() {
	c.unitID = ""
	c.nested = false
}

// Current returns the unit identifier and whether it lives in a nested root.
// ok is false when the cursor is unset.
func (c *Cursor) Current() (id string, nested bool, ok bool) {
	return c.unitID, c.nested, c.unitID != ""
}

func (c *Cursor) IsSet() bool { return c.unitID != "" }
