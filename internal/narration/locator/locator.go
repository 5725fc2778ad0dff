// Package locator finds speakable text units in a rendering root and its
// nested sub-roots, assigning identifiers ("p0", "p1", ...) to units that
// lack an id. Unit order is document order, whatever the identifiers say.
package locator

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"readaloud/internal/domain/surface"
)

var (
	ErrNotFound     = errors.New("text unit not found")
	ErrEmptyContent = errors.New("text unit has no speakable text")
)

// IDPrefix prefixes generated identifiers.
const IDPrefix = "p"

// DefaultTags are the element tags considered for narration.
var DefaultTags = []string{"p", "h1", "h2", "h3", "h4", "h5", "h6", "span"}

// Unit is a speakable span of content.
type Unit struct {
	ID       string
	Ordinal  int
	Text     string
	Language string
	Owner    *surface.Root
	Nested   bool
	Node     *surface.Node
}

// Visibility decides whether a unit is currently visible.
type Visibility interface {
	IsVisible(u Unit) bool
}

type Locator struct {
	tags          map[string]bool
	defaultLocale string
	log           logrus.FieldLogger
}

func New(tags []string, defaultLocale string, log logrus.FieldLogger) *Locator {
	if len(tags) == 0 {
		tags = DefaultTags
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[strings.ToLower(t)] = true
	}
	return &Locator{tags: set, defaultLocale: defaultLocale, log: log}
}

// Speakable reports whether text qualifies as a narration target.
func Speakable(text string) bool {
	return strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) }) >= 0
}

// FindUnits scans root and then every nested sub-root, each in document
// order, and returns the qualifying units. Qualifying elements without an id
// get one.
func (l *Locator) FindUnits(root *surface.Root) []Unit {
	units := l.scan(root, false, 0)
	for _, f := range root.Frames() {
		units = append(units, l.scan(f, true, len(units))...)
	}
	return units
}

// scan collects units of a single root, not entering frames. Ordinals are
// document positions starting at base; identifiers only need to be unique.
func (l *Locator) scan(root *surface.Root, nested bool, base int) []Unit {
	if root == nil {
		return nil
	}

	var candidates []*surface.Node
	root.Walk(func(n *surface.Node) bool {
		if !l.tags[strings.ToLower(n.Tag)] {
			return true
		}
		if !Speakable(n.TextContent()) {
			// an empty container may still hold qualifying children
			return true
		}
		candidates = append(candidates, n)
		// descendants are part of this unit's text already
		return false
	})

	// ordinals already taken by any element of the root
	used := make(map[int]bool, len(candidates))
	root.Walk(func(n *surface.Node) bool {
		if k, ok := ParseOrdinal(n.ID); ok {
			used[k] = true
		}
		return true
	})
	for i, n := range candidates {
		if _, ok := ParseOrdinal(n.ID); n.ID != "" && !ok {
			used[i] = true
		}
	}

	next := 0
	units := make([]Unit, 0, len(candidates))
	for i, n := range candidates {
		if n.ID == "" {
			k := i
			if used[k] {
				for used[next] {
					next++
				}
				k = next
			}
			used[k] = true
			n.ID = IDPrefix + strconv.Itoa(k)
		}
		units = append(units, Unit{
			ID:       n.ID,
			Ordinal:  base + i,
			Text:     strings.TrimSpace(n.TextContent()),
			Language: l.language(root, n),
			Owner:    root,
			Nested:   nested,
			Node:     n,
		})
	}
	return units
}

func (l *Locator) language(root *surface.Root, n *surface.Node) string {
	switch {
	case n.Lang != "":
		return n.Lang
	case root.Lang != "":
		return root.Lang
	default:
		return l.defaultLocale
	}
}

// ParseOrdinal extracts N from a generated identifier "pN".
func ParseOrdinal(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	k, err := strconv.Atoi(rest)
	if err != nil || k < 0 {
		return 0, false
	}
	return k, true
}

// scope returns the top-level root alone or its nested roots.
func scope(root *surface.Root, nested bool) []*surface.Root {
	if !nested {
		return []*surface.Root{root}
	}
	return root.Frames()
}

func (l *Locator) scanAll(roots []*surface.Root, nested bool) []Unit {
	var units []Unit
	for _, r := range roots {
		units = append(units, l.scan(r, nested, len(units))...)
	}
	return units
}

// FindFirst returns the first unit, searching root before its nested roots,
// whose text has at least minLen runes. When no unit reaches minLen it
// retries with relaxedLen.
func (l *Locator) FindFirst(root *surface.Root, minLen, relaxedLen int) (Unit, bool) {
	units := l.FindUnits(root)
	for _, threshold := range []int{minLen, relaxedLen} {
		for _, u := range units {
			if len([]rune(u.Text)) >= threshold {
				return u, true
			}
		}
	}
	return Unit{}, false
}

// FindNext returns the lowest-ordinal unit after currentID within the given
// scope, preferring visible units. When no candidate is visible the lowest
// ordinal candidate is returned regardless of visibility. An empty or
// unknown currentID starts before the first unit.
func (l *Locator) FindNext(root *surface.Root, currentID string, nested bool, vis Visibility) (Unit, bool) {
	roots := scope(root, nested)
	units := l.scanAll(roots, nested)
	current := l.ordinalOf(roots, units, currentID)

	var after []Unit
	for _, u := range units {
		if u.Ordinal > current {
			after = append(after, u)
		}
	}
	if len(after) == 0 {
		return Unit{}, false
	}
	slices.SortStableFunc(after, func(a, b Unit) int { return a.Ordinal - b.Ordinal })

	if vis != nil {
		for _, u := range after {
			if vis.IsVisible(u) {
				return u, true
			}
		}
		l.log.WithField("after", currentID).Debug("No visible unit, falling back to content order")
	}
	return after[0], true
}

func (l *Locator) ordinalOf(roots []*surface.Root, units []Unit, id string) int {
	for _, u := range units {
		if u.ID == id {
			return u.Ordinal
		}
	}
	if id == "" {
		return -1
	}
	// an element that is not a unit itself: continue after the unit that
	// precedes it in document order
	owner := make(map[*surface.Node]int, len(units))
	for _, u := range units {
		owner[u.Node] = u.Ordinal
	}
	for _, r := range roots {
		last, found := -1, false
		r.Walk(func(n *surface.Node) bool {
			if found {
				return false
			}
			if k, ok := owner[n]; ok {
				last = k
			}
			if n.ID == id {
				found = true
				return false
			}
			return true
		})
		if found {
			return last
		}
	}
	// a generated id from a replaced root: its number was a position there
	if k, ok := ParseOrdinal(id); ok {
		return k
	}
	l.log.WithField("unit", id).Debug("Current unit unknown, searching from start")
	return -1
}

// Resolve re-derives a live unit for id within the given scope.
func (l *Locator) Resolve(root *surface.Root, id string, nested bool) (Unit, error) {
	base := 0
	for _, r := range scope(root, nested) {
		// scanning first makes sure generated ids exist
		units := l.scan(r, nested, base)
		base += len(units)
		n := r.ElementByID(id)
		if n == nil {
			continue
		}
		for _, u := range units {
			if u.Node == n {
				return u, nil
			}
		}
		text := strings.TrimSpace(n.TextContent())
		if !Speakable(text) {
			return Unit{}, fmt.Errorf("unit %q: %w", id, ErrEmptyContent)
		}
		// an element outside the unit tags still has speakable text; it has
		// no position among the units
		return Unit{ID: id, Ordinal: -1, Text: text, Language: l.language(r, n), Owner: r, Nested: nested, Node: n}, nil
	}
	return Unit{}, fmt.Errorf("unit %q: %w", id, ErrNotFound)
}

// ResolveAny resolves id in the top-level root first and then in nested roots.
func (l *Locator) ResolveAny(root *surface.Root, id string) (Unit, error) {
	u, err := l.Resolve(root, id, false)
	if errors.Is(err, ErrNotFound) {
		return l.Resolve(root, id, true)
	}
	return u, err
}
