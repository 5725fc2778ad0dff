package paged

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Wrap breaks text into lines that occupy at most width terminal columns.
// Lines break at spaces and between wide (CJK) characters, which are written
// without spaces. Words wider than width are split.
func Wrap(text string, width int) []string {
	if width <= 0 {
		width = DefaultColumns
	}

	var (
		lines []string
		line  strings.Builder
		n     int
	)
	flush := func() {
		lines = append(lines, line.String())
		line.Reset()
		n = 0
	}
	add := func(piece string, space bool) {
		pw := runewidth.StringWidth(piece)
		if pw > width {
			if n > 0 {
				flush()
			}
			for _, part := range split(piece, width) {
				if n > 0 {
					flush()
				}
				line.WriteString(part)
				n = runewidth.StringWidth(part)
			}
			return
		}
		sep := 0
		if space && n > 0 {
			sep = 1
		}
		if n > 0 && n+sep+pw > width {
			flush()
			sep = 0
		}
		if sep > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(piece)
		n += sep + pw
	}

	for _, word := range strings.Fields(text) {
		for i, piece := range pieces(word) {
			add(piece, i == 0)
		}
	}
	if n > 0 || len(lines) == 0 {
		flush()
	}
	return lines
}

// pieces splits a word into runs of narrow characters and single wide
// characters, the places a line may break inside it.
func pieces(word string) []string {
	var (
		out   []string
		start = -1
	)
	for i, r := range word {
		if runewidth.RuneWidth(r) < 2 {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, word[start:i])
			start = -1
		}
		out = append(out, string(r))
	}
	if start >= 0 {
		out = append(out, word[start:])
	}
	return out
}

// split cuts s into parts of at most width columns. A single character
// wider than width gets a part of its own.
func split(s string, width int) []string {
	var (
		parts []string
		start int
		w     int
	)
	for i, r := range s {
		rw := runewidth.RuneWidth(r)
		if w > 0 && w+rw > width {
			parts = append(parts, s[start:i])
			start, w = i, 0
		}
		w += rw
	}
	return append(parts, s[start:])
}
