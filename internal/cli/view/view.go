// Package view paints rendering roots onto a terminal.
package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"readaloud/internal/cli/scheme/colours"
	"readaloud/internal/domain/surface"
	"readaloud/internal/render"
	"readaloud/internal/render/paged"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	// status and help lines painted around the page
	chromeLines = 4
)

// Status is the information shown below the page.
type Status struct {
	Title    string
	Sections int
	Location render.Location
	State    string
	Mode     string
	// Notice is an error the user has to see.
	Notice string
}

// Painter writes pages to a terminal. In raw mode lines must end in CRLF.
type Painter struct {
	out     io.Writer
	columns int
	palette colours.Palette
	raw     bool
}

func NewPainter(out io.Writer, columns int, mode string, raw bool) *Painter {
	if columns <= 0 {
		columns = paged.DefaultColumns
	}
	return &Painter{out: out, columns: columns, palette: colours.ForMode(mode), raw: raw}
}

// SetMode switches the reading mode palette.
func (p *Painter) SetMode(mode string) {
	p.palette = colours.ForMode(mode)
}

// Paint clears the screen and draws the visible part of root, followed by
// the status line. It must run on the goroutine that owns root's nodes.
func (p *Painter) Paint(root *surface.Root, st Status) {
	var b strings.Builder
	b.WriteString(clearScreen)

	for _, line := range p.Lines(root) {
		b.WriteString(line)
		b.WriteString(p.eol())
	}

	b.WriteString(p.eol())
	loc := st.Location
	b.WriteString(p.palette.Status.Sprintf("%s  |  section %d/%d  page %d/%d  |  %s  |  %s",
		st.Title, loc.Section+1, st.Sections, loc.Page+1, loc.Pages, st.State, st.Mode))
	b.WriteString(p.eol())
	if st.Notice != "" {
		b.WriteString(colours.Error.Sprint(st.Notice))
		b.WriteString(p.eol())
	}
	b.WriteString(p.palette.Status.Sprint("[space] play/pause  [s] stop  [n] next  [b] back  [t] chapters  [m] mode  [q] quit"))
	b.WriteString(p.eol())

	fmt.Fprint(p.out, b.String())
}

// PaintMenu clears the screen and draws a numbered list with an input
// prompt.
func (p *Painter) PaintMenu(title string, items []string, input string) {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(colours.Title.Sprint(title))
	b.WriteString(p.eol())
	b.WriteString(p.eol())
	for i, item := range items {
		fmt.Fprintf(&b, "  %2d. %s%s", i+1, item, p.eol())
	}
	b.WriteString(p.eol())
	b.WriteString(colours.Prompt.Sprintf("Number and Enter (Esc to cancel): %s", input))
	fmt.Fprint(p.out, b.String())
}

// Lines returns the coloured lines of root's visible content, frames
// included.
func (p *Painter) Lines(root *surface.Root) []string {
	if root == nil {
		return nil
	}
	var out []string
	out = append(out, p.rootLines(root)...)
	for _, frame := range root.Frames() {
		out = append(out, p.rootLines(frame)...)
	}
	return out
}

func (p *Painter) rootLines(root *surface.Root) []string {
	top, bottom := int(root.Viewport.Top), int(root.Viewport.Bottom)
	if bottom <= top {
		return nil
	}
	lines := make([]string, bottom-top)
	painted := false

	root.Walk(func(n *surface.Node) bool {
		if n.Frame != nil || len(n.Children) > 0 || n.Text == "" {
			return n.Frame == nil
		}
		c := p.colourOf(n)
		for i, text := range paged.Wrap(n.Text, p.columns) {
			line := int(n.Bounds.Top) + i
			if line < top || line >= bottom {
				continue
			}
			lines[line-top] = c.Sprint(text)
			painted = true
		}
		return true
	})
	if !painted {
		return nil
	}
	return lines
}

func (p *Painter) colourOf(n *surface.Node) *color.Color {
	switch {
	case n.Style.Background != "":
		return p.palette.Highlight
	case len(n.Tag) == 2 && n.Tag[0] == 'h' && n.Tag[1] >= '1' && n.Tag[1] <= '6':
		return p.palette.Heading
	default:
		return p.palette.Text
	}
}

func (p *Painter) eol() string {
	if p.raw {
		return "\r\n"
	}
	return "\n"
}

// PageGeometry returns page lines and columns for the terminal on fd.
// Positive configured values win; otherwise the terminal size is used,
// leaving room for the status lines.
func PageGeometry(fd int, lines, columns int) (int, int) {
	width, height, err := term.GetSize(fd)
	if lines <= 0 {
		lines = paged.DefaultLines
		if err == nil && height > chromeLines+1 {
			lines = height - chromeLines
		}
	}
	if columns <= 0 {
		columns = paged.DefaultColumns
		if err == nil && width > 0 {
			columns = width
		}
	}
	return lines, columns
}
