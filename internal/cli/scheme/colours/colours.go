package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title   = color.New(color.FgCyan, color.Bold)
	Author  = color.New(color.FgMagenta)
	Prompt  = color.New(color.FgGreen, color.Bold)
	Error   = color.New(color.FgRed, color.Bold)
	Success = color.New(color.FgGreen)
	Info    = color.New(color.FgBlue)
	Warning = color.New(color.FgYellow)
)

// Palette is the page treatment of one reading mode.
type Palette struct {
	Text      *color.Color
	Heading   *color.Color
	Highlight *color.Color
	Status    *color.Color
}

// Reading modes
var (
	Normal = Palette{
		Text:      color.New(color.Reset),
		Heading:   color.New(color.Bold),
		Highlight: color.New(color.BgYellow, color.FgBlack),
		Status:    color.New(color.Faint),
	}
	EyeCare = Palette{
		Text:      color.New(color.FgYellow),
		Heading:   color.New(color.FgYellow, color.Bold),
		Highlight: color.New(color.BgHiYellow, color.FgBlack),
		Status:    color.New(color.FgHiBlack),
	}
	HighContrast = Palette{
		Text:      color.New(color.FgHiWhite, color.Bold),
		Heading:   color.New(color.FgHiWhite, color.Bold, color.Underline),
		Highlight: color.New(color.BgHiYellow, color.FgBlack, color.Bold),
		Status:    color.New(color.FgHiWhite),
	}
	Dark = Palette{
		Text:      color.New(color.FgWhite),
		Heading:   color.New(color.FgHiBlue, color.Bold),
		Highlight: color.New(color.BgBlue, color.FgHiWhite),
		Status:    color.New(color.FgHiBlack),
	}
)

// ForMode returns the palette of a reading mode, Normal when unknown.
func ForMode(mode string) Palette {
	switch mode {
	case "eye-care":
		return EyeCare
	case "high-contrast":
		return HighContrast
	case "dark":
		return Dark
	default:
		return Normal
	}
}
