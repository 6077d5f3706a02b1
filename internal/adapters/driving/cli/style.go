package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette.
var (
	colourPrimary = lipgloss.Color("#7C3AED")
	colourAccent  = lipgloss.Color("#06B6D4")
	colourMuted   = lipgloss.Color("#6C7086")
	colourWarning = lipgloss.Color("#F9E2AF")
	colourError   = lipgloss.Color("#F38BA8")
)

// styles holds the text styles of one output stream.
type styles struct {
	Title    lipgloss.Style
	Citation lipgloss.Style
	Muted    lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
}

// stylesFor returns coloured styles when w is a terminal and plain ones
// otherwise, so piped output carries no escape codes.
func stylesFor(w io.Writer) styles {
	if !isTerminal(w) {
		plain := lipgloss.NewStyle()
		return styles{Title: plain, Citation: plain, Muted: plain, Warning: plain, Error: plain}
	}
	return styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(colourPrimary),
		Citation: lipgloss.NewStyle().Foreground(colourAccent),
		Muted:    lipgloss.NewStyle().Foreground(colourMuted),
		Warning:  lipgloss.NewStyle().Foreground(colourWarning),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(colourError),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
