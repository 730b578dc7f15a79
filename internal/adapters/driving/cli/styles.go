package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 80

// palette holds the colours used in command output.
var palette = struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}{
	Primary:   lipgloss.Color("#7C3AED"),
	Secondary: lipgloss.Color("#06B6D4"),
	Muted:     lipgloss.Color("#6C7086"),
	Success:   lipgloss.Color("#A6E3A1"),
	Warning:   lipgloss.Color("#F9E2AF"),
	Error:     lipgloss.Color("#F38BA8"),
}

// styles are rendered for a specific writer so that colour is dropped
// when output is piped.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Body    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	width := outputWidth(w)
	return styles{
		Title:   r.NewStyle().Bold(true).Foreground(palette.Primary),
		Label:   r.NewStyle().Bold(true).Foreground(palette.Secondary),
		Muted:   r.NewStyle().Foreground(palette.Muted),
		Success: r.NewStyle().Foreground(palette.Success),
		Warning: r.NewStyle().Foreground(palette.Warning),
		Error:   r.NewStyle().Foreground(palette.Error),
		Body:    r.NewStyle().Width(width - 6).PaddingLeft(6),
	}
}

// outputWidth returns the terminal width of w, or defaultWidth.
func outputWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 40 {
		return defaultWidth
	}
	return width
}
