package output

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorMode How error lines are highlighted
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ErrorStyle Red, bold. Applied to error lines and fatal diagnostics
var ErrorStyle lipgloss.Style = lipgloss.NewStyle().
	Foreground(lipgloss.Color("9")).
	Bold(true)

// ErrorPrefix Marker printed in front of watcher level errors
var ErrorPrefix string = "!!"

// SetColorMode Forces or disables the terminal color profile
//
// Returns true when output will be colored.
func SetColorMode(mode ColorMode) bool {
	switch ColorMode(strings.ToLower(string(mode))) {
	case ColorAlways:
		lipgloss.SetColorProfile(termenv.ANSI256)
		return true
	case ColorNever:
		lipgloss.SetColorProfile(termenv.Ascii)
		return false
	default:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			lipgloss.SetColorProfile(termenv.Ascii)
			return false
		}
		return lipgloss.ColorProfile() != termenv.Ascii
	}
}

// Render Returns the display form of the line
func (l Line) Render() string {
	if l.Error {
		return ErrorStyle.Render(l.Text)
	}
	return l.Text
}

// Error Renders a message with the error style
func Error(msg string) string {
	return ErrorStyle.Render(msg)
}
