// Package ui renders crawl progress and status lines on the terminal.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

const banner = `
  _                 _                       _
 | |___ __ _____ __| |_ __ _ _ __ ___ __ _| |
 |  _\ V  V / -_) -_)  _/ _| '_/ _' \ V  V / |
  \__|\_/\_/\___\___|\__\__|_| \__,_|\_/\_/|_|
`

var (
	cyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF"))
	yellowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	redStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF3B30")).Bold(true)
	greenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#39FF14")).Bold(true)
	magentaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00FF"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

// Colour helpers
func Cyan(s string) string    { return cyanStyle.Render(s) }
func Yellow(s string) string  { return yellowStyle.Render(s) }
func Red(s string) string     { return redStyle.Render(s) }
func Green(s string) string   { return greenStyle.Render(s) }
func Magenta(s string) string { return magentaStyle.Render(s) }
func Dim(s string) string     { return dimStyle.Render(s) }

// Printer writes styled status lines
type Printer struct {
	w io.Writer
}

// NewPrinter writes to w, or stdout when w is nil
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w}
}

func (p *Printer) Banner() {
	fmt.Fprint(p.w, Cyan(banner))
	fmt.Fprintln(p.w)
}

func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(p.w, Red("✗ "+msg))
}

func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, Green("✓ "+msg))
}

func (p *Printer) Warning(msg string) {
	fmt.Fprintln(p.w, Yellow("⚠ "+msg))
}

// Info prints an aligned label/value pair
func (p *Printer) Info(label, value string) {
	fmt.Fprintf(p.w, "%s %s\n", Cyan(fmt.Sprintf("%-12s", label+":")), Yellow(value))
}
