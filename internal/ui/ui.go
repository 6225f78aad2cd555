// Package ui provides terminal styling for CLI output.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle   = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// Plain disables all styling, for pipes and dumb terminals.
func Plain() bool {
	return termenv.EnvColorProfile() == termenv.Ascii
}

func render(style lipgloss.Style, s string) string {
	if Plain() {
		return s
	}
	return style.Render(s)
}

// RenderPass renders success markers.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn renders warning markers.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail renders failure markers.
func RenderFail(s string) string { return render(failStyle, s) }

// RenderAccent renders highlighted text.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderMuted renders secondary text.
func RenderMuted(s string) string { return render(mutedStyle, s) }

// RenderDone renders completed task text.
func RenderDone(s string) string { return render(doneStyle, s) }

// RenderHeader renders section headers.
func RenderHeader(s string) string { return render(headerStyle, s) }
