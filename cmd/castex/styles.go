package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	accentColor = lipgloss.Color("#2DA44E")
	errorColor  = lipgloss.Color("#CF222E")
	dimColor    = lipgloss.Color("#6E7681")
	linkColor   = lipgloss.Color("#58A6FF")
	titleColor  = lipgloss.Color("#39D353")
	dateColor   = lipgloss.Color("#A371F7")
	tagColor    = lipgloss.Color("#FFA657")

	successStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	linkStyle = lipgloss.NewStyle().
			Foreground(linkColor).
			Underline(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(titleColor).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(dateColor)

	tagStyle = lipgloss.NewStyle().
			Foreground(tagColor)
)

// colorize is false when stdout is piped or redirected.
var colorize = shouldColorize(os.Stdout)

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(style lipgloss.Style, s string) string {
	if !colorize || s == "" {
		return s
	}
	return style.Render(s)
}
