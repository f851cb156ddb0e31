package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNormal = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleIntent = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleQuest = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	styleDetail = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNormal lineKind = iota
	kindIntent
	kindQuest
	kindDetail
	kindError
	kindTrace
)

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "Quest "), strings.HasPrefix(line, "Quest offered"):
		return kindQuest
	case strings.HasPrefix(line, "  reward"),
		strings.HasPrefix(line, "  reputation"),
		strings.HasPrefix(line, "  world effect"):
		return kindDetail
	case strings.Contains(line, " -> "):
		return kindIntent
	case strings.Contains(line, "failed:"),
		strings.HasPrefix(line, "Error"),
		strings.HasPrefix(line, "Unknown command"):
		return kindError
	default:
		return kindNormal
	}
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindIntent:
		return styleIntent.Render(line)
	case kindQuest:
		return styleQuest.Render(line)
	case kindDetail:
		return styleDetail.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNormal.Render(line)
	}
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
