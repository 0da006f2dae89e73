package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Adaptive so both light and dark terminals stay readable.
var (
	colorAccent   = lipgloss.AdaptiveColor{Light: "#1155CB", Dark: "#5B9BFF"}
	colorOK       = lipgloss.AdaptiveColor{Light: "#0A8F5A", Dark: "#2BD48A"}
	colorFail     = lipgloss.AdaptiveColor{Light: "#C62848", Dark: "#FF5C7C"}
	colorPending  = lipgloss.AdaptiveColor{Light: "#B86E00", Dark: "#F2A93B"}
	colorSelected = lipgloss.AdaptiveColor{Light: "#DCE8FB", Dark: "#14264A"}
	colorFg       = lipgloss.AdaptiveColor{Light: "#1B1F2A", Dark: "#ECEFF4"}
	colorDimFg    = lipgloss.AdaptiveColor{Light: "#8A8F99", Dark: "#6E7480"}
	colorBorder   = lipgloss.AdaptiveColor{Light: "#D0D5DD", Dark: "#343A46"}
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func pill(bg lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(bg).Padding(0, 1)
}

// Header.
var (
	logoStyle        = fg(colorAccent).Bold(true).PaddingRight(2)
	activeTabStyle   = fg(colorAccent).Bold(true).Underline(true).Padding(0, 2)
	inactiveTabStyle = fg(colorDimFg).Padding(0, 2)

	connectedPillStyle    = pill(colorOK)
	disconnectedPillStyle = pill(colorFail)
	connectingPillStyle   = pill(colorPending)
)

// Footer.
var (
	helpBarStyle  = fg(colorDimFg).Padding(0, 1)
	helpKeyStyle  = fg(colorAccent).Bold(true)
	helpDescStyle = fg(colorDimFg)
	helpSepStyle  = fg(colorBorder)
)

// Content.
var (
	titleStyle   = fg(colorAccent).Bold(true).MarginBottom(1)
	errorStyle   = fg(colorFail).Bold(true)
	successStyle = fg(colorOK).Bold(true)
	warningStyle = fg(colorPending)
	dimStyle     = fg(colorDimFg)
	spinnerStyle = fg(colorAccent)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2)
	cardTitleStyle = fg(colorAccent).Bold(true).MarginBottom(1)
	cardLabelStyle = fg(colorDimFg).Width(26)
	cardValueStyle = fg(colorFg)

	notifSuccessStyle = fg(colorOK).Bold(true).Padding(0, 1)
	notifErrorStyle   = fg(colorFail).Bold(true).Padding(0, 1)
)

// latencyStyle colors an admin API round trip. The admin API normally
// answers from the same network, so anything over half a second is slow.
func latencyStyle(d time.Duration) lipgloss.Style {
	switch {
	case d < 100*time.Millisecond:
		return fg(colorOK)
	case d < 500*time.Millisecond:
		return fg(colorPending)
	default:
		return fg(colorFail)
	}
}

// statusCodeStyle colors an HTTP status by class.
func statusCodeStyle(code int) lipgloss.Style {
	switch {
	case code == 0:
		return dimStyle
	case code < 300:
		return fg(colorOK)
	case code < 500:
		return fg(colorPending)
	default:
		return fg(colorFail)
	}
}
