package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var tabNames = []string{"Gateways", "Entities", "Status", "Settings"}

// headerState is what the top row shows about the active gateway.
type headerState struct {
	activeName string
	healthy    *bool
	busy       bool
}

func renderHeader(activeTab int, st headerState, width int) string {
	logo := logoStyle.Render("KONGMAN")

	var pill string
	switch {
	case st.busy:
		pill = connectingPillStyle.Render(" TESTING ")
	case st.activeName == "":
		pill = disconnectedPillStyle.Render(" NO GATEWAY ")
	case st.healthy != nil && !*st.healthy:
		pill = disconnectedPillStyle.Render(fmt.Sprintf(" %s (down) ", st.activeName))
	default:
		pill = connectedPillStyle.Render(fmt.Sprintf(" %s ", st.activeName))
	}

	var tabs []string
	for i, name := range tabNames {
		if i == activeTab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	pillWidth := lipgloss.Width(pill)
	logoWidth := lipgloss.Width(logo)
	gap := width - logoWidth - pillWidth
	if gap < 1 {
		gap = 1
	}
	topRow := logo + strings.Repeat(" ", gap) + pill

	sep := lipgloss.NewStyle().
		Foreground(colorBorder).
		Render(strings.Repeat("─", max(width, 0)))

	return lipgloss.JoinVertical(lipgloss.Left, topRow, tabBar, sep)
}

func renderFooter(helpText string, width int) string {
	sep := lipgloss.NewStyle().
		Foreground(colorBorder).
		Render(strings.Repeat("─", max(width, 0)))
	return lipgloss.JoinVertical(lipgloss.Left, sep, helpBarStyle.Render(helpText))
}

func renderHelpBar(showFull bool) string {
	if showFull {
		return renderFullHelp()
	}
	return renderShortHelp()
}

func renderShortHelp() string {
	var parts []string
	for _, b := range keys.ShortHelp() {
		if !b.Enabled() {
			continue
		}
		parts = append(parts, helpKeyStyle.Render(b.Help().Key)+" "+helpDescStyle.Render(b.Help().Desc))
	}
	return strings.Join(parts, helpSepStyle.Render(" | "))
}

func renderFullHelp() string {
	var lines []string
	for _, group := range keys.FullHelp() {
		var parts []string
		for _, b := range group {
			if !b.Enabled() {
				continue
			}
			parts = append(parts, helpKeyStyle.Render(b.Help().Key)+" "+helpDescStyle.Render(b.Help().Desc))
		}
		lines = append(lines, strings.Join(parts, helpSepStyle.Render("  ")))
	}
	return strings.Join(lines, "\n")
}
