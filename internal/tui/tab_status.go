package tui

import (
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kongman/internal/probe"
	"kongman/internal/storage/models"
)

type statusModel struct {
	width  int
	height int

	checkedAt time.Time
	result    *probe.Result
}

func newStatusModel() statusModel {
	return statusModel{}
}

func (sm *statusModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
}

func (sm *statusModel) updateStatus(msg statusResultMsg) {
	sm.result = msg.result
	sm.checkedAt = time.Now()
}

func (sm *statusModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	return nil
}

func (sm *statusModel) View(active *models.Gateway) string {
	var content string
	if active == nil {
		content = sm.viewNoGateway()
	} else {
		content = sm.viewActive(active)
	}
	return forceHeight(content, sm.width, sm.height)
}

func (sm *statusModel) viewNoGateway() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		cardTitleStyle.Render("Active Gateway"),
		"",
		lipgloss.NewStyle().Foreground(colorDimFg).Render("No gateway selected"),
		"",
		dimStyle.Render("Go to the Gateways tab and press 'u' to use one"),
	)
	return cardStyle.Width(sm.cardWidth()).Render(content)
}

func (sm *statusModel) viewActive(gw *models.Gateway) string {
	rows := []string{
		sm.row("Name", gw.Name),
		sm.row("Admin URL", gw.AdminURL),
		sm.row("Variant", string(gw.Variant)),
		sm.row("Auth", models.RedactAuth(gw.Auth)),
		sm.row("Skip TLS", fmt.Sprintf("%v", gw.SkipTLSVerify)),
		sm.row("Use Count", fmt.Sprintf("%d", gw.UseCount)),
	}
	if gw.LastUsed != nil {
		rows = append(rows, sm.row("Last Used", gw.LastUsed.Local().Format("2006-01-02 15:04:05")))
	}
	sections := []string{lipgloss.JoinVertical(lipgloss.Left,
		append([]string{cardTitleStyle.Render("Active Gateway")}, rows...)...,
	)}

	if r := sm.result; r != nil {
		state := successStyle.Render("Reachable")
		if !r.Success {
			state = errorStyle.Render("Unreachable")
		}
		healthRows := []string{
			sm.row("Status", state),
			sm.row("Latency", latencyStyle(r.Latency).Render(fmt.Sprintf("%dms", r.Latency.Milliseconds()))),
			sm.row("Checked", sm.checkedAt.Format("15:04:05")),
		}
		if r.StatusCode != 0 {
			healthRows = append(healthRows, sm.row("HTTP Status", statusCodeStyle(r.StatusCode).Render(fmt.Sprint(r.StatusCode))))
		}
		if !r.Success {
			healthRows = append(healthRows, sm.row("Message", r.Message))
		}
		healthRows = append(healthRows, sm.statusRows(r.Data)...)
		sections = append(sections, lipgloss.JoinVertical(lipgloss.Left,
			append([]string{cardTitleStyle.Render("Health")}, healthRows...)...,
		))
	}

	w := sm.cardWidth()
	if len(sections) == 2 && sm.width > 80 {
		halfW := (w - 4) / 2
		left := cardStyle.Width(halfW).Render(sections[0])
		right := cardStyle.Width(halfW).Render(sections[1])
		return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	}

	var rendered []string
	for _, s := range sections {
		rendered = append(rendered, cardStyle.Width(w).Render(s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

// statusRows flattens the /status payload one level deep.
func (sm *statusModel) statusRows(data any) []string {
	top, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	var rows []string
	for _, section := range sortedKeys(top) {
		inner, ok := top[section].(map[string]any)
		if !ok {
			rows = append(rows, sm.row(section, fmt.Sprint(top[section])))
			continue
		}
		for _, k := range sortedKeys(inner) {
			if _, nested := inner[k].(map[string]any); nested {
				continue
			}
			rows = append(rows, sm.row(truncate(section+"."+k, 24), fmt.Sprint(inner[k])))
		}
	}
	return rows
}

func (sm *statusModel) cardWidth() int {
	w := sm.width - 6
	if w < 30 {
		w = 30
	}
	return w
}

func (sm *statusModel) row(label, value string) string {
	return cardLabelStyle.Render(label+":") + " " + cardValueStyle.Render(value)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
