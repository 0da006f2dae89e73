package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kongman/internal/storage"
)

// settingRow describes one stored setting. Rows with choices are cycled in
// place; the others open a text input.
type settingRow struct {
	key     string
	label   string
	unit    string
	choices []string
}

var settingRows = []settingRow{
	{key: storage.SettingLogLevel, label: "Log level", choices: storage.LogLevels},
	{key: storage.SettingRequestTimeout, label: "Request timeout", unit: "ms"},
	{key: storage.SettingProbeTimeout, label: "Test timeout", unit: "ms"},
	{key: storage.SettingProbeWorkers, label: "Test workers"},
	{key: storage.SettingMonitorInterval, label: "Monitor interval", unit: "s"},
}

func (r settingRow) defaultValue() string {
	return storage.DefaultSettings[r.key]
}

type settingsModel struct {
	store   storage.Storage
	values  map[string]string
	cursor  int
	editing bool
	input   textinput.Model
	invalid string
	width   int
	height  int
}

func newSettingsModel() settingsModel {
	ti := textinput.New()
	ti.CharLimit = 16
	ti.Prompt = ""
	ti.TextStyle = fg(colorFg)
	return settingsModel{values: map[string]string{}, input: ti}
}

func (sm *settingsModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
	sm.input.Width = 20
}

func (sm *settingsModel) setSettings(values map[string]string) {
	if values == nil {
		values = map[string]string{}
	}
	sm.values = values
}

func (sm *settingsModel) row() settingRow {
	return settingRows[sm.cursor]
}

func (sm *settingsModel) value(r settingRow) string {
	if v, ok := sm.values[r.key]; ok && v != "" {
		return v
	}
	return r.defaultValue()
}

func (sm *settingsModel) save(r settingRow, v string) tea.Cmd {
	sm.values[r.key] = v
	return saveSetting(sm.store, r.key, v)
}

func (sm *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	sm.store = root.deps.Storage
	if sm.editing {
		return sm.updateEditing(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	r := sm.row()
	switch km.String() {
	case "up", "k":
		sm.cursor = max(sm.cursor-1, 0)
	case "down", "j":
		sm.cursor = min(sm.cursor+1, len(settingRows)-1)
	case "left", "h":
		if r.choices != nil {
			return sm.cycle(r, -1)
		}
	case "right", "l", "enter":
		if r.choices != nil {
			return sm.cycle(r, 1)
		}
		if km.String() == "enter" {
			sm.editing = true
			sm.invalid = ""
			sm.input.SetValue(sm.value(r))
			sm.input.CursorEnd()
			sm.input.Focus()
			return textinput.Blink
		}
	case "d":
		if sm.value(r) != r.defaultValue() {
			return sm.save(r, r.defaultValue())
		}
	}
	return nil
}

func (sm *settingsModel) cycle(r settingRow, dir int) tea.Cmd {
	idx := 0
	for i, c := range r.choices {
		if c == sm.value(r) {
			idx = i
		}
	}
	idx = (idx + dir + len(r.choices)) % len(r.choices)
	return sm.save(r, r.choices[idx])
}

func (sm *settingsModel) updateEditing(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Back):
			sm.stopEditing()
			return nil
		case km.String() == "enter":
			r := sm.row()
			v := strings.TrimSpace(sm.input.Value())
			if err := storage.ValidateSetting(r.key, v); err != nil {
				sm.invalid = err.Error()
				return nil
			}
			sm.stopEditing()
			return sm.save(r, v)
		}
	}

	var cmd tea.Cmd
	sm.input, cmd = sm.input.Update(msg)
	return cmd
}

func (sm *settingsModel) stopEditing() {
	sm.editing = false
	sm.invalid = ""
	sm.input.Blur()
}

func (sm *settingsModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Applied on next start. Flags and the config file override these values."))
	b.WriteString("\n\n")

	labelW := lipgloss.NewStyle().Width(22)
	for i, r := range settingRows {
		selected := i == sm.cursor
		marker := "  "
		label := labelW.Foreground(colorFg).Render(r.label)
		if selected {
			marker = fg(colorAccent).Render("> ")
			label = labelW.Foreground(colorAccent).Bold(true).Render(r.label)
		}

		var val string
		switch {
		case selected && sm.editing:
			val = sm.input.View() + dimStyle.Render(" "+r.unit)
		case r.choices != nil && selected:
			val = renderChoices(r.choices, sm.value(r))
		default:
			v := sm.value(r)
			if r.unit != "" {
				v += " " + r.unit
			}
			val = cardValueStyle.Render(v)
			if sm.value(r) == r.defaultValue() {
				val += dimStyle.Render("  default")
			}
		}
		b.WriteString(marker + label + val + "\n")
	}

	b.WriteString("\n")
	switch {
	case sm.invalid != "":
		b.WriteString(errorStyle.Render(sm.invalid))
	case sm.editing:
		b.WriteString(dimStyle.Render("enter save  esc cancel"))
	case sm.row().choices != nil:
		b.WriteString(dimStyle.Render("left/right change  d default"))
	default:
		b.WriteString(dimStyle.Render("enter edit  d default"))
	}

	return forceHeight(b.String(), sm.width, sm.height)
}

func renderChoices(choices []string, current string) string {
	parts := make([]string, 0, len(choices))
	for _, c := range choices {
		if c == current {
			parts = append(parts, fg(colorAccent).Bold(true).Render("["+c+"]"))
		} else {
			parts = append(parts, dimStyle.Render(" "+c+" "))
		}
	}
	return strings.Join(parts, " ")
}
