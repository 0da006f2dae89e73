package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kongman/internal/entity"
)

type entitiesModel struct {
	table  table.Model
	detail viewport.Model
	width  int
	height int

	collection int
	items      []entity.Generic
	allPages   bool
	loading    bool
	err        error

	showDetail bool
}

func entityColumns(w int) []table.Column {
	id, name := 36, 25
	if w > 100 {
		name = w - id - 30
	}
	return []table.Column{
		{Title: "ID", Width: id},
		{Title: "Name", Width: name},
		{Title: "Tags", Width: 20},
	}
}

func newEntitiesModel() entitiesModel {
	return entitiesModel{
		table:  newTable(entityColumns(0)),
		detail: viewport.New(80, 10),
	}
}

func (em *entitiesModel) current() string {
	return entity.Collections[em.collection]
}

func (em *entitiesModel) setSize(w, h int) {
	em.width = w
	em.height = h
	th := h - 2
	if th < 1 {
		th = 1
	}
	em.table.SetHeight(th)
	em.table.SetColumns(entityColumns(w))
	em.detail.Width = w
	em.detail.Height = th
}

// reload starts loading the selected collection.
func (em *entitiesModel) reload(root *Model) tea.Cmd {
	em.loading = true
	em.showDetail = false
	return loadEntities(root.deps.Entities, em.current(), em.allPages)
}

func (em *entitiesModel) setEntities(msg entitiesLoadedMsg) {
	if msg.collection != em.current() {
		return
	}
	em.loading = false
	em.err = msg.err
	em.items = msg.items

	rows := make([]table.Row, len(msg.items))
	for i, item := range msg.items {
		id, _ := item["id"].(string)
		rows[i] = table.Row{id, truncate(entity.DisplayName(item), 40), tagList(item)}
	}
	em.table.SetRows(rows)
	em.table.GotoTop()
}

func (em *entitiesModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case em.showDetail && key.Matches(msg, keys.Back):
			em.showDetail = false
			return nil

		case em.showDetail:
			var cmd tea.Cmd
			em.detail, cmd = em.detail.Update(msg)
			return cmd

		case key.Matches(msg, keys.PrevColl):
			em.collection = (em.collection - 1 + len(entity.Collections)) % len(entity.Collections)
			return em.reload(root)

		case key.Matches(msg, keys.NextColl):
			em.collection = (em.collection + 1) % len(entity.Collections)
			return em.reload(root)

		case key.Matches(msg, keys.AllPages):
			em.allPages = !em.allPages
			return em.reload(root)

		case key.Matches(msg, keys.Enter):
			idx := em.table.Cursor()
			if idx >= 0 && idx < len(em.items) {
				data, err := json.MarshalIndent(em.items[idx], "", "  ")
				if err != nil {
					data = []byte(err.Error())
				}
				em.detail.SetContent(string(data))
				em.detail.GotoTop()
				em.showDetail = true
			}
			return nil
		}
	}

	var cmd tea.Cmd
	em.table, cmd = em.table.Update(msg)
	return cmd
}

func (em *entitiesModel) View(s spinner.Model) string {
	var b strings.Builder

	b.WriteString(em.renderCollections())
	b.WriteString("\n")

	switch {
	case em.loading:
		b.WriteString(s.View() + fmt.Sprintf(" Loading %s...\n", em.current()))
	case em.err != nil:
		b.WriteString(errorStyle.Render(em.err.Error()))
		b.WriteString("\n")
	case em.showDetail:
		b.WriteString(dimStyle.Render("esc to go back"))
		b.WriteString("\n")
		b.WriteString(em.detail.View())
	case len(em.items) == 0:
		b.WriteString(dimStyle.Render(fmt.Sprintf("No %s.", em.current())))
		b.WriteString("\n")
	default:
		scope := "first page"
		if em.allPages {
			scope = "all pages"
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d %s (%s)", len(em.items), em.current(), scope)))
		b.WriteString("\n")
		b.WriteString(em.table.View())
	}

	return forceHeight(b.String(), em.width, em.height)
}

// renderCollections renders the collection selector with the current one
// highlighted.
func (em *entitiesModel) renderCollections() string {
	var parts []string
	for i, c := range entity.Collections {
		if i == em.collection {
			parts = append(parts, lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent).
				Render("["+c+"]"))
		} else {
			parts = append(parts, lipgloss.NewStyle().
				Foreground(colorDimFg).
				Render(" "+c+" "))
		}
	}
	return strings.Join(parts, " ")
}

func tagList(item entity.Generic) string {
	raw, _ := item["tags"].([]any)
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	sort.Strings(tags)
	return strings.Join(tags, ",")
}
