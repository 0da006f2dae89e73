package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kongman/internal/storage/models"
)

type gatewaysModel struct {
	table    table.Model
	gateways []*models.Gateway
	activeID string
	latest   map[string]*models.ProbeRecord
	width    int
	height   int

	// Removal needs a second press of the same key on the same row.
	pendingRemove string

	testingSingle bool
	testingBatch  bool
	batchProgress progress.Model
	batchCurrent  int
	batchTotal    int
}

func gatewayColumns(w int) []table.Column {
	name, url := 20, 30
	if w > 100 {
		name, url = w/5, w/3
	}
	return []table.Column{
		{Title: " ", Width: 1},
		{Title: "Name", Width: name},
		{Title: "Admin URL", Width: url},
		{Title: "Auth", Width: 10},
		{Title: "Last Test", Width: 12},
		{Title: "Used", Width: 6},
	}
}

func newGatewaysModel() gatewaysModel {
	return gatewaysModel{
		table: newTable(gatewayColumns(0)),
		batchProgress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithoutPercentage(),
		),
	}
}

// newTable builds a focused table with the shared styles.
func newTable(cols []table.Column) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(colorAccent)
	s.Selected = s.Selected.
		Foreground(colorFg).
		Background(colorSelected).
		Bold(true)
	t.SetStyles(s)
	return t
}

func (gm *gatewaysModel) setSize(w, h int) {
	gm.width = w
	gm.height = h
	gm.adjustTableHeight()
	gm.table.SetColumns(gatewayColumns(w))
	gm.batchProgress.Width = w - 4
}

// adjustTableHeight subtracts the status lines rendered above the table.
func (gm *gatewaysModel) adjustTableHeight() {
	overhead := 0
	if gm.testingSingle || gm.testingBatch || gm.pendingRemove != "" {
		overhead++
	}
	th := gm.height - overhead
	if th < 1 {
		th = 1
	}
	gm.table.SetHeight(th)
}

func (gm *gatewaysModel) setGateways(msg gatewaysLoadedMsg) {
	gm.gateways = msg.gateways
	gm.activeID = msg.activeID
	gm.latest = msg.latest

	rows := make([]table.Row, len(msg.gateways))
	for i, gw := range msg.gateways {
		marker := ""
		if gw.ID == msg.activeID {
			marker = "*"
		}
		rows[i] = table.Row{
			marker,
			truncate(gw.Name, 30),
			gw.AdminURL,
			string(gw.AuthType()),
			probeCell(msg.latest[gw.ID]),
			fmt.Sprintf("%d", gw.UseCount),
		}
	}
	cursor := gm.table.Cursor()
	gm.table.SetRows(rows)
	if cursor >= len(rows) {
		gm.table.GotoTop()
	}
}

func probeCell(rec *models.ProbeRecord) string {
	switch {
	case rec == nil:
		return "-"
	case rec.Success && rec.LatencyMS != nil:
		return fmt.Sprintf("%dms", *rec.LatencyMS)
	case rec.StatusCode != 0:
		return fmt.Sprintf("fail %d", rec.StatusCode)
	default:
		return "fail"
	}
}

func (gm *gatewaysModel) selected() *models.Gateway {
	idx := gm.table.Cursor()
	if idx >= 0 && idx < len(gm.gateways) {
		return gm.gateways[idx]
	}
	return nil
}

func (gm *gatewaysModel) updateProgress(msg testProgressMsg) {
	gm.batchCurrent = msg.current
	gm.batchTotal = msg.total
}

func (gm *gatewaysModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		gw := gm.selected()
		if !key.Matches(msg, keys.Remove) && gm.pendingRemove != "" {
			gm.pendingRemove = ""
			gm.adjustTableHeight()
		}

		switch {
		case key.Matches(msg, keys.Use) || key.Matches(msg, keys.Enter):
			if gw != nil {
				return setActive(root.deps, gw)
			}

		case key.Matches(msg, keys.Remove):
			if gw == nil {
				break
			}
			if gm.pendingRemove != gw.ID {
				gm.pendingRemove = gw.ID
				gm.adjustTableHeight()
				return nil
			}
			gm.pendingRemove = ""
			gm.adjustTableHeight()
			return removeGateway(root.deps, gw)

		case key.Matches(msg, keys.TestSingle):
			if gw != nil && !gm.busy() {
				gm.testingSingle = true
				gm.adjustTableHeight()
				return testSingle(root.deps, gw)
			}

		case key.Matches(msg, keys.TestBatch):
			if len(gm.gateways) > 0 && !gm.busy() {
				gm.testingBatch = true
				gm.batchCurrent = 0
				gm.batchTotal = len(gm.gateways)
				gm.adjustTableHeight()
				return testBatch(root.deps, gm.gateways, root.program)
			}
		}
	}

	var cmd tea.Cmd
	gm.table, cmd = gm.table.Update(msg)
	return cmd
}

func (gm *gatewaysModel) busy() bool {
	return gm.testingSingle || gm.testingBatch
}

func (gm *gatewaysModel) View(s spinner.Model) string {
	var b strings.Builder

	switch {
	case gm.pendingRemove != "":
		b.WriteString(warningStyle.Render("Press x again to remove the selected gateway"))
		b.WriteString("\n")
	case gm.testingSingle:
		b.WriteString(s.View() + " Testing connection...\n")
	case gm.testingBatch:
		pct := 0.0
		if gm.batchTotal > 0 {
			pct = float64(gm.batchCurrent) / float64(gm.batchTotal)
		}
		b.WriteString(fmt.Sprintf("%s Testing %d/%d ", s.View(), gm.batchCurrent, gm.batchTotal))
		b.WriteString(gm.batchProgress.ViewAs(pct))
		b.WriteString("\n")
	}

	if len(gm.gateways) == 0 {
		b.WriteString(dimStyle.Render("No gateways saved. Add one with: kongman gateway add <name> --url <admin-url>"))
	} else {
		b.WriteString(gm.table.View())
	}

	return forceHeight(b.String(), gm.width, gm.height)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "~"
}
