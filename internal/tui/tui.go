// Package tui implements the full-screen terminal console.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kongman/internal/entity"
	"kongman/internal/gateway"
	"kongman/internal/probe"
	"kongman/internal/storage"
	"kongman/internal/storage/models"
)

// Tab indices.
const (
	tabGateways = 0
	tabEntities = 1
	tabStatus   = 2
	tabSettings = 3
	tabCount    = 4
)

// Deps holds all dependencies injected into the TUI.
type Deps struct {
	Storage  storage.Storage
	Gateways *gateway.Store
	Tester   *probe.Tester
	Entities *entity.Access
}

// Model is the root BubbleTea model.
type Model struct {
	deps    Deps
	program *tea.Program

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool

	// Active gateway state.
	active  *models.Gateway
	healthy *bool

	// Tab models.
	gatewaysTab gatewaysModel
	entitiesTab entitiesModel
	statusTab   statusModel
	settingsTab settingsModel

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	// Spinner for async operations.
	spinner spinner.Model
}

// NewModel creates a new root Model.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &Model{
		deps:        deps,
		activeTab:   tabGateways,
		spinner:     s,
		gatewaysTab: newGatewaysModel(),
		entitiesTab: newEntitiesModel(),
		statusTab:   newStatusModel(),
		settingsTab: newSettingsModel(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		loadGateways(m.deps),
		loadSettings(m.deps.Storage),
		pollStatus(m.deps),
		statusTick(),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.gatewaysTab.setSize(msg.Width, ch)
		m.entitiesTab.setSize(msg.Width, ch)
		m.statusTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if cmd := m.handleGlobalKey(msg); cmd != nil {
			return m, cmd
		}

	// Data loading.
	case gatewaysLoadedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Load failed: %v", msg.err), true)
		} else {
			m.gatewaysTab.setGateways(msg)
			m.active = nil
			for _, gw := range msg.gateways {
				if gw.ID == msg.activeID {
					m.active = gw
				}
			}
		}
	case settingsLoadedMsg:
		if msg.err == nil {
			m.settingsTab.setSettings(msg.settings)
		}
	case entitiesLoadedMsg:
		m.entitiesTab.setEntities(msg)

	// Selection.
	case activeSetMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Select failed: %v", msg.err), true)
		} else {
			m.active = msg.gateway
			m.healthy = nil
			m.entitiesTab.items = nil
			m.setNotification(fmt.Sprintf("Using %s", msg.gateway.Name), false)
			cmds = append(cmds, loadGateways(m.deps), pollStatus(m.deps))
		}
	case gatewayRemovedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Remove failed: %v", msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("Removed %s", msg.name), false)
			m.entitiesTab.items = nil
			cmds = append(cmds, loadGateways(m.deps), pollStatus(m.deps))
		}

	// Status polling.
	case statusTickMsg:
		if m.activeTab == tabStatus {
			cmds = append(cmds, pollStatus(m.deps))
		}
		cmds = append(cmds, statusTick())
	case statusResultMsg:
		m.statusTab.updateStatus(msg)
		if msg.result != nil {
			ok := msg.result.Success
			m.healthy = &ok
		} else {
			m.healthy = nil
		}

	// Connection tests.
	case testProgressMsg:
		m.gatewaysTab.updateProgress(msg)
	case testBatchDoneMsg:
		m.gatewaysTab.testingBatch = false
		m.gatewaysTab.adjustTableHeight()
		m.setNotification(
			fmt.Sprintf("Tested %d: %d ok, %d failed",
				msg.batch.Tested, msg.batch.Succeeded, msg.batch.Failed), msg.batch.Failed > 0)
		cmds = append(cmds, loadGateways(m.deps))
	case singleTestDoneMsg:
		m.gatewaysTab.testingSingle = false
		m.gatewaysTab.adjustTableHeight()
		r := msg.result
		if r.Result.Success {
			m.setNotification(fmt.Sprintf("%s: %dms", r.Gateway.Name, r.Result.Latency.Milliseconds()), false)
		} else {
			m.setNotification(fmt.Sprintf("%s: %s", r.Gateway.Name, r.Result.Message), true)
		}
		cmds = append(cmds, loadGateways(m.deps))

	// Settings.
	case settingSavedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Save failed: %v", msg.err), true)
			cmds = append(cmds, loadSettings(m.deps.Storage))
		} else {
			m.setNotification(fmt.Sprintf("Saved %s", msg.key), false)
		}

	// Notification.
	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	// Spinner.
	if _, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(4*time.Second, m.notifVersion))
	}

	// Delegate to active tab.
	switch m.activeTab {
	case tabGateways:
		cmds = append(cmds, m.gatewaysTab.Update(msg, m))
	case tabEntities:
		cmds = append(cmds, m.entitiesTab.Update(msg, m))
	case tabStatus:
		cmds = append(cmds, m.statusTab.Update(msg, m))
	case tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	st := headerState{healthy: m.healthy, busy: m.gatewaysTab.busy()}
	if m.active != nil {
		st.activeName = m.active.Name
	}
	header := renderHeader(m.activeTab, st, m.width)

	var content string
	switch m.activeTab {
	case tabGateways:
		content = m.gatewaysTab.View(m.spinner)
	case tabEntities:
		content = m.entitiesTab.View(m.spinner)
	case tabStatus:
		content = m.statusTab.View(m.active)
	case tabSettings:
		content = m.settingsTab.View()
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = notifErrorStyle.Render("! " + m.notification)
		} else {
			notif = notifSuccessStyle.Render("* " + m.notification)
		}
	}

	footer := renderFooter(renderHelpBar(m.showHelp), m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 3
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) switchTab(tab int) tea.Cmd {
	m.activeTab = tab
	switch tab {
	case tabStatus:
		return pollStatus(m.deps)
	case tabEntities:
		if m.entitiesTab.items == nil && !m.entitiesTab.loading {
			return m.entitiesTab.reload(m)
		}
	}
	return nil
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) tea.Cmd {
	// Don't intercept while a setting is being edited.
	if m.activeTab == tabSettings && m.settingsTab.editing {
		return nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		ch := m.contentHeight()
		m.gatewaysTab.setSize(m.width, ch)
		m.entitiesTab.setSize(m.width, ch)
		m.statusTab.setSize(m.width, ch)
		m.settingsTab.setSize(m.width, ch)
		return nil

	case key.Matches(msg, keys.TabNext):
		return m.switchTab((m.activeTab + 1) % tabCount)

	case key.Matches(msg, keys.TabPrev):
		return m.switchTab((m.activeTab - 1 + tabCount) % tabCount)

	case key.Matches(msg, keys.Refresh):
		cmds := []tea.Cmd{
			loadGateways(m.deps),
			loadSettings(m.deps.Storage),
			pollStatus(m.deps),
		}
		if m.activeTab == tabEntities {
			cmds = append(cmds, m.entitiesTab.reload(m))
		}
		return tea.Batch(cmds...)
	}

	return nil
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// NewProgram creates a bubbletea program with alt screen.
func NewProgram(deps Deps) *tea.Program {
	m := NewModel(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p
	return p
}
