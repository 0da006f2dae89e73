package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"kongman/internal/entity"
	"kongman/internal/probe"
	"kongman/internal/storage"
	"kongman/internal/storage/models"
)

// loadGateways fetches saved gateways with the active id and latest test.
func loadGateways(d Deps) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		gateways, err := d.Gateways.List(ctx)
		if err != nil {
			return gatewaysLoadedMsg{err: err}
		}
		activeID, err := d.Gateways.ActiveID(ctx)
		if err != nil {
			return gatewaysLoadedMsg{err: err}
		}
		latest := make(map[string]*models.ProbeRecord, len(gateways))
		for _, gw := range gateways {
			if rec, err := d.Storage.GetLatestProbe(ctx, gw.ID); err == nil && rec != nil {
				latest[gw.ID] = rec
			}
		}
		return gatewaysLoadedMsg{gateways: gateways, activeID: activeID, latest: latest}
	}
}

// loadSettings fetches all application settings.
func loadSettings(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		settings, err := store.GetAllSettings(context.Background())
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

// loadEntities lists one collection of the active gateway.
func loadEntities(access *entity.Access, collection string, allPages bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		c := entity.For[entity.Generic](access, collection)
		var (
			items []entity.Generic
			err   error
		)
		if allPages {
			items, err = c.ListPages(ctx)
		} else {
			items, err = c.ListAll(ctx)
		}
		return entitiesLoadedMsg{collection: collection, items: items, err: err}
	}
}

// setActive makes gw the active gateway.
func setActive(d Deps, gw *models.Gateway) tea.Cmd {
	return func() tea.Msg {
		err := d.Gateways.SetActive(context.Background(), gw.ID)
		return activeSetMsg{gateway: gw, err: err}
	}
}

func removeGateway(d Deps, gw *models.Gateway) tea.Cmd {
	return func() tea.Msg {
		err := d.Gateways.Remove(context.Background(), gw.ID)
		return gatewayRemovedMsg{name: gw.Name, err: err}
	}
}

// pollStatus tests the active gateway without recording history.
func pollStatus(d Deps) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		gw, err := d.Gateways.Active(ctx)
		if err != nil || gw == nil {
			return statusResultMsg{}
		}
		return statusResultMsg{gateway: gw, result: d.Tester.Test(ctx, probe.CandidateFor(gw))}
	}
}

// statusTick returns a tea.Cmd that fires after 5 seconds.
func statusTick() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return statusTickMsg{}
	})
}

// testSingle tests a saved gateway and records the result.
func testSingle(d Deps, gw *models.Gateway) tea.Cmd {
	return func() tea.Msg {
		return singleTestDoneMsg{result: d.Tester.TestSaved(context.Background(), gw)}
	}
}

// testBatch tests every gateway with progress reporting via program.Send.
func testBatch(d Deps, gateways []*models.Gateway, p *tea.Program) tea.Cmd {
	return func() tea.Msg {
		progress := func(result *probe.GatewayResult, current, total int) {
			if p != nil {
				p.Send(testProgressMsg{result: result, current: current, total: total})
			}
		}
		return testBatchDoneMsg{batch: d.Tester.TestBatch(context.Background(), gateways, progress)}
	}
}

// saveSetting validates and saves a single setting.
func saveSetting(store storage.Storage, key, value string) tea.Cmd {
	return func() tea.Msg {
		if err := storage.ValidateSetting(key, value); err != nil {
			return settingSavedMsg{key: key, err: err}
		}
		err := store.SetSetting(context.Background(), key, value)
		return settingSavedMsg{key: key, err: err}
	}
}

// clearNotification returns a command that fires after a delay.
func clearNotification(d time.Duration, version int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}
