package tui

import (
	"kongman/internal/entity"
	"kongman/internal/probe"
	"kongman/internal/storage/models"
)

// Data loading messages.

type gatewaysLoadedMsg struct {
	gateways []*models.Gateway
	activeID string
	latest   map[string]*models.ProbeRecord
	err      error
}

type settingsLoadedMsg struct {
	settings map[string]string
	err      error
}

type entitiesLoadedMsg struct {
	collection string
	items      []entity.Generic
	err        error
}

// Selection messages.

type activeSetMsg struct {
	gateway *models.Gateway
	err     error
}

type gatewayRemovedMsg struct {
	name string
	err  error
}

// Status polling messages.

type statusTickMsg struct{}

type statusResultMsg struct {
	gateway *models.Gateway
	result  *probe.Result
}

// Connection testing messages.

type testProgressMsg struct {
	result  *probe.GatewayResult
	current int
	total   int
}

type testBatchDoneMsg struct {
	batch *probe.BatchResult
}

type singleTestDoneMsg struct {
	result *probe.GatewayResult
}

// Settings update messages.

type settingSavedMsg struct {
	key string
	err error
}

type clearNotificationMsg struct {
	version int
}
