package storage

import (
	"context"

	"kongman/internal/storage/models"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Gateway operations
	CreateGateway(ctx context.Context, gateway *models.Gateway) error
	GetGateway(ctx context.Context, id string) (*models.Gateway, error)
	GetGatewayByName(ctx context.Context, name string) (*models.Gateway, error)
	GetAllGateways(ctx context.Context, filter GatewayFilter) ([]*models.Gateway, error)
	UpdateGateway(ctx context.Context, gateway *models.Gateway) error
	DeleteGateway(ctx context.Context, id string) error

	// Probe history operations
	RecordProbe(ctx context.Context, record *models.ProbeRecord) error
	GetLatestProbe(ctx context.Context, gatewayID string) (*models.ProbeRecord, error)
	GetProbeHistory(ctx context.Context, gatewayID string, limit int) ([]*models.ProbeRecord, error)

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)

	// Active gateway
	SetActiveGateway(ctx context.Context, gatewayID string) error
	GetActiveGateway(ctx context.Context) (*models.ActiveGateway, error)
	ClearActiveGateway(ctx context.Context) error

	// Transactions
	BeginTx(ctx context.Context) (Transaction, error)

	// Close closes the storage connection
	Close() error
}

// GatewayFilter represents filters for querying gateways. Results keep
// insertion order.
type GatewayFilter struct {
	Variant    *models.Variant
	AuthType   *models.AuthType
	SearchTerm string // Search in name, admin URL, notes
	Tags       []string
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Storage
}

// Settings keys seeded by every backend.
const (
	SettingLogLevel        = "log_level"
	SettingRequestTimeout  = "request_timeout_ms"
	SettingProbeTimeout    = "probe_timeout_ms"
	SettingProbeWorkers    = "probe_workers"
	SettingMonitorInterval = "monitor_interval_s"
)

// DefaultSettings are written on first open and never overwrite user values.
var DefaultSettings = map[string]string{
	SettingLogLevel:        "info",
	SettingRequestTimeout:  "30000",
	SettingProbeTimeout:    "5000",
	SettingProbeWorkers:    "10",
	SettingMonitorInterval: "60",
}
