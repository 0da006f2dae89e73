package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"kongman/internal/client"
	"kongman/internal/config"
	"kongman/internal/entity"
	"kongman/internal/gateway"
	"kongman/internal/logging"
	"kongman/internal/monitor"
	"kongman/internal/paths"
	"kongman/internal/probe"
	"kongman/internal/storage"
	"kongman/internal/storage/memory"
	"kongman/internal/storage/models"
	"kongman/internal/storage/sqlite"
)

// MemoryDB selects the in-memory backend instead of a database file.
const MemoryDB = ":memory:"

// App represents the application context
type App struct {
	Storage  storage.Storage
	Gateways *gateway.Store
	Tester   *probe.Tester
	Entities *entity.Access
	Config   *Config
	Log      *logging.Logger
}

// Config is the effective configuration after flags, the config file and
// stored settings are combined.
type Config struct {
	DBPath          string
	LogLevel        string
	LogJSON         bool
	RequestTimeout  time.Duration
	ProbeTimeout    time.Duration
	ProbeWorkers    int
	MonitorInterval time.Duration
}

// Options are the command-line overrides.
type Options struct {
	ConfigPath string
	DBPath     string
	LogLevel   string
	LogOutput  io.Writer
}

// New creates a new application instance. Flags win over the config file,
// which wins over stored settings.
func New(opts Options) (*App, error) {
	file, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	dbPath := firstNonEmpty(opts.DBPath, file.DBPath)
	if dbPath == "" {
		dbPath, err = paths.DBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
	}

	var store storage.Storage
	if dbPath == MemoryDB {
		store = memory.New()
	} else {
		store, err = sqlite.New(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	cfg, err := resolveConfig(context.Background(), store, file)
	if err != nil {
		store.Close()
		return nil, err
	}
	cfg.DBPath = dbPath
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		store.Close()
		return nil, err
	}
	log := logging.New(logging.Config{Level: level, Output: opts.LogOutput, JSON: cfg.LogJSON})
	logging.SetDefault(log)

	return NewWithStorage(store, cfg, log), nil
}

// NewWithStorage wires the application around an open backend.
func NewWithStorage(store storage.Storage, cfg *Config, log *logging.Logger) *App {
	if log == nil {
		log = logging.Discard()
	}
	gateways := gateway.NewStore(store, log)
	clientOpts := []client.Option{client.WithLogger(log.WithComponent("client"))}

	tester := probe.NewTester(store, probe.TesterConfig{
		Workers:       int64(cfg.ProbeWorkers),
		Timeout:       cfg.ProbeTimeout,
		ClientOptions: clientOpts,
	}, log)

	entities := entity.New(gateways,
		entity.WithUsage(gateways),
		entity.WithLogger(log),
		entity.WithClientOptions(append(clientOpts, client.WithTimeout(cfg.RequestTimeout))...),
	)

	return &App{
		Storage:  store,
		Gateways: gateways,
		Tester:   tester,
		Entities: entities,
		Config:   cfg,
		Log:      log,
	}
}

// Close closes the application and releases resources
func (a *App) Close() error {
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}

// ─── Collaborator interface ─────────────────────────────────────────────────

// GatewayList returns every saved gateway in insertion order.
func (a *App) GatewayList(ctx context.Context) ([]*models.Gateway, error) {
	return a.Gateways.List(ctx)
}

// ActiveGateway returns the active gateway, or nil.
func (a *App) ActiveGateway(ctx context.Context) (*models.Gateway, error) {
	return a.Gateways.Active(ctx)
}

// AddGateway validates gw and saves it.
func (a *App) AddGateway(ctx context.Context, gw models.Gateway) (string, error) {
	if err := gw.Validate(); err != nil {
		return "", err
	}
	return a.Gateways.Add(ctx, gw)
}

// AddTestedGateway tests gw and saves it only when the test succeeds.
func (a *App) AddTestedGateway(ctx context.Context, gw models.Gateway) (string, *probe.Result, error) {
	if err := gw.Validate(); err != nil {
		return "", nil, err
	}
	result := a.TestGateway(ctx, probe.CandidateFor(&gw))
	if !result.Success {
		return "", result, nil
	}
	id, err := a.Gateways.Add(ctx, gw)
	return id, result, err
}

// RemoveGateway deletes a gateway; unknown ids are ignored.
func (a *App) RemoveGateway(ctx context.Context, id string) error {
	return a.Gateways.Remove(ctx, id)
}

// SetActiveGateway selects the gateway used by entity operations.
func (a *App) SetActiveGateway(ctx context.Context, id string) error {
	return a.Gateways.SetActive(ctx, id)
}

// TestGateway probes connection parameters without saving anything.
func (a *App) TestGateway(ctx context.Context, c probe.Candidate) *probe.Result {
	return a.Tester.Test(ctx, c)
}

// EntityClient returns untyped CRUD access to a collection of the active
// gateway.
func (a *App) EntityClient(collection string) *entity.Collection[entity.Generic] {
	return entity.For[entity.Generic](a.Entities, collection)
}

// NewMonitor builds a monitor over all saved gateways.
func (a *App) NewMonitor(interval time.Duration, metrics *monitor.Metrics) (*monitor.Monitor, error) {
	if interval <= 0 {
		interval = a.Config.MonitorInterval
	}
	return monitor.New(a.Gateways, a.Tester, interval, metrics, a.Log)
}

// ─── Configuration ──────────────────────────────────────────────────────────

func resolveConfig(ctx context.Context, store storage.Storage, file *config.Config) (*Config, error) {
	settings, err := store.GetAllSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	cfg := &Config{
		LogLevel:        firstNonEmpty(file.LogLevel, settings[storage.SettingLogLevel]),
		LogJSON:         file.LogJSON,
		RequestTimeout:  file.RequestTimeout,
		ProbeTimeout:    file.ProbeTimeout,
		ProbeWorkers:    file.ProbeWorkers,
		MonitorInterval: file.MonitorInterval,
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = settingDuration(settings, storage.SettingRequestTimeout, time.Millisecond, client.DefaultTimeout)
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = settingDuration(settings, storage.SettingProbeTimeout, time.Millisecond, 5*time.Second)
	}
	if cfg.ProbeWorkers == 0 {
		cfg.ProbeWorkers = settingInt(settings, storage.SettingProbeWorkers, 10)
	}
	if cfg.MonitorInterval == 0 {
		cfg.MonitorInterval = settingDuration(settings, storage.SettingMonitorInterval, time.Second, monitor.DefaultInterval)
	}
	return cfg, nil
}

func settingInt(settings map[string]string, key string, def int) int {
	v, err := strconv.Atoi(settings[key])
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func settingDuration(settings map[string]string, key string, unit, def time.Duration) time.Duration {
	v := settingInt(settings, key, 0)
	if v == 0 {
		return def
	}
	return time.Duration(v) * unit
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
