// Package monitor re-tests every saved gateway on a fixed interval.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"kongman/internal/logging"
	"kongman/internal/probe"
	"kongman/internal/storage/models"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = time.Minute

// GatewayLister yields the gateways to test each round.
type GatewayLister interface {
	List(ctx context.Context) ([]*models.Gateway, error)
}

// Monitor runs periodic connection tests.
type Monitor struct {
	scheduler gocron.Scheduler
	gateways  GatewayLister
	tester    *probe.Tester
	metrics   *Metrics
	interval  time.Duration
	log       *logging.Logger

	// OnRound is called after every round, from the scheduler goroutine.
	OnRound func(*probe.BatchResult)

	mu      sync.Mutex
	running bool
}

// New creates a monitor. metrics may be nil.
func New(gateways GatewayLister, tester *probe.Tester, interval time.Duration, metrics *Metrics, log *logging.Logger) (*Monitor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Monitor{
		scheduler: scheduler,
		gateways:  gateways,
		tester:    tester,
		metrics:   metrics,
		interval:  interval,
		log:       log.WithComponent("monitor"),
	}, nil
}

// Start schedules the periodic job and runs a first round immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("monitor is already running")
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() {
			m.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create monitor job: %w", err)
	}

	m.scheduler.Start()
	m.running = true
	m.log.Info("monitor started", "interval", m.interval)
	return nil
}

// Stop shuts the scheduler down and waits for a running round to finish.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return fmt.Errorf("monitor is not running")
	}
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	m.running = false
	m.log.Info("monitor stopped")
	return nil
}

// IsRunning returns whether the monitor is running
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// RunOnce tests every gateway once and records the outcome.
func (m *Monitor) RunOnce(ctx context.Context) *probe.BatchResult {
	gateways, err := m.gateways.List(ctx)
	if err != nil {
		m.log.Error("failed to list gateways", "error", err)
		return &probe.BatchResult{}
	}

	batch := m.tester.TestBatch(ctx, gateways, nil)
	for _, r := range batch.Results {
		l := m.log.WithGateway(r.Gateway.ID, r.Gateway.Name)
		if r.Result.Success {
			l.Info("gateway healthy", "latency", r.Result.Latency, "status", r.Result.StatusCode)
		} else {
			l.Warn("gateway unhealthy", "message", r.Result.Message, "status", r.Result.StatusCode)
		}
	}

	if m.metrics != nil {
		m.metrics.Observe(batch)
	}
	if m.OnRound != nil {
		m.OnRound(batch)
	}
	return batch
}
