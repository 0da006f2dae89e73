// Package probe checks that a gateway's admin API is reachable and accepts
// the configured credentials.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"kongman/internal/client"
	"kongman/internal/logging"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

// Result is the outcome of one connection test. It is never persisted by
// Test.
type Result struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Data       any           `json:"data,omitempty"`
	StatusCode int           `json:"statusCode,omitempty"`
	Latency    time.Duration `json:"-"`
}

// MarshalJSON reports the latency in whole milliseconds, like ProbeRecord.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		LatencyMS int64 `json:"latencyMs"`
	}{plain(r), r.Latency.Milliseconds()})
}

// Err returns nil for a successful test and an error wrapping
// ErrConnectionFailed otherwise.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", pkgerrors.ErrConnectionFailed, strings.TrimPrefix(r.Message, failurePrefix))
}

// Candidate is a set of connection parameters that need not be saved yet.
type Candidate struct {
	AdminURL      string
	SkipTLSVerify bool
	Auth          models.AuthConfig
}

// CandidateFor extracts the connection parameters of a saved gateway.
func CandidateFor(gw *models.Gateway) Candidate {
	return Candidate{AdminURL: gw.AdminURL, SkipTLSVerify: gw.SkipTLSVerify, Auth: gw.Auth}
}

// GatewayResult pairs a saved gateway with its test outcome.
type GatewayResult struct {
	Gateway *models.Gateway
	Result  *Result
}

// BatchResult holds the outcome of testing multiple gateways.
type BatchResult struct {
	Results   []*GatewayResult
	Tested    int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// ProgressFunc is called each time a single test completes during batch testing.
type ProgressFunc func(result *GatewayResult, current, total int)

// Recorder persists test history for saved gateways.
type Recorder interface {
	RecordProbe(ctx context.Context, record *models.ProbeRecord) error
}

// TesterConfig holds configuration for the Tester.
type TesterConfig struct {
	Workers       int64
	Timeout       time.Duration
	Strategy      Strategy
	ClientOptions []client.Option
}

// Tester orchestrates connection testing.
type Tester struct {
	recorder Recorder
	config   TesterConfig
	log      *logging.Logger
}

// NewTester creates a new Tester. recorder may be nil, in which case
// TestSaved keeps no history.
func NewTester(recorder Recorder, cfg TesterConfig, log *logging.Logger) *Tester {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Strategy == nil {
		cfg.Strategy = &StatusStrategy{}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Tester{
		recorder: recorder,
		config:   cfg,
		log:      log.WithComponent("probe"),
	}
}

// Test probes a candidate connection. Every failure, including invalid
// parameters, is reported in the Result.
func (t *Tester) Test(ctx context.Context, c Candidate) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = failure(fmt.Sprint(r), 0, 0)
		}
	}()

	cfg, err := client.Build(models.Gateway{
		AdminURL:      c.AdminURL,
		SkipTLSVerify: c.SkipTLSVerify,
		Auth:          c.Auth,
	}, t.config.ClientOptions...)
	if err != nil {
		return failure(err.Error(), 0, 0)
	}

	testCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	result = t.config.Strategy.Probe(testCtx, cfg)
	t.log.Debug("connection tested", "admin_url", cfg.BaseURL, "strategy", t.config.Strategy.Name(),
		"success", result.Success, "status", result.StatusCode, "latency", result.Latency)
	return result
}

// TestSaved tests a saved gateway and records the outcome (best-effort).
func (t *Tester) TestSaved(ctx context.Context, gw *models.Gateway) *GatewayResult {
	result := t.Test(ctx, CandidateFor(gw))

	if t.recorder != nil {
		record := &models.ProbeRecord{
			GatewayID:  gw.ID,
			Success:    result.Success,
			StatusCode: result.StatusCode,
			Message:    result.Message,
			TestedAt:   time.Now(),
		}
		if result.Success {
			ms := int(result.Latency.Milliseconds())
			record.LatencyMS = &ms
		}
		if err := t.recorder.RecordProbe(ctx, record); err != nil {
			t.log.Warn("failed to record probe result", "gateway", gw.Name, "error", err)
		}
	}

	return &GatewayResult{Gateway: gw, Result: result}
}

// TestBatch tests multiple gateways concurrently using a semaphore-based worker pool.
func (t *Tester) TestBatch(ctx context.Context, gateways []*models.Gateway, progress ProgressFunc) *BatchResult {
	startTime := time.Now()

	batch := &BatchResult{}
	results := make([]*GatewayResult, len(gateways))
	var mu sync.Mutex
	var completed int

	sem := semaphore.NewWeighted(t.config.Workers)
	var wg sync.WaitGroup

	for i, gw := range gateways {
		wg.Add(1)
		go func(idx int, gw *models.Gateway) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			result := t.TestSaved(ctx, gw)
			results[idx] = result

			mu.Lock()
			completed++
			current := completed
			if result.Result.Success {
				batch.Succeeded++
			} else {
				batch.Failed++
			}
			mu.Unlock()

			if progress != nil {
				progress(result, current, len(gateways))
			}
		}(i, gw)
	}

	wg.Wait()

	for _, r := range results {
		if r != nil {
			batch.Results = append(batch.Results, r)
			batch.Tested++
		}
	}

	// Successful by latency ascending, failures at end
	sort.SliceStable(batch.Results, func(i, j int) bool {
		ri, rj := batch.Results[i].Result, batch.Results[j].Result
		if ri.Success != rj.Success {
			return ri.Success
		}
		if ri.Success {
			return ri.Latency < rj.Latency
		}
		return false
	})

	batch.Duration = time.Since(startTime)
	return batch
}
