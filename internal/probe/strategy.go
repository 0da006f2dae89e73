package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"kongman/internal/client"
	pkgerrors "kongman/pkg/errors"
)

// SuccessMessage is reported for every successful probe.
const SuccessMessage = "Connection successful"

const failurePrefix = "Connection failed: "

// Strategy defines how a single gateway is probed.
type Strategy interface {
	// Name returns the strategy identifier ("status" or "tcp").
	Name() string
	// Probe checks the gateway described by cfg. It never returns nil.
	Probe(ctx context.Context, cfg *client.Config) *Result
}

// StatusStrategy issues GET {adminUrl}/status through a client built exactly
// like the one used for entity operations, so TLS and credentials are
// exercised.
type StatusStrategy struct{}

func (s *StatusStrategy) Name() string { return "status" }

func (s *StatusStrategy) Probe(ctx context.Context, cfg *client.Config) *Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL("status"), nil)
	if err != nil {
		return failure(err.Error(), 0, 0)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := cfg.HTTPClient()
	defer httpClient.CloseIdleConnections()

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return failure(err.Error(), 0, time.Since(start))
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := client.ReadAPIError(resp)
		return failure(fmt.Sprintf("HTTP %d: %s", apiErr.Status, apiErr.Message), resp.StatusCode, elapsed)
	}

	body, err := client.ReadBody(resp)
	if err != nil {
		return failure(err.Error(), resp.StatusCode, elapsed)
	}

	return &Result{
		Success:    true,
		Message:    SuccessMessage,
		Data:       decodeData(body),
		StatusCode: resp.StatusCode,
		Latency:    elapsed,
	}
}

// TCPStrategy only verifies that the admin port accepts connections. It
// checks neither TLS nor credentials.
type TCPStrategy struct{}

func (s *TCPStrategy) Name() string { return "tcp" }

func (s *TCPStrategy) Probe(ctx context.Context, cfg *client.Config) *Result {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return failure(err.Error(), 0, 0)
	}
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}

	addr := net.JoinHostPort(u.Hostname(), port)
	start := time.Now()
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		netErr := &pkgerrors.NetworkError{Address: addr, Err: err}
		return failure(netErr.Error(), 0, time.Since(start))
	}
	elapsed := time.Since(start)
	conn.Close()

	return &Result{Success: true, Message: SuccessMessage, Latency: elapsed}
}

// NewStrategy creates a Strategy by name. Valid names: "status", "tcp".
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case "status", "":
		return &StatusStrategy{}, nil
	case "tcp":
		return &TCPStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown test strategy: %s (available: status, tcp)", name)
	}
}

func failure(cause string, status int, latency time.Duration) *Result {
	return &Result{
		Success:    false,
		Message:    failurePrefix + cause,
		StatusCode: status,
		Latency:    latency,
	}
}

func decodeData(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return string(body)
	}
	return data
}
