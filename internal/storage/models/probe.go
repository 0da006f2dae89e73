package models

import "time"

// ProbeRecord represents the stored outcome of a connection test against a
// saved gateway.
type ProbeRecord struct {
	ID         int64     `json:"id"`
	GatewayID  string    `json:"gateway_id"`
	Success    bool      `json:"success"`
	StatusCode int       `json:"status_code,omitempty"`
	LatencyMS  *int      `json:"latency_ms,omitempty"` // NULL if failed
	Message    string    `json:"message,omitempty"`
	TestedAt   time.Time `json:"tested_at"`
}
