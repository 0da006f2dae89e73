package client

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	pkgerrors "kongman/pkg/errors"
)

const (
	maxErrorBody    = 64 << 10
	maxResponseBody = 32 << 20
)

// ReadBody reads a successful response body up to a sane limit.
func ReadBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
}

// ReadAPIError converts a non-2xx response into a remote APIError. The
// server message is taken from the "message" field Kong uses, then from
// "error", then from the raw body.
func ReadAPIError(resp *http.Response) *pkgerrors.APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return pkgerrors.NewRemoteError(resp.StatusCode, ServerMessage(body, resp.Status))
}

// ServerMessage extracts the diagnostic text from an error body. fallback
// is returned for an empty body.
func ServerMessage(body []byte, fallback string) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fallback
	}
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			if msg := strings.TrimSpace(payload.Message); msg != "" {
				return msg
			}
			if msg := strings.TrimSpace(payload.Error); msg != "" {
				return msg
			}
		}
	}
	return trimmed
}
