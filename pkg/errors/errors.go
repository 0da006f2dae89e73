package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	// Gateway profile errors
	ErrGatewayNotFound = errors.New("gateway not found")
	ErrValidation      = errors.New("invalid gateway")
	ErrAuthUnsupported = errors.New("auth type not supported")
	ErrSnapshotInvalid = errors.New("invalid gateway snapshot")

	// Connection errors
	ErrNoActiveConnection = errors.New("no active gateway connection")
	ErrConnectionFailed   = errors.New("connection failed")

	// Admin API errors
	ErrNotFound  = errors.New("resource not found")
	ErrRemote    = errors.New("admin API error")
	ErrTransport = errors.New("no response from gateway")
	ErrRequest   = errors.New("request could not be sent")

	// Token errors
	ErrTokenMint = errors.New("failed to mint token")
)

// IsNotFound reports whether err refers to a missing gateway profile or a
// missing remote entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGatewayNotFound) || errors.Is(err, ErrNotFound)
}

// ValidationError represents malformed input to a gateway mutation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// GatewayError represents a gateway-related error
type GatewayError struct {
	GatewayID string
	Name      string
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("gateway '%s': %v", e.Name, e.Err)
	}
	return fmt.Sprintf("gateway (ID: %s): %v", e.GatewayID, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// APIKind classifies an admin API failure.
type APIKind int

const (
	// KindRemote means the gateway answered with a non-2xx status.
	KindRemote APIKind = iota
	// KindTransport means the request was sent but no response arrived.
	KindTransport
	// KindRequest means the request could not be built or sent.
	KindRequest
)

// TransportMessage is the fixed description of a request that got no answer.
const TransportMessage = "Network Error: no response received; check connectivity and gateway settings."

// APIError is the normalized failure returned by every admin API operation.
// The underlying transport error is kept for logging but is not exposed
// through Unwrap.
type APIError struct {
	Kind    APIKind
	Status  int
	Message string
	cause   error
}

// NewRemoteError builds an APIError for a non-2xx response.
func NewRemoteError(status int, message string) *APIError {
	return &APIError{Kind: KindRemote, Status: status, Message: message}
}

// NewTransportError builds an APIError for a request that got no response.
func NewTransportError(cause error) *APIError {
	return &APIError{Kind: KindTransport, cause: cause}
}

// NewRequestError builds an APIError for a request that could not be sent.
func NewRequestError(cause error) *APIError {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &APIError{Kind: KindRequest, Message: msg, cause: cause}
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindRemote:
		return fmt.Sprintf("API Error %d: %s", e.Status, e.Message)
	case KindTransport:
		return TransportMessage
	default:
		return "Error: " + e.Message
	}
}

// Is lets callers match the error against the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindRemote && e.Status == http.StatusNotFound
	case ErrRemote:
		return e.Kind == KindRemote
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrRequest:
		return e.Kind == KindRequest
	}
	return false
}

// Cause returns the low-level error that triggered the failure, if any.
func (e *APIError) Cause() error {
	return e.cause
}

// NetworkError represents a network-related error
type NetworkError struct {
	Address string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error (%s): %v", e.Address, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
