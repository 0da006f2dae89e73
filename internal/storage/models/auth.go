package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	pkgerrors "kongman/pkg/errors"
)

// AuthType identifies how requests to a gateway's admin API are authenticated
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeAPIKey AuthType = "api-key"
	AuthTypeJWT    AuthType = "jwt-hs256"
)

// AuthTypes lists every supported auth type in display order.
var AuthTypes = []AuthType{AuthTypeNone, AuthTypeBasic, AuthTypeAPIKey, AuthTypeJWT}

// DefaultAPIKeyHeader is the header Kong's key-auth plugin reads by default.
const DefaultAPIKeyHeader = "apikey"

// AuthConfig is the credential payload of a gateway. Exactly one concrete
// type exists per AuthType, so the payload always matches the declared type.
type AuthConfig interface {
	Type() AuthType
	Validate() error
	authConfig()
}

// NoAuth sends no credentials
type NoAuth struct{}

// BasicAuth represents HTTP basic authentication
type BasicAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIKeyAuth represents a static key sent in a fixed header
type APIKeyAuth struct {
	Key    string `json:"key"`
	Header string `json:"header,omitempty"` // defaults to DefaultAPIKeyHeader
}

// JWTAuth represents an HS256 credential (Kong jwt plugin key/secret pair)
type JWTAuth struct {
	Key    string `json:"jwtKey"`
	Secret string `json:"jwtSecret"`
}

func (NoAuth) Type() AuthType     { return AuthTypeNone }
func (BasicAuth) Type() AuthType  { return AuthTypeBasic }
func (APIKeyAuth) Type() AuthType { return AuthTypeAPIKey }
func (JWTAuth) Type() AuthType    { return AuthTypeJWT }

func (NoAuth) authConfig()     {}
func (BasicAuth) authConfig()  {}
func (APIKeyAuth) authConfig() {}
func (JWTAuth) authConfig()    {}

func (NoAuth) Validate() error { return nil }

func (a BasicAuth) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return &pkgerrors.ValidationError{Field: "username", Reason: "required for basic auth"}
	}
	return nil
}

func (a APIKeyAuth) Validate() error {
	if a.Key == "" {
		return &pkgerrors.ValidationError{Field: "key", Reason: "required for api-key auth"}
	}
	if a.Header != "" && strings.ContainsAny(a.Header, " \t\r\n:") {
		return &pkgerrors.ValidationError{Field: "header", Reason: fmt.Sprintf("%q is not a valid header name", a.Header)}
	}
	return nil
}

// HeaderName returns the header the key is sent in.
func (a APIKeyAuth) HeaderName() string {
	if a.Header == "" {
		return DefaultAPIKeyHeader
	}
	return a.Header
}

func (a JWTAuth) Validate() error {
	if a.Key == "" {
		return &pkgerrors.ValidationError{Field: "jwtKey", Reason: "required for jwt-hs256 auth"}
	}
	if a.Secret == "" {
		return &pkgerrors.ValidationError{Field: "jwtSecret", Reason: "required for jwt-hs256 auth"}
	}
	return nil
}

// ParseAuthType converts a user-supplied name into an AuthType.
func ParseAuthType(s string) (AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AuthTypeNone, nil
	case "basic":
		return AuthTypeBasic, nil
	case "api-key", "apikey", "key-auth":
		return AuthTypeAPIKey, nil
	case "jwt-hs256", "jwt":
		return AuthTypeJWT, nil
	}
	return "", fmt.Errorf("%w: %s", pkgerrors.ErrAuthUnsupported, s)
}

// AuthOrNone maps a nil AuthConfig to NoAuth.
func AuthOrNone(a AuthConfig) AuthConfig {
	if a == nil {
		return NoAuth{}
	}
	return a
}

// EncodeAuth splits an AuthConfig into its type tag and JSON payload.
// NoAuth has an empty payload.
func EncodeAuth(a AuthConfig) (AuthType, json.RawMessage, error) {
	a = AuthOrNone(a)
	if _, ok := a.(NoAuth); ok {
		return AuthTypeNone, nil, nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal auth config: %w", err)
	}
	return a.Type(), raw, nil
}

// DecodeAuth rebuilds an AuthConfig from its type tag and payload. A payload
// carrying fields that do not belong to the declared type is rejected.
func DecodeAuth(t AuthType, raw []byte) (AuthConfig, error) {
	var target AuthConfig
	switch t {
	case AuthTypeNone, "":
		return NoAuth{}, nil
	case AuthTypeBasic:
		target = &BasicAuth{}
	case AuthTypeAPIKey:
		target = &APIKeyAuth{}
	case AuthTypeJWT:
		target = &JWTAuth{}
	default:
		return nil, &pkgerrors.ValidationError{Field: "authType", Reason: fmt.Sprintf("unsupported auth type %q", t)}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &pkgerrors.ValidationError{Field: "authConfig", Reason: fmt.Sprintf("required for auth type %s", t)}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, &pkgerrors.ValidationError{Field: "authConfig", Reason: fmt.Sprintf("does not match auth type %s: %v", t, err)}
	}

	var cfg AuthConfig
	switch v := target.(type) {
	case *BasicAuth:
		cfg = *v
	case *APIKeyAuth:
		cfg = *v
	case *JWTAuth:
		cfg = *v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RedactAuth returns a display-safe description of the credentials.
func RedactAuth(a AuthConfig) string {
	switch v := AuthOrNone(a).(type) {
	case BasicAuth:
		return fmt.Sprintf("basic (user %s)", v.Username)
	case APIKeyAuth:
		return fmt.Sprintf("api-key (header %s)", v.HeaderName())
	case JWTAuth:
		return fmt.Sprintf("jwt-hs256 (key %s)", v.Key)
	default:
		return "none"
	}
}
