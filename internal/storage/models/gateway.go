package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgerrors "kongman/pkg/errors"
)

// Variant is the gateway edition. It is informational only.
type Variant string

const (
	VariantStandard   Variant = "standard"
	VariantEnterprise Variant = "enterprise"
)

// ParseVariant converts a user-supplied edition name into a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "oss", "community":
		return VariantStandard, nil
	case "enterprise", "ee":
		return VariantEnterprise, nil
	}
	return "", &pkgerrors.ValidationError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", s)}
}

// Gateway represents a connection profile for one gateway admin API
type Gateway struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	AdminURL      string     `json:"adminUrl"`
	Variant       Variant    `json:"variant"`
	SkipTLSVerify bool       `json:"skipTlsVerify"`
	Auth          AuthConfig `json:"-"`

	// Metadata
	Tags  []string `json:"tags,omitempty"`
	Notes string   `json:"notes,omitempty"`

	// Stats
	LastUsed *time.Time `json:"lastUsed,omitempty"`
	UseCount int        `json:"useCount,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthType returns the declared auth type of the gateway.
func (g *Gateway) AuthType() AuthType {
	return AuthOrNone(g.Auth).Type()
}

// Validate checks the fields an operator supplies when creating a gateway.
func (g *Gateway) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return &pkgerrors.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if _, err := NormalizeAdminURL(g.AdminURL); err != nil {
		return err
	}
	if _, err := ParseVariant(string(g.Variant)); err != nil {
		return err
	}
	return AuthOrNone(g.Auth).Validate()
}

// IsSecure reports whether the admin URL uses TLS.
func (g *Gateway) IsSecure() bool {
	u, err := url.Parse(g.AdminURL)
	return err == nil && strings.EqualFold(u.Scheme, "https")
}

// NormalizeAdminURL validates an admin API base address and strips any
// trailing slash so paths can be appended directly.
func NormalizeAdminURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &pkgerrors.ValidationError{Field: "adminUrl", Reason: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &pkgerrors.ValidationError{Field: "adminUrl", Reason: err.Error()}
	}
	if !u.IsAbs() || u.Host == "" {
		return "", &pkgerrors.ValidationError{Field: "adminUrl", Reason: "must be an absolute URL with a host"}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", &pkgerrors.ValidationError{Field: "adminUrl", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", &pkgerrors.ValidationError{Field: "adminUrl", Reason: "must not carry a query or fragment"}
	}
	return strings.TrimRight(raw, "/"), nil
}

// gatewayJSON is the wire shape of a Gateway: the auth union is flattened
// into authType plus authConfig.
type gatewayJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	AdminURL      string          `json:"adminUrl"`
	Variant       Variant         `json:"variant,omitempty"`
	SkipTLSVerify bool            `json:"skipTlsVerify"`
	AuthType      AuthType        `json:"authType"`
	AuthConfig    json.RawMessage `json:"authConfig,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	LastUsed      *time.Time      `json:"lastUsed,omitempty"`
	UseCount      int             `json:"useCount,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	// Fields written by older releases.
	LegacyType     string `json:"type,omitempty"`
	LegacyUsername string `json:"username,omitempty"`
	LegacyPassword string `json:"password,omitempty"`
}

func (g Gateway) MarshalJSON() ([]byte, error) {
	authType, authRaw, err := EncodeAuth(g.Auth)
	if err != nil {
		return nil, err
	}
	return json.Marshal(gatewayJSON{
		ID:            g.ID,
		Name:          g.Name,
		AdminURL:      g.AdminURL,
		Variant:       g.Variant,
		SkipTLSVerify: g.SkipTLSVerify,
		AuthType:      authType,
		AuthConfig:    authRaw,
		Tags:          g.Tags,
		Notes:         g.Notes,
		LastUsed:      g.LastUsed,
		UseCount:      g.UseCount,
		CreatedAt:     g.CreatedAt,
		UpdatedAt:     g.UpdatedAt,
	})
}

func (g *Gateway) UnmarshalJSON(data []byte) error {
	var w gatewayJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	variant := w.Variant
	if variant == "" && w.LegacyType != "" {
		variant = Variant(w.LegacyType)
	}
	v, err := ParseVariant(string(variant))
	if err != nil {
		return err
	}

	var auth AuthConfig
	switch {
	case w.AuthType == "" && w.LegacyUsername != "":
		auth = BasicAuth{Username: w.LegacyUsername, Password: w.LegacyPassword}
	default:
		auth, err = DecodeAuth(w.AuthType, w.AuthConfig)
		if err != nil {
			return err
		}
	}

	*g = Gateway{
		ID:            w.ID,
		Name:          w.Name,
		AdminURL:      w.AdminURL,
		Variant:       v,
		SkipTLSVerify: w.SkipTLSVerify,
		Auth:          auth,
		Tags:          w.Tags,
		Notes:         w.Notes,
		LastUsed:      w.LastUsed,
		UseCount:      w.UseCount,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
	return nil
}
