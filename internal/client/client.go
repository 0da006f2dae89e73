// Package client turns a stored gateway profile into an HTTP client
// configuration for the gateway's admin API.
package client

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"kongman/internal/logging"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

// DefaultTimeout bounds a single admin API request.
const DefaultTimeout = 30 * time.Second

// UserAgent is sent with every admin API request.
var UserAgent = "kongman"

// Config is everything needed to talk to one gateway. It is a plain value:
// building it twice from the same profile gives equal configs.
type Config struct {
	BaseURL            string
	InsecureSkipVerify bool
	Auth               models.AuthConfig
	Timeout            time.Duration

	tokens TokenSource
	log    *logging.Logger
}

// Option configures Build.
type Option func(*Config)

// WithTokenSource replaces the signer used for jwt-hs256 profiles.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Config) {
		if ts != nil {
			c.tokens = ts
		}
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing and TLS warnings.
func WithLogger(l *logging.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.log = l
		}
	}
}

// Build translates a gateway profile into a client configuration. It
// performs no I/O.
func Build(gw models.Gateway, opts ...Option) (*Config, error) {
	base, err := models.NormalizeAdminURL(gw.AdminURL)
	if err != nil {
		return nil, err
	}
	auth := models.AuthOrNone(gw.Auth)
	if err := auth.Validate(); err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:            base,
		InsecureSkipVerify: gw.SkipTLSVerify && strings.HasPrefix(strings.ToLower(base), "https://"),
		Auth:               auth,
		Timeout:            DefaultTimeout,
		tokens:             defaultSigner,
		log:                discardLog,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// URL joins escaped path segments onto the base URL.
func (c *Config) URL(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.BaseURL)
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s == "" {
			continue
		}
		b.WriteByte('/')
		parts := strings.Split(s, "/")
		for i, p := range parts {
			if i > 0 {
				b.WriteByte('/')
			}
			b.WriteString(url.PathEscape(p))
		}
	}
	return b.String()
}

// Resolve turns a server-supplied reference (absolute URL or path such as
// a pagination "next" link) into an absolute URL on this gateway.
func (c *Config) Resolve(ref string) (string, error) {
	base, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	// Kong returns next links rooted at the admin API, so a base path
	// prefix must be kept.
	if strings.HasPrefix(r.Path, "/") && base.Path != "/" && !strings.HasPrefix(r.Path, strings.TrimRight(base.Path, "/")+"/") {
		r.Path = strings.TrimRight(base.Path, "/") + r.Path
	}
	return base.ResolveReference(r).String(), nil
}

// Headers returns the credential headers for one request.
func (c *Config) Headers(ctx context.Context) (http.Header, error) {
	h := make(http.Header)
	switch a := models.AuthOrNone(c.Auth).(type) {
	case models.BasicAuth:
		token := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		h.Set("Authorization", "Basic "+token)
	case models.APIKeyAuth:
		h.Set(a.HeaderName(), a.Key)
	case models.JWTAuth:
		token, err := c.tokens.Token(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrTokenMint, err)
		}
		h.Set("Authorization", "Bearer "+token)
	}
	return h, nil
}

// HTTPClient materializes an *http.Client that applies the TLS policy and
// attaches credentials to every request.
func (c *Config) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		warnInsecure(c.log, c.BaseURL)
	}

	return &http.Client{
		Timeout:   c.Timeout,
		Transport: &authTransport{base: transport, cfg: c},
	}
}

// authTransport injects credentials on every request.
type authTransport struct {
	base http.RoundTripper
	cfg  *Config
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	headers, err := t.cfg.Headers(req.Context())
	if err != nil {
		return nil, err
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	for k, v := range headers {
		req.Header[k] = v
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.cfg.log.Debug("admin request failed", "method", req.Method, "url", req.URL.Redacted(), "error", err)
		return nil, err
	}
	t.cfg.log.Debug("admin request", "method", req.Method, "url", req.URL.Redacted(),
		"status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// CloseIdleConnections lets http.Client.CloseIdleConnections reach the
// cloned transport.
func (t *authTransport) CloseIdleConnections() {
	if ci, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}

var (
	discardLog   = logging.Discard()
	insecureOnce sync.Once
)

func warnInsecure(log *logging.Logger, base string) {
	insecureOnce.Do(func() {
		log.Warn("TLS certificate verification is disabled; do not use in production", "admin_url", base)
	})
}
