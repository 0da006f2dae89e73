package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

func TestBuild_Deterministic(t *testing.T) {
	gw := models.Gateway{
		ID:       "g1",
		Name:     "prod",
		AdminURL: "https://kong.example.com:8444/",
		Auth:     models.BasicAuth{Username: "admin", Password: "pw"},
	}

	a, err := Build(gw)
	require.NoError(t, err)
	b, err := Build(gw)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "https://kong.example.com:8444", a.BaseURL)
	assert.False(t, a.InsecureSkipVerify)

	gw.SkipTLSVerify = true
	c, err := Build(gw)
	require.NoError(t, err)
	assert.True(t, c.InsecureSkipVerify)

	c.InsecureSkipVerify = false
	assert.Equal(t, a, c, "only the TLS field may differ")
}

func TestBuild_SkipTLSIgnoredForPlainHTTP(t *testing.T) {
	cfg, err := Build(models.Gateway{Name: "local", AdminURL: "http://localhost:8001", SkipTLSVerify: true})
	require.NoError(t, err)
	assert.False(t, cfg.InsecureSkipVerify)
}

func TestBuild_RejectsInvalid(t *testing.T) {
	_, err := Build(models.Gateway{Name: "x", AdminURL: "localhost:8001"})
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)

	_, err = Build(models.Gateway{Name: "x", AdminURL: "http://localhost:8001", Auth: models.APIKeyAuth{}})
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)
}

func TestConfig_URL(t *testing.T) {
	cfg, err := Build(models.Gateway{Name: "x", AdminURL: "http://kong:8001/admin"})
	require.NoError(t, err)

	assert.Equal(t, "http://kong:8001/admin/services", cfg.URL("services"))
	assert.Equal(t, "http://kong:8001/admin/services/a%20b", cfg.URL("/services/", "a b"))
	assert.Equal(t, "http://kong:8001/admin/status", cfg.URL("status"))
}

func TestConfig_Resolve(t *testing.T) {
	cfg, err := Build(models.Gateway{Name: "x", AdminURL: "http://kong:8001/admin"})
	require.NoError(t, err)

	got, err := cfg.Resolve("/services?offset=abc")
	require.NoError(t, err)
	assert.Equal(t, "http://kong:8001/admin/services?offset=abc", got)

	got, err = cfg.Resolve("http://other:8001/services?offset=x")
	require.NoError(t, err)
	assert.Equal(t, "http://other:8001/services?offset=x", got)

	plain, err := Build(models.Gateway{Name: "x", AdminURL: "http://kong:8001"})
	require.NoError(t, err)
	got, err = plain.Resolve("/routes?offset=1")
	require.NoError(t, err)
	assert.Equal(t, "http://kong:8001/routes?offset=1", got)
}

func TestHTTPClient_InjectsCredentials(t *testing.T) {
	tests := []struct {
		name  string
		auth  models.AuthConfig
		check func(t *testing.T, r *http.Request)
	}{
		{
			name: "none",
			auth: models.NoAuth{},
			check: func(t *testing.T, r *http.Request) {
				assert.Empty(t, r.Header.Get("Authorization"))
				assert.Empty(t, r.Header.Get("apikey"))
			},
		},
		{
			name: "basic",
			auth: models.BasicAuth{Username: "admin", Password: "pw"},
			check: func(t *testing.T, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				require.True(t, ok)
				assert.Equal(t, "admin", user)
				assert.Equal(t, "pw", pass)
			},
		},
		{
			name: "api-key default header",
			auth: models.APIKeyAuth{Key: "secret-key"},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "secret-key", r.Header.Get("apikey"))
			},
		},
		{
			name: "api-key custom header",
			auth: models.APIKeyAuth{Key: "secret-key", Header: "Kong-Admin-Token"},
			check: func(t *testing.T, r *http.Request) {
				assert.Equal(t, "secret-key", r.Header.Get("Kong-Admin-Token"))
				assert.Empty(t, r.Header.Get("apikey"))
			},
		},
		{
			name: "jwt",
			auth: models.JWTAuth{Key: "issuer", Secret: "secret"},
			check: func(t *testing.T, r *http.Request) {
				assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *http.Request
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			cfg, err := Build(models.Gateway{Name: "t", AdminURL: srv.URL, Auth: tt.auth})
			require.NoError(t, err)

			resp, err := cfg.HTTPClient().Get(cfg.URL("status"))
			require.NoError(t, err)
			resp.Body.Close()

			require.NotNil(t, got)
			assert.Equal(t, UserAgent, got.Header.Get("User-Agent"))
			tt.check(t, got)
		})
	}
}

func TestHTTPClient_SkipTLSVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	strict, err := Build(models.Gateway{Name: "t", AdminURL: srv.URL})
	require.NoError(t, err)
	_, err = strict.HTTPClient().Get(strict.URL("status"))
	assert.Error(t, err, "self-signed certificate must be rejected")

	relaxed, err := Build(models.Gateway{Name: "t", AdminURL: srv.URL, SkipTLSVerify: true})
	require.NoError(t, err)
	resp, err := relaxed.HTTPClient().Get(relaxed.URL("status"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPClient_TokenSourceFailure(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	failing := TokenSourceFunc(func(context.Context, models.JWTAuth) (string, error) {
		return "", errors.New("vault sealed")
	})
	cfg, err := Build(models.Gateway{Name: "t", AdminURL: srv.URL, Auth: models.JWTAuth{Key: "k", Secret: "s"}},
		WithTokenSource(failing))
	require.NoError(t, err)

	_, err = cfg.HTTPClient().Get(cfg.URL("status"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrTokenMint)
	assert.False(t, called)
}

func TestHS256Signer(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	signer := HS256Signer{TTL: time.Minute, Now: func() time.Time { return now }}

	signed, err := signer.Token(context.Background(), models.JWTAuth{Key: "issuer", Secret: "secret"})
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(signed, &claims, func(tok *jwt.Token) (any, error) {
		return []byte("secret"), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "HS256", token.Header["alg"])
	assert.Equal(t, "issuer", claims.Issuer)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, now.Add(time.Minute).Unix(), claims.ExpiresAt.Unix())

	_, err = jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return []byte("other"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = signer.Token(context.Background(), models.JWTAuth{Key: "issuer"})
	assert.Error(t, err)
}
