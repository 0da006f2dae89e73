// Package entity provides uniform CRUD access to named admin API
// collections of the active gateway.
package entity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"kongman/internal/client"
	"kongman/internal/logging"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

// ActiveSource yields the gateway entity operations run against.
type ActiveSource interface {
	Active(ctx context.Context) (*models.Gateway, error)
}

// UsageRecorder is notified after each successful operation.
type UsageRecorder interface {
	Touch(ctx context.Context, id string) error
}

// Access binds entity operations to whatever gateway is active at call time.
type Access struct {
	source        ActiveSource
	usage         UsageRecorder
	clientOptions []client.Option
	log           *logging.Logger
}

// Option configures an Access.
type Option func(*Access)

// WithClientOptions passes options to client.Build for every operation.
func WithClientOptions(opts ...client.Option) Option {
	return func(a *Access) {
		a.clientOptions = append(a.clientOptions, opts...)
	}
}

// WithUsage records successful operations against the active gateway.
func WithUsage(u UsageRecorder) Option {
	return func(a *Access) {
		a.usage = u
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Access) {
		if l != nil {
			a.log = l
		}
	}
}

// New creates an Access over source.
func New(source ActiveSource, opts ...Option) *Access {
	a := &Access{source: source, log: logging.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithComponent("entity")
	return a
}

// session is one operation's view of the active gateway.
type session struct {
	gateway *models.Gateway
	config  *client.Config
	http    *http.Client
}

// connect resolves the active gateway. It fails with ErrNoActiveConnection
// before any network I/O when nothing is selected.
func (a *Access) connect(ctx context.Context) (*session, error) {
	gw, err := a.source.Active(ctx)
	if err != nil {
		return nil, pkgerrors.NewRequestError(err)
	}
	if gw == nil {
		return nil, pkgerrors.ErrNoActiveConnection
	}
	cfg, err := client.Build(*gw, a.clientOptions...)
	if err != nil {
		return nil, pkgerrors.NewRequestError(err)
	}
	return &session{gateway: gw, config: cfg, http: cfg.HTTPClient()}, nil
}

func (s *session) close() {
	s.http.CloseIdleConnections()
}

// do issues one request and decodes a 2xx body into out. Every failure is
// returned as an *errors.APIError.
func (s *session) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.NewRequestError(fmt.Errorf("encoding request body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return pkgerrors.NewRequestError(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrTokenMint) {
			return pkgerrors.NewRequestError(err)
		}
		return pkgerrors.NewTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return client.ReadAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := client.ReadBody(resp)
	if err != nil {
		return pkgerrors.NewTransportError(err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.NewRequestError(fmt.Errorf("decoding response from %s: %w", req.URL.Redacted(), err))
	}
	return nil
}

func (a *Access) touch(ctx context.Context, s *session) {
	if a.usage == nil {
		return
	}
	if err := a.usage.Touch(ctx, s.gateway.ID); err != nil {
		a.log.Debug("failed to record gateway usage", "gateway", s.gateway.Name, "error", err)
	}
}

// Page is the paginated envelope returned by list endpoints.
type Page[T any] struct {
	Data   []T     `json:"data"`
	Next   *string `json:"next,omitempty"`
	Offset string  `json:"offset,omitempty"`
}

// Collection is typed CRUD access to one named collection.
type Collection[T any] struct {
	access *Access
	name   string
}

// For binds a collection name to an entity type.
func For[T any](a *Access, collection string) *Collection[T] {
	return &Collection[T]{access: a, name: strings.Trim(collection, "/")}
}

// Name returns the collection path.
func (c *Collection[T]) Name() string { return c.name }

// ListAll returns the first page of the collection.
func (c *Collection[T]) ListAll(ctx context.Context) ([]T, error) {
	s, err := c.access.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	var page Page[T]
	if err := s.do(ctx, http.MethodGet, s.config.URL(c.name), nil, &page); err != nil {
		return nil, err
	}
	c.access.touch(ctx, s)
	if page.Data == nil {
		page.Data = []T{}
	}
	return page.Data, nil
}

// ListPages returns the whole collection, following next links until the
// server stops sending one.
func (c *Collection[T]) ListPages(ctx context.Context) ([]T, error) {
	s, err := c.access.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer s.close()

	all := []T{}
	url := s.config.URL(c.name)
	seen := map[string]bool{}
	for url != "" {
		if seen[url] {
			return nil, pkgerrors.NewRequestError(fmt.Errorf("pagination loop at %s", url))
		}
		seen[url] = true

		var page Page[T]
		if err := s.do(ctx, http.MethodGet, url, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)

		url = ""
		if page.Next != nil && *page.Next != "" {
			url, err = s.config.Resolve(*page.Next)
			if err != nil {
				return nil, pkgerrors.NewRequestError(err)
			}
		}
	}
	c.access.touch(ctx, s)
	return all, nil
}

// GetOne fetches a single entity by id or name.
func (c *Collection[T]) GetOne(ctx context.Context, id string) (T, error) {
	var out T
	s, err := c.access.connect(ctx)
	if err != nil {
		return out, err
	}
	defer s.close()

	if err := requireID(id); err != nil {
		return out, err
	}
	if err := s.do(ctx, http.MethodGet, s.config.URL(c.name, id), nil, &out); err != nil {
		return out, err
	}
	c.access.touch(ctx, s)
	return out, nil
}

// Create posts a new entity and returns the server's representation.
func (c *Collection[T]) Create(ctx context.Context, entity T) (T, error) {
	var out T
	s, err := c.access.connect(ctx)
	if err != nil {
		return out, err
	}
	defer s.close()

	if err := s.do(ctx, http.MethodPost, s.config.URL(c.name), entity, &out); err != nil {
		return out, err
	}
	c.access.touch(ctx, s)
	return out, nil
}

// Update applies a partial update and returns the updated entity.
func (c *Collection[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var out T
	s, err := c.access.connect(ctx)
	if err != nil {
		return out, err
	}
	defer s.close()

	if err := requireID(id); err != nil {
		return out, err
	}
	if err := s.do(ctx, http.MethodPatch, s.config.URL(c.name, id), patch, &out); err != nil {
		return out, err
	}
	c.access.touch(ctx, s)
	return out, nil
}

// Delete removes an entity.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	s, err := c.access.connect(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if err := requireID(id); err != nil {
		return err
	}
	if err := s.do(ctx, http.MethodDelete, s.config.URL(c.name, id), nil, nil); err != nil {
		return err
	}
	c.access.touch(ctx, s)
	return nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.NewRequestError(errors.New("entity id is required"))
	}
	return nil
}
