package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kongman/internal/gateway"
	"kongman/internal/storage/memory"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

// activeStore returns a store whose active gateway points at adminURL.
func activeStore(t *testing.T, adminURL string, auth models.AuthConfig) *gateway.Store {
	t.Helper()
	ctx := context.Background()
	store := gateway.NewStore(memory.New(), nil)
	id, err := store.Add(ctx, models.Gateway{Name: "test", AdminURL: adminURL, Auth: auth})
	require.NoError(t, err)
	require.NoError(t, store.SetActive(ctx, id))
	return store
}

// fakeKong serves a tiny in-memory services collection.
type fakeKong struct {
	services map[string]Service
	requests atomic.Int32
}

func newFakeKong(t *testing.T) (*fakeKong, *httptest.Server) {
	k := &fakeKong{services: map[string]Service{
		"svc-1": {ID: "svc-1", Name: "orders", Host: "orders.internal", Port: 80},
	}}
	srv := httptest.NewServer(http.HandlerFunc(k.serve))
	t.Cleanup(srv.Close)
	return k, srv
}

func (k *fakeKong) serve(w http.ResponseWriter, r *http.Request) {
	k.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if parts[0] != "services" {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not found"}`))
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		page := Page[Service]{}
		for _, s := range k.services {
			page.Data = append(page.Data, s)
		}
		json.NewEncoder(w).Encode(page)
	case len(parts) == 1 && r.Method == http.MethodPost:
		var s Service
		json.NewDecoder(r.Body).Decode(&s)
		s.ID = fmt.Sprintf("svc-%d", len(k.services)+1)
		s.CreatedAt = 1700000000
		k.services[s.ID] = s
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(s)
	case len(parts) == 2:
		s, ok := k.services[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Not found"}`))
			return
		}
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(s)
		case http.MethodPatch:
			var patch map[string]any
			json.NewDecoder(r.Body).Decode(&patch)
			if host, ok := patch["host"].(string); ok {
				s.Host = host
			}
			k.services[s.ID] = s
			json.NewEncoder(w).Encode(s)
		case http.MethodDelete:
			delete(k.services, s.ID)
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestCollection_CRUD(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeKong(t)
	store := activeStore(t, srv.URL, nil)
	services := For[Service](New(store, WithUsage(store)), Services)

	list, err := services.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "orders", list[0].Name)

	got, err := services.GetOne(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, "orders.internal", got.Host)

	created, err := services.Create(ctx, Service{Name: "billing", Host: "billing.internal"})
	require.NoError(t, err)
	assert.Equal(t, "svc-2", created.ID)
	assert.EqualValues(t, 1700000000, created.CreatedAt)

	updated, err := services.Update(ctx, created.ID, map[string]any{"host": "billing.v2"})
	require.NoError(t, err)
	assert.Equal(t, "billing.v2", updated.Host)
	assert.Equal(t, "billing", updated.Name)

	require.NoError(t, services.Delete(ctx, created.ID))
	_, err = services.GetOne(ctx, created.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	active, err := store.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, active.UseCount)
	assert.NotNil(t, active.LastUsed)
}

func TestCollection_NoActiveConnection(t *testing.T) {
	ctx := context.Background()
	k, srv := newFakeKong(t)
	store := gateway.NewStore(memory.New(), nil)
	_, err := store.Add(ctx, models.Gateway{Name: "idle", AdminURL: srv.URL})
	require.NoError(t, err)

	services := For[Service](New(store), Services)

	_, err = services.ListAll(ctx)
	assert.ErrorIs(t, err, pkgerrors.ErrNoActiveConnection)
	_, err = services.ListPages(ctx)
	assert.ErrorIs(t, err, pkgerrors.ErrNoActiveConnection)
	_, err = services.GetOne(ctx, "svc-1")
	assert.ErrorIs(t, err, pkgerrors.ErrNoActiveConnection)
	_, err = services.Create(ctx, Service{Host: "x"})
	assert.ErrorIs(t, err, pkgerrors.ErrNoActiveConnection)
	_, err = services.Update(ctx, "svc-1", Generic{})
	assert.ErrorIs(t, err, pkgerrors.ErrNoActiveConnection)
	assert.ErrorIs(t, services.Delete(ctx, "svc-1"), pkgerrors.ErrNoActiveConnection)

	assert.Zero(t, k.requests.Load(), "no request may be issued")
}

func TestCollection_GetOneNotFound(t *testing.T) {
	_, srv := newFakeKong(t)
	services := For[Service](New(activeStore(t, srv.URL, nil)), Services)

	_, err := services.GetOne(context.Background(), "missing-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, "API Error 404: Not found", err.Error())
}

func TestCollection_DeleteNotFound(t *testing.T) {
	_, srv := newFakeKong(t)
	services := For[Service](New(activeStore(t, srv.URL, nil)), Services)

	err := services.Delete(context.Background(), "missing-id")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

// ops runs all five operations against c and returns their errors.
func ops(c *Collection[Generic]) map[string]error {
	ctx := context.Background()
	errs := map[string]error{}
	_, errs["listAll"] = c.ListAll(ctx)
	_, errs["getOne"] = c.GetOne(ctx, "x")
	_, errs["create"] = c.Create(ctx, Generic{"name": "x"})
	_, errs["update"] = c.Update(ctx, "x", Generic{"name": "y"})
	errs["delete"] = c.Delete(ctx, "x")
	return errs
}

func TestCollection_ErrorNormalization(t *testing.T) {
	t.Run("remote with message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"schema violation (host: required field missing)"}`))
		}))
		defer srv.Close()

		for op, err := range ops(For[Generic](New(activeStore(t, srv.URL, nil)), Services)) {
			var apiErr *pkgerrors.APIError
			require.True(t, errors.As(err, &apiErr), op)
			assert.Equal(t, "API Error 400: schema violation (host: required field missing)", err.Error(), op)
			assert.ErrorIs(t, err, pkgerrors.ErrRemote, op)
		}
	})

	t.Run("remote with raw body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`upstream unavailable`))
		}))
		defer srv.Close()

		for op, err := range ops(For[Generic](New(activeStore(t, srv.URL, nil)), Services)) {
			assert.Equal(t, "API Error 502: upstream unavailable", err.Error(), op)
		}
	})

	t.Run("transport", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := "http://" + l.Addr().String()
		l.Close()

		for op, err := range ops(For[Generic](New(activeStore(t, addr, nil)), Services)) {
			assert.Equal(t, pkgerrors.TransportMessage, err.Error(), op)
			assert.ErrorIs(t, err, pkgerrors.ErrTransport, op)
			var opErr *net.OpError
			assert.False(t, errors.As(err, &opErr), "%s leaks the transport error", op)
		}
	})

	t.Run("request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}))
		defer srv.Close()
		c := For[Generic](New(activeStore(t, srv.URL, nil)), Services)

		_, err := c.Create(context.Background(), Generic{"bad": make(chan int)})
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "Error: "), err.Error())
		assert.ErrorIs(t, err, pkgerrors.ErrRequest)

		err = c.Delete(context.Background(), " ")
		assert.ErrorIs(t, err, pkgerrors.ErrRequest)
	})
}

func TestCollection_SendsCredentials(t *testing.T) {
	var user string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ = r.BasicAuth()
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	store := activeStore(t, srv.URL, models.BasicAuth{Username: "admin", Password: "pw"})
	list, err := For[Consumer](New(store), Consumers).ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.Equal(t, "admin", user)
}

func TestCollection_ListPages(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "":
			fmt.Fprint(w, `{"data":[{"id":"1"},{"id":"2"}],"next":"/routes?offset=p2","offset":"p2"}`)
		case "p2":
			fmt.Fprintf(w, `{"data":[{"id":"3"}],"next":%q,"offset":"p3"}`, srvURL+"/routes?offset=p3")
		case "p3":
			fmt.Fprint(w, `{"data":[{"id":"4"}],"next":null}`)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	routes := For[Route](New(activeStore(t, srv.URL, nil)), Routes)

	first, err := routes.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 2)

	all, err := routes.ListPages(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "4", all[3].ID)
}

func TestCollection_ListPagesLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"1"}],"next":"/routes"}`)
	}))
	defer srv.Close()

	_, err := For[Route](New(activeStore(t, srv.URL, nil)), Routes).ListPages(context.Background())
	assert.ErrorIs(t, err, pkgerrors.ErrRequest)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "orders", DisplayName(Generic{"name": "orders", "id": "1"}))
	assert.Equal(t, "alice", DisplayName(Generic{"username": "alice", "id": "1"}))
	assert.Equal(t, "1", DisplayName(Generic{"id": "1"}))
	assert.Empty(t, DisplayName(Generic{}))
}
