package probe

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kongman/internal/gateway"
	"kongman/internal/storage/memory"
	"kongman/internal/storage/models"
	pkgerrors "kongman/pkg/errors"
)

func statusServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// closedAddr returns a URL nothing is listening on.
func closedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	return "http://" + addr
}

func TestTester_ReleasesConnections(t *testing.T) {
	srv := statusServer(t, http.StatusOK, `{}`)
	tester := NewTester(nil, TesterConfig{}, nil)
	ctx := context.Background()

	before := runtime.NumGoroutine()
	for range 40 {
		require.True(t, tester.Test(ctx, Candidate{AdminURL: srv.URL}).Success)
	}

	// Each kept-alive connection would hold a reader and a writer goroutine
	// on the client plus one on the server.
	assert.Eventually(t, func() bool {
		runtime.GC()
		return runtime.NumGoroutine() <= before+5
	}, 3*time.Second, 50*time.Millisecond, "goroutines before=%d now=%d", before, runtime.NumGoroutine())
}

func TestTester_Success(t *testing.T) {
	srv := statusServer(t, http.StatusOK, `{"database":{"reachable":true}}`)
	tester := NewTester(nil, TesterConfig{}, nil)

	result := tester.Test(context.Background(), Candidate{AdminURL: srv.URL, Auth: models.NoAuth{}})

	assert.True(t, result.Success)
	assert.Equal(t, "Connection successful", result.Message)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, map[string]any{"database": map[string]any{"reachable": true}}, result.Data)
}

func TestTester_ServerError(t *testing.T) {
	srv := statusServer(t, http.StatusInternalServerError, `{"message":"An unexpected error occurred"}`)
	tester := NewTester(nil, TesterConfig{}, nil)

	result := tester.Test(context.Background(), Candidate{AdminURL: srv.URL})

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "failed")
	assert.Contains(t, result.Message, "500")
	assert.Contains(t, result.Message, "An unexpected error occurred")
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Nil(t, result.Data)
}

func TestTester_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "right" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid authentication credentials"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	tester := NewTester(nil, TesterConfig{}, nil)

	bad := tester.Test(context.Background(), Candidate{AdminURL: srv.URL, Auth: models.APIKeyAuth{Key: "wrong"}})
	assert.False(t, bad.Success)
	assert.Contains(t, bad.Message, "Invalid authentication credentials")

	good := tester.Test(context.Background(), Candidate{AdminURL: srv.URL, Auth: models.APIKeyAuth{Key: "right"}})
	assert.True(t, good.Success)
}

func TestTester_TransportFailure(t *testing.T) {
	tester := NewTester(nil, TesterConfig{Timeout: 2 * time.Second}, nil)

	result := tester.Test(context.Background(), Candidate{AdminURL: closedAddr(t)})

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Connection failed")
	assert.Zero(t, result.StatusCode)
}

func TestTester_TLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	tester := NewTester(nil, TesterConfig{}, nil)

	strict := tester.Test(context.Background(), Candidate{AdminURL: srv.URL})
	assert.False(t, strict.Success)

	relaxed := tester.Test(context.Background(), Candidate{AdminURL: srv.URL, SkipTLSVerify: true})
	assert.True(t, relaxed.Success)
}

func TestTester_InvalidCandidate(t *testing.T) {
	tester := NewTester(nil, TesterConfig{}, nil)

	result := tester.Test(context.Background(), Candidate{AdminURL: "not a url"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Connection failed")

	result = tester.Test(context.Background(), Candidate{AdminURL: "http://localhost:8001", Auth: models.BasicAuth{}})
	assert.False(t, result.Success)
}

// Testing never changes the stored gateways or the active selection.
func TestTester_DoesNotTouchStore(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store := gateway.NewStore(backend, nil)
	id, err := store.Add(ctx, models.Gateway{Name: "Local", AdminURL: "http://localhost:8001"})
	require.NoError(t, err)
	require.NoError(t, store.SetActive(ctx, id))

	before, err := store.Export(ctx)
	require.NoError(t, err)

	ok := statusServer(t, http.StatusOK, `{}`)
	broken := statusServer(t, http.StatusServiceUnavailable, ``)
	tester := NewTester(backend, TesterConfig{}, nil)
	for _, url := range []string{ok.URL, broken.URL, closedAddr(t)} {
		tester.Test(ctx, Candidate{AdminURL: url})
	}

	after, err := store.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	history, err := backend.GetProbeHistory(ctx, id, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTester_TestSavedRecordsHistory(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	store := gateway.NewStore(backend, nil)
	srv := statusServer(t, http.StatusOK, `{}`)
	id, err := store.Add(ctx, models.Gateway{Name: "Local", AdminURL: srv.URL})
	require.NoError(t, err)
	gw, err := store.Get(ctx, id)
	require.NoError(t, err)

	tester := NewTester(backend, TesterConfig{}, nil)
	res := tester.TestSaved(ctx, gw)
	require.True(t, res.Result.Success)

	latest, err := backend.GetLatestProbe(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Success)
	assert.Equal(t, http.StatusOK, latest.StatusCode)
	assert.NotNil(t, latest.LatencyMS)
}

func TestTester_TestBatch(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer ok.Close()
	down := statusServer(t, http.StatusBadGateway, `bad gateway`)

	gateways := []*models.Gateway{
		{ID: "a", Name: "down", AdminURL: down.URL},
		{ID: "b", Name: "up-1", AdminURL: ok.URL},
		{ID: "c", Name: "up-2", AdminURL: ok.URL},
	}

	tester := NewTester(nil, TesterConfig{Workers: 2}, nil)
	var calls atomic.Int32
	batch := tester.TestBatch(ctx, gateways, func(_ *GatewayResult, current, total int) {
		calls.Add(1)
		assert.Equal(t, 3, total)
	})

	assert.Equal(t, 3, batch.Tested)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 2, hits.Load())
	require.Len(t, batch.Results, 3)
	assert.Equal(t, "down", batch.Results[2].Gateway.Name, "failures sort last")
	assert.Contains(t, batch.Results[2].Result.Message, "HTTP 502: bad gateway")
}

func TestTCPStrategy(t *testing.T) {
	srv := statusServer(t, http.StatusInternalServerError, ``)
	tester := NewTester(nil, TesterConfig{Strategy: &TCPStrategy{}}, nil)

	assert.True(t, tester.Test(context.Background(), Candidate{AdminURL: srv.URL}).Success)

	addr := closedAddr(t)
	result := tester.Test(context.Background(), Candidate{AdminURL: addr})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "network error ("+strings.TrimPrefix(addr, "http://")+")")
}

func TestResult_JSON(t *testing.T) {
	data, err := json.Marshal(&Result{Success: true, Message: SuccessMessage, StatusCode: 200, Latency: 1500 * time.Microsecond})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"Connection successful","statusCode":200,"latencyMs":1}`, string(data))
}

func TestResult_Err(t *testing.T) {
	ok := &Result{Success: true, Message: SuccessMessage}
	assert.NoError(t, ok.Err())

	failed := failure("HTTP 401: Unauthorized", http.StatusUnauthorized, 0)
	err := failed.Err()
	assert.ErrorIs(t, err, pkgerrors.ErrConnectionFailed)
	assert.Equal(t, "connection failed: HTTP 401: Unauthorized", err.Error())
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("")
	require.NoError(t, err)
	assert.Equal(t, "status", s.Name())

	s, err = NewStrategy("tcp")
	require.NoError(t, err)
	assert.Equal(t, "tcp", s.Name())

	_, err = NewStrategy("icmp")
	assert.Error(t, err)
}
