package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "kongman/pkg/errors"
)

type fakeAdmin struct {
	mu      sync.Mutex
	created []map[string]any
}

func (f *fakeAdmin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/status":
		w.Write([]byte(`{"database":{"reachable":true}}`))
	case r.URL.Path == "/services" && r.Method == http.MethodGet:
		w.Write([]byte(`{"data":[{"id":"s1","name":"billing"}],"next":null}`))
	case r.URL.Path == "/services" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		json.Unmarshal(body, &m)
		f.mu.Lock()
		f.created = append(f.created, m)
		f.mu.Unlock()
		m["id"] = "s2"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(m)
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not found"}`))
	}
}

func execute(t *testing.T, db string, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(append(args, "--db", db))
	defer closeApp()
	return rootCmd.Execute()
}

func TestCLI_GatewayAndEntityFlow(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	admin := &fakeAdmin{}
	srv := httptest.NewServer(admin)
	defer srv.Close()
	db := filepath.Join(t.TempDir(), "kongman.db")

	require.NoError(t, execute(t, db, "gateway", "add", "local", "--url", srv.URL, "--use"))
	require.NoError(t, execute(t, db, "gateway", "list"))
	require.NoError(t, execute(t, db, "entity", "list", "services"))
	require.NoError(t, execute(t, db, "entity", "create", "services", "--data", `{"name":"orders", /* inline */ "host":"orders.internal",}`))

	admin.mu.Lock()
	require.Len(t, admin.created, 1)
	assert.Equal(t, "orders", admin.created[0]["name"])
	admin.mu.Unlock()

	require.NoError(t, execute(t, db, "test", "local"))
	require.NoError(t, execute(t, db, "gateway", "remove", "local", "--force"))

	err := execute(t, db, "entity", "get", "services", "s1")
	assert.ErrorIs(t, err, pkgerrors.ErrNoActiveConnection)
}

func TestCLI_AddRejectsUnreachable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	db := filepath.Join(t.TempDir(), "kongman.db")

	err := execute(t, db, "gateway", "add", "broken", "--url", srv.URL)
	assert.ErrorIs(t, err, pkgerrors.ErrConnectionFailed)

	err = execute(t, db, "gateway", "show", "broken")
	assert.ErrorIs(t, err, pkgerrors.ErrGatewayNotFound)
}

func TestDescribeError(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:8001: connect: connection refused")
	err := fmt.Errorf("list services: %w", pkgerrors.NewTransportError(cause))

	quiet := describeError(err, false)
	assert.Contains(t, quiet, pkgerrors.TransportMessage)
	assert.NotContains(t, quiet, "connection refused")

	assert.Contains(t, describeError(err, true), "cause: "+cause.Error())
	assert.Equal(t, "Error: boom\n", describeError(errors.New("boom"), true))
}

func TestReadBody(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("data", "", "")
		cmd.Flags().String("file", "", "")
		return cmd
	}

	cmd := newCmd()
	cmd.Flags().Set("data", `{"name": "svc", // comment
  "port": 80,}`)
	body, err := readBody(cmd)
	require.NoError(t, err)
	assert.Equal(t, "svc", body["name"])
	assert.EqualValues(t, 80, body["port"])

	_, err = readBody(newCmd())
	assert.Error(t, err)

	cmd = newCmd()
	cmd.Flags().Set("data", `{}`)
	cmd.Flags().Set("file", "x.json")
	_, err = readBody(cmd)
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "yaml", formatFromPath("gateways.yml"))
	assert.Equal(t, "yaml", formatFromPath("gateways.YAML"))
	assert.Equal(t, "json", formatFromPath("gateways.json"))
	assert.Equal(t, "json", formatFromPath("-"))
}
