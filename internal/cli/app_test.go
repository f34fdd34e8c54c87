package cli

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dyike/OptiFolio/config"
	"github.com/dyike/OptiFolio/internal/mockbackend"
)

// startBackend serves the mock optimization API for the test's lifetime
func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mockbackend.New(mockbackend.Config{Log: zerolog.Nop()}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

// newTestApp builds an App whose config, history and results live in a
// temp dir and whose backend is the mock server
func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	srv := startBackend(t)

	dir := t.TempDir()
	cfg := config.DefaultConfigWithRoot(dir)
	cfg.BackendURL = srv.URL
	cfg.CacheEnabled = false
	cfg.LogLevel = "error"

	mgr, err := config.NewManager(config.WithConfigDir(dir), config.WithInitialConfig(cfg))
	require.NoError(t, err)

	var out bytes.Buffer
	app, err := NewApp(mgr, &out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, &out
}
