package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err, "config file not created")

	cfg := mgr.Get()
	assert.Equal(t, filepath.Join(dir, "data", "history.db"), cfg.HistoryDBPath)
	assert.Equal(t, InfoSourceBackend, cfg.InfoSource)

	require.NoError(t, mgr.UpdateFromJSON(`{"backend_url":"http://10.0.0.5:8080","request_timeout":"5s"}`))

	updated := mgr.Get()
	assert.Equal(t, "http://10.0.0.5:8080", updated.BackendURL)
	assert.Equal(t, 5*time.Second, updated.RequestTimeout.Std())
	assert.Equal(t, cfg.ResultsDir, updated.ResultsDir, "fields absent from the patch are kept")

	reopened, err := NewManager(WithConfigDir(dir))
	require.NoError(t, err)
	assert.Equal(t, updated, reopened.Get())
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	mgr, err := NewManager(WithConfigDir(t.TempDir()))
	require.NoError(t, err)

	err = mgr.UpdateFromJSON(`{"default_weight_cap":1.5}`)
	assert.Error(t, err)
	assert.Equal(t, 1.0, mgr.Get().DefaultWeightCap)
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir), WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Config, 1)
	require.NoError(t, mgr.Watch(ctx, func(cfg Config) {
		reloaded <- cfg
	}))

	cfg := mgr.Get()
	cfg.BackendURL = "http://127.0.0.1:9999"
	require.NoError(t, writeConfigFile(mgr.Path(), cfg))

	select {
	case got := <-reloaded:
		assert.Equal(t, "http://127.0.0.1:9999", got.BackendURL)
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestValidate(t *testing.T) {
	base := DefaultConfigWithRoot(t.TempDir())
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing backend", func(c *Config) { c.BackendURL = "" }},
		{"relative backend", func(c *Config) { c.BackendURL = "localhost:5000" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"unknown source", func(c *Config) { c.InfoSource = "bloomberg" }},
		{"longport without creds", func(c *Config) { c.InfoSource = InfoSourceLongport }},
		{"unknown model", func(c *Config) { c.DefaultModel = "black-litterman" }},
		{"risk cap above one", func(c *Config) { c.DefaultRiskCap = 2 }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OPTIFOLIO_BACKEND_URL", "http://backend.internal:5000")
	t.Setenv("OPTIFOLIO_MAX_WEIGHT", "0.35")
	t.Setenv("OPTIFOLIO_REQUEST_TIMEOUT", "12s")
	t.Setenv("OPTIFOLIO_INFO_SOURCE", "YAHOO")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.loadFromEnv()

	assert.Equal(t, "http://backend.internal:5000", cfg.BackendURL)
	assert.Equal(t, 0.35, cfg.DefaultWeightCap)
	assert.Equal(t, 12*time.Second, cfg.RequestTimeout.Std())
	assert.Equal(t, InfoSourceYahoo, cfg.InfoSource)
}

func TestChangedKeys(t *testing.T) {
	a := *DefaultConfigWithRoot(t.TempDir())
	b := a
	assert.Empty(t, ChangedKeys(a, b))

	b.BackendURL = "http://10.0.0.9:5000"
	b.DefaultRiskCap = 0.25
	b.LongportAppSecret = "s3cret"
	assert.Equal(t, []string{"backend_url", "default_risk_cap", "longport_app_secret"}, ChangedKeys(a, b))
}
