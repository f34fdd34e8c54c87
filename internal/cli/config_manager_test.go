package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/OptiFolio/config"
)

func newTestConfigManager(t *testing.T) (*ConfigManager, *config.Manager) {
	t.Helper()
	mgr, err := config.NewManager(config.WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	return NewConfigManager(mgr), mgr
}

func TestConfigManagerSetGet(t *testing.T) {
	cm, mgr := newTestConfigManager(t)

	require.NoError(t, cm.SetConfigValue("default_weight_cap", "40%"))
	require.NoError(t, cm.SetConfigValue("DEFAULT_MODEL", "Historical"))
	require.NoError(t, cm.SetConfigValue("request_timeout", "5s"))
	require.NoError(t, cm.SetConfigValue("cache_enabled", "false"))

	v, err := cm.GetConfigValue("default_weight_cap")
	require.NoError(t, err)
	assert.Equal(t, "0.4", v)

	v, err = cm.GetConfigValue("default_model")
	require.NoError(t, err)
	assert.Equal(t, "historical", v)

	cfg := mgr.Get()
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout.Std())
	assert.False(t, cfg.CacheEnabled)

	// persisted, so a fresh manager sees it
	again, err := config.NewManager(config.WithConfigPath(mgr.Path()))
	require.NoError(t, err)
	assert.Equal(t, 0.4, again.Get().DefaultWeightCap)
}

func TestConfigManagerRejects(t *testing.T) {
	cm, mgr := newTestConfigManager(t)
	before := mgr.Get()

	tests := []struct{ key, value string }{
		{"unknown_key", "x"},
		{"default_model", "black-litterman"},
		{"request_timeout", "soon"},
		{"cache_enabled", "maybe"},
		{"default_risk_cap", "150%"},
		{"backend_url", "not a url"},
		{"info_source", "bloomberg"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Error(t, cm.SetConfigValue(tt.key, tt.value))
		})
	}
	assert.Equal(t, before, mgr.Get())

	_, err := cm.GetConfigValue("nope")
	assert.Error(t, err)
}

func TestListAvailableKeysSorted(t *testing.T) {
	cm, _ := newTestConfigManager(t)
	keys := cm.ListAvailableKeys()
	assert.Len(t, keys, len(configKeys))
	assert.IsNonDecreasing(t, keys)
	assert.Contains(t, keys, "backend_url")
}

func TestShowAndValidateConfig(t *testing.T) {
	cfg := *config.DefaultConfigWithRoot(t.TempDir())

	var buf bytes.Buffer
	showConfig(&buf, cfg, "/tmp/config.json")
	assert.Contains(t, buf.String(), "OptiFolio Configuration")
	assert.Contains(t, buf.String(), cfg.BackendURL)

	buf.Reset()
	assert.NoError(t, validateConfig(&buf, cfg))

	cfg.DefaultWeightCap = 2
	buf.Reset()
	assert.Error(t, validateConfig(&buf, cfg))
}
