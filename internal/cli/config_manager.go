package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/OptiFolio/config"
	"github.com/dyike/OptiFolio/internal/models"
)

// ConfigManager reads and edits single config keys on top of the
// persisted config
type ConfigManager struct {
	mgr *config.Manager
}

// NewConfigManager creates a key-level editor over mgr
func NewConfigManager(mgr *config.Manager) *ConfigManager {
	return &ConfigManager{mgr: mgr}
}

var configKeys = map[string]func(c *config.Config) string{
	"backend_url":        func(c *config.Config) string { return c.BackendURL },
	"request_timeout":    func(c *config.Config) string { return c.RequestTimeout.Std().String() },
	"info_source":        func(c *config.Config) string { return c.InfoSource },
	"default_model":      func(c *config.Config) string { return c.DefaultModel },
	"default_weight_cap": func(c *config.Config) string { return formatFloat(c.DefaultWeightCap) },
	"default_risk_cap":   func(c *config.Config) string { return formatFloat(c.DefaultRiskCap) },
	"cache_enabled":      func(c *config.Config) string { return strconv.FormatBool(c.CacheEnabled) },
	"cache_ttl":          func(c *config.Config) string { return c.CacheTTL.Std().String() },
	"results_dir":        func(c *config.Config) string { return c.ResultsDir },
	"history_db_path":    func(c *config.Config) string { return c.HistoryDBPath },
	"log_level":          func(c *config.Config) string { return c.LogLevel },
	"log_format":         func(c *config.Config) string { return c.LogFormat },
}

// GetConfigValue returns the current value of key
func (cm *ConfigManager) GetConfigValue(key string) (string, error) {
	get, ok := configKeys[strings.ToLower(key)]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	cfg := cm.mgr.Get()
	return get(&cfg), nil
}

// SetConfigValue parses value for key, validates the whole config and
// persists it
func (cm *ConfigManager) SetConfigValue(key, value string) error {
	cfg := cm.mgr.Get()
	value = strings.TrimSpace(value)

	switch strings.ToLower(key) {
	case "backend_url":
		cfg.BackendURL = value

	case "request_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("request_timeout must be a duration such as 30s")
		}
		cfg.RequestTimeout = config.Duration(d)

	case "info_source":
		cfg.InfoSource = strings.ToLower(value)

	case "default_model":
		m, ok := models.ParseModelType(value)
		if !ok {
			return fmt.Errorf("invalid model. Valid options: capm, historical")
		}
		cfg.DefaultModel = string(m)

	case "default_weight_cap":
		v, err := parseCap(value)
		if err != nil {
			return fmt.Errorf("default_weight_cap: %w", err)
		}
		cfg.DefaultWeightCap = v

	case "default_risk_cap":
		v, err := parseCap(value)
		if err != nil {
			return fmt.Errorf("default_risk_cap: %w", err)
		}
		cfg.DefaultRiskCap = v

	case "cache_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cache_enabled must be true or false")
		}
		cfg.CacheEnabled = b

	case "cache_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cache_ttl must be a duration such as 24h")
		}
		cfg.CacheTTL = config.Duration(d)

	case "results_dir":
		cfg.ResultsDir = value

	case "history_db_path":
		cfg.HistoryDBPath = value

	case "log_level":
		cfg.LogLevel = strings.ToLower(value)

	case "log_format":
		cfg.LogFormat = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	return cm.mgr.Update(cfg)
}

// ListAvailableKeys returns the editable keys in sorted order
func (cm *ConfigManager) ListAvailableKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// showConfig prints the effective configuration
func showConfig(out io.Writer, cfg config.Config, path string) {
	fmt.Fprintln(out, "📋 OptiFolio Configuration")
	fmt.Fprintln(out, "═══════════════════════════")
	fmt.Fprintf(out, "📄 Config file:  %s\n", path)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "🌐 Backend:")
	fmt.Fprintf(out, "  URL:           %s\n", cfg.BackendURL)
	fmt.Fprintf(out, "  Timeout:       %s\n", cfg.RequestTimeout.Std())
	fmt.Fprintf(out, "  Info source:   %s\n", cfg.InfoSource)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "⚙️  Defaults:")
	fmt.Fprintf(out, "  Model:         %s\n", cfg.DefaultModel)
	fmt.Fprintf(out, "  Max weight:    %s\n", formatFloat(cfg.DefaultWeightCap))
	fmt.Fprintf(out, "  Max risk:      %s\n", formatFloat(cfg.DefaultRiskCap))
	fmt.Fprintln(out)

	fmt.Fprintln(out, "📁 Directories:")
	fmt.Fprintf(out, "  Results:       %s\n", cfg.ResultsDir)
	fmt.Fprintf(out, "  Cache:         %s\n", cfg.DataCacheDir)
	fmt.Fprintf(out, "  History:       %s\n", cfg.HistoryDBPath)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "🔧 Runtime:")
	fmt.Fprintf(out, "  Cache enabled: %t (ttl %s)\n", cfg.CacheEnabled, cfg.CacheTTL.Std())
	fmt.Fprintf(out, "  Log:           %s / %s\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Fprintf(out, "  Longport keys: %s\n", configuredStatus(cfg.LongportAppKey != "" && cfg.LongportAccessToken != ""))
}

func configuredStatus(ok bool) string {
	if ok {
		return "✅ configured"
	}
	return "❌ not configured"
}

// validateConfig checks the config and the directories it names
func validateConfig(out io.Writer, cfg config.Config) error {
	fmt.Fprintln(out, "🔍 Validating OptiFolio Configuration...")
	fmt.Fprintln(out, "═══════════════════════════════════════")

	fmt.Fprint(out, "⚙️  Checking configuration values... ")
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(out, "❌")
		return fmt.Errorf("configuration invalid: %w", err)
	}
	fmt.Fprintln(out, "✅")

	fmt.Fprint(out, "📁 Checking directories... ")
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintln(out, "❌")
		return fmt.Errorf("directory validation failed: %w", err)
	}
	fmt.Fprintln(out, "✅")

	var warnings []string
	if cfg.InfoSource != config.InfoSourceBackend {
		warnings = append(warnings, fmt.Sprintf("ticker info comes from %s; prices may differ from the optimizer's data", cfg.InfoSource))
	}
	if !cfg.CacheEnabled {
		warnings = append(warnings, "ticker info cache disabled; every add hits the network")
	}

	fmt.Fprintln(out)
	if len(warnings) == 0 {
		fmt.Fprintln(out, "✅ Configuration validation completed successfully!")
		return nil
	}
	fmt.Fprintf(out, "⚠️  Configuration validation completed with %d warnings.\n", len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(out, "  ⚠️  %s\n", w)
	}
	return nil
}
