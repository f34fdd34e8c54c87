package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Info sources for ticker lookups
const (
	InfoSourceBackend  = "backend"
	InfoSourceYahoo    = "yahoo"
	InfoSourceLongport = "longport"
)

const envPrefix = "OPTIFOLIO_"

type Config struct {
	ProjectDir    string `json:"project_dir"`
	ResultsDir    string `json:"results_dir"`
	DataDir       string `json:"data_dir"`
	DataCacheDir  string `json:"data_cache_dir"`
	HistoryDBPath string `json:"history_db_path"`

	BackendURL     string   `json:"backend_url"`
	RequestTimeout Duration `json:"request_timeout"`
	InfoSource     string   `json:"info_source"`

	DefaultModel     string  `json:"default_model"`
	DefaultWeightCap float64 `json:"default_weight_cap"`
	DefaultRiskCap   float64 `json:"default_risk_cap"`

	CacheEnabled bool     `json:"cache_enabled"`
	CacheTTL     Duration `json:"cache_ttl"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// Longport API Configuration
	LongportAppKey      string `json:"longport_app_key"`
	LongportAppSecret   string `json:"longport_app_secret"`
	LongportAccessToken string `json:"longport_access_token"`
}

// Duration marshals as a Go duration string such as "30s"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string or nanoseconds: %s", b)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv loads .env if present and overrides fields from OPTIFOLIO_*
// variables
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()
	c.loadFromEnv()
}

// DefaultConfigWithRoot returns defaults with every directory under root
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		ProjectDir:    root,
		ResultsDir:    filepath.Join(root, "results"),
		DataDir:       filepath.Join(root, "data"),
		DataCacheDir:  filepath.Join(root, "data", "cache"),
		HistoryDBPath: filepath.Join(root, "data", "history.db"),

		BackendURL:     "http://localhost:5000",
		RequestTimeout: Duration(30 * time.Second),
		InfoSource:     InfoSourceBackend,

		DefaultModel:     "capm",
		DefaultWeightCap: 1,
		DefaultRiskCap:   1,

		CacheEnabled: true,
		CacheTTL:     Duration(24 * time.Hour),

		LogLevel:  "info",
		LogFormat: "console",
	}
}

func (c *Config) loadFromEnv() {
	if val := getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}
	if val := getenv("HISTORY_DB"); val != "" {
		c.HistoryDBPath = val
	}

	if val := getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := getenv("REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.RequestTimeout = Duration(d)
		}
	}
	if val := getenv("INFO_SOURCE"); val != "" {
		c.InfoSource = strings.ToLower(val)
	}

	if val := getenv("MODEL"); val != "" {
		c.DefaultModel = val
	}
	if val := getenv("MAX_WEIGHT"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.DefaultWeightCap = v
		}
	}
	if val := getenv("MAX_RISK"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.DefaultRiskCap = v
		}
	}

	if val := getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}
	if val := getenv("CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.CacheTTL = Duration(d)
		}
	}

	if val := getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := getenv("LOG_FORMAT"); val != "" {
		c.LogFormat = val
	}

	// Longport keeps the SDK's own variable names
	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

// Validate checks that the config can drive a session
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.BackendURL) == "" {
		errs = append(errs, errors.New("backend_url is required"))
	} else if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url %q is not an absolute URL", c.BackendURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}

	switch c.InfoSource {
	case InfoSourceBackend, InfoSourceYahoo:
	case InfoSourceLongport:
		if c.LongportAppKey == "" || c.LongportAppSecret == "" || c.LongportAccessToken == "" {
			errs = append(errs, errors.New("longport info source needs app key, app secret and access token"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown info_source %q", c.InfoSource))
	}

	switch strings.ToLower(c.DefaultModel) {
	case "capm", "historical":
	default:
		errs = append(errs, fmt.Errorf("unknown default_model %q", c.DefaultModel))
	}
	if !unit(c.DefaultWeightCap) {
		errs = append(errs, fmt.Errorf("default_weight_cap %v outside [0,1]", c.DefaultWeightCap))
	}
	if !unit(c.DefaultRiskCap) {
		errs = append(errs, fmt.Errorf("default_risk_cap %v outside [0,1]", c.DefaultRiskCap))
	}

	if c.CacheEnabled && c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache_ttl must be positive when the cache is enabled"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ProjectDir, c.ResultsDir, c.DataDir, c.DataCacheDir}
	if c.HistoryDBPath != "" {
		dirs = append(dirs, filepath.Dir(c.HistoryDBPath))
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
