package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dyike/OptiFolio/config"
	"github.com/dyike/OptiFolio/internal/dataflows"
	"github.com/dyike/OptiFolio/internal/logger"
	"github.com/dyike/OptiFolio/internal/models"
	"github.com/dyike/OptiFolio/internal/portfolio"
	"github.com/dyike/OptiFolio/internal/storage"
	"github.com/dyike/OptiFolio/internal/storage/sqlite"
)

// App holds the long-lived services every command shares
type App struct {
	cfgMgr   *config.Manager
	log      zerolog.Logger
	out      io.Writer
	backend  *dataflows.BackendClient
	info     portfolio.InfoService
	store    *sqlite.Store
	recorder *storage.RunRecorder
}

// NewApp builds the services from the manager's current config
func NewApp(mgr *config.Manager, out io.Writer) (*App, error) {
	cfg := mgr.Get()
	cfg.ApplyEnv()
	if out == nil {
		out = os.Stdout
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.SetGlobalLogger(log)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	backend := dataflows.NewBackendClient(cfg.BackendURL, cfg.RequestTimeout.Std(), log)
	info, err := buildInfoService(cfg, backend, log)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	return &App{
		cfgMgr:   mgr,
		log:      log,
		out:      out,
		backend:  backend,
		info:     info,
		store:    store,
		recorder: storage.NewRunRecorder(store, log),
	}, nil
}

// buildInfoService picks the ticker lookup provider and wraps it in the
// disk cache when enabled
func buildInfoService(cfg config.Config, backend *dataflows.BackendClient, log zerolog.Logger) (portfolio.InfoService, error) {
	var src dataflows.InfoFetcher
	switch cfg.InfoSource {
	case config.InfoSourceYahoo:
		src = dataflows.NewYahooInfoService(log)
	case config.InfoSourceLongport:
		lp, err := dataflows.NewLongportInfoService(dataflows.LongportCredentials{
			AppKey:      cfg.LongportAppKey,
			AppSecret:   cfg.LongportAppSecret,
			AccessToken: cfg.LongportAccessToken,
		}, log)
		if err != nil {
			return nil, err
		}
		src = lp
	default:
		src = backend
	}

	if !cfg.CacheEnabled {
		return src, nil
	}
	cache := dataflows.NewCacheManager(cfg.DataCacheDir, cfg.CacheTTL.Std(), true)
	return dataflows.NewCachedInfoService(src, cache, cfg.InfoSource, log), nil
}

// settings is the persisted config with OPTIFOLIO_* overrides applied
func (a *App) settings() config.Config {
	cfg := a.cfgMgr.Get()
	cfg.ApplyEnv()
	return cfg
}

// NewSession starts a session seeded with the configured defaults
func (a *App) NewSession(opts ...portfolio.Option) *portfolio.Session {
	cfg := a.settings()

	base := []portfolio.Option{
		portfolio.WithConstraints(models.ConstraintSet{
			WeightCap: cfg.DefaultWeightCap,
			RiskCap:   cfg.DefaultRiskCap,
		}),
	}
	if m, ok := models.ParseModelType(cfg.DefaultModel); ok {
		base = append(base, portfolio.WithModel(m))
	}

	return portfolio.NewSession(portfolio.Deps{
		Info:      a.info,
		MinRisk:   a.backend,
		Optimizer: a.backend,
		Recorder:  a.recorder,
		Logger:    a.log,
	}, append(base, opts...)...)
}

// applyConfig reacts to a reloaded config file. Only settings that are
// safe to change under a live session are applied.
func (a *App) applyConfig(cfg config.Config) {
	cfg.ApplyEnv()
	if cfg.BackendURL != a.backend.BaseURL() {
		a.backend.SetBaseURL(cfg.BackendURL)
		a.log.Info().Str("backend_url", cfg.BackendURL).Msg("Backend address reloaded")
	}
	logger.SetLevel(cfg.LogLevel)
}

// Close flushes queued history writes and closes the store
func (a *App) Close() error {
	a.recorder.Close()
	return a.store.Close()
}
