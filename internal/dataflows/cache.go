package dataflows

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/OptiFolio/internal/models"
)

// CacheManager is a file-per-key JSON cache with a fixed TTL
type CacheManager struct {
	cacheDir     string
	ttl          time.Duration
	cacheEnabled bool
	now          func() time.Time
}

// NewCacheManager creates a cache rooted at cacheDir
func NewCacheManager(cacheDir string, ttl time.Duration, cacheEnabled bool) *CacheManager {
	return &CacheManager{
		cacheDir:     cacheDir,
		ttl:          ttl,
		cacheEnabled: cacheEnabled,
		now:          time.Now,
	}
}

func (cm *CacheManager) path(source, method string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return filepath.Join(cm.cacheDir, fmt.Sprintf("%s_%s_%x.json", source, method, hash))
}

// Get decodes a fresh entry into result and reports whether one existed.
// Expired entries are removed.
func (cm *CacheManager) Get(source, method string, params interface{}, result interface{}) bool {
	if !cm.cacheEnabled {
		return false
	}

	filePath := cm.path(source, method, params)
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	if cm.now().Sub(info.ModTime()) > cm.ttl {
		_ = os.Remove(filePath)
		return false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, result) == nil
}

// Set stores data under the key built from source, method and params
func (cm *CacheManager) Set(source, method string, params interface{}, data interface{}) error {
	if !cm.cacheEnabled {
		return nil
	}
	if err := os.MkdirAll(cm.cacheDir, 0o755); err != nil {
		return err
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	// write then rename so a concurrent Get never sees a partial file
	filePath := cm.path(source, method, params)
	tmp, err := os.CreateTemp(cm.cacheDir, "entry-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(jsonData); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

// InfoFetcher is the lookup a CachedInfoService wraps
type InfoFetcher interface {
	FetchInfo(ctx context.Context, ticker string) (*models.TickerInfo, error)
}

// CachedInfoService serves ticker info from disk when a fresh entry exists.
// Failed lookups are never cached.
type CachedInfoService struct {
	next   InfoFetcher
	cache  *CacheManager
	source string
	log    zerolog.Logger
}

// NewCachedInfoService wraps next. source namespaces the cache entries so
// different providers never share them.
func NewCachedInfoService(next InfoFetcher, cache *CacheManager, source string, log zerolog.Logger) *CachedInfoService {
	return &CachedInfoService{
		next:   next,
		cache:  cache,
		source: source,
		log:    log.With().Str("component", "info_cache").Logger(),
	}
}

func (cs *CachedInfoService) FetchInfo(ctx context.Context, ticker string) (*models.TickerInfo, error) {
	var cached models.TickerInfo
	if cs.cache.Get(cs.source, "info", ticker, &cached) {
		cs.log.Debug().Str("ticker", ticker).Msg("Ticker info served from cache")
		return &cached, nil
	}

	info, err := cs.next.FetchInfo(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if info != nil && info.Price.IsPositive() {
		if err := cs.cache.Set(cs.source, "info", ticker, info); err != nil {
			cs.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache ticker info")
		}
	}
	return info, nil
}
