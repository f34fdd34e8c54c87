package portfolio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dyike/OptiFolio/internal/models"
)

// NormalizeSymbol trims and uppercases a ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Registry owns the basket of selected assets
type Registry struct {
	info InfoService
	log  zerolog.Logger

	mu      sync.RWMutex
	assets  []models.Asset
	pending map[string]struct{}
}

// NewRegistry creates an empty registry backed by an info service
func NewRegistry(info InfoService, log zerolog.Logger) *Registry {
	return &Registry{
		info:    info,
		log:     log.With().Str("component", "registry").Logger(),
		pending: make(map[string]struct{}),
	}
}

// Add resolves symbol and appends it to the basket. Nothing is mutated
// unless the lookup succeeds.
func (r *Registry) Add(ctx context.Context, symbol string) (models.Asset, error) {
	ticker := NormalizeSymbol(symbol)
	if ticker == "" {
		return models.Asset{}, ErrEmptySymbol
	}

	r.mu.Lock()
	if r.indexLocked(ticker) >= 0 {
		r.mu.Unlock()
		return models.Asset{}, fmt.Errorf("%s: %w", ticker, ErrDuplicateAsset)
	}
	if _, busy := r.pending[ticker]; busy {
		r.mu.Unlock()
		return models.Asset{}, fmt.Errorf("%s: %w", ticker, ErrDuplicateAsset)
	}
	r.pending[ticker] = struct{}{}
	r.mu.Unlock()

	info, err := r.info.FetchInfo(ctx, ticker)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, ticker)

	if err != nil {
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("Ticker lookup failed")
		return models.Asset{}, fmt.Errorf("%s: %w: %v", ticker, ErrInfoUnavailable, err)
	}
	if info == nil || !info.Price.IsPositive() {
		r.log.Warn().Str("ticker", ticker).Msg("Ticker lookup returned no price")
		return models.Asset{}, fmt.Errorf("%s: %w: no price", ticker, ErrInfoUnavailable)
	}

	asset := models.Asset{
		Ticker:   ticker,
		Price:    info.Price,
		Name:     info.Name,
		Sector:   info.Sector,
		Industry: info.Industry,
	}
	r.assets = append(r.assets, asset)

	r.log.Debug().
		Str("ticker", ticker).
		Str("price", asset.Price.StringFixed(2)).
		Int("assets", len(r.assets)).
		Msg("Asset added")
	return asset, nil
}

// Remove drops symbol from the basket. It reports whether anything was removed.
func (r *Registry) Remove(symbol string) bool {
	ticker := NormalizeSymbol(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(ticker)
	if i < 0 {
		return false
	}
	r.assets = append(r.assets[:i], r.assets[i+1:]...)
	return true
}

// Clear empties the basket
func (r *Registry) Clear() {
	r.mu.Lock()
	r.assets = nil
	r.mu.Unlock()
}

// Contains reports whether symbol is in the basket
func (r *Registry) Contains(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexLocked(NormalizeSymbol(symbol)) >= 0
}

// Assets returns a copy of the basket in insertion order
func (r *Registry) Assets() []models.Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Asset, len(r.assets))
	copy(out, r.assets)
	return out
}

// Tickers returns the basket symbols in insertion order
func (r *Registry) Tickers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.assets))
	for i, a := range r.assets {
		out[i] = a.Ticker
	}
	return out
}

// Len returns the number of assets
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

func (r *Registry) indexLocked(ticker string) int {
	for i, a := range r.assets {
		if a.Ticker == ticker {
			return i
		}
	}
	return -1
}
