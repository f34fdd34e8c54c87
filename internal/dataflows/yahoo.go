package dataflows

import (
	"context"
	"fmt"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dyike/OptiFolio/internal/models"
)

// YahooInfoService looks tickers up directly on Yahoo Finance, bypassing
// the backend's info endpoint
type YahooInfoService struct {
	get func(symbol string) (*finance.Quote, error)
	log zerolog.Logger
}

func NewYahooInfoService(log zerolog.Logger) *YahooInfoService {
	return &YahooInfoService{
		get: quote.Get,
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

func (ys *YahooInfoService) FetchInfo(ctx context.Context, ticker string) (*models.TickerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := ys.get(ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", ticker, err)
	}
	if q == nil {
		return nil, fmt.Errorf("no quote for %s", ticker)
	}

	ys.log.Debug().Str("ticker", ticker).Float64("price", q.RegularMarketPrice).Msg("Quote fetched")

	return &models.TickerInfo{
		Ticker:   ticker,
		Price:    decimal.NewFromFloat(q.RegularMarketPrice),
		Name:     firstNonEmpty(q.ShortName, ticker),
		Sector:   notAvailable,
		Industry: notAvailable,
	}, nil
}
