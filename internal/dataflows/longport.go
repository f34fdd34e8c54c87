package dataflows

import (
	"context"
	"errors"
	"fmt"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/rs/zerolog"

	"github.com/dyike/OptiFolio/internal/models"
)

// LongportCredentials are the OpenAPI keys issued by Longport
type LongportCredentials struct {
	AppKey      string
	AppSecret   string
	AccessToken string
}

// longportQuotes is the part of quote.QuoteContext the info lookup needs
type longportQuotes interface {
	StaticInfo(ctx context.Context, symbols []string) ([]*quote.StaticInfo, error)
	Quote(ctx context.Context, symbols []string) ([]*quote.SecurityQuote, error)
}

// LongportInfoService resolves tickers through the Longport quote API.
// Symbols use Longport notation such as 700.HK or AAPL.US.
type LongportInfoService struct {
	quotes longportQuotes
	log    zerolog.Logger
}

func NewLongportInfoService(creds LongportCredentials, log zerolog.Logger) (*LongportInfoService, error) {
	if creds.AppKey == "" || creds.AppSecret == "" || creds.AccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(creds.AppKey, creds.AppSecret, creds.AccessToken))
	if err != nil {
		return nil, err
	}
	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportInfoService{
		quotes: quoteContext,
		log:    log.With().Str("client", "longport").Logger(),
	}, nil
}

func (ls *LongportInfoService) FetchInfo(ctx context.Context, ticker string) (*models.TickerInfo, error) {
	symbols := []string{ticker}

	statics, err := ls.quotes.StaticInfo(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("longport static info for %s: %w", ticker, err)
	}
	quotes, err := ls.quotes.Quote(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("longport quote for %s: %w", ticker, err)
	}
	if len(quotes) == 0 || quotes[0] == nil || quotes[0].LastDone == nil {
		return nil, fmt.Errorf("longport returned no quote for %s", ticker)
	}

	price := *quotes[0].LastDone
	name := ticker
	if len(statics) > 0 && statics[0] != nil {
		name = firstNonEmpty(statics[0].NameEn, statics[0].NameCn, ticker)
	}

	ls.log.Debug().Str("ticker", ticker).Str("price", price.String()).Msg("Quote fetched")

	return &models.TickerInfo{
		Ticker:   ticker,
		Price:    price,
		Name:     name,
		Sector:   notAvailable,
		Industry: notAvailable,
	}, nil
}
