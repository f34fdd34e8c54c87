package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dyike/OptiFolio/internal/models"
)

const (
	infoPath     = "/api/info"
	minimumPath  = "/api/minimum"
	optimizePath = "/api/optimize"

	notAvailable = "N/A"
)

// BackendClient talks to the optimization backend over JSON/HTTP. It serves
// ticker info, the minimum-risk query and the optimize call.
type BackendClient struct {
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	client *resty.Client
}

// NewBackendClient creates a client for baseURL
func NewBackendClient(baseURL string, timeout time.Duration, log zerolog.Logger) *BackendClient {
	return &BackendClient{
		log:     log.With().Str("client", "backend").Logger(),
		timeout: timeout,
		client:  newRestyClient(baseURL, timeout),
	}
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	return client
}

// SetBaseURL points subsequent requests at another backend. Requests
// already running finish against the old address.
func (bc *BackendClient) SetBaseURL(baseURL string) {
	client := newRestyClient(baseURL, bc.timeout)
	bc.mu.Lock()
	bc.client = client
	bc.mu.Unlock()
}

// BaseURL returns the configured backend address
func (bc *BackendClient) BaseURL() string {
	return bc.rest().BaseURL
}

func (bc *BackendClient) rest() *resty.Client {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.client
}

// infoPayload is the loose quote shape the info endpoint returns
type infoPayload struct {
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	CurrentPrice       *float64 `json:"currentPrice"`
	Price              *float64 `json:"price"`
	ShortName          string   `json:"shortName"`
	LongName           string   `json:"longName"`
	FullName           string   `json:"full_name"`
	Sector             string   `json:"sector"`
	Industry           string   `json:"industry"`
	Error              string   `json:"error"`
}

// FetchInfo resolves price and descriptive fields for ticker
func (bc *BackendClient) FetchInfo(ctx context.Context, ticker string) (*models.TickerInfo, error) {
	var payload infoPayload
	if err := bc.post(ctx, infoPath, map[string]string{"ticker": ticker}, &payload); err != nil {
		return nil, fmt.Errorf("fetch info for %s: %w", ticker, err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("fetch info for %s: %s", ticker, payload.Error)
	}

	price := firstPrice(payload.RegularMarketPrice, payload.CurrentPrice, payload.Price)
	return &models.TickerInfo{
		Ticker:   ticker,
		Price:    price,
		Name:     firstNonEmpty(payload.ShortName, payload.LongName, payload.FullName, ticker),
		Sector:   firstNonEmpty(payload.Sector, notAvailable),
		Industry: firstNonEmpty(payload.Industry, notAvailable),
	}, nil
}

// MinimumRisk returns the lowest volatility reachable for the basket under
// the weight cap
func (bc *BackendClient) MinimumRisk(ctx context.Context, req models.MinRiskRequest) (float64, error) {
	var raw json.RawMessage
	if err := bc.post(ctx, minimumPath, req, &raw); err != nil {
		return 0, fmt.Errorf("minimum risk: %w", err)
	}
	return parseMinVol(raw)
}

// parseMinVol accepts either {"min_vol": x} or a bare number
func parseMinVol(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var obj struct {
		MinVol *float64 `json:"min_vol"`
		Error  string   `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, fmt.Errorf("minimum risk: decode response: %w", err)
	}
	if obj.Error != "" {
		return 0, fmt.Errorf("minimum risk: %s", obj.Error)
	}
	if obj.MinVol == nil {
		return 0, errors.New("minimum risk: response has no min_vol")
	}
	return *obj.MinVol, nil
}

// Optimize runs the remote optimizer. A backend-reported failure comes back
// in the response's Error field with a nil error.
func (bc *BackendClient) Optimize(ctx context.Context, req models.OptimizeRequest) (*models.OptimizeResponse, error) {
	var resp models.OptimizeResponse
	if err := bc.post(ctx, optimizePath, req, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.body.Error != "" {
			return &models.OptimizeResponse{Error: se.body.Error}, nil
		}
		return nil, fmt.Errorf("optimize: %w", err)
	}
	return &resp, nil
}

type errorBody struct {
	Error string `json:"error"`
}

type statusError struct {
	code int
	body errorBody
	raw  string
}

func (e *statusError) Error() string {
	if e.body.Error != "" {
		return fmt.Sprintf("backend returned %d: %s", e.code, e.body.Error)
	}
	return fmt.Sprintf("backend returned %d: %s", e.code, truncate(e.raw, 200))
}

func (bc *BackendClient) post(ctx context.Context, path string, body, out interface{}) error {
	start := time.Now()
	var eb errorBody
	resp, err := bc.rest().R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(&eb).
		Post(path)
	if err != nil {
		bc.log.Debug().Err(err).Str("path", path).Msg("Backend request failed")
		return err
	}

	bc.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode()).
		Dur("took", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode() != http.StatusOK {
		return &statusError{code: resp.StatusCode(), body: eb, raw: resp.String()}
	}
	// resty only decodes JSON content types into the result
	if !isJSON(resp.Header().Get("Content-Type")) {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}

func firstPrice(candidates ...*float64) decimal.Decimal {
	for _, p := range candidates {
		if p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) {
			return decimal.NewFromFloat(*p)
		}
	}
	return decimal.Zero
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
