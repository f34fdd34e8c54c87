package portfolio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dyike/OptiFolio/internal/models"
)

var errBackendDown = errors.New("backend down")

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

type fakeInfo struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  int
}

func newFakeInfo(prices map[string]float64) *fakeInfo {
	return &fakeInfo{prices: prices}
}

func (f *fakeInfo) FetchInfo(_ context.Context, ticker string) (*models.TickerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	price, ok := f.prices[ticker]
	if !ok {
		return nil, errBackendDown
	}
	return &models.TickerInfo{
		Ticker:   ticker,
		Price:    decimal.NewFromFloat(price),
		Name:     ticker + " Inc.",
		Sector:   "Technology",
		Industry: "Software",
	}, nil
}

// minRiskCall is one outstanding query the test resolves by hand
type minRiskCall struct {
	req   models.MinRiskRequest
	reply chan minRiskReply
}

type minRiskReply struct {
	risk float64
	err  error
}

// scriptedMinRisk parks every query until the test answers it
type scriptedMinRisk struct {
	calls chan *minRiskCall
}

func newScriptedMinRisk() *scriptedMinRisk {
	return &scriptedMinRisk{calls: make(chan *minRiskCall, 16)}
}

func (s *scriptedMinRisk) MinimumRisk(ctx context.Context, req models.MinRiskRequest) (float64, error) {
	call := &minRiskCall{req: req, reply: make(chan minRiskReply, 1)}
	s.calls <- call
	r := <-call.reply
	return r.risk, r.err
}

func (s *scriptedMinRisk) next() *minRiskCall {
	select {
	case c := <-s.calls:
		return c
	case <-time.After(2 * time.Second):
		panic("no minimum risk query issued")
	}
}

func (c *minRiskCall) answer(risk float64, err error) {
	c.reply <- minRiskReply{risk: risk, err: err}
}

// staticMinRisk answers every query immediately
type staticMinRisk struct {
	mu    sync.Mutex
	risk  float64
	err   error
	calls int
}

func (s *staticMinRisk) MinimumRisk(context.Context, models.MinRiskRequest) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.risk, s.err
}

func (s *staticMinRisk) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeOptimizer struct {
	mu      sync.Mutex
	resp    *models.OptimizeResponse
	err     error
	block   chan struct{}
	entered chan struct{}
	calls   int
	lastReq models.OptimizeRequest
}

func (f *fakeOptimizer) Optimize(_ context.Context, req models.OptimizeRequest) (*models.OptimizeResponse, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	block, entered := f.block, f.entered
	resp, err := f.resp, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return resp, err
}

func (f *fakeOptimizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeOptimizer) set(resp *models.OptimizeResponse, err error) {
	f.mu.Lock()
	f.resp, f.err = resp, err
	f.mu.Unlock()
}

type memRecorder struct {
	mu   sync.Mutex
	runs []*models.OptimizationResult
}

func (m *memRecorder) RecordRun(_ context.Context, r *models.OptimizationResult) error {
	m.mu.Lock()
	m.runs = append(m.runs, r)
	m.mu.Unlock()
	return nil
}

func f64(v float64) *float64 { return &v }

func okResponse(tickers []string, weights []float64) *models.OptimizeResponse {
	return &models.OptimizeResponse{
		Tickers:        tickers,
		Weights:        weights,
		ExpectedReturn: f64(0.12),
		Volatility:     f64(0.18),
		SharpeRatio:    f64(0.667),
		MinVol:         f64(0.15),
	}
}
