package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/OptiFolio/internal/models"
)

// WeightSumTolerance is how far returned weights may drift from summing to 1
const WeightSumTolerance = 1e-3

// Plan is everything one optimize call needs
type Plan struct {
	Tickers     []string
	Constraints models.ConstraintSet
	Model       models.ModelType
	AsOf        string
	Validation  models.ValidationState
}

// Runner issues optimize calls one at a time and holds the latest result
type Runner struct {
	opt Optimizer
	now func() time.Time
	log zerolog.Logger

	inFlight atomic.Bool
	onStart  func()

	mu     sync.RWMutex
	result *models.OptimizationResult
}

// NewRunner creates a runner over an optimizer backend
func NewRunner(opt Optimizer, now func() time.Time, log zerolog.Logger) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{
		opt: opt,
		now: now,
		log: log.With().Str("component", "runner").Logger(),
	}
}

// OnStart registers fn to run once a call has been accepted
func (r *Runner) OnStart(fn func()) {
	r.onStart = fn
}

// InFlight reports whether an optimize call is outstanding
func (r *Runner) InFlight() bool {
	return r.inFlight.Load()
}

// Result returns the latest successful result, or nil
func (r *Runner) Result() *models.OptimizationResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// Run starts an optimization if the plan passes the gate and nothing else
// is in flight. A failed call leaves the previous result in place.
func (r *Runner) Run(ctx context.Context, plan Plan) (*models.OptimizationResult, error) {
	if !Gate(len(plan.Tickers), plan.Validation, r.inFlight.Load()) {
		return nil, ErrNotReady
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrNotReady
	}
	defer r.inFlight.Store(false)

	if r.onStart != nil {
		r.onStart()
	}

	req := models.OptimizeRequest{
		Model:     plan.Model,
		Tickers:   append([]string(nil), plan.Tickers...),
		Date:      plan.AsOf,
		MaxWeight: plan.Constraints.WeightCap,
		MaxRisk:   plan.Constraints.RiskCap,
	}

	start := r.now()
	resp, err := r.opt.Optimize(ctx, req)
	if err != nil {
		r.log.Error().Err(err).Strs("tickers", req.Tickers).Msg("Optimize call failed")
		return nil, fmt.Errorf("%w: %v", ErrOptimizationFailed, err)
	}

	result, err := normalizeResponse(resp, plan)
	if err != nil {
		r.log.Warn().Err(err).Strs("tickers", req.Tickers).Msg("Optimize response rejected")
		return nil, err
	}
	result.CompletedAt = r.now()

	r.mu.Lock()
	r.result = result
	r.mu.Unlock()

	r.log.Info().
		Strs("tickers", result.Tickers).
		Str("model", string(plan.Model)).
		Float64("sharpe", result.SharpeRatio).
		Dur("took", result.CompletedAt.Sub(start)).
		Msg("Optimization completed")
	return result, nil
}

func normalizeResponse(resp *models.OptimizeResponse, plan Plan) (*models.OptimizationResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrOptimizationFailed)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrOptimizationFailed, resp.Error)
	}
	if len(resp.Weights) == 0 && resp.MinVol != nil {
		return nil, fmt.Errorf("%w: max risk %.4f is below minimum volatility %.4f",
			ErrOptimizationFailed, plan.Constraints.RiskCap, *resp.MinVol)
	}
	if len(resp.Weights) == 0 || len(resp.Tickers) != len(resp.Weights) {
		return nil, fmt.Errorf("%w: %d tickers for %d weights", ErrOptimizationFailed, len(resp.Tickers), len(resp.Weights))
	}
	if resp.ExpectedReturn == nil || resp.Volatility == nil || resp.SharpeRatio == nil {
		return nil, fmt.Errorf("%w: incomplete metrics", ErrOptimizationFailed)
	}
	if !sameSet(resp.Tickers, plan.Tickers) {
		return nil, fmt.Errorf("%w: response tickers %v do not match basket", ErrOptimizationFailed, resp.Tickers)
	}

	var sum float64
	for _, w := range resp.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: non-finite weight", ErrOptimizationFailed)
		}
		sum += w
	}
	if math.Abs(sum-1) > WeightSumTolerance {
		return nil, fmt.Errorf("%w: weights sum to %.6f", ErrOptimizationFailed, sum)
	}

	tickers := make([]string, len(resp.Tickers))
	for i, t := range resp.Tickers {
		tickers[i] = NormalizeSymbol(t)
	}

	result := &models.OptimizationResult{
		Tickers:        tickers,
		Weights:        append([]float64(nil), resp.Weights...),
		ExpectedReturn: *resp.ExpectedReturn,
		Volatility:     *resp.Volatility,
		SharpeRatio:    *resp.SharpeRatio,
		Model:          plan.Model,
		AsOf:           plan.AsOf,
		MaxWeight:      plan.Constraints.WeightCap,
		MaxRisk:        plan.Constraints.RiskCap,
	}
	if resp.MinVol != nil {
		result.MinVolatility = *resp.MinVol
	}
	return result, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := make([]string, len(a))
	for i, t := range a {
		x[i] = NormalizeSymbol(t)
	}
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
