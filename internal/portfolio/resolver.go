package portfolio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/OptiFolio/internal/models"
)

// Resolver keeps the feasibility snapshot in step with the basket and the
// weight cap. Every query carries the generation and tag it was issued
// for, and a reply is installed only if both still match when it arrives.
type Resolver struct {
	svc  MinRiskService
	asOf string
	now  func() time.Time
	log  zerolog.Logger

	base       context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	current  models.Tag
	gen      uint64
	snapshot *models.FeasibilitySnapshot
	inFlight bool
	cancel   context.CancelFunc
	lastErr  error
	onChange func()

	wg sync.WaitGroup
}

// NewResolver creates a resolver whose queries are dated asOf
func NewResolver(svc MinRiskService, asOf string, now func() time.Time, log zerolog.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	base, cancel := context.WithCancel(context.Background())
	return &Resolver{
		svc:        svc,
		asOf:       asOf,
		now:        now,
		log:        log.With().Str("component", "feasibility").Logger(),
		base:       base,
		baseCancel: cancel,
		snapshot:   &models.FeasibilitySnapshot{ComputedFor: models.Tag{}, ComputedAt: now()},
	}
}

// OnChange registers fn to run after an asynchronous install or failure.
// fn runs on the query goroutine with no resolver lock held.
func (r *Resolver) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Update points the resolver at new inputs and reports whether the valid
// snapshot changed synchronously. An empty basket, or inputs that match the
// installed snapshot, resolve without a network call. Anything else issues
// a query unless one for the same inputs is already running.
func (r *Resolver) Update(tickers []string, weightCap float64) bool {
	tag := models.NewTag(tickers, weightCap)

	r.mu.Lock()
	defer r.mu.Unlock()

	if tag == r.current && r.inFlight {
		return false
	}

	changed := tag != r.current
	r.current = tag
	r.gen++
	r.lastErr = nil
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.inFlight = false

	if tag.Empty() {
		r.snapshot = &models.FeasibilitySnapshot{ComputedFor: tag, ComputedAt: r.now()}
		return true
	}
	if r.snapshot != nil && r.snapshot.ComputedFor == tag {
		return changed
	}

	ctx, cancel := context.WithCancel(r.base)
	r.cancel = cancel
	r.inFlight = true

	req := models.MinRiskRequest{
		Tickers:   append([]string(nil), tickers...),
		Date:      r.asOf,
		MaxWeight: weightCap,
	}

	r.wg.Add(1)
	go r.query(ctx, cancel, r.gen, tag, req)
	return changed
}

func (r *Resolver) query(ctx context.Context, cancel context.CancelFunc, gen uint64, tag models.Tag, req models.MinRiskRequest) {
	defer r.wg.Done()
	defer cancel()

	log := r.log.With().Uint64("gen", gen).Str("tickers", tag.Set).Float64("max_weight", tag.WeightCap).Logger()
	log.Debug().Msg("Minimum risk query issued")

	risk, err := r.svc.MinimumRisk(ctx, req)
	if err == nil && (math.IsNaN(risk) || math.IsInf(risk, 0) || risk < 0) {
		err = fmt.Errorf("invalid minimum risk %v", risk)
	}

	r.mu.Lock()
	if gen != r.gen || tag != r.current {
		latest := r.gen
		r.mu.Unlock()
		log.Debug().Uint64("latest_gen", latest).Msg("Discarding superseded minimum risk reply")
		return
	}

	r.inFlight = false
	r.cancel = nil
	if err != nil {
		r.lastErr = fmt.Errorf("%w: %v", ErrMinRiskUnavailable, err)
	} else {
		r.snapshot = &models.FeasibilitySnapshot{
			AttainableMinRisk: risk,
			ComputedFor:       tag,
			ComputedAt:        r.now(),
		}
	}
	fn := r.onChange
	r.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Msg("Minimum risk query failed")
	} else {
		log.Debug().Float64("min_risk", risk).Msg("Minimum risk installed")
	}
	if fn != nil {
		fn()
	}
}

// ValidFor returns the snapshot only if it was computed for tag
func (r *Resolver) ValidFor(tag models.Tag) (*models.FeasibilitySnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot == nil || r.snapshot.ComputedFor != tag || r.current != tag {
		return nil, false
	}
	snap := *r.snapshot
	return &snap, true
}

// Pending reports whether a query for the current inputs is outstanding
func (r *Resolver) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

// LastError returns the failure of the latest query, if any
func (r *Resolver) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Wait blocks until every issued query has returned
func (r *Resolver) Wait() {
	r.wg.Wait()
}

// Close cancels outstanding queries and waits for them to return
func (r *Resolver) Close() {
	r.baseCancel()
	r.wg.Wait()
}
