package portfolio

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/OptiFolio/internal/models"
)

// EventKind says which part of the session changed
type EventKind int

const (
	AssetsChanged EventKind = iota
	ConstraintsChanged
	FeasibilityChanged
	OptimizationStarted
	OptimizationFinished
)

func (k EventKind) String() string {
	switch k {
	case AssetsChanged:
		return "assets_changed"
	case ConstraintsChanged:
		return "constraints_changed"
	case FeasibilityChanged:
		return "feasibility_changed"
	case OptimizationStarted:
		return "optimization_started"
	case OptimizationFinished:
		return "optimization_finished"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a state change
type Event struct {
	Kind EventKind
	Err  error
}

// Deps are the collaborators a session talks to
type Deps struct {
	Info      InfoService
	MinRisk   MinRiskService
	Optimizer Optimizer
	Recorder  RunRecorder
	Logger    zerolog.Logger
}

type sessionOptions struct {
	now         func() time.Time
	constraints models.ConstraintSet
	model       models.ModelType
}

// Option customizes a session
type Option func(*sessionOptions)

// WithClock overrides the clock used for the as-of date and timestamps
func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithConstraints sets the starting caps
func WithConstraints(c models.ConstraintSet) Option {
	return func(o *sessionOptions) {
		if v, ok := ClampUnit(c.WeightCap); ok {
			o.constraints.WeightCap = v
		}
		if v, ok := ClampUnit(c.RiskCap); ok {
			o.constraints.RiskCap = v
		}
	}
}

// WithModel sets the starting model
func WithModel(m models.ModelType) Option {
	return func(o *sessionOptions) {
		if m.Valid() {
			o.model = m
		}
	}
}

// Session is the orchestration core of one interactive run. Basket and
// weight cap changes re-run the feasibility resolver; validation and the
// optimize gate are derived on read.
type Session struct {
	log      zerolog.Logger
	registry *Registry
	resolver *Resolver
	runner   *Runner
	recorder RunRecorder
	asOf     string

	// refreshMu makes reading the inputs and issuing the query one step
	refreshMu sync.Mutex

	mu          sync.RWMutex
	constraints models.ConstraintSet
	model       models.ModelType
	lastErr     error
	listeners   []func(Event)
}

// NewSession wires a session. The as-of date is fixed here for the
// lifetime of the session.
func NewSession(deps Deps, opts ...Option) *Session {
	o := sessionOptions{
		now:         time.Now,
		constraints: models.DefaultConstraints(),
		model:       models.ModelCAPM,
	}
	for _, opt := range opts {
		opt(&o)
	}

	asOf := o.now().Format("2006-01-02")
	log := deps.Logger.With().Str("as_of", asOf).Logger()

	s := &Session{
		log:         log.With().Str("component", "session").Logger(),
		registry:    NewRegistry(deps.Info, log),
		resolver:    NewResolver(deps.MinRisk, asOf, o.now, log),
		runner:      NewRunner(deps.Optimizer, o.now, log),
		recorder:    deps.Recorder,
		asOf:        asOf,
		constraints: o.constraints,
		model:       o.model,
	}
	s.resolver.OnChange(func() {
		s.emit(Event{Kind: FeasibilityChanged, Err: s.resolver.LastError()})
	})
	s.runner.OnStart(func() {
		s.emit(Event{Kind: OptimizationStarted})
	})
	return s
}

// Subscribe registers fn for every subsequent event. Events may arrive on
// background goroutines.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) emit(ev Event) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// AsOf returns the session date sent with every backend call
func (s *Session) AsOf() string {
	return s.asOf
}

// AddTicker resolves and adds a ticker to the basket
func (s *Session) AddTicker(ctx context.Context, symbol string) (models.Asset, error) {
	asset, err := s.registry.Add(ctx, symbol)
	if err != nil {
		if userVisible(err) {
			s.setError(err)
		}
		return asset, err
	}
	s.setError(nil)
	s.emit(Event{Kind: AssetsChanged})
	s.refresh()
	return asset, nil
}

// RemoveTicker drops a ticker. Removing an absent ticker is a no-op.
func (s *Session) RemoveTicker(symbol string) bool {
	if !s.registry.Remove(symbol) {
		return false
	}
	s.emit(Event{Kind: AssetsChanged})
	s.refresh()
	return true
}

// ClearBasket removes every asset
func (s *Session) ClearBasket() {
	s.registry.Clear()
	s.emit(Event{Kind: AssetsChanged})
	s.refresh()
}

// SetWeightCap updates the per-asset weight cap. Values are clamped into
// [0,1]; NaN is ignored and reported as false.
func (s *Session) SetWeightCap(v float64) bool {
	v, ok := ClampUnit(v)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.constraints.WeightCap = v
	s.mu.Unlock()
	s.emit(Event{Kind: ConstraintsChanged})
	s.refresh()
	return true
}

// SetRiskCap updates the risk cap. It never triggers a query: the risk
// warning is derived from the existing snapshot.
func (s *Session) SetRiskCap(v float64) bool {
	v, ok := ClampUnit(v)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.constraints.RiskCap = v
	s.mu.Unlock()
	s.emit(Event{Kind: ConstraintsChanged})
	return true
}

// SetModel selects the return model passed to the optimizer
func (s *Session) SetModel(m models.ModelType) error {
	if !m.Valid() {
		return fmt.Errorf("unknown model %q", m)
	}
	s.mu.Lock()
	s.model = m
	s.mu.Unlock()
	s.emit(Event{Kind: ConstraintsChanged})
	return nil
}

func (s *Session) refresh() {
	s.refreshMu.Lock()
	tickers := s.registry.Tickers()
	s.mu.RLock()
	weightCap := s.constraints.WeightCap
	s.mu.RUnlock()
	changed := s.resolver.Update(tickers, weightCap)
	s.refreshMu.Unlock()

	if changed {
		s.emit(Event{Kind: FeasibilityChanged})
	}
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// currentTag is the tag a snapshot must carry to be valid right now
func (s *Session) currentTag() models.Tag {
	s.mu.RLock()
	weightCap := s.constraints.WeightCap
	s.mu.RUnlock()
	return models.NewTag(s.registry.Tickers(), weightCap)
}

// Snapshot returns the feasibility snapshot if it matches current inputs
func (s *Session) Snapshot() (*models.FeasibilitySnapshot, bool) {
	return s.resolver.ValidFor(s.currentTag())
}

// Validation derives the warnings from the current inputs
func (s *Session) Validation() models.ValidationState {
	s.mu.RLock()
	c := s.constraints
	s.mu.RUnlock()
	tickers := s.registry.Tickers()
	snap, _ := s.resolver.ValidFor(models.NewTag(tickers, c.WeightCap))
	return Validate(len(tickers), c, snap)
}

// CanOptimize evaluates the optimize gate
func (s *Session) CanOptimize() bool {
	return Gate(s.registry.Len(), s.Validation(), s.runner.InFlight())
}

// Message returns the single message the user should see
func (s *Session) Message() Message {
	s.mu.RLock()
	err := s.lastErr
	s.mu.RUnlock()
	return SelectMessage(err, s.Validation())
}

// Optimize runs the optimizer with the current basket and caps
func (s *Session) Optimize(ctx context.Context) (*models.OptimizationResult, error) {
	s.mu.RLock()
	c := s.constraints
	model := s.model
	s.mu.RUnlock()

	plan := Plan{
		Tickers:     s.registry.Tickers(),
		Constraints: c,
		Model:       model,
		AsOf:        s.asOf,
		Validation:  s.Validation(),
	}

	result, err := s.runner.Run(ctx, plan)
	if errors.Is(err, ErrNotReady) {
		return nil, err
	}
	if err != nil {
		s.setError(err)
		s.emit(Event{Kind: OptimizationFinished, Err: err})
		return nil, err
	}
	s.setError(nil)

	if s.recorder != nil {
		if rerr := s.recorder.RecordRun(ctx, result); rerr != nil {
			s.log.Warn().Err(rerr).Msg("Failed to record optimization run")
		}
	}
	s.emit(Event{Kind: OptimizationFinished})
	return result, nil
}

// Result returns the latest successful optimization, or nil
func (s *Session) Result() *models.OptimizationResult {
	return s.runner.Result()
}

// Assets returns the basket in insertion order
func (s *Session) Assets() []models.Asset {
	return s.registry.Assets()
}

// Constraints returns the current caps
func (s *Session) Constraints() models.ConstraintSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.constraints
}

// Model returns the selected return model
func (s *Session) Model() models.ModelType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// WaitFeasibility blocks until no minimum-risk query is outstanding
func (s *Session) WaitFeasibility() {
	s.resolver.Wait()
}

// State is a read-only view of the session for rendering
type State struct {
	AsOf           string
	Assets         []models.Asset
	Constraints    models.ConstraintSet
	Model          models.ModelType
	Validation     models.ValidationState
	Snapshot       *models.FeasibilitySnapshot
	MinRiskPending bool
	MinRiskErr     error
	Result         *models.OptimizationResult
	InFlight       bool
	CanOptimize    bool
	Message        Message
}

// State gathers everything a renderer needs in one call
func (s *Session) State() State {
	snap, _ := s.Snapshot()
	inFlight := s.runner.InFlight()
	v := s.Validation()
	assets := s.registry.Assets()
	return State{
		AsOf:           s.asOf,
		Assets:         assets,
		Constraints:    s.Constraints(),
		Model:          s.Model(),
		Validation:     v,
		Snapshot:       snap,
		MinRiskPending: s.resolver.Pending(),
		MinRiskErr:     s.resolver.LastError(),
		Result:         s.runner.Result(),
		InFlight:       inFlight,
		CanOptimize:    Gate(len(assets), v, inFlight),
		Message:        s.Message(),
	}
}

// Close cancels outstanding queries
func (s *Session) Close() {
	s.resolver.Close()
}
