package portfolio

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/OptiFolio/internal/models"
)

type sessionFixture struct {
	info     *fakeInfo
	minRisk  *staticMinRisk
	opt      *fakeOptimizer
	recorder *memRecorder
	s        *Session
}

func newSessionFixture(t *testing.T, opts ...Option) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		info:     newFakeInfo(map[string]float64{"AAPL": 190, "MSFT": 410, "GOOG": 140}),
		minRisk:  &staticMinRisk{risk: 0.08},
		opt:      &fakeOptimizer{resp: okResponse([]string{"AAPL", "MSFT"}, []float64{0.6, 0.4})},
		recorder: &memRecorder{},
	}
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	f.s = NewSession(Deps{
		Info:      f.info,
		MinRisk:   f.minRisk,
		Optimizer: f.opt,
		Recorder:  f.recorder,
		Logger:    testLogger(),
	}, opts...)
	t.Cleanup(f.s.Close)
	return f
}

func (f *sessionFixture) add(t *testing.T, tickers ...string) {
	t.Helper()
	for _, tk := range tickers {
		_, err := f.s.AddTicker(context.Background(), tk)
		require.NoError(t, err)
	}
	f.s.WaitFeasibility()
}

func TestSessionAsOfFixed(t *testing.T) {
	f := newSessionFixture(t)
	assert.Equal(t, "2024-03-15", f.s.AsOf())
}

func TestSessionOptimizeEndToEnd(t *testing.T) {
	f := newSessionFixture(t)
	assert.False(t, f.s.CanOptimize())

	f.add(t, "AAPL", "MSFT")
	require.True(t, f.s.SetWeightCap(0.6))
	require.True(t, f.s.SetRiskCap(0.3))
	f.s.WaitFeasibility()

	assert.True(t, f.s.CanOptimize())
	res, err := f.s.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6, 0.4}, res.Weights)
	assert.Equal(t, "2024-03-15", f.opt.lastReq.Date)
	assert.Equal(t, 0.6, f.opt.lastReq.MaxWeight)

	require.Len(t, f.recorder.runs, 1)
	assert.Same(t, res, f.recorder.runs[0])
}

func TestSessionWeightWarningGatesOptimize(t *testing.T) {
	f := newSessionFixture(t)
	f.add(t, "AAPL", "MSFT")

	f.s.SetWeightCap(0.4)
	f.s.WaitFeasibility()

	assert.Equal(t, WeightWarningText, f.s.Validation().WeightWarning)
	assert.False(t, f.s.CanOptimize())
	assert.Equal(t, "Max weight: "+WeightWarningText, f.s.Message().Text)

	_, err := f.s.Optimize(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Zero(t, f.opt.Calls())
}

func TestSessionRiskWarningFollowsSnapshot(t *testing.T) {
	f := newSessionFixture(t)
	f.add(t, "AAPL", "MSFT")
	f.s.SetWeightCap(0.5)
	f.s.WaitFeasibility()

	f.s.SetRiskCap(0.05)
	assert.Equal(t, RiskWarningText, f.s.Validation().RiskWarning)
	assert.False(t, f.s.CanOptimize())

	f.s.SetRiskCap(0.10)
	assert.True(t, f.s.Validation().OK())
	assert.True(t, f.s.CanOptimize())
}

func TestSessionRiskCapDoesNotQuery(t *testing.T) {
	f := newSessionFixture(t)
	f.add(t, "AAPL")
	calls := f.minRisk.Calls()

	f.s.SetRiskCap(0.2)
	f.s.SetRiskCap(0.01)
	f.s.WaitFeasibility()
	assert.Equal(t, calls, f.minRisk.Calls())
}

func TestSessionLookupFailureShowsError(t *testing.T) {
	f := newSessionFixture(t)
	f.add(t, "AAPL")

	_, err := f.s.AddTicker(context.Background(), "ZZZZ")
	require.ErrorIs(t, err, ErrInfoUnavailable)
	assert.Len(t, f.s.Assets(), 1)
	assert.Equal(t, LevelError, f.s.Message().Level)

	f.add(t, "MSFT")
	assert.Equal(t, LevelNone, f.s.Message().Level)
}

func TestSessionDuplicateIsNotUserVisible(t *testing.T) {
	f := newSessionFixture(t)
	f.add(t, "AAPL")

	_, err := f.s.AddTicker(context.Background(), "aapl")
	assert.ErrorIs(t, err, ErrDuplicateAsset)
	assert.Equal(t, LevelNone, f.s.Message().Level)
}

func TestSessionMinRiskFailureIsSilent(t *testing.T) {
	f := newSessionFixture(t)
	f.minRisk.err = errBackendDown
	f.add(t, "AAPL")
	f.s.SetRiskCap(0)

	st := f.s.State()
	assert.ErrorIs(t, st.MinRiskErr, ErrMinRiskUnavailable)
	assert.Nil(t, st.Snapshot)
	assert.True(t, st.Validation.OK())
	assert.Equal(t, LevelNone, st.Message.Level)
}

func TestSessionOptimizeFailureKeepsResult(t *testing.T) {
	f := newSessionFixture(t)
	f.add(t, "AAPL", "MSFT")

	first, err := f.s.Optimize(context.Background())
	require.NoError(t, err)

	f.opt.set(&models.OptimizeResponse{MinVol: f64(0.4)}, nil)
	_, err = f.s.Optimize(context.Background())
	require.ErrorIs(t, err, ErrOptimizationFailed)

	assert.Same(t, first, f.s.Result())
	assert.Equal(t, LevelError, f.s.Message().Level)
	assert.False(t, f.s.State().InFlight)
	assert.Len(t, f.recorder.runs, 1)
}

func TestSessionRemoveAndClear(t *testing.T) {
	f := newSessionFixture(t)
	f.add(t, "AAPL", "MSFT", "GOOG")

	assert.True(t, f.s.RemoveTicker("msft"))
	assert.False(t, f.s.RemoveTicker("MSFT"))
	f.s.WaitFeasibility()

	snap, ok := f.s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "AAPL,GOOG", snap.ComputedFor.Set)

	f.s.ClearBasket()
	assert.Empty(t, f.s.Assets())
	assert.False(t, f.s.CanOptimize())
	snap, ok = f.s.Snapshot()
	require.True(t, ok)
	assert.Zero(t, snap.AttainableMinRisk)
}

func TestSessionSetters(t *testing.T) {
	f := newSessionFixture(t, WithConstraints(models.ConstraintSet{WeightCap: 0.7, RiskCap: 0.2}), WithModel(models.ModelHistorical))
	assert.Equal(t, models.ConstraintSet{WeightCap: 0.7, RiskCap: 0.2}, f.s.Constraints())
	assert.Equal(t, models.ModelHistorical, f.s.Model())

	f.s.SetWeightCap(1.7)
	assert.Equal(t, 1.0, f.s.Constraints().WeightCap)

	assert.Error(t, f.s.SetModel("black-litterman"))
	require.NoError(t, f.s.SetModel(models.ModelCAPM))
	assert.Equal(t, models.ModelCAPM, f.s.Model())
}

func TestSessionEvents(t *testing.T) {
	f := newSessionFixture(t)

	var mu sync.Mutex
	seen := map[EventKind]int{}
	f.s.Subscribe(func(ev Event) {
		mu.Lock()
		seen[ev.Kind]++
		mu.Unlock()
	})

	f.add(t, "AAPL", "MSFT")
	f.s.SetRiskCap(0.5)
	_, err := f.s.Optimize(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, seen[AssetsChanged])
	assert.Equal(t, 1, seen[ConstraintsChanged])
	assert.GreaterOrEqual(t, seen[FeasibilityChanged], 2)
	assert.Equal(t, 1, seen[OptimizationStarted])
	assert.Equal(t, 1, seen[OptimizationFinished])
}
