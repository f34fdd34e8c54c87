package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/OptiFolio/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult(tickers []string, weights []float64, at time.Time) *models.OptimizationResult {
	return &models.OptimizationResult{
		Tickers:        tickers,
		Weights:        weights,
		ExpectedReturn: 0.12,
		Volatility:     0.18,
		SharpeRatio:    0.667,
		MinVolatility:  0.15,
		Model:          models.ModelCAPM,
		AsOf:           "2024-03-15",
		MaxWeight:      0.6,
		MaxRisk:        0.3,
		CompletedAt:    at,
	}
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(ctx, sampleResult([]string{"AAPL", "MSFT"}, []float64{0.6, 0.4}, at)))
	require.NoError(t, store.RecordRun(ctx, sampleResult([]string{"GOOG", "AMZN", "NVDA"}, []float64{0.3, 0.3, 0.4}, at.Add(time.Minute))))

	runs, err := store.ListRuns(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	newest := runs[0]
	assert.Equal(t, []models.Allocation{{Ticker: "GOOG", Weight: 0.3}, {Ticker: "AMZN", Weight: 0.3}, {Ticker: "NVDA", Weight: 0.4}}, newest.Allocations)
	assert.Equal(t, "capm", newest.Model)
	assert.Equal(t, 0.667, newest.SharpeRatio)
	assert.True(t, newest.CompletedAt.Equal(at.Add(time.Minute)))

	page, err := store.ListRuns(ctx, newest.RowID, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, runs[1].ID, page[0].ID)

	got, err := store.GetRun(ctx, runs[1].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []models.Allocation{{Ticker: "AAPL", Weight: 0.6}, {Ticker: "MSFT", Weight: 0.4}}, got.Allocations)
}

func TestGetRunMissing(t *testing.T) {
	store := openTestStore(t)
	got, err := store.GetRun(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = store.GetRun(context.Background(), " ")
	assert.Error(t, err)
}

func TestRecordRunRejectsMismatch(t *testing.T) {
	store := openTestStore(t)
	err := store.RecordRun(context.Background(), sampleResult([]string{"AAPL"}, []float64{0.5, 0.5}, time.Now()))
	assert.Error(t, err)

	runs, err := store.ListRuns(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpenMigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordRun(context.Background(),
		sampleResult([]string{"AAPL"}, []float64{1}, time.Now())))
	v, err := schemaVersion(store.db)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.ListRuns(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = Open(path)
	assert.ErrorContains(t, err, "newer than this build")
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
