package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/OptiFolio/internal/models"
	"github.com/dyike/OptiFolio/internal/storage/sqlite"
)

func seedRun(t *testing.T, store *sqlite.Store, asOf string) {
	t.Helper()
	err := store.RecordRun(context.Background(), &models.OptimizationResult{
		Tickers:        []string{"AAPL", "MSFT"},
		Weights:        []float64{0.6, 0.4},
		ExpectedReturn: 0.12,
		Volatility:     0.2,
		SharpeRatio:    0.5,
		MinVolatility:  0.18,
		Model:          models.ModelCAPM,
		AsOf:           asOf,
		MaxWeight:      0.6,
		MaxRisk:        1,
		CompletedAt:    time.Now(),
	})
	require.NoError(t, err)
}

func TestResultsManager(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	var out bytes.Buffer
	rm := NewResultsManager(app.store, t.TempDir(), &out)

	require.NoError(t, rm.ListResults(ctx, 10))
	assert.Contains(t, out.String(), "No optimization runs recorded yet.")

	seedRun(t, app.store, "2024-03-14")
	seedRun(t, app.store, "2024-03-15")

	runs, err := app.store.ListRuns(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "2024-03-15", runs[0].AsOf)
	id := runs[0].ID

	out.Reset()
	require.NoError(t, rm.ListResults(ctx, 10))
	assert.Contains(t, out.String(), "Recent runs (2)")
	assert.Contains(t, out.String(), shortID(id))

	out.Reset()
	require.NoError(t, rm.ShowResult(ctx, shortID(id)))
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), "60.00%")

	path, err := rm.ExportResult(ctx, id)
	require.NoError(t, err)
	assert.FileExists(t, path)

	assert.Error(t, rm.ShowResult(ctx, "does-not-exist"))
	assert.Error(t, rm.ShowResult(ctx, " "))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678", shortID("1234567890"))
}
