package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/OptiFolio/internal/models"
)

type memWriter struct {
	mu    sync.Mutex
	runs  []*models.OptimizationResult
	fail  error
	delay time.Duration
}

func (w *memWriter) RecordRun(ctx context.Context, r *models.OptimizationResult) error {
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.runs = append(w.runs, r)
	return nil
}

func (w *memWriter) tickers() [][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]string, 0, len(w.runs))
	for _, r := range w.runs {
		out = append(out, r.Tickers)
	}
	return out
}

func result(tickers ...string) *models.OptimizationResult {
	weights := make([]float64, len(tickers))
	for i := range weights {
		weights[i] = 1 / float64(len(tickers))
	}
	return &models.OptimizationResult{Tickers: tickers, Weights: weights, Model: models.ModelCAPM}
}

func TestRunRecorderWritesInOrder(t *testing.T) {
	w := &memWriter{delay: 5 * time.Millisecond}
	rec := NewRunRecorder(w, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, rec.RecordRun(ctx, result("AAPL")))
	require.NoError(t, rec.RecordRun(ctx, result("AAPL", "MSFT")))
	rec.Flush()

	assert.Equal(t, [][]string{{"AAPL"}, {"AAPL", "MSFT"}}, w.tickers())
	rec.Close()
}

func TestRunRecorderCopiesResult(t *testing.T) {
	w := &memWriter{}
	rec := NewRunRecorder(w, zerolog.Nop())
	defer rec.Close()

	r := result("AAPL", "MSFT")
	require.NoError(t, rec.RecordRun(context.Background(), r))
	r.Tickers[0] = "GOOG"
	rec.Flush()

	assert.Equal(t, [][]string{{"AAPL", "MSFT"}}, w.tickers())
}

func TestRunRecorderCloseDrainsAndRejects(t *testing.T) {
	w := &memWriter{delay: 5 * time.Millisecond}
	rec := NewRunRecorder(w, zerolog.Nop())

	for i := 0; i < 5; i++ {
		require.NoError(t, rec.RecordRun(context.Background(), result("AAPL")))
	}
	rec.Close()
	assert.Len(t, w.tickers(), 5)

	err := rec.RecordRun(context.Background(), result("MSFT"))
	assert.ErrorIs(t, err, ErrRecorderClosed)
	rec.Close()
}

func TestRunRecorderWriteFailureIsNotFatal(t *testing.T) {
	w := &memWriter{fail: errors.New("disk full")}
	rec := NewRunRecorder(w, zerolog.Nop())
	defer rec.Close()

	require.NoError(t, rec.RecordRun(context.Background(), result("AAPL")))
	rec.Flush()
	assert.Empty(t, w.tickers())
}
