package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dyike/OptiFolio/internal/models"
)

// ErrRecorderClosed is returned for runs recorded after Close
var ErrRecorderClosed = errors.New("recorder closed")

const writeTimeout = 5 * time.Second

// RunWriter persists one run synchronously
type RunWriter interface {
	RecordRun(ctx context.Context, result *models.OptimizationResult) error
}

// RunRecorder moves history writes off the caller's path. Runs are
// written in the order they were recorded.
type RunRecorder struct {
	writer RunWriter
	log    zerolog.Logger

	events chan *models.OptimizationResult
	wg     sync.WaitGroup

	// pending counts queued runs not yet written
	pendingMu sync.Mutex
	pending   int
	drained   *sync.Cond

	mu     sync.RWMutex
	closed bool
}

func NewRunRecorder(writer RunWriter, log zerolog.Logger) *RunRecorder {
	r := &RunRecorder{
		writer: writer,
		log:    log.With().Str("component", "run_recorder").Logger(),
		events: make(chan *models.OptimizationResult, 64),
	}
	r.drained = sync.NewCond(&r.pendingMu)

	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *RunRecorder) loop() {
	defer r.wg.Done()
	for result := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.writer.RecordRun(ctx, result); err != nil {
			r.log.Error().Err(err).Strs("tickers", result.Tickers).Msg("Failed to write run")
		}
		cancel()
		r.done()
	}
}

func (r *RunRecorder) done() {
	r.pendingMu.Lock()
	r.pending--
	if r.pending == 0 {
		r.drained.Broadcast()
	}
	r.pendingMu.Unlock()
}

// RecordRun queues a copy of result. It blocks only while the queue is
// full, and gives up when ctx is done.
func (r *RunRecorder) RecordRun(ctx context.Context, result *models.OptimizationResult) error {
	if result == nil {
		return errors.New("nil result")
	}
	cp := *result
	cp.Tickers = append([]string(nil), result.Tickers...)
	cp.Weights = append([]float64(nil), result.Weights...)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}

	r.pendingMu.Lock()
	r.pending++
	r.pendingMu.Unlock()

	select {
	case r.events <- &cp:
		return nil
	case <-ctx.Done():
		r.done()
		return ctx.Err()
	}
}

// Flush waits until every queued run has been written
func (r *RunRecorder) Flush() {
	r.pendingMu.Lock()
	for r.pending > 0 {
		r.drained.Wait()
	}
	r.pendingMu.Unlock()
}

// Close writes what is queued and stops the loop
func (r *RunRecorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
