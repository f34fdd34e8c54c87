package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dyike/OptiFolio/internal/display"
	"github.com/dyike/OptiFolio/internal/models"
	"github.com/dyike/OptiFolio/internal/portfolio"
)

const maxBatchConcurrency = 10

// BatchManager optimizes several baskets side by side, one session each
type BatchManager struct {
	newSession func() *portfolio.Session
	out        io.Writer
}

// BatchProgress tracks progress of a batch run
type BatchProgress struct {
	Total      int
	Completed  int
	Failed     int
	InProgress int
	Results    []BatchResult
	StartTime  time.Time
	mutex      sync.RWMutex
}

// BatchResult is the outcome of one basket in the batch
type BatchResult struct {
	Tickers  []string
	Status   BatchStatus
	Error    string
	Result   *models.OptimizationResult
	Duration time.Duration
}

// BatchStatus represents the status of a batch item
type BatchStatus int

const (
	BatchPending BatchStatus = iota
	BatchRunning
	BatchCompleted
	BatchFailed
)

func (bs BatchStatus) String() string {
	switch bs {
	case BatchPending:
		return "⏳ Pending"
	case BatchRunning:
		return "🔄 Running"
	case BatchCompleted:
		return "✅ Completed"
	case BatchFailed:
		return "❌ Failed"
	default:
		return "❓ Unknown"
	}
}

// NewBatchManager creates a batch manager. newSession must return an
// independent session per call.
func NewBatchManager(newSession func() *portfolio.Session, out io.Writer) *BatchManager {
	return &BatchManager{newSession: newSession, out: out}
}

// RunBatch optimizes every basket with the shared constraints and prints
// a summary. It fails only when nothing could be attempted.
func (bm *BatchManager) RunBatch(ctx context.Context, baskets [][]string, shared basketRequest, concurrent int) (*BatchProgress, error) {
	if len(baskets) == 0 {
		return nil, fmt.Errorf("no baskets provided for batch optimization")
	}
	if concurrent <= 0 || concurrent > maxBatchConcurrency {
		concurrent = 3
	}

	fmt.Fprintln(bm.out, renderInfo(fmt.Sprintf("Optimizing %d baskets, %d at a time", len(baskets), concurrent)))

	progress := &BatchProgress{
		Total:     len(baskets),
		Results:   make([]BatchResult, len(baskets)),
		StartTime: time.Now(),
	}
	for i, b := range baskets {
		progress.Results[i] = BatchResult{Tickers: b, Status: BatchPending}
	}

	semaphore := make(chan struct{}, concurrent)
	var wg sync.WaitGroup
	for i := range progress.Results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				bm.finish(progress, idx, nil, ctx.Err(), 0)
				return
			}
			defer func() { <-semaphore }()

			bm.processBasket(ctx, progress, idx, shared)
		}(i)
	}
	wg.Wait()

	bm.displayBatchSummary(progress)
	return progress, nil
}

func (bm *BatchManager) processBasket(ctx context.Context, progress *BatchProgress, idx int, shared basketRequest) {
	progress.mutex.Lock()
	progress.Results[idx].Status = BatchRunning
	progress.InProgress++
	tickers := progress.Results[idx].Tickers
	progress.mutex.Unlock()

	start := time.Now()
	sess := bm.newSession()
	defer sess.Close()

	req := shared
	req.Tickers = tickers
	result, err := runBasket(ctx, sess, req)

	progress.mutex.Lock()
	progress.InProgress--
	progress.mutex.Unlock()
	bm.finish(progress, idx, result, err, time.Since(start))
}

func (bm *BatchManager) finish(progress *BatchProgress, idx int, result *models.OptimizationResult, err error, took time.Duration) {
	progress.mutex.Lock()
	defer progress.mutex.Unlock()

	r := &progress.Results[idx]
	r.Duration = took
	if err != nil {
		r.Status = BatchFailed
		r.Error = err.Error()
		progress.Failed++
	} else {
		r.Status = BatchCompleted
		r.Result = result
		progress.Completed++
	}

	fmt.Fprintf(bm.out, "[%d/%d] %s %s\n",
		progress.Completed+progress.Failed, progress.Total, strings.Join(r.Tickers, ","), r.Status)
}

// displayBatchSummary prints one line per basket
func (bm *BatchManager) displayBatchSummary(progress *BatchProgress) {
	progress.mutex.RLock()
	defer progress.mutex.RUnlock()

	fmt.Fprintln(bm.out)
	fmt.Fprintln(bm.out, "📋 BATCH SUMMARY")
	fmt.Fprintln(bm.out, "════════════════")
	fmt.Fprintf(bm.out, "Completed: %d  Failed: %d  Total time: %s\n\n",
		progress.Completed, progress.Failed, time.Since(progress.StartTime).Round(time.Millisecond))

	fmt.Fprintf(bm.out, "%-28s %-14s %8s %8s %7s  %s\n", "BASKET", "STATUS", "RETURN", "VOL", "SHARPE", "ERROR")
	fmt.Fprintln(bm.out, strings.Repeat("─", 80))
	for _, r := range progress.Results {
		ret, vol, sharpe := "-", "-", "-"
		if r.Result != nil {
			ret = display.FormatPercent(r.Result.ExpectedReturn)
			vol = display.FormatPercent(r.Result.Volatility)
			sharpe = display.FormatSharpe(r.Result.SharpeRatio)
		}
		fmt.Fprintf(bm.out, "%-28s %-14s %8s %8s %7s  %s\n",
			truncateString(strings.Join(r.Tickers, ","), 28), r.Status, ret, vol, sharpe, truncateString(r.Error, 40))
	}
}

// LoadBasketsFromFile reads one basket per line. Tickers are separated by
// spaces or commas; blank lines and # comments are skipped.
func (bm *BatchManager) LoadBasketsFromFile(filename string) ([][]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read baskets file: %w", err)
	}
	defer f.Close()

	var baskets [][]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		var basket []string
		for _, field := range fields {
			if t := portfolio.NormalizeSymbol(field); t != "" {
				basket = append(basket, t)
			}
		}
		if len(basket) > 0 {
			baskets = append(baskets, basket)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read baskets file: %w", err)
	}
	if len(baskets) == 0 {
		return nil, fmt.Errorf("no baskets found in file: %s", filename)
	}
	return baskets, nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
