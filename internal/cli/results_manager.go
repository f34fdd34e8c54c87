package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dyike/OptiFolio/internal/display"
	"github.com/dyike/OptiFolio/internal/models"
	"github.com/dyike/OptiFolio/internal/storage/sqlite"
)

// ResultsManager browses and exports past optimization runs
type ResultsManager struct {
	store      *sqlite.Store
	resultsDir string
	out        io.Writer
	printer    *display.ResultsDisplay
}

// NewResultsManager creates a manager over the run history
func NewResultsManager(store *sqlite.Store, resultsDir string, out io.Writer) *ResultsManager {
	return &ResultsManager{
		store:      store,
		resultsDir: resultsDir,
		out:        out,
		printer:    display.NewResultsDisplay(out),
	}
}

// ListResults prints the most recent runs, newest first
func (rm *ResultsManager) ListResults(ctx context.Context, limit int) error {
	runs, err := rm.store.ListRuns(ctx, 0, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(rm.out, "📭 No optimization runs recorded yet.")
		return nil
	}

	fmt.Fprintf(rm.out, "📊 Recent runs (%d)\n", len(runs))
	fmt.Fprintln(rm.out, strings.Repeat("─", 72))
	fmt.Fprintf(rm.out, "%-8s  %-10s  %-10s  %8s  %8s  %7s  %s\n",
		"ID", "As of", "Model", "Return", "Vol", "Sharpe", "Tickers")
	for _, run := range runs {
		fmt.Fprintf(rm.out, "%-8s  %-10s  %-10s  %8s  %8s  %7s  %s\n",
			shortID(run.ID),
			run.AsOf,
			run.Model,
			display.FormatPercent(run.ExpectedReturn),
			display.FormatPercent(run.Volatility),
			display.FormatSharpe(run.SharpeRatio),
			strings.Join(runTickers(run), ","),
		)
	}
	return nil
}

// ShowResult prints the full allocation of a single run. id may be the
// short prefix printed by ListResults.
func (rm *ResultsManager) ShowResult(ctx context.Context, id string) error {
	run, err := rm.find(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(rm.out, "🆔 Run %s (completed %s)\n\n", run.ID, run.CompletedAt.Format("2006-01-02 15:04:05"))
	rm.printer.DisplayResult(runToResult(run))
	return nil
}

// ExportResult writes a stored run to the results directory and returns
// the file path
func (rm *ResultsManager) ExportResult(ctx context.Context, id string) (string, error) {
	run, err := rm.find(ctx, id)
	if err != nil {
		return "", err
	}
	r := runToResult(run)
	path := filepath.Join(rm.resultsDir, display.ExportFileName(r))
	if err := display.SaveResultToFile(r, path); err != nil {
		return "", err
	}
	return path, nil
}

func (rm *ResultsManager) find(ctx context.Context, id string) (*sqlite.RunWithMeta, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("run id is required")
	}

	run, err := rm.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	// fall back to a prefix match over recent runs
	runs, err := rm.store.ListRuns(ctx, 0, 200)
	if err != nil {
		return nil, err
	}
	var match *sqlite.RunWithMeta
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no run with id %q", id)
	}
	return match, nil
}

func runToResult(run *sqlite.RunWithMeta) *models.OptimizationResult {
	r := &models.OptimizationResult{
		ExpectedReturn: run.ExpectedReturn,
		Volatility:     run.Volatility,
		SharpeRatio:    run.SharpeRatio,
		MinVolatility:  run.MinVolatility,
		Model:          models.ModelType(run.Model),
		AsOf:           run.AsOf,
		MaxWeight:      run.MaxWeight,
		MaxRisk:        run.MaxRisk,
		CompletedAt:    run.CompletedAt,
	}
	for _, a := range run.Allocations {
		r.Tickers = append(r.Tickers, a.Ticker)
		r.Weights = append(r.Weights, a.Weight)
	}
	return r
}

func runTickers(run sqlite.RunWithMeta) []string {
	out := make([]string, 0, len(run.Allocations))
	for _, a := range run.Allocations {
		out = append(out, a.Ticker)
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
