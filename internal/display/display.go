package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/OptiFolio/internal/models"
)

// NoWeights is shown in place of a result before the first optimization
const NoWeights = "No weights yet."

var hundred = decimal.NewFromInt(100)

// FormatPercent renders a fraction as a percentage with two decimals
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).Mul(hundred).StringFixed(2) + "%"
}

// FormatSharpe renders a Sharpe ratio with three decimals
func FormatSharpe(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(3)
}

// FormatPrice renders a price with two decimals
func FormatPrice(p decimal.Decimal) string {
	return p.StringFixed(2)
}

// ResultsDisplay renders optimization results as plain text
type ResultsDisplay struct {
	out io.Writer
}

// NewResultsDisplay creates a display writing to out
func NewResultsDisplay(out io.Writer) *ResultsDisplay {
	if out == nil {
		out = os.Stdout
	}
	return &ResultsDisplay{out: out}
}

// ResultText returns the allocation table and metrics for r, or NoWeights
// when r is nil
func ResultText(r *models.OptimizationResult) string {
	if r == nil || len(r.Weights) == 0 {
		return NoWeights
	}

	width := len("Ticker")
	for _, t := range r.Tickers {
		if len(t) > width {
			width = len(t)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %8s\n", width, "Ticker", "Weight")
	for _, a := range r.Allocations() {
		fmt.Fprintf(&b, "%-*s  %8s\n", width, a.Ticker, FormatPercent(a.Weight))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Expected return: %s\n", FormatPercent(r.ExpectedReturn))
	fmt.Fprintf(&b, "Volatility:      %s\n", FormatPercent(r.Volatility))
	fmt.Fprintf(&b, "Sharpe ratio:    %s\n", FormatSharpe(r.SharpeRatio))
	if r.MinVolatility > 0 {
		fmt.Fprintf(&b, "Min volatility:  %s\n", FormatPercent(r.MinVolatility))
	}
	fmt.Fprintf(&b, "Model: %s | As of: %s | Max weight: %s | Max risk: %s",
		r.Model.GetDisplayName(), r.AsOf, FormatPercent(r.MaxWeight), FormatPercent(r.MaxRisk))
	return b.String()
}

// BasketText lists the basket in insertion order
func BasketText(assets []models.Asset) string {
	if len(assets) == 0 {
		return "No assets selected."
	}
	var b strings.Builder
	for i, a := range assets {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%-8s %10s  %s (%s / %s)", a.Ticker, FormatPrice(a.Price), a.Name, a.Sector, a.Industry)
	}
	return b.String()
}

// DisplayResult writes the result text followed by a newline
func (d *ResultsDisplay) DisplayResult(r *models.OptimizationResult) {
	fmt.Fprintln(d.out, ResultText(r))
}

// exportedResult is the on-disk shape of an exported run
type exportedResult struct {
	Metadata    exportMetadata       `json:"metadata"`
	Allocations []exportAllocation   `json:"allocations"`
	Metrics     exportMetrics        `json:"metrics"`
	Constraints models.ConstraintSet `json:"constraints"`
}

type exportMetadata struct {
	Model       string `json:"model"`
	AsOf        string `json:"as_of"`
	CompletedAt string `json:"completed_at"`
	GeneratedAt string `json:"generated_at"`
}

type exportAllocation struct {
	Ticker  string  `json:"ticker"`
	Weight  float64 `json:"weight"`
	Percent string  `json:"percent"`
}

type exportMetrics struct {
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MinVolatility  float64 `json:"min_volatility,omitempty"`
}

// ExportFileName is the file an exported result is written to
func ExportFileName(r *models.OptimizationResult) string {
	ts := r.CompletedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("portfolio_%s_%s.json", r.AsOf, ts.Format("150405"))
}

// SaveResultToFile writes r as indented JSON to path, creating directories
func SaveResultToFile(r *models.OptimizationResult, path string) error {
	if r == nil {
		return fmt.Errorf("no result to export")
	}

	out := exportedResult{
		Metadata: exportMetadata{
			Model:       string(r.Model),
			AsOf:        r.AsOf,
			CompletedAt: r.CompletedAt.Format(time.RFC3339),
			GeneratedAt: time.Now().Format(time.RFC3339),
		},
		Metrics: exportMetrics{
			ExpectedReturn: r.ExpectedReturn,
			Volatility:     r.Volatility,
			SharpeRatio:    r.SharpeRatio,
			MinVolatility:  r.MinVolatility,
		},
		Constraints: models.ConstraintSet{WeightCap: r.MaxWeight, RiskCap: r.MaxRisk},
	}
	for _, a := range r.Allocations() {
		out.Allocations = append(out.Allocations, exportAllocation{
			Ticker:  a.Ticker,
			Weight:  a.Weight,
			Percent: FormatPercent(a.Weight),
		})
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result to JSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, jsonData, 0o644)
}
