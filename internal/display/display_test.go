package display

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/OptiFolio/internal/models"
)

func sample() *models.OptimizationResult {
	return &models.OptimizationResult{
		Tickers:        []string{"AAPL", "MSFT"},
		Weights:        []float64{0.6, 0.4},
		ExpectedReturn: 0.1234,
		Volatility:     0.1875,
		SharpeRatio:    0.66666,
		Model:          models.ModelCAPM,
		AsOf:           "2024-03-15",
		MaxWeight:      0.6,
		MaxRisk:        0.3,
		CompletedAt:    time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "60.00%", FormatPercent(0.6))
	assert.Equal(t, "12.35%", FormatPercent(0.12345))
	assert.Equal(t, "0.667", FormatSharpe(0.66666))
	assert.Equal(t, "190.50", FormatPrice(decimal.RequireFromString("190.5")))
}

func TestResultText(t *testing.T) {
	assert.Equal(t, NoWeights, ResultText(nil))

	text := ResultText(sample())
	assert.Contains(t, text, "AAPL      60.00%")
	assert.Contains(t, text, "MSFT      40.00%")
	assert.Contains(t, text, "Sharpe ratio:    0.667")
	assert.NotContains(t, text, "Min volatility")
}

func TestDisplayResultWritesOut(t *testing.T) {
	var buf bytes.Buffer
	NewResultsDisplay(&buf).DisplayResult(nil)
	assert.Equal(t, NoWeights+"\n", buf.String())
}

func TestBasketText(t *testing.T) {
	assert.Equal(t, "No assets selected.", BasketText(nil))
	text := BasketText([]models.Asset{{Ticker: "AAPL", Price: decimal.NewFromInt(190), Name: "Apple", Sector: "Technology", Industry: "Hardware"}})
	assert.Contains(t, text, "190.00")
	assert.Contains(t, text, "Apple (Technology / Hardware)")
}

func TestSaveResultToFile(t *testing.T) {
	r := sample()
	path := filepath.Join(t.TempDir(), "out", ExportFileName(r))
	require.NoError(t, SaveResultToFile(r, path))
	assert.Equal(t, "portfolio_2024-03-15_103000.json", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got exportedResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "capm", got.Metadata.Model)
	require.Len(t, got.Allocations, 2)
	assert.Equal(t, "60.00%", got.Allocations[0].Percent)
	assert.Equal(t, 0.3, got.Constraints.RiskCap)

	assert.Error(t, SaveResultToFile(nil, path))
}
